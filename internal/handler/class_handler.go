package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/response"
)

type classRecomputer interface {
	Recompute(ctx context.Context, classID string, req service.RecomputeClassRequest) (*service.RecomputeClassSummary, error)
}

// ClassHandler exposes class-wide recomputation.
type ClassHandler struct {
	recalc classRecomputer
}

// NewClassHandler constructs handler.
func NewClassHandler(recalc classRecomputer) *ClassHandler {
	return &ClassHandler{recalc: recalc}
}

// Recompute godoc
// @Summary Recompute every grade, rank and report of a class for a term
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.RecomputeClassRequest true "Recompute scope"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /classes/{id}/recompute [post]
func (h *ClassHandler) Recompute(c *gin.Context) {
	var req service.RecomputeClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	summary, err := h.recalc.Recompute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, map[string]interface{}{"warning_count": len(summary.Warnings)})
}

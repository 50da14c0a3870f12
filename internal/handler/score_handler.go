package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/response"
)

type scoreService interface {
	Save(ctx context.Context, mode service.RecalcMode, req service.SaveScoreRequest) (*models.Score, error)
	Delete(ctx context.Context, mode service.RecalcMode, req service.DeleteScoreRequest) error
	BulkSave(ctx context.Context, mode service.RecalcMode, req service.BulkSaveScoresRequest) (*service.BulkSaveScoresResult, error)
}

// ScoreHandler exposes score mutations. Every mutation recomputes the affected grades.
type ScoreHandler struct {
	scores scoreService
}

// NewScoreHandler constructs handler.
func NewScoreHandler(scores scoreService) *ScoreHandler {
	return &ScoreHandler{scores: scores}
}

// Save godoc
// @Summary Create or update a score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.SaveScoreRequest true "Score payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /scores [put]
func (h *ScoreHandler) Save(c *gin.Context) {
	var req service.SaveScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	score, err := h.scores.Save(c.Request.Context(), service.RecalcActive, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, score)
}

// Delete godoc
// @Summary Delete a score
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.DeleteScoreRequest true "Score key"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /scores [delete]
func (h *ScoreHandler) Delete(c *gin.Context) {
	var req service.DeleteScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.scores.Delete(c.Request.Context(), service.RecalcActive, req); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Bulk godoc
// @Summary Save many scores in one transaction
// @Tags Scores
// @Accept json
// @Produce json
// @Param payload body service.BulkSaveScoresRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /scores/bulk [post]
func (h *ScoreHandler) Bulk(c *gin.Context) {
	var req service.BulkSaveScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.scores.BulkSave(c.Request.Context(), service.RecalcActive, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

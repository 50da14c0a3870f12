package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/response"
)

type promotionEvaluator interface {
	Evaluate(ctx context.Context, req service.EvaluatePromotionRequest) (*grading.PromotionDecision, error)
}

// PromotionHandler exposes read-only promotion evaluation.
type PromotionHandler struct {
	promotion promotionEvaluator
}

// NewPromotionHandler constructs handler.
func NewPromotionHandler(promotion promotionEvaluator) *PromotionHandler {
	return &PromotionHandler{promotion: promotion}
}

// Evaluate godoc
// @Summary Evaluate promotion for a stored term report
// @Tags Promotion
// @Accept json
// @Produce json
// @Param payload body service.EvaluatePromotionRequest true "Evaluation scope"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /promotion/evaluate [post]
func (h *PromotionHandler) Evaluate(c *gin.Context) {
	var req service.EvaluatePromotionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	decision, err := h.promotion.Evaluate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, decision)
}

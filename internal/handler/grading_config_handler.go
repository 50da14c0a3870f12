package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/pkg/response"
)

type gradingConfigService interface {
	SystemByID(ctx context.Context, id string) (*models.GradingSystem, error)
	Invalidate(ctx context.Context) (int, error)
}

// GradingConfigHandler exposes grading system lookups and cache maintenance.
type GradingConfigHandler struct {
	configs gradingConfigService
}

// NewGradingConfigHandler constructs handler.
func NewGradingConfigHandler(configs gradingConfigService) *GradingConfigHandler {
	return &GradingConfigHandler{configs: configs}
}

// GetSystem godoc
// @Summary Get a grading system with its scales
// @Tags Grading Config
// @Produce json
// @Param id path string true "Grading system ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grading-systems/{id} [get]
func (h *GradingConfigHandler) GetSystem(c *gin.Context) {
	system, err := h.configs.SystemByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, system)
}

// InvalidateCache godoc
// @Summary Drop cached grading systems and categories
// @Tags Grading Config
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading-config/cache/invalidate [post]
func (h *GradingConfigHandler) InvalidateCache(c *gin.Context) {
	removed, err := h.configs.Invalidate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"removed_keys": removed})
}

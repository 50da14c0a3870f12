package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Grades    *GradeHandler
	Classes   *ClassHandler
	Scores    *ScoreHandler
	Promotion *PromotionHandler
	Config    *GradingConfigHandler
	Metrics   *MetricsHandler
}

// RegisterRoutes mounts the probes at the root and the grading API under prefix.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	grades := api.Group("/grades")
	grades.GET("", h.Grades.Get)
	grades.POST("/recompute", h.Grades.Recompute)
	api.POST("/term-reports/recompute", h.Grades.RecomputeReport)

	api.POST("/classes/:id/recompute", h.Classes.Recompute)
	api.POST("/promotion/evaluate", h.Promotion.Evaluate)

	scores := api.Group("/scores")
	scores.PUT("", h.Scores.Save)
	scores.DELETE("", h.Scores.Delete)
	scores.POST("/bulk", h.Scores.Bulk)

	api.GET("/grading-systems/:id", h.Config.GetSystem)
	api.POST("/grading-config/cache/invalidate", h.Config.InvalidateCache)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/service"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/response"
)

type gradeService interface {
	Find(ctx context.Context, req service.RecomputeGradeRequest) (*models.SubjectTermGrade, []grading.Warning, error)
	Recompute(ctx context.Context, req service.RecomputeGradeRequest) (*models.SubjectTermGrade, error)
	RecomputeReport(ctx context.Context, req service.RecomputeReportRequest) (*models.TermReport, error)
}

// GradeHandler exposes subject grade and term report endpoints.
type GradeHandler struct {
	grades gradeService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Get godoc
// @Summary Get a stored subject grade
// @Tags Grades
// @Produce json
// @Param student_id query string true "Student ID"
// @Param subject_id query string true "Subject ID"
// @Param term_id query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) Get(c *gin.Context) {
	req := service.RecomputeGradeRequest{
		StudentID: c.Query("student_id"),
		SubjectID: c.Query("subject_id"),
		TermID:    c.Query("term_id"),
	}
	grade, warnings, err := h.grades.Find(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if len(warnings) > 0 {
		meta = map[string]interface{}{"warnings": warnings}
	}
	response.JSON(c, http.StatusOK, grade, meta)
}

// Recompute godoc
// @Summary Recompute one subject grade
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecomputeGradeRequest true "Grade key"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /grades/recompute [post]
func (h *GradeHandler) Recompute(c *gin.Context) {
	var req service.RecomputeGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	grade, err := h.grades.Recompute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grade)
}

// RecomputeReport godoc
// @Summary Recompute a student's term report summary
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.RecomputeReportRequest true "Report key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /term-reports/recompute [post]
func (h *GradeHandler) RecomputeReport(c *gin.Context) {
	var req service.RecomputeReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.grades.RecomputeReport(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

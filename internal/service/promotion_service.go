package service

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

// EvaluatePromotionRequest asks for a promotion verdict on a stored term report.
type EvaluatePromotionRequest struct {
	StudentID       string `json:"student_id" validate:"required"`
	TermID          string `json:"term_id" validate:"required"`
	GradingSystemID string `json:"grading_system_id" validate:"required"`
}

// PromotionService evaluates promotion without re-running the pipeline. Nothing is written.
type PromotionService struct {
	reports   termReportStore
	grades    subjectGradeStore
	configs   gradingConfigResolver
	validator *validator.Validate
}

// NewPromotionService constructs PromotionService.
func NewPromotionService(reports termReportStore, grades subjectGradeStore, configs gradingConfigResolver, validate *validator.Validate) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	return &PromotionService{reports: reports, grades: grades, configs: configs, validator: validate}
}

// Evaluate applies the grading system's promotion rules to the student's term report.
func (s *PromotionService) Evaluate(ctx context.Context, req EvaluatePromotionRequest) (*grading.PromotionDecision, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promotion payload")
	}
	system, err := s.configs.SystemByID(ctx, req.GradingSystemID)
	if err != nil {
		return nil, err
	}
	report, err := s.reports.FindByStudentTerm(ctx, nil, req.StudentID, req.TermID)
	if err != nil {
		return nil, notFoundOr(err, "term report not found", "failed to load term report")
	}
	grades, err := s.grades.ListByStudentTerm(ctx, nil, req.StudentID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}

	decision := grading.EvaluatePromotion(*report, *system, grading.CoreGrades(grades))
	return &decision, nil
}

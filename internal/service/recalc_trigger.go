package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/logger"
)

// RecalcMode tells a score mutation whether to run incremental recomputation.
type RecalcMode int

const (
	// RecalcActive recomputes the affected grade and report after the mutation commits.
	RecalcActive RecalcMode = iota
	// RecalcSuppressed skips recomputation; the caller owns it.
	RecalcSuppressed
)

func (m RecalcMode) String() string {
	if m == RecalcSuppressed {
		return "suppressed"
	}
	return "active"
}

type gradeRecomputer interface {
	RecomputeOne(ctx context.Context, studentID, subjectID, termID string) (*models.SubjectTermGrade, error)
	RecomputeTermReport(ctx context.Context, studentID, termID string) (*models.TermReport, error)
}

// RecalcTrigger runs incremental recomputation for score mutations. Failures
// are logged and counted, never returned to the score write.
type RecalcTrigger struct {
	grades  gradeRecomputer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRecalcTrigger constructs the trigger.
func NewRecalcTrigger(grades gradeRecomputer, metrics *MetricsService, logger *zap.Logger) *RecalcTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalcTrigger{grades: grades, metrics: metrics, logger: logger}
}

// Handle recomputes (student, subject, term) and then the (student, term) report.
func (t *RecalcTrigger) Handle(ctx context.Context, mode RecalcMode, studentID, subjectID, termID string) {
	if t.HandleGrade(ctx, mode, studentID, subjectID, termID) {
		t.HandleReport(ctx, mode, studentID, termID)
	}
}

// HandleGrade recomputes only the (student, subject, term) grade and reports whether it succeeded.
func (t *RecalcTrigger) HandleGrade(ctx context.Context, mode RecalcMode, studentID, subjectID, termID string) bool {
	if mode == RecalcSuppressed {
		return false
	}
	if _, err := t.grades.RecomputeOne(ctx, studentID, subjectID, termID); err != nil {
		t.report(ctx, "subject grade", err, studentID, subjectID, termID)
		return false
	}
	return true
}

// HandleReport recomputes only the (student, term) report and reports whether it succeeded.
func (t *RecalcTrigger) HandleReport(ctx context.Context, mode RecalcMode, studentID, termID string) bool {
	if mode == RecalcSuppressed {
		return false
	}
	if _, err := t.grades.RecomputeTermReport(ctx, studentID, termID); err != nil {
		t.report(ctx, "term report", err, studentID, "", termID)
		return false
	}
	return true
}

func (t *RecalcTrigger) report(ctx context.Context, stage string, err error, studentID, subjectID, termID string) {
	log := logger.FromContext(ctx, t.logger).With(
		zap.String("stage", stage),
		zap.String("student_id", studentID),
		zap.String("term_id", termID),
		zap.Error(err),
	)
	if subjectID != "" {
		log = log.With(zap.String("subject_id", subjectID))
	}

	switch {
	case appErrors.HasCode(err, appErrors.ErrPreconditionFailed):
		log.Debug("incremental recompute skipped")
	case appErrors.HasCode(err, appErrors.ErrConfiguration):
		t.metrics.IncIncrementalFailure("configuration")
		log.Warn("incremental recompute failed: grading configuration")
	case appErrors.HasCode(err, appErrors.ErrLocked):
		t.metrics.IncIncrementalFailure("locked")
		log.Warn("incremental recompute failed: grades locked")
	case appErrors.HasCode(err, appErrors.ErrNotFound):
		t.metrics.IncIncrementalFailure("not_found")
		log.Warn("incremental recompute failed: missing reference")
	default:
		t.metrics.IncIncrementalFailure("internal")
		log.Error("incremental recompute failed")
	}
}

package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/events"
	"github.com/noah-isme/sma-grading-engine/pkg/logger"
)

// RecomputeClassRequest is the payload of a bulk recompute.
type RecomputeClassRequest struct {
	TermID          string `json:"term_id" validate:"required"`
	GradingSystemID string `json:"grading_system_id" validate:"required"`
}

// RecomputeClassSummary reports the outcome of a bulk recompute.
type RecomputeClassSummary struct {
	ClassID              string            `json:"class_id"`
	TermID               string            `json:"term_id"`
	GradingSystemID      string            `json:"grading_system_id"`
	UpdatedSubjectGrades int               `json:"updated_subject_grades"`
	UpdatedTermReports   int               `json:"updated_term_reports"`
	PromotionEvaluated   bool              `json:"promotion_evaluated"`
	Warnings             []grading.Warning `json:"warnings"`
	DurationMs           int64             `json:"duration_ms"`
}

// ClassRecalculatedPayload is published after a bulk recompute commits.
type ClassRecalculatedPayload struct {
	ClassID              string `json:"class_id"`
	TermID               string `json:"term_id"`
	GradingSystemID      string `json:"grading_system_id"`
	UpdatedSubjectGrades int    `json:"updated_subject_grades"`
	UpdatedTermReports   int    `json:"updated_term_reports"`
	PromotionEvaluated   bool   `json:"promotion_evaluated"`
}

// RecalculationOptions tunes the bulk path.
type RecalculationOptions struct {
	// FinalTermNumber marks the term of the year that evaluates promotion.
	FinalTermNumber int
	AggregatePolicy grading.AggregatePolicy
}

// RecalculationService recomputes every derived grade row of a class for one term.
type RecalculationService struct {
	tx          txProvider
	directory   directoryReader
	assignments assignmentReader
	scores      scoreReader
	grades      subjectGradeStore
	reports     termReportStore
	configs     gradingConfigResolver
	guard       *GradeLockGuard
	publisher   events.Publisher
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	opts        RecalculationOptions
}

// NewRecalculationService constructs RecalculationService.
func NewRecalculationService(
	tx txProvider,
	directory directoryReader,
	assignments assignmentReader,
	scores scoreReader,
	grades subjectGradeStore,
	reports termReportStore,
	configs gradingConfigResolver,
	guard *GradeLockGuard,
	publisher events.Publisher,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts RecalculationOptions,
) *RecalculationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if opts.AggregatePolicy == "" {
		opts.AggregatePolicy = grading.AggregatePartial
	}
	return &RecalculationService{
		tx:          tx,
		directory:   directory,
		assignments: assignments,
		scores:      scores,
		grades:      grades,
		reports:     reports,
		configs:     configs,
		guard:       guard,
		publisher:   publisher,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		opts:        opts,
	}
}

// Recompute validates req and runs RecomputeClass.
func (s *RecalculationService) Recompute(ctx context.Context, classID string, req RecomputeClassRequest) (*RecomputeClassSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recompute payload")
	}
	return s.RecomputeClass(ctx, classID, req.TermID, req.GradingSystemID)
}

// RecomputeClass recomputes subject grades, subject ranks, term reports, aggregates,
// overall ranks and, on the final term, promotion for every active student of a class.
// All writes commit together or not at all. Per-row configuration problems are
// returned as warnings.
func (s *RecalculationService) RecomputeClass(ctx context.Context, classID, termID, gradingSystemID string) (summary *RecomputeClassSummary, err error) {
	start := time.Now()
	if gradingSystemID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "grading_system_id is required for class recompute")
	}
	if termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term_id is required for class recompute")
	}

	if _, err = s.directory.FindClass(ctx, classID); err != nil {
		return nil, notFoundOr(err, "class not found", "failed to load class")
	}
	system, err := s.configs.SystemByID(ctx, gradingSystemID)
	if err != nil {
		return nil, err
	}
	categories, err := s.configs.ActiveCategories(ctx)
	if err != nil {
		return nil, err
	}

	students, err := s.directory.ListActiveStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	if len(students) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no active students")
	}
	subjects, err := s.directory.ListClassSubjects(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class subjects")
	}
	if len(subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no subjects")
	}
	enrollments, err := s.directory.ListEnrollments(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject enrollments")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The term row lock is held until commit, so incremental recomputes and
	// score writes for this term wait for the whole class to land.
	term, err := s.guard.Check(ctx, tx, termID)
	if err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListBySubjectsTerm(ctx, tx, subjectIDs(subjects), termID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prefetch assignments")
		return nil, err
	}
	scores, err := s.scores.ListForStudents(ctx, tx, studentIDs(students), assignmentIDs(assignments))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prefetch scores")
		return nil, err
	}

	evaluatePromotion := s.opts.FinalTermNumber > 0 && term.TermNumber == s.opts.FinalTermNumber
	result := grading.ComputeClass(grading.ClassInput{
		TermID:            termID,
		System:            *system,
		Students:          students,
		Subjects:          subjects,
		Enrollments:       enrollments,
		Categories:        categories,
		Assignments:       assignments,
		Scores:            scores,
		Policy:            s.opts.AggregatePolicy,
		EvaluatePromotion: evaluatePromotion,
	})

	if err = s.grades.Upsert(ctx, tx, result.Grades, true); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store subject grades")
		return nil, err
	}
	// Drop rows for subjects a student no longer takes.
	pruned, err := s.grades.DeleteStale(ctx, tx, termID, studentIDs(students), result.Grades)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to prune subject grades")
		return nil, err
	}
	scope := repository.ReportScopeRanking
	if evaluatePromotion {
		scope = repository.ReportScopePromotion
	}
	if err = s.reports.Upsert(ctx, tx, result.Reports, scope); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store term reports")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit class recompute")
		return nil, err
	}

	elapsed := time.Since(start)
	warnings := result.Warnings
	if warnings == nil {
		warnings = []grading.Warning{}
	}
	summary = &RecomputeClassSummary{
		ClassID:              classID,
		TermID:               termID,
		GradingSystemID:      gradingSystemID,
		UpdatedSubjectGrades: len(result.Grades),
		UpdatedTermReports:   len(result.Reports),
		PromotionEvaluated:   evaluatePromotion,
		Warnings:             warnings,
		DurationMs:           elapsed.Milliseconds(),
	}

	s.metrics.ObserveRecompute(RecomputePathBulk, elapsed, summary.UpdatedSubjectGrades, summary.UpdatedTermReports)
	s.metrics.AddConfigurationWarnings(len(warnings))
	logger.FromContext(ctx, s.logger).Info("class recompute completed",
		zap.String("class_id", classID),
		zap.String("term_id", termID),
		zap.String("grading_system_id", gradingSystemID),
		zap.Int("students", len(students)),
		zap.Int("subject_grades", summary.UpdatedSubjectGrades),
		zap.Int64("pruned_subject_grades", pruned),
		zap.Int("term_reports", summary.UpdatedTermReports),
		zap.Int("warnings", len(warnings)),
		zap.Bool("promotion", evaluatePromotion),
		zap.Duration("duration", elapsed),
	)
	publishEvent(ctx, s.publisher, s.logger, events.EventClassRecalculated, ClassRecalculatedPayload{
		ClassID:              classID,
		TermID:               termID,
		GradingSystemID:      gradingSystemID,
		UpdatedSubjectGrades: summary.UpdatedSubjectGrades,
		UpdatedTermReports:   summary.UpdatedTermReports,
		PromotionEvaluated:   evaluatePromotion,
	})
	return summary, nil
}

func studentIDs(students []models.Student) []string {
	ids := make([]string, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	return ids
}

func subjectIDs(subjects []models.Subject) []string {
	ids := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		ids = append(ids, subject.ID)
	}
	return ids
}

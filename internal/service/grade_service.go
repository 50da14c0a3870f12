package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/internal/grading"
	"github.com/noah-isme/sma-grading-engine/internal/models"
	"github.com/noah-isme/sma-grading-engine/internal/repository"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
	"github.com/noah-isme/sma-grading-engine/pkg/events"
	"github.com/noah-isme/sma-grading-engine/pkg/logger"
	"github.com/noah-isme/sma-grading-engine/pkg/middleware/requestid"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type directoryReader interface {
	FindStudent(ctx context.Context, id string) (*models.Student, error)
	FindClass(ctx context.Context, id string) (*models.Class, error)
	FindSubject(ctx context.Context, id string) (*models.Subject, error)
	ListActiveStudents(ctx context.Context, classID string) ([]models.Student, error)
	ListClassSubjects(ctx context.Context, classID string) ([]models.Subject, error)
	ListEnrollments(ctx context.Context, classID string) ([]models.SubjectEnrollment, error)
}

type assignmentReader interface {
	ListBySubjectsTerm(ctx context.Context, exec sqlx.ExtContext, subjectIDs []string, termID string) ([]models.Assignment, error)
}

type scoreReader interface {
	ListForStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs, assignmentIDs []string) ([]models.Score, error)
}

type subjectGradeStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, grades []models.SubjectTermGrade, withRank bool) error
	FindByKey(ctx context.Context, exec sqlx.ExtContext, studentID, subjectID, termID string) (*models.SubjectTermGrade, error)
	ListByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) ([]models.SubjectTermGrade, error)
	ListBySubjectTerm(ctx context.Context, exec sqlx.ExtContext, subjectID, termID string, studentIDs []string) ([]models.SubjectTermGrade, error)
	UpdateRanks(ctx context.Context, exec sqlx.ExtContext, grades []models.SubjectTermGrade) error
	DeleteStale(ctx context.Context, exec sqlx.ExtContext, termID string, studentIDs []string, keep []models.SubjectTermGrade) (int64, error)
}

type termReportStore interface {
	Upsert(ctx context.Context, exec sqlx.ExtContext, reports []models.TermReport, scope repository.ReportScope) error
	FindByStudentTerm(ctx context.Context, exec sqlx.ExtContext, studentID, termID string) (*models.TermReport, error)
}

type gradingConfigResolver interface {
	SystemByID(ctx context.Context, id string) (*models.GradingSystem, error)
	ActiveForLevel(ctx context.Context, level models.SchoolLevel) (*models.GradingSystem, error)
	ActiveCategories(ctx context.Context) ([]models.AssessmentCategory, error)
}

// RecomputeGradeRequest identifies one subject grade.
type RecomputeGradeRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	SubjectID string `json:"subject_id" validate:"required"`
	TermID    string `json:"term_id" validate:"required"`
}

// RecomputeReportRequest identifies one term report.
type RecomputeReportRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	TermID    string `json:"term_id" validate:"required"`
}

// GradeServiceOptions tunes the incremental path.
type GradeServiceOptions struct {
	// RefreshSubjectRanks re-ranks the affected subject within the student's class after each recompute.
	RefreshSubjectRanks bool
}

// GradeService performs incremental recomputation of one subject grade or one term report.
type GradeService struct {
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
	opts        GradeServiceOptions
}

// NewGradeService constructs GradeService.
func NewGradeService(
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
	opts GradeServiceOptions,
) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &GradeService{
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

// SubjectRecalculatedPayload is published after an incremental recompute commits.
type SubjectRecalculatedPayload struct {
	StudentID  string   `json:"student_id"`
	SubjectID  string   `json:"subject_id"`
	TermID     string   `json:"term_id"`
	TotalScore *float64 `json:"total_score"`
	Grade      string   `json:"grade"`
}

// Recompute validates req and runs RecomputeOne.
func (s *GradeService) Recompute(ctx context.Context, req RecomputeGradeRequest) (*models.SubjectTermGrade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recompute payload")
	}
	return s.RecomputeOne(ctx, req.StudentID, req.SubjectID, req.TermID)
}

// RecomputeOne recomputes and stores the grade of one student in one subject for a term.
// Ranks are preserved unless subject rank refresh is enabled.
func (s *GradeService) RecomputeOne(ctx context.Context, studentID, subjectID, termID string) (grade *models.SubjectTermGrade, err error) {
	start := time.Now()
	student, err := s.directory.FindStudent(ctx, studentID)
	if err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
	}
	if _, err = s.directory.FindSubject(ctx, subjectID); err != nil {
		return nil, notFoundOr(err, "subject not found", "failed to load subject")
	}

	class, err := s.studentClass(ctx, student)
	if err != nil {
		return nil, err
	}
	level := models.SchoolLevelBasic
	if class != nil && class.Level != "" {
		level = class.Level
	}
	system, err := s.configs.ActiveForLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	categories, err := s.configs.ActiveCategories(ctx)
	if err != nil {
		return nil, err
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

	if _, err = s.guard.Check(ctx, tx, termID); err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListBySubjectsTerm(ctx, tx, []string{subjectID}, termID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		return nil, err
	}
	scores, err := s.scores.ListForStudents(ctx, tx, []string{studentID}, assignmentIDs(assignments))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scores")
		return nil, err
	}

	computed := grading.ComputeSubjectGrade(grading.SubjectInputFor(studentID, subjectID, termID, categories,
		grading.IndexAssignments(assignments), grading.IndexScores(scores), grading.NewScales(system.Scales)))
	if len(computed.Warnings) > 0 {
		s.metrics.AddConfigurationWarnings(len(computed.Warnings))
		for _, w := range computed.Warnings {
			logger.FromContext(ctx, s.logger).Warn("grading configuration warning", zap.String("warning", w.String()))
		}
	}

	if err = s.grades.Upsert(ctx, tx, []models.SubjectTermGrade{computed.Grade}, false); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store subject grade")
		return nil, err
	}
	if s.opts.RefreshSubjectRanks && class != nil {
		if err = s.refreshSubjectRanks(ctx, tx, class.ID, subjectID, termID); err != nil {
			return nil, err
		}
	}

	grade, err = s.grades.FindByKey(ctx, tx, studentID, subjectID, termID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload subject grade")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit subject grade")
		return nil, err
	}

	s.metrics.ObserveRecompute(RecomputePathIncremental, time.Since(start), 1, 0)
	s.publish(ctx, events.EventSubjectRecalculated, SubjectRecalculatedPayload{
		StudentID:  studentID,
		SubjectID:  subjectID,
		TermID:     termID,
		TotalScore: grade.TotalScore,
		Grade:      grade.Grade,
	})
	return grade, nil
}

// Find returns a stored subject grade. Breakdown entries that no longer match
// the active categories are reported as warnings; the row is returned as stored.
func (s *GradeService) Find(ctx context.Context, req RecomputeGradeRequest) (*models.SubjectTermGrade, []grading.Warning, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade query")
	}
	grade, err := s.grades.FindByKey(ctx, nil, req.StudentID, req.SubjectID, req.TermID)
	if err != nil {
		return nil, nil, notFoundOr(err, "subject grade not found", "failed to load subject grade")
	}
	categories, err := s.configs.ActiveCategories(ctx)
	if err != nil {
		return nil, nil, err
	}

	warnings := []grading.Warning{}
	if verr := grade.CategoryScores.Validate(categories); verr != nil {
		for _, w := range grading.WarningsFrom(verr) {
			w.StudentID = grade.StudentID
			w.SubjectID = grade.SubjectID
			warnings = append(warnings, w)
		}
	}
	return grade, warnings, nil
}

// RecomputeReport validates req and runs RecomputeTermReport.
func (s *GradeService) RecomputeReport(ctx context.Context, req RecomputeReportRequest) (*models.TermReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recompute payload")
	}
	return s.RecomputeTermReport(ctx, req.StudentID, req.TermID)
}

// RecomputeTermReport refreshes the summary counters of a student's term report
// from the stored subject grades. Aggregate, rank and promotion are left to the bulk path.
func (s *GradeService) RecomputeTermReport(ctx context.Context, studentID, termID string) (report *models.TermReport, err error) {
	start := time.Now()
	if _, err = s.directory.FindStudent(ctx, studentID); err != nil {
		return nil, notFoundOr(err, "student not found", "failed to load student")
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

	if _, err = s.guard.Check(ctx, tx, termID); err != nil {
		return nil, err
	}

	grades, err := s.grades.ListByStudentTerm(ctx, tx, studentID, termID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
		return nil, err
	}
	summary := grading.SummarizeTerm(studentID, termID, grades)

	if err = s.reports.Upsert(ctx, tx, []models.TermReport{summary}, repository.ReportScopeSummary); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store term report")
		return nil, err
	}
	report, err = s.reports.FindByStudentTerm(ctx, tx, studentID, termID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload term report")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit term report")
		return nil, err
	}

	s.metrics.ObserveRecompute(RecomputePathIncremental, time.Since(start), 0, 1)
	return report, nil
}

func (s *GradeService) studentClass(ctx context.Context, student *models.Student) (*models.Class, error) {
	if student.CurrentClassID == nil || *student.CurrentClassID == "" {
		return nil, nil
	}
	class, err := s.directory.FindClass(ctx, *student.CurrentClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *GradeService) refreshSubjectRanks(ctx context.Context, exec sqlx.ExtContext, classID, subjectID, termID string) error {
	students, err := s.directory.ListActiveStudents(ctx, classID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class students")
	}
	rows, err := s.grades.ListBySubjectTerm(ctx, exec, subjectID, termID, studentIDs(students))
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject grades")
	}

	ptrs := make([]*models.SubjectTermGrade, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	grading.RankSubject(ptrs)
	if err := s.grades.UpdateRanks(ctx, exec, rows); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh subject ranks")
	}
	return nil
}

func (s *GradeService) publish(ctx context.Context, eventType events.EventType, payload interface{}) {
	publishEvent(ctx, s.publisher, s.logger, eventType, payload)
}

// publishEvent runs after commit; a failed publish is logged and dropped.
func publishEvent(ctx context.Context, publisher events.Publisher, log *zap.Logger, eventType events.EventType, payload interface{}) {
	event, err := events.NewEvent(eventType, payload)
	if err != nil {
		log.Warn("encode grading event failed", zap.String("event_type", string(eventType)), zap.Error(err))
		return
	}
	event.RequestID = requestid.FromContext(ctx)
	if err := publisher.Publish(ctx, event); err != nil {
		logger.FromContext(ctx, log).Warn("grading event dropped", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func notFoundOr(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func assignmentIDs(assignments []models.Assignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		ids = append(ids, assignment.ID)
	}
	return ids
}

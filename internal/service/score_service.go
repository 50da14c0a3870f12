package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

type scoreStore interface {
	Get(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) (*models.Score, error)
	ListForStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs, assignmentIDs []string) ([]models.Score, error)
	UpsertBatch(ctx context.Context, exec sqlx.ExtContext, scores []models.Score) error
	Delete(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) error
	InsertAuditLogs(ctx context.Context, exec sqlx.ExtContext, logs []models.ScoreAuditLog) error
}

type scoreAssignmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Assignment, error)
}

type studentFinder interface {
	FindStudent(ctx context.Context, id string) (*models.Student, error)
}

type recalcHandler interface {
	Handle(ctx context.Context, mode RecalcMode, studentID, subjectID, termID string)
	HandleGrade(ctx context.Context, mode RecalcMode, studentID, subjectID, termID string) bool
	HandleReport(ctx context.Context, mode RecalcMode, studentID, termID string) bool
}

// SaveScoreRequest creates or updates one score.
type SaveScoreRequest struct {
	StudentID    string   `json:"student_id" validate:"required"`
	AssignmentID string   `json:"assignment_id" validate:"required"`
	Points       *float64 `json:"points" validate:"required"`
	ActorID      string   `json:"actor_id"`
}

// DeleteScoreRequest removes one score.
type DeleteScoreRequest struct {
	StudentID    string `json:"student_id" validate:"required"`
	AssignmentID string `json:"assignment_id" validate:"required"`
	ActorID      string `json:"actor_id"`
}

// BulkScoreItem is one entry of a bulk save.
type BulkScoreItem struct {
	StudentID    string   `json:"student_id" validate:"required"`
	AssignmentID string   `json:"assignment_id" validate:"required"`
	Points       *float64 `json:"points" validate:"required"`
}

// BulkSaveScoresRequest saves many scores atomically.
type BulkSaveScoresRequest struct {
	ActorID string          `json:"actor_id"`
	Scores  []BulkScoreItem `json:"scores" validate:"required,min=1,dive"`
}

// BulkSaveScoresResult summarises a bulk save.
type BulkSaveScoresResult struct {
	Saved              int  `json:"saved"`
	RecomputedGrades   int  `json:"recomputed_grades"`
	RecomputedReports  int  `json:"recomputed_reports"`
	FailedRecomputes   int  `json:"failed_recomputes"`
	SkippedRecomputing bool `json:"skipped_recomputing"`
}

// ScoreService records score mutations under the grade lock and triggers incremental recomputation.
type ScoreService struct {
	tx          txProvider
	scores      scoreStore
	assignments scoreAssignmentReader
	students    studentFinder
	guard       *GradeLockGuard
	trigger     recalcHandler
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewScoreService constructs ScoreService.
func NewScoreService(tx txProvider, scores scoreStore, assignments scoreAssignmentReader, students studentFinder, guard *GradeLockGuard, trigger recalcHandler, validate *validator.Validate, logger *zap.Logger) *ScoreService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScoreService{
		tx:          tx,
		scores:      scores,
		assignments: assignments,
		students:    students,
		guard:       guard,
		trigger:     trigger,
		validator:   validate,
		logger:      logger,
	}
}

// Save creates or updates a score and, in active mode, recomputes the affected grade and report.
func (s *ScoreService) Save(ctx context.Context, mode RecalcMode, req SaveScoreRequest) (score *models.Score, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found", "failed to load assignment")
	}
	if err = validatePoints(*req.Points, assignment); err != nil {
		return nil, err
	}
	if _, err = s.students.FindStudent(ctx, req.StudentID); err != nil {
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

	if _, err = s.guard.Check(ctx, tx, assignment.TermID); err != nil {
		return nil, err
	}

	existing, err := s.scores.Get(ctx, tx, req.StudentID, req.AssignmentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load score")
		return nil, err
	}
	err = nil

	record := models.Score{StudentID: req.StudentID, AssignmentID: req.AssignmentID, Points: *req.Points}
	audit := models.ScoreAuditLog{
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Action:       models.AuditActionCreate,
		NewValue:     floatPtr(*req.Points),
		ActorID:      actorPtr(req.ActorID),
	}
	if existing != nil {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		audit.Action = models.AuditActionUpdate
		audit.OldValue = floatPtr(existing.Points)
	}

	batch := []models.Score{record}
	if err = s.scores.UpsertBatch(ctx, tx, batch); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save score")
		return nil, err
	}
	if err = s.scores.InsertAuditLogs(ctx, tx, []models.ScoreAuditLog{audit}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write score audit log")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit score")
		return nil, err
	}

	s.trigger.Handle(ctx, mode, req.StudentID, assignment.SubjectID, assignment.TermID)
	saved := batch[0]
	return &saved, nil
}

// Delete removes a score and, in active mode, recomputes the affected grade and report.
func (s *ScoreService) Delete(ctx context.Context, mode RecalcMode, req DeleteScoreRequest) (err error) {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid score payload")
	}
	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		return notFoundOr(err, "assignment not found", "failed to load assignment")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = s.guard.Check(ctx, tx, assignment.TermID); err != nil {
		return err
	}

	existing, err := s.scores.Get(ctx, tx, req.StudentID, req.AssignmentID)
	if err != nil {
		err = notFoundOr(err, "score not found", "failed to load score")
		return err
	}
	if err = s.scores.Delete(ctx, tx, req.StudentID, req.AssignmentID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete score")
		return err
	}
	audit := models.ScoreAuditLog{
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Action:       models.AuditActionDelete,
		OldValue:     floatPtr(existing.Points),
		ActorID:      actorPtr(req.ActorID),
	}
	if err = s.scores.InsertAuditLogs(ctx, tx, []models.ScoreAuditLog{audit}); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write score audit log")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit score deletion")
		return err
	}

	s.trigger.Handle(ctx, mode, req.StudentID, assignment.SubjectID, assignment.TermID)
	return nil
}

type gradeKey struct {
	studentID string
	subjectID string
	termID    string
}

type reportKey struct {
	studentID string
	termID    string
}

// BulkSave writes every score in one transaction with recomputation suppressed,
// then recomputes each affected grade once and each affected report once.
// Repeated (student, assignment) entries keep the last value.
func (s *ScoreService) BulkSave(ctx context.Context, mode RecalcMode, req BulkSaveScoresRequest) (result *BulkSaveScoresResult, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk score payload")
	}

	ids := make([]string, 0, len(req.Scores))
	seen := make(map[string]struct{}, len(req.Scores))
	for _, item := range req.Scores {
		if _, ok := seen[item.AssignmentID]; !ok {
			seen[item.AssignmentID] = struct{}{}
			ids = append(ids, item.AssignmentID)
		}
	}
	assignments, err := s.assignments.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	byID := make(map[string]models.Assignment, len(assignments))
	for _, assignment := range assignments {
		byID[assignment.ID] = assignment
	}

	type entry struct {
		item       BulkScoreItem
		assignment models.Assignment
	}
	order := make([]string, 0, len(req.Scores))
	latest := make(map[string]entry, len(req.Scores))
	for _, item := range req.Scores {
		assignment, ok := byID[item.AssignmentID]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("assignment %s not found", item.AssignmentID))
		}
		if err = validatePoints(*item.Points, &assignment); err != nil {
			return nil, err
		}
		key := item.StudentID + "|" + item.AssignmentID
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = entry{item: item, assignment: assignment}
	}

	termSet := make(map[string]struct{})
	studentSet := make(map[string]struct{})
	for _, key := range order {
		termSet[latest[key].assignment.TermID] = struct{}{}
		studentSet[latest[key].item.StudentID] = struct{}{}
	}
	for _, studentID := range sortedKeys(studentSet) {
		if _, err = s.students.FindStudent(ctx, studentID); err != nil {
			return nil, notFoundOr(err, fmt.Sprintf("student %s not found", studentID), "failed to load student")
		}
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

	// Terms are locked in ID order so concurrent bulk saves cannot deadlock.
	for _, termID := range sortedKeys(termSet) {
		if _, err = s.guard.Check(ctx, tx, termID); err != nil {
			return nil, err
		}
	}

	existingRows, err := s.scores.ListForStudents(ctx, tx, sortedKeys(studentSet), ids)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing scores")
		return nil, err
	}
	existing := make(map[string]models.Score, len(existingRows))
	for _, row := range existingRows {
		existing[row.StudentID+"|"+row.AssignmentID] = row
	}

	records := make([]models.Score, 0, len(order))
	audits := make([]models.ScoreAuditLog, 0, len(order))
	for _, key := range order {
		e := latest[key]
		record := models.Score{StudentID: e.item.StudentID, AssignmentID: e.item.AssignmentID, Points: *e.item.Points}
		audit := models.ScoreAuditLog{
			StudentID:    e.item.StudentID,
			AssignmentID: e.item.AssignmentID,
			Action:       models.AuditActionCreate,
			NewValue:     floatPtr(*e.item.Points),
			ActorID:      actorPtr(req.ActorID),
		}
		if prev, ok := existing[key]; ok {
			record.ID = prev.ID
			record.CreatedAt = prev.CreatedAt
			audit.Action = models.AuditActionUpdate
			audit.OldValue = floatPtr(prev.Points)
		}
		records = append(records, record)
		audits = append(audits, audit)
	}

	if err = s.scores.UpsertBatch(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save scores")
		return nil, err
	}
	if err = s.scores.InsertAuditLogs(ctx, tx, audits); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write score audit logs")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit scores")
		return nil, err
	}

	result = &BulkSaveScoresResult{Saved: len(records), SkippedRecomputing: mode == RecalcSuppressed}
	if mode == RecalcSuppressed {
		return result, nil
	}

	grades := make(map[gradeKey]struct{})
	reports := make(map[reportKey]struct{})
	for _, key := range order {
		e := latest[key]
		grades[gradeKey{studentID: e.item.StudentID, subjectID: e.assignment.SubjectID, termID: e.assignment.TermID}] = struct{}{}
		reports[reportKey{studentID: e.item.StudentID, termID: e.assignment.TermID}] = struct{}{}
	}

	for _, key := range sortedGradeKeys(grades) {
		if s.trigger.HandleGrade(ctx, mode, key.studentID, key.subjectID, key.termID) {
			result.RecomputedGrades++
		} else {
			result.FailedRecomputes++
		}
	}
	for _, key := range sortedReportKeys(reports) {
		if s.trigger.HandleReport(ctx, mode, key.studentID, key.termID) {
			result.RecomputedReports++
		} else {
			result.FailedRecomputes++
		}
	}

	s.logger.Info("bulk score save completed",
		zap.Int("saved", result.Saved),
		zap.Int("recomputed_grades", result.RecomputedGrades),
		zap.Int("recomputed_reports", result.RecomputedReports),
		zap.Int("failed_recomputes", result.FailedRecomputes))
	return result, nil
}

func validatePoints(points float64, assignment *models.Assignment) error {
	if math.IsNaN(points) || math.IsInf(points, 0) {
		return appErrors.Clone(appErrors.ErrValidation, "points must be a finite number")
	}
	if points < 0 {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("points %.2f cannot be negative", points))
	}
	if points > assignment.MaxPoints {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("points %.2f exceed max points %.2f for %s", points, assignment.MaxPoints, assignment.Name))
	}
	return nil
}

func floatPtr(v float64) *float64 {
	return &v
}

func actorPtr(actorID string) *string {
	if actorID == "" {
		return nil
	}
	return &actorID
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedGradeKeys(set map[gradeKey]struct{}) []gradeKey {
	keys := make([]gradeKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].studentID != keys[j].studentID {
			return keys[i].studentID < keys[j].studentID
		}
		if keys[i].termID != keys[j].termID {
			return keys[i].termID < keys[j].termID
		}
		return keys[i].subjectID < keys[j].subjectID
	})
	return keys
}

func sortedReportKeys(set map[reportKey]struct{}) []reportKey {
	keys := make([]reportKey, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].studentID != keys[j].studentID {
			return keys[i].studentID < keys[j].studentID
		}
		return keys[i].termID < keys[j].termID
	})
	return keys
}

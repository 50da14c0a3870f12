package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// ScoreRepository persists scores and their audit trail.
type ScoreRepository struct {
	db        *sqlx.DB
	batchSize int
}

// NewScoreRepository constructs the repository. A non-positive batch size uses DefaultBatchSize.
func NewScoreRepository(db *sqlx.DB, batchSize int) *ScoreRepository {
	return &ScoreRepository{db: db, batchSize: normaliseBatchSize(batchSize)}
}

const scoreColumns = `id, student_id, assignment_id, points, created_at, updated_at`

// Get fetches the score of a student on an assignment.
func (r *ScoreRepository) Get(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) (*models.Score, error) {
	var score models.Score
	const query = `SELECT ` + scoreColumns + ` FROM scores WHERE student_id = $1 AND assignment_id = $2`
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &score, query, studentID, assignmentID); err != nil {
		return nil, err
	}
	return &score, nil
}

// ListForStudents returns the scores of the given students on the given assignments.
func (r *ScoreRepository) ListForStudents(ctx context.Context, exec sqlx.ExtContext, studentIDs, assignmentIDs []string) ([]models.Score, error) {
	if len(studentIDs) == 0 || len(assignmentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + scoreColumns + ` FROM scores
WHERE student_id = ANY($1) AND assignment_id = ANY($2)`
	var scores []models.Score
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &scores, query, pq.Array(studentIDs), pq.Array(assignmentIDs)); err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	return scores, nil
}

// UpsertBatch inserts or updates scores keyed by (student, assignment).
func (r *ScoreRepository) UpsertBatch(ctx context.Context, exec sqlx.ExtContext, scores []models.Score) error {
	if len(scores) == 0 {
		return nil
	}
	const query = `INSERT INTO scores (id, student_id, assignment_id, points, created_at, updated_at)
VALUES (:id, :student_id, :assignment_id, :points, :created_at, :updated_at)
ON CONFLICT (student_id, assignment_id) DO UPDATE
SET points = EXCLUDED.points,
    updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range scores {
		if scores[i].ID == "" {
			scores[i].ID = uuid.NewString()
		}
		if scores[i].CreatedAt.IsZero() {
			scores[i].CreatedAt = now
		}
		scores[i].UpdatedAt = now
	}

	target := execOr(r.db, exec)
	for _, batch := range chunk(scores, r.batchSize) {
		if _, err := sqlx.NamedExecContext(ctx, target, query, batch); err != nil {
			return fmt.Errorf("upsert scores: %w", err)
		}
	}
	return nil
}

// Delete removes a score.
func (r *ScoreRepository) Delete(ctx context.Context, exec sqlx.ExtContext, studentID, assignmentID string) error {
	if _, err := execOr(r.db, exec).ExecContext(ctx, `DELETE FROM scores WHERE student_id = $1 AND assignment_id = $2`, studentID, assignmentID); err != nil {
		return fmt.Errorf("delete score: %w", err)
	}
	return nil
}

// InsertAuditLogs appends score audit entries.
func (r *ScoreRepository) InsertAuditLogs(ctx context.Context, exec sqlx.ExtContext, logs []models.ScoreAuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	const query = `INSERT INTO score_audit_logs (id, student_id, assignment_id, action, old_value, new_value, actor_id, created_at)
VALUES (:id, :student_id, :assignment_id, :action, :old_value, :new_value, :actor_id, :created_at)`

	now := time.Now().UTC()
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
		if logs[i].CreatedAt.IsZero() {
			logs[i].CreatedAt = now
		}
	}

	target := execOr(r.db, exec)
	for _, batch := range chunk(logs, r.batchSize) {
		if _, err := sqlx.NamedExecContext(ctx, target, query, batch); err != nil {
			return fmt.Errorf("insert score audit logs: %w", err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// AssignmentRepository reads graded assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, category_id, subject_id, term_id, name, max_points`

// FindByID fetches an assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListByIDs fetches assignments by identifier.
func (r *AssignmentRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Assignment, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ANY($1) ORDER BY id ASC`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list assignments by id: %w", err)
	}
	return assignments, nil
}

// ListBySubjectsTerm returns all assignments of the given subjects in a term.
func (r *AssignmentRepository) ListBySubjectsTerm(ctx context.Context, exec sqlx.ExtContext, subjectIDs []string, termID string) ([]models.Assignment, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + assignmentColumns + ` FROM assignments
WHERE subject_id = ANY($1) AND term_id = $2 ORDER BY id ASC`
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, execOr(r.db, exec), &assignments, query, pq.Array(subjectIDs), termID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

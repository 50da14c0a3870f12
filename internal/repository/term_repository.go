package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-engine/internal/models"
)

// TermRepository reads academic terms and their grade lock state.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository constructs a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

const termColumns = `id, name, academic_year, term_number, is_current, grades_locked, grades_locked_at, grades_locked_by`

// FindByID fetches a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, `SELECT `+termColumns+` FROM terms WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// LockForUpdate re-reads a term holding a row lock until the surrounding transaction ends.
func (r *TermRepository) LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Term, error) {
	var term models.Term
	if err := sqlx.GetContext(ctx, execOr(r.db, exec), &term, `SELECT `+termColumns+` FROM terms WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, fmt.Errorf("lock term %s: %w", id, err)
	}
	return &term, nil
}

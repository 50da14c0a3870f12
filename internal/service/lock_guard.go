package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-grading-engine/internal/models"
	appErrors "github.com/noah-isme/sma-grading-engine/pkg/errors"
)

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
}

type termLocker interface {
	termReader
	LockForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Term, error)
}

// GradeLockGuard rejects grade mutations for locked terms.
type GradeLockGuard struct {
	terms termLocker
}

// NewGradeLockGuard constructs the guard.
func NewGradeLockGuard(terms termLocker) *GradeLockGuard {
	return &GradeLockGuard{terms: terms}
}

// Check re-reads the term under a row lock held by exec's transaction and
// returns it when grades are still open.
func (g *GradeLockGuard) Check(ctx context.Context, exec sqlx.ExtContext, termID string) (*models.Term, error) {
	term, err := g.terms.LockForUpdate(ctx, exec, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock term")
	}
	if term.GradesLocked {
		return nil, appErrors.Clone(appErrors.ErrLocked, lockedMessage(term))
	}
	return term, nil
}

func lockedMessage(term *models.Term) string {
	msg := fmt.Sprintf("grades for %s %s are locked", term.Name, term.AcademicYear)
	if term.GradesLockedBy != nil && *term.GradesLockedBy != "" {
		msg += " by " + *term.GradesLockedBy
	}
	return msg
}

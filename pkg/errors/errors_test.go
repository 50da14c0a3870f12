package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndStatus(t *testing.T) {
	locked := Clone(ErrLocked, "grades for Term 1 2025/2026 are locked")
	assert.Equal(t, "GRADES_LOCKED", locked.Code)
	assert.Equal(t, http.StatusLocked, locked.Status)
	assert.Equal(t, "grades locked", ErrLocked.Message)
	assert.Equal(t, "grades locked", Clone(ErrLocked, "").Message)
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := Clone(ErrNotFound, "term not found")
	wrapped := fmt.Errorf("recompute: %w", inner)

	assert.True(t, HasCode(wrapped, ErrNotFound))
	assert.False(t, HasCode(wrapped, ErrLocked))
	assert.False(t, HasCode(nil, ErrNotFound))
	assert.False(t, HasCode(sql.ErrNoRows, ErrNotFound))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := FromError(fmt.Errorf("outer: %w", Clone(ErrConfiguration, "no active grading system")))
	assert.Equal(t, http.StatusUnprocessableEntity, typed.Status)

	plain := FromError(sql.ErrConnDone)
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.ErrorIs(t, plain, sql.ErrConnDone)
	assert.Equal(t, "internal server error: "+sql.ErrConnDone.Error(), plain.Error())
}

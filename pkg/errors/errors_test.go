package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("update exam: %w", Clone(ErrConflict, "CFD is already finalized"))

	appErr := FromError(wrapped)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "CFD is already finalized", appErr.Message)
	assert.True(t, HasCode(wrapped, ErrConflict.Code))
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateSource(t *testing.T) {
	clone := Clone(ErrState, "Cannot compute CFS - missing CFDs")
	assert.Equal(t, "invalid state", ErrState.Message)
	assert.Equal(t, http.StatusBadRequest, clone.Status)
	assert.Equal(t, ErrState, Clone(ErrState, ""))
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("snapshot: %w", Clone(ErrFinalized, "snapshot is final"))
	assert.ErrorIs(t, err, ErrFinalized)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "cfd not found"), ErrNotFound)
}

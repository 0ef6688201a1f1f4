package errors

import (
	"context"
	"database/sql/driver"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Clone(ErrConflict, "class is full")
	wrapped := fmt.Errorf("outer: %w", typed)

	got := FromError(wrapped)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "class is full", got.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	got := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.False(t, got.Temporary())
}

func TestStoreSeparatesTransientFailures(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, Store(driver.ErrBadConn, "x").Status)
	assert.Equal(t, http.StatusServiceUnavailable, Store(fmt.Errorf("query: %w", context.DeadlineExceeded), "x").Status)
	assert.True(t, Store(driver.ErrBadConn, "x").Temporary())
	assert.Equal(t, http.StatusInternalServerError, Store(fmt.Errorf("syntax error"), "x").Status)
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrNotFound, "class not found")
	assert.Equal(t, "class not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
}

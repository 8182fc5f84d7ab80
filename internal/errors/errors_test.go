package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_MessageFormat(t *testing.T) {
	t.Parallel()

	err := NewBadRequestError("days must be positive")
	assert.Equal(t, "BAD_REQUEST: days must be positive", err.Error())

	wrapped := NewInternalError("collection failed", errors.New("boom"))
	assert.Contains(t, wrapped.Error(), "boom")
	assert.Equal(t, "boom", errors.Unwrap(wrapped).Error())
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, IsBadRequest(NewBadRequestError("nope")))
	assert.False(t, IsBadRequest(NewNotFoundError("project")))

	assert.True(t, IsNotFound(NewNotFoundError("project")))
	assert.True(t, IsRateLimited(NewRateLimitedError("slow down")))

	assert.False(t, IsBadRequest(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

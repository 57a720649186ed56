package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewInternalError("query failed", errors.New("connection reset"))
	assert.Equal(t, "INTERNAL: query failed: connection reset", err.Error())

	assert.Equal(t, "NOT_FOUND: no medicines", NewNotFoundError("no medicines").Error())
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("fetch page 3: %w", NewExternalError("upstream", errors.New("502")))

	assert.Equal(t, ErrorTypeExternal, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeInternal, TypeOf(errors.New("plain")))
	assert.True(t, IsType(wrapped, ErrorTypeExternal))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NewNotFoundError("gone"))))
}

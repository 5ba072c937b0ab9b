package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	err := Unauthorized("Invalid camera token")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Invalid camera token", err.Error())

	wrapped := fmt.Errorf("guard: %w", NotFound("Camera %s not found", "cam-1"))
	assert.ErrorIs(t, wrapped, ErrNotFound)

	var de *Error
	assert.True(t, errors.As(wrapped, &de))
	assert.Equal(t, "Camera cam-1 not found", de.Message)
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("save asset", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "save asset")
}

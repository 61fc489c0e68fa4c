package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{"validation", Validation("text", "text is required"), ErrValidation, "text is required"},
		{"duplicate with field", Duplicate("user", "email"), ErrDuplicate, "user with this email already exists"},
		{"duplicate without field", Duplicate("user", ""), ErrDuplicate, "user already exists"},
		{"unauthorized", Unauthorized("not the author"), ErrUnauthorized, "not the author"},
		{"not found", NotFound("message", 7), ErrNotFound, "message 7 not found"},
		{"self action", SelfAction("cannot like own message"), ErrSelfAction, "cannot like own message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Equal(t, tt.message, tt.err.Error())
		})
	}
}

func TestFieldOf_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("signup: %w", Duplicate("user", "username"))

	assert.Equal(t, "username", FieldOf(err))
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.Equal(t, "", FieldOf(errors.New("plain")))
}

func TestMessageOf_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("failed to delete user 5: %w", NotFound("user", 5))

	assert.Equal(t, "user 5 not found", MessageOf(err))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}

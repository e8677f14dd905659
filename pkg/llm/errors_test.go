package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyErrorNil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyErrorPassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeRateLimit, "slow down", true, nil)
	wrapped := fmt.Errorf("calling backend: %w", orig)

	classified := ClassifyError(wrapped)
	assert.Same(t, orig, classified)
}

func TestClassifyErrorContext(t *testing.T) {
	cancelled := ClassifyError(context.Canceled)
	assert.Equal(t, ErrorTypeCancelled, cancelled.Type)
	assert.False(t, cancelled.Retryable)

	deadline := ClassifyError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)
	assert.True(t, deadline.Retryable)
}

func TestClassifyErrorPatterns(t *testing.T) {
	cases := []struct {
		message   string
		wantType  ErrorType
		retryable bool
	}{
		{"status 429 Too Many Requests", ErrorTypeRateLimit, true},
		{"rate limit exceeded", ErrorTypeRateLimit, true},
		{"status 401 Unauthorized", ErrorTypeAuth, false},
		{"invalid api key provided", ErrorTypeAuth, false},
		{"context length exceeded", ErrorTypeBadRequest, false},
		{"request timed out after 30s", ErrorTypeTimeout, true},
		{"dial tcp: connection refused", ErrorTypeConnection, true},
		{"status 503 Service Unavailable", ErrorTypeServer, true},
		{"something strange happened", ErrorTypeUnknown, false},
	}

	for _, tc := range cases {
		t.Run(tc.message, func(t *testing.T) {
			classified := ClassifyError(errors.New(tc.message))
			require.NotNil(t, classified)
			assert.Equal(t, tc.wantType, classified.Type)
			assert.Equal(t, tc.retryable, classified.Retryable)
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrorTypeServer, "backend server error", true, cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "server")
	assert.Contains(t, err.Error(), "boom")
}

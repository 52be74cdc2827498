package errors_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/offsoc/libsecret/internal/errors"
	"github.com/offsoc/libsecret/internal/logging"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Connection timeout")
	assert.Contains(t, errMsg, "Check network connectivity")
	assert.Contains(t, errMsg, "💡")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "algorithm",
		Value:      "rot13",
		Message:    "unsupported session algorithm",
		Suggestion: "Use 'plain' or 'dh-ietf1024-sha256-aes128-cbc-pkcs7'",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "algorithm")
	assert.Contains(t, errMsg, "rot13")
	assert.Contains(t, errMsg, "unsupported session algorithm")
	assert.Contains(t, errMsg, "plain")
}

func TestSecretServiceErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		suggestion string
	}{
		{
			name:       "no_session_bus",
			err:        fmt.Errorf("dbus: couldn't determine address of session bus"),
			suggestion: "dbus-run-session",
		},
		{
			name:       "service_unknown",
			err:        fmt.Errorf("org.freedesktop.DBus.Error.ServiceUnknown: The name org.freedesktop.secrets was not provided by any .service files"),
			suggestion: "gnome-keyring-daemon",
		},
		{
			name:       "locked",
			err:        fmt.Errorf("org.freedesktop.Secret.Error.IsLocked"),
			suggestion: "Unlock",
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("lookup: %w", context.DeadlineExceeded),
			suggestion: "timeout_ms",
		},
		{
			name:       "bad_algorithm",
			err:        fmt.Errorf("org.freedesktop.DBus.Error.NotSupported"),
			suggestion: "algorithm: plain",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := errors.SecretServiceError("lookup", tt.err)
			var userErr errors.UserError
			assert.True(t, stderrors.As(err, &userErr))
			assert.Contains(t, userErr.Suggestion, tt.suggestion)
			assert.Contains(t, err.Error(), "during lookup")
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, errors.SecretServiceError("lookup", nil))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, errors.IsRetryable(nil))
	assert.True(t, errors.IsRetryable(fmt.Errorf("operation timeout")))
	assert.True(t, errors.IsRetryable(context.DeadlineExceeded))
	assert.True(t, errors.IsRetryable(fmt.Errorf("org.freedesktop.DBus.Error.NoReply")))
	assert.False(t, errors.IsRetryable(fmt.Errorf("invalid attribute")))
}

func TestSimplifyError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))

	userErr := errors.UserError{Message: "already friendly"}
	assert.Equal(t, userErr, errors.SimplifyError(userErr))

	simplified := errors.SimplifyError(fmt.Errorf("load: %w", fmt.Errorf("yaml: line 3: did not find expected key")))
	var cfgErr errors.ConfigError
	assert.True(t, stderrors.As(simplified, &cfgErr))

	simplified = errors.SimplifyError(fmt.Errorf("org.freedesktop.DBus.Error.ServiceUnknown"))
	assert.Contains(t, simplified.Error(), "gnome-keyring-daemon")

	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}

// TestErrorDoesNotLeakSecrets verifies redacted values stay redacted in wrapped chains
func TestErrorDoesNotLeakSecrets(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("store of %s failed", logging.Secret("hunter22"))
	err := errors.SecretServiceError("store", inner)

	assert.NotContains(t, err.Error(), "hunter22")
	assert.Contains(t, err.Error(), "[REDACTED]")
}

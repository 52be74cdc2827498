package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// SecretServiceError wraps a failed password operation with a suggestion
// derived from the underlying D-Bus or client error.
func SecretServiceError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return UserError{
		Message:    fmt.Sprintf("secret service error during %s", operation),
		Details:    err.Error(),
		Suggestion: getSecretServiceSuggestion(err),
		Err:        err,
	}
}

// getSecretServiceSuggestion returns helpful suggestions based on the error
func getSecretServiceSuggestion(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "The secret service did not answer in time. Increase timeout_ms or check for a pending unlock prompt"
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "couldn't determine address of session bus"),
		strings.Contains(errStr, "DBUS_SESSION_BUS_ADDRESS"):
		return "No D-Bus session bus found. Export DBUS_SESSION_BUS_ADDRESS or wrap the command in 'dbus-run-session'"
	case strings.Contains(errStr, "org.freedesktop.DBus.Error.ServiceUnknown"),
		strings.Contains(errStr, "was not provided by any .service files"):
		return "No secret service is running. Start gnome-keyring-daemon, KeePassXC (Secret Service integration) or KWallet"
	case strings.Contains(errStr, "IsLocked"), strings.Contains(errStr, "prompt dismissed"):
		return "The collection is locked. Unlock it in your keyring manager and retry"
	case strings.Contains(errStr, "NoSuchObject"), strings.Contains(errStr, "no such collection"):
		return "Check the collection name; the 'default' and 'session' aliases are always available"
	case strings.Contains(errStr, "NotSupported"):
		return "The secret service rejected the session algorithm. Set 'algorithm: plain' in the configuration"
	case strings.Contains(errStr, "not defined by schema"), strings.Contains(errStr, "invalid") && strings.Contains(errStr, "attribute"):
		return "Check attribute names and types against the schema definition"
	}

	return ""
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"noreply",
		"connection reset",
		"broken pipe",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Already a user-friendly error
	if _, ok := err.(UserError); ok {
		return err
	}
	if _, ok := err.(ConfigError); ok {
		return err
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if suggestion := getSecretServiceSuggestion(err); suggestion != "" {
		return UserError{
			Message:    err.Error(),
			Suggestion: suggestion,
			Err:        err,
		}
	}

	// Return original error if we can't simplify it
	return err
}

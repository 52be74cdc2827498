package secret

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/offsoc/libsecret/internal/dispatch"
	"github.com/offsoc/libsecret/internal/transport"
)

// Sentinel errors, matched with errors.Is.
var (
	// ErrBackendUnavailable means the secret service could not be reached
	// or the connection was lost before the operation finished.
	ErrBackendUnavailable = errors.New("secret service unavailable")
	// ErrCancelled means the operation was cancelled or timed out.
	ErrCancelled = errors.New("operation cancelled")
	// ErrPromptDismissed means the user dismissed an unlock or confirmation prompt.
	ErrPromptDismissed = errors.New("prompt dismissed")
	// ErrNoSuchCollection means the collection or alias passed to Store does not exist.
	ErrNoSuchCollection = errors.New("no such collection")
	// ErrProtocol means the service replied with something unexpected.
	ErrProtocol = errors.New("secret service protocol error")
)

// BackendUnavailableError reports a lost or missing connection.
type BackendUnavailableError struct {
	Op  string
	Err error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("%s: secret service unavailable: %v", e.Op, e.Err)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Err }

func (e *BackendUnavailableError) Is(target error) bool { return target == ErrBackendUnavailable }

// CancelledError wraps context.Canceled or context.DeadlineExceeded.
type CancelledError struct {
	Op  string
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Is(target error) bool { return target == ErrCancelled }

// ProtocolError reports a reply that could not be understood.
type ProtocolError struct {
	Method string
	Err    error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected reply to %s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// RemoteError is an error reply from the service.
type RemoteError struct {
	Op      string
	Name    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Name, e.Message)
}

// classify maps a raw failure onto the error taxonomy above.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		cancelled   *CancelledError
		unavailable *BackendUnavailableError
		protocol    *ProtocolError
		remote      *RemoteError
	)
	switch {
	case errors.As(err, &cancelled), errors.As(err, &unavailable),
		errors.As(err, &protocol), errors.As(err, &remote):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &CancelledError{Op: op, Err: err}
	case errors.Is(err, transport.ErrDisconnected), errors.Is(err, dispatch.ErrClosed):
		return &BackendUnavailableError{Op: op, Err: err}
	case errors.Is(err, ErrPromptDismissed), errors.Is(err, ErrNoSuchCollection):
		return fmt.Errorf("%s: %w", op, err)
	}

	switch name := transport.ErrorName(err); name {
	case "":
		return fmt.Errorf("%s: %w", op, err)
	case transport.ErrNameServiceUnknown, transport.ErrNameNoReply, transport.ErrNameDisconnected:
		return &BackendUnavailableError{Op: op, Err: err}
	default:
		return &RemoteError{Op: op, Name: name, Message: remoteMessage(err)}
	}
}

func remoteMessage(err error) string {
	var body []interface{}
	var derr dbus.Error
	var pderr *dbus.Error
	switch {
	case errors.As(err, &derr):
		body = derr.Body
	case errors.As(err, &pderr) && pderr != nil:
		body = pderr.Body
	}
	if len(body) > 0 {
		if s, ok := body[0].(string); ok {
			return s
		}
	}
	return ""
}

// isNoSuchObject reports replies meaning "that path does not exist".
func isNoSuchObject(err error) bool {
	switch transport.ErrorName(err) {
	case transport.ErrNameNoSuchObject, transport.ErrNameUnknownObject, transport.ErrNameUnknownMethod:
		return true
	}
	return false
}

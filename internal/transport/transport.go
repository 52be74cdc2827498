// Package transport defines the backend connection the password client
// talks through: send a request under a caller-chosen handle, receive the
// reply tagged with the same handle, and learn when the connection is gone.
//
// The D-Bus session bus implementation lives in the dbusconn subpackage;
// tests use the in-process fake from tests/fakes.
package transport

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

// Secret Service bus names, paths and interfaces.
const (
	ServiceName      = "org.freedesktop.secrets"
	ServicePath      = dbus.ObjectPath("/org/freedesktop/secrets")
	ServiceInterface = "org.freedesktop.Secret.Service"
	CollectionIface  = "org.freedesktop.Secret.Collection"
	ItemInterface    = "org.freedesktop.Secret.Item"
	PromptInterface  = "org.freedesktop.Secret.Prompt"
	PropertiesIface  = "org.freedesktop.DBus.Properties"
)

// Well-known D-Bus error names.
const (
	ErrNameNoSuchObject   = "org.freedesktop.Secret.Error.NoSuchObject"
	ErrNameIsLocked       = "org.freedesktop.Secret.Error.IsLocked"
	ErrNameNoSession      = "org.freedesktop.Secret.Error.NoSession"
	ErrNameUnknownObject  = "org.freedesktop.DBus.Error.UnknownObject"
	ErrNameUnknownMethod  = "org.freedesktop.DBus.Error.UnknownMethod"
	ErrNameNotSupported   = "org.freedesktop.DBus.Error.NotSupported"
	ErrNameServiceUnknown = "org.freedesktop.DBus.Error.ServiceUnknown"
	ErrNameNoReply        = "org.freedesktop.DBus.Error.NoReply"
	ErrNameDisconnected   = "org.freedesktop.DBus.Error.Disconnected"
	ErrNameInvalidArgs    = "org.freedesktop.DBus.Error.InvalidArgs"
)

// ErrDisconnected is reported for every request that cannot complete
// because the connection closed.
var ErrDisconnected = errors.New("backend connection closed")

// Handle correlates a request with its reply. Handles are chosen by the
// sender and must be unique among in-flight requests on one Conn.
type Handle uint64

// Request is one method call.
type Request struct {
	Destination string
	Path        dbus.ObjectPath
	Interface   string
	Method      string
	Args        []interface{}
}

// Member returns the fully qualified method name, e.g.
// "org.freedesktop.Secret.Service.SearchItems".
func (r Request) Member() string {
	return r.Interface + "." + r.Method
}

// Reply is the outcome of one request. Exactly one of Body and Err is meaningful.
type Reply struct {
	Handle Handle
	Body   []interface{}
	Err    error
}

// Store decodes the reply body into dest, following dbus.Store rules.
func (r Reply) Store(dest ...interface{}) error {
	if r.Err != nil {
		return r.Err
	}
	return dbus.Store(r.Body, dest...)
}

// Conn is a request/reply connection to a secret service.
type Conn interface {
	// Send writes req tagged with h. It must not wait for the reply.
	Send(h Handle, req Request) error
	// Replies delivers replies in arrival order.
	Replies() <-chan Reply
	// Done is closed once the connection is gone; no more replies follow.
	Done() <-chan struct{}
	// Err reports why Done was closed.
	Err() error
	Close() error
}

// SignalSource is implemented by connections that can deliver signals.
// Prompts need it: their result arrives as a Completed signal.
type SignalSource interface {
	// Subscribe delivers the bodies of signals emitted by path with the
	// given interface and member until cancel is called.
	Subscribe(ctx context.Context, path dbus.ObjectPath, iface, member string) (bodies <-chan []interface{}, cancel func(), err error)
}

// ErrorName extracts the D-Bus error name from err, or "" if err is not a
// D-Bus error.
func ErrorName(err error) string {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Name
	}
	var pderr *dbus.Error
	if errors.As(err, &pderr) && pderr != nil {
		return pderr.Name
	}
	return ""
}

// NewError builds a D-Bus error value.
func NewError(name string, msg string) dbus.Error {
	return dbus.Error{Name: name, Body: []interface{}{msg}}
}

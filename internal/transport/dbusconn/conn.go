// Package dbusconn implements transport.Conn on a godbus session bus
// connection.
package dbusconn

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/transport"
)

// replyBuffer bounds the number of finished calls waiting to be routed.
// godbus requires a buffered channel for Go.
const replyBuffer = 64

// Conn adapts a *dbus.Conn to transport.Conn. godbus already matches replies
// to calls; Conn maps each *dbus.Call back to the caller's handle and funnels
// all of them through one channel.
type Conn struct {
	conn   *dbus.Conn
	logger *logging.Logger
	owned  bool

	finished chan *dbus.Call
	replies  chan transport.Reply

	mu    sync.Mutex
	calls map[*dbus.Call]transport.Handle

	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to the bus at address, or to the session bus when address
// is empty.
func Dial(ctx context.Context, address string, logger *logging.Logger) (*Conn, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if address == "" {
		conn, err = dbus.ConnectSessionBus(dbus.WithContext(ctx))
	} else {
		conn, err = dbus.Connect(address, dbus.WithContext(ctx))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrDisconnected, err)
	}
	c := New(conn, logger)
	c.owned = true
	return c, nil
}

// New wraps an established connection. Close does not close conn unless
// it was opened by Dial.
func New(conn *dbus.Conn, logger *logging.Logger) *Conn {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Conn{
		conn:     conn,
		logger:   logger,
		finished: make(chan *dbus.Call, replyBuffer),
		replies:  make(chan transport.Reply, replyBuffer),
		calls:    make(map[*dbus.Call]transport.Handle),
		done:     make(chan struct{}),
	}
	go c.route()
	return c
}

// Send issues req asynchronously.
func (c *Conn) Send(h transport.Handle, req transport.Request) error {
	select {
	case <-c.done:
		return transport.ErrDisconnected
	default:
	}

	// Hold mu across Go so route cannot see the call before it is mapped.
	c.mu.Lock()
	defer c.mu.Unlock()
	call := c.conn.Object(req.Destination, req.Path).Go(req.Member(), 0, c.finished, req.Args...)
	c.calls[call] = h
	return nil
}

func (c *Conn) Replies() <-chan transport.Reply { return c.replies }

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close shuts the adapter down and, if it dialed the bus, the connection.
func (c *Conn) Close() error {
	c.shutdown(transport.ErrDisconnected)
	if c.owned {
		return c.conn.Close()
	}
	return nil
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Conn) route() {
	busDone := c.conn.Context().Done()
	for {
		select {
		case call := <-c.finished:
			c.deliver(call)
		case <-busDone:
			c.logger.Debug("session bus connection closed")
			c.shutdown(transport.ErrDisconnected)
			return
		case <-c.done:
			return
		}
	}
}

func (c *Conn) deliver(call *dbus.Call) {
	c.mu.Lock()
	h, ok := c.calls[call]
	delete(c.calls, call)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("dropping reply for untracked call %s", call.Method)
		return
	}

	reply := transport.Reply{Handle: h, Body: call.Body, Err: call.Err}
	select {
	case c.replies <- reply:
	case <-c.done:
	}
}

// Subscribe implements transport.SignalSource.
func (c *Conn) Subscribe(ctx context.Context, path dbus.ObjectPath, iface, member string) (<-chan []interface{}, func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(iface),
		dbus.WithMatchMember(member),
	}
	if err := c.conn.AddMatchSignalContext(ctx, opts...); err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s.%s: %w", iface, member, err)
	}

	signals := make(chan *dbus.Signal, 8)
	c.conn.Signal(signals)

	bodies := make(chan []interface{}, 1)
	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			c.conn.RemoveSignal(signals)
			_ = c.conn.RemoveMatchSignal(opts...)
		})
	}

	name := iface + "." + member
	go func() {
		for {
			select {
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if sig.Path != path || sig.Name != name {
					continue
				}
				select {
				case bodies <- sig.Body:
				case <-stop:
					return
				}
			case <-stop:
				return
			}
		}
	}()

	return bodies, cancel, nil
}

var (
	_ transport.Conn         = (*Conn)(nil)
	_ transport.SignalSource = (*Conn)(nil)
)

package secret

import (
	"context"
	"crypto/rand"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/singleflight"

	"github.com/offsoc/libsecret/internal/dispatch"
	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/metrics"
	"github.com/offsoc/libsecret/internal/session"
	"github.com/offsoc/libsecret/internal/transport"
	"github.com/offsoc/libsecret/internal/transport/dbusconn"
)

// Well-known collections.
const (
	CollectionDefault = "/org/freedesktop/secrets/aliases/default"
	CollectionSession = "/org/freedesktop/secrets/aliases/session"
)

// DefaultTimeout bounds every operation unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

const aliasPrefix = "/org/freedesktop/secrets/aliases/"

// Client talks to one secret service over one connection. It is safe for
// concurrent use.
type Client struct {
	conn    transport.Conn
	disp    *dispatch.Dispatcher
	logger  *logging.Logger
	metrics *metrics.CallMetrics

	service   string
	algorithm string
	timeout   time.Duration
	windowID  string
	rand      io.Reader

	opening singleflight.Group
	mu      sync.Mutex
	sess    *session.Session
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics records call and operation metrics.
func WithMetrics(m *metrics.CallMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTimeout bounds each operation. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithSessionAlgorithm selects how secrets travel over the bus: "plain" or
// "dh-ietf1024-sha256-aes128-cbc-pkcs7" (the default). If the service does not
// support encryption the client falls back to plain.
func WithSessionAlgorithm(algorithm string) Option {
	return func(c *Client) { c.algorithm = algorithm }
}

// WithWindowID sets the parent window for unlock prompts.
func WithWindowID(id string) Option {
	return func(c *Client) { c.windowID = id }
}

// WithServiceName overrides the bus name of the secret service.
func WithServiceName(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.service = name
		}
	}
}

func newClient(opts []Option) *Client {
	c := &Client{
		logger:    logging.NewNop(),
		metrics:   metrics.NewCallMetrics(),
		service:   transport.ServiceName,
		algorithm: session.AlgorithmAES,
		timeout:   DefaultTimeout,
		rand:      rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// New creates a client on an established connection. The client owns conn
// from now on.
func New(conn transport.Conn, opts ...Option) *Client {
	c := newClient(opts)
	c.attach(conn)
	return c
}

// Connect dials the session bus (or the bus at address, when not empty)
// and returns a client for the secret service on it.
func Connect(ctx context.Context, address string, opts ...Option) (*Client, error) {
	c := newClient(opts)
	conn, err := dbusconn.Dial(ctx, address, c.logger)
	if err != nil {
		return nil, &BackendUnavailableError{Op: "connect", Err: err}
	}
	c.attach(conn)
	return c, nil
}

func (c *Client) attach(conn transport.Conn) {
	c.conn = conn
	c.disp = dispatch.New(conn, dispatch.WithLogger(c.logger), dispatch.WithMetrics(c.metrics))
}

// Close fails outstanding operations and closes the connection.
func (c *Client) Close() error {
	return c.disp.Close()
}

// Pending returns the number of backend calls in flight.
func (c *Client) Pending() int {
	return c.disp.Pending()
}

// SessionAlgorithm returns the algorithm of the open transfer session, or ""
// before the first secret has been transferred.
func (c *Client) SessionAlgorithm() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.Algorithm()
}

// collectionPath expands a collection argument: "" is the default
// collection, a bare name is an alias, anything starting with "/" is a path.
func collectionPath(collection string) dbus.ObjectPath {
	switch {
	case collection == "":
		return CollectionDefault
	case strings.HasPrefix(collection, "/"):
		return dbus.ObjectPath(collection)
	default:
		return dbus.ObjectPath(aliasPrefix + collection)
	}
}

func (c *Client) request(path dbus.ObjectPath, iface, method string, args ...interface{}) transport.Request {
	if args == nil {
		args = []interface{}{}
	}
	return transport.Request{
		Destination: c.service,
		Path:        path,
		Interface:   iface,
		Method:      method,
		Args:        args,
	}
}

func (c *Client) call(ctx context.Context, path dbus.ObjectPath, iface, method string, args ...interface{}) (transport.Reply, error) {
	return c.disp.Call(ctx, c.request(path, iface, method, args...))
}

// session returns the transfer session, opening it on first use. Concurrent
// first users share one OpenSession exchange.
func (c *Client) session(ctx context.Context) (*session.Session, error) {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess != nil {
		return sess, nil
	}

	// The exchange is shared, so it must not die with the first caller's context.
	openCtx := context.WithoutCancel(ctx)
	ch := c.opening.DoChan("session", func() (interface{}, error) {
		c.mu.Lock()
		opened := c.sess
		c.mu.Unlock()
		if opened != nil {
			return opened, nil
		}

		ctx, cancel := c.withTimeout(openCtx)
		defer cancel()
		sess, err := c.openSession(ctx, c.algorithm)
		if err != nil && c.algorithm == session.AlgorithmAES && transport.ErrorName(err) == transport.ErrNameNotSupported {
			c.logger.Debug("service does not support %s, falling back to plain", session.AlgorithmAES)
			sess, err = c.openSession(ctx, session.AlgorithmPlain)
		}
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sess = sess
		c.mu.Unlock()
		return sess, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*session.Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) openSession(ctx context.Context, algorithm string) (*session.Session, error) {
	neg, input, err := session.Begin(algorithm, c.rand)
	if err != nil {
		return nil, err
	}
	reply, err := c.call(ctx, transport.ServicePath, transport.ServiceInterface, "OpenSession", algorithm, input)
	if err != nil {
		return nil, err
	}
	var output dbus.Variant
	var path dbus.ObjectPath
	if err := reply.Store(&output, &path); err != nil {
		return nil, &ProtocolError{Method: "OpenSession", Err: err}
	}
	sess, err := neg.Complete(output, path)
	if err != nil {
		return nil, &ProtocolError{Method: "OpenSession", Err: err}
	}
	c.logger.Debug("opened %s session %s", algorithm, path)
	return sess, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}


// EnsureSession opens the transfer session if it is not open yet and
// returns its algorithm.
func (c *Client) EnsureSession(ctx context.Context) (string, error) {
	return await(c, ctx, "session", func(ctx context.Context, _ *logging.Logger) (string, error) {
		sess, err := c.session(ctx)
		if err != nil {
			return "", err
		}
		return sess.Algorithm(), nil
	})
}

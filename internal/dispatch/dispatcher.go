package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/metrics"
	"github.com/offsoc/libsecret/internal/transport"
)

// ErrClosed is returned for calls issued after Close.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher owns the reply side of a transport.Conn.
type Dispatcher struct {
	conn    transport.Conn
	logger  *logging.Logger
	metrics *metrics.CallMetrics

	sendMu sync.Mutex

	mu       sync.Mutex
	pending  map[transport.Handle]*PendingCall
	next     transport.Handle
	closed   bool
	closeErr error

	stop     chan struct{}
	stopOnce sync.Once
	loopDone chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dropped replies and failures.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics records call metrics.
func WithMetrics(m *metrics.CallMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New starts routing replies from conn.
func New(conn transport.Conn, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		conn:     conn,
		logger:   logging.NewNop(),
		metrics:  metrics.NewCallMetrics(),
		pending:  make(map[transport.Handle]*PendingCall),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.loop()
	return d
}

// Go issues req and arranges for complete to be called exactly once with
// its outcome. The call is registered before it is written, so even an
// immediate reply finds it. Cancelling ctx cancels the call.
//
// An error is returned only when no PendingCall could be created; in that
// case complete is never called.
func (d *Dispatcher) Go(ctx context.Context, req transport.Request, complete func(transport.Reply)) (*PendingCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.closed {
		err := d.closeErr
		d.mu.Unlock()
		return nil, err
	}
	d.next++
	p := &PendingCall{
		ID:       uuid.New(),
		Handle:   d.next,
		Method:   req.Member(),
		complete: complete,
		done:     make(chan struct{}),
		started:  time.Now(),
		d:        d,
	}
	d.pending[p.Handle] = p
	d.mu.Unlock()

	d.metrics.RecordCallStarted(p.Method)
	d.logger.Debug("call %s issued: %s (handle %d)", p.ID, p.Method, p.Handle)

	d.sendMu.Lock()
	err := d.conn.Send(p.Handle, req)
	d.sendMu.Unlock()
	if err != nil {
		d.finish(p, Failed, transport.Reply{Handle: p.Handle, Err: fmt.Errorf("sending %s: %w", p.Method, err)})
		return p, nil
	}
	p.transition(AwaitingReply)

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.cancel(ctx.Err())
			case <-p.done:
			}
		}()
	}
	return p, nil
}

// Call is the blocking form of Go.
func (d *Dispatcher) Call(ctx context.Context, req transport.Request) (transport.Reply, error) {
	ch := make(chan transport.Reply, 1)
	if _, err := d.Go(ctx, req, func(r transport.Reply) { ch <- r }); err != nil {
		return transport.Reply{}, err
	}
	r := <-ch
	return r, r.Err
}

// Pending returns the number of calls awaiting completion.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close fails every outstanding call with ErrClosed and closes the connection.
func (d *Dispatcher) Close() error {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.loopDone
	d.failAll(ErrClosed)
	return d.conn.Close()
}

func (d *Dispatcher) finish(p *PendingCall, state State, reply transport.Reply) bool {
	if !p.transition(state) {
		return false
	}

	d.mu.Lock()
	delete(d.pending, p.Handle)
	d.mu.Unlock()
	close(p.done)

	status := metrics.StatusSuccess
	switch state {
	case Failed:
		status = metrics.StatusError
		d.logger.Debug("call %s failed: %s: %v", p.ID, p.Method, reply.Err)
	case Cancelled:
		status = metrics.StatusCancelled
		d.logger.Debug("call %s cancelled: %s", p.ID, p.Method)
	}
	d.metrics.RecordCallCompleted(p.Method, status, time.Since(p.started))

	p.complete(reply)
	return true
}

func (d *Dispatcher) loop() {
	defer close(d.loopDone)
	replies := d.conn.Replies()
	for {
		select {
		case r, ok := <-replies:
			if !ok {
				d.disconnected()
				return
			}
			d.route(r)
		case <-d.conn.Done():
			// deliver anything that arrived before the disconnect
		drain:
			for {
				select {
				case r, ok := <-replies:
					if !ok {
						break drain
					}
					d.route(r)
				default:
					break drain
				}
			}
			d.disconnected()
			return
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) route(r transport.Reply) {
	d.mu.Lock()
	p := d.pending[r.Handle]
	d.mu.Unlock()
	if p == nil {
		d.logger.Debug("dropping reply for unknown or cancelled handle %d", r.Handle)
		return
	}
	state := Completed
	if r.Err != nil {
		state = Failed
	}
	d.finish(p, state, r)
}

func (d *Dispatcher) disconnected() {
	cause := d.conn.Err()
	if cause == nil {
		cause = transport.ErrDisconnected
	} else if !errors.Is(cause, transport.ErrDisconnected) {
		cause = fmt.Errorf("%w: %v", transport.ErrDisconnected, cause)
	}
	d.logger.Debug("backend disconnected, failing %d pending calls", d.Pending())
	d.failAll(cause)
}

func (d *Dispatcher) failAll(cause error) {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		d.closeErr = cause
	}
	calls := make([]*PendingCall, 0, len(d.pending))
	for _, p := range d.pending {
		calls = append(calls, p)
	}
	d.mu.Unlock()

	for _, p := range calls {
		d.finish(p, Failed, transport.Reply{Handle: p.Handle, Err: cause})
	}
}

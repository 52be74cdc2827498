package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/offsoc/libsecret/internal/transport"
)

// State is the lifecycle state of a PendingCall.
type State int32

const (
	Issued State = iota
	AwaitingReply
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Issued:
		return "issued"
	case AwaitingReply:
		return "awaiting-reply"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// PendingCall is one request awaiting its reply.
type PendingCall struct {
	ID     uuid.UUID
	Handle transport.Handle
	Method string

	state    atomic.Int32
	complete func(transport.Reply)
	done     chan struct{}
	started  time.Time
	d        *Dispatcher
}

// State returns the current state.
func (p *PendingCall) State() State { return State(p.state.Load()) }

// Done is closed once the call reaches a terminal state.
func (p *PendingCall) Done() <-chan struct{} { return p.done }

// Cancel abandons the call. The completion receives context.Canceled and any
// later reply is discarded. It reports false if the call had already finished.
func (p *PendingCall) Cancel() bool {
	return p.cancel(context.Canceled)
}

func (p *PendingCall) cancel(cause error) bool {
	return p.d.finish(p, Cancelled, transport.Reply{Handle: p.Handle, Err: cause})
}

// transition moves to next unless the call is already terminal.
func (p *PendingCall) transition(next State) bool {
	for {
		cur := State(p.state.Load())
		if cur.Terminal() {
			return false
		}
		if p.state.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

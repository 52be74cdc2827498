// Package dispatch multiplexes many in-flight requests over one backend
// connection and completes each of them exactly once.
//
// Every request is tracked as a PendingCall keyed by its handle:
//
//	Issued -> AwaitingReply -> Completed | Failed | Cancelled
//
// The three right-hand states are terminal. Whichever terminal transition
// happens first wins: the reply, a send failure, a cancellation, or the
// connection going away. The completion callback runs once, for the winner.
// A reply that arrives after cancellation is dropped.
//
// Callbacks run on the dispatcher's reader goroutine (or the goroutine that
// cancelled) and must not block.
package dispatch

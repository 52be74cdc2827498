package secret

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/metrics"
)

// Call is a handle on a non-blocking operation.
type Call struct {
	ID uuid.UUID
	Op string

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel abandons the operation. Its callback still runs, once, with an
// error matching ErrCancelled, unless the operation had already finished.
// Replies that arrive afterwards are discarded.
func (c *Call) Cancel() { c.cancel() }

// Done is closed after the callback has returned.
func (c *Call) Done() <-chan struct{} { return c.done }

// Wait blocks until the callback has returned.
func (c *Call) Wait() { <-c.done }

// launch runs fn on its own goroutine and hands the outcome to complete
// exactly once.
func launch[T any](c *Client, parent context.Context, op string, fn func(context.Context, *logging.Logger) (T, error), complete func(T, error)) *Call {
	ctx, cancel := c.withTimeout(parent)
	call := &Call{
		ID:     uuid.New(),
		Op:     op,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := c.logger.With("op", op, "call", call.ID.String())

	go func() {
		defer close(call.done)
		defer cancel()

		start := time.Now()
		log.Debug("%s started", op)
		v, err := fn(ctx, log)
		err = classify(op, err)

		status := metrics.StatusSuccess
		switch {
		case err == nil:
			log.Debug("%s finished in %s", op, time.Since(start))
		case isCancelled(err):
			status = metrics.StatusCancelled
			log.Debug("%s cancelled: %v", op, err)
		default:
			status = metrics.StatusError
			log.Debug("%s failed: %v", op, err)
		}
		c.metrics.RecordOperation(op, status)

		complete(v, err)
	}()
	return call
}

// await is the blocking form of launch.
func await[T any](c *Client, ctx context.Context, op string, fn func(context.Context, *logging.Logger) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	call := launch(c, ctx, op, fn, func(rv T, rerr error) {
		v, err = rv, rerr
	})
	call.Wait()
	return v, err
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

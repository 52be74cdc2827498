package secret

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/transport"
)

// noPrompt is the path services return when no prompt is needed.
const noPrompt = dbus.ObjectPath("/")

var errNoSignals = errors.New("connection cannot deliver prompt signals")

// prompt shows the prompt at path and waits for its Completed signal.
// If ctx ends first the prompt is dismissed.
func (c *Client) prompt(ctx context.Context, log *logging.Logger, path dbus.ObjectPath) (dbus.Variant, error) {
	src, ok := c.conn.(transport.SignalSource)
	if !ok {
		return dbus.Variant{}, &ProtocolError{Method: "Prompt", Err: errNoSignals}
	}

	completed, unsubscribe, err := src.Subscribe(ctx, path, transport.PromptInterface, "Completed")
	if err != nil {
		return dbus.Variant{}, err
	}
	defer unsubscribe()

	log.Debug("waiting for prompt %s", path)
	if _, err := c.call(ctx, path, transport.PromptInterface, "Prompt", c.windowID); err != nil {
		return dbus.Variant{}, err
	}

	select {
	case body := <-completed:
		var dismissed bool
		var result dbus.Variant
		if err := dbus.Store(body, &dismissed, &result); err != nil {
			return dbus.Variant{}, &ProtocolError{Method: "Prompt.Completed", Err: err}
		}
		if dismissed {
			return dbus.Variant{}, ErrPromptDismissed
		}
		return result, nil
	case <-ctx.Done():
		// fire and forget; nobody waits for the answer
		_, _ = c.disp.Go(context.Background(), c.request(path, transport.PromptInterface, "Dismiss"), func(transport.Reply) {})
		return dbus.Variant{}, ctx.Err()
	case <-c.conn.Done():
		return dbus.Variant{}, transport.ErrDisconnected
	}
}

// unlock unlocks paths, prompting if the service asks for it, and returns
// the paths that ended up unlocked.
func (c *Client) unlock(ctx context.Context, log *logging.Logger, paths []dbus.ObjectPath) ([]dbus.ObjectPath, error) {
	reply, err := c.call(ctx, transport.ServicePath, transport.ServiceInterface, "Unlock", paths)
	if err != nil {
		return nil, err
	}
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := reply.Store(&unlocked, &prompt); err != nil {
		return nil, &ProtocolError{Method: "Unlock", Err: err}
	}
	if prompt == noPrompt || prompt == "" {
		return unlocked, nil
	}

	result, err := c.prompt(ctx, log, prompt)
	if err != nil {
		return nil, err
	}
	var more []dbus.ObjectPath
	if err := dbus.Store([]interface{}{result.Value()}, &more); err != nil {
		return nil, &ProtocolError{Method: "Unlock", Err: err}
	}
	return append(unlocked, more...), nil
}

package secret

import (
	"context"

	"github.com/godbus/dbus/v5"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/secure"
	"github.com/offsoc/libsecret/internal/session"
	"github.com/offsoc/libsecret/internal/transport"
	"github.com/offsoc/libsecret/pkg/schema"
)

// SchemaAttribute carries the schema name alongside the user's attributes,
// so lookups only match items stored under the same schema.
const SchemaAttribute = "xdg:schema"

const (
	propLabel      = "org.freedesktop.Secret.Item.Label"
	propAttributes = "org.freedesktop.Secret.Item.Attributes"
	propLocked     = "org.freedesktop.Secret.Item.Locked"
	propCreated    = "org.freedesktop.Secret.Item.Created"
	propModified   = "org.freedesktop.Secret.Item.Modified"
)

// query encodes attrs for the wire and tags them with the schema name.
func query(s *schema.Schema, attrs schema.Attributes) (map[string]string, error) {
	wire, err := s.Encode(attrs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(wire)+1)
	for k, v := range wire {
		out[k] = v
	}
	out[SchemaAttribute] = s.Name()
	return out, nil
}

// Lookup returns the password of the first item matching attrs. found is
// false, with a nil error, when nothing matches. Locked matches are
// unlocked first, which may show a prompt.
func (c *Client) Lookup(ctx context.Context, s *schema.Schema, attrs schema.Attributes) (password string, found bool, err error) {
	v, err := c.LookupValue(ctx, s, attrs)
	if err != nil || v == nil {
		return "", false, err
	}
	return v.Text(), true, nil
}

// LookupAsync is the non-blocking form of Lookup. Invalid attributes are
// reported immediately; then done is never called.
func (c *Client) LookupAsync(s *schema.Schema, attrs schema.Attributes, done func(password string, found bool, err error)) (*Call, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return launch(c, context.Background(), "lookup", c.lookupFunc(q), func(v *Value, err error) {
		if err != nil || v == nil {
			done("", false, err)
			return
		}
		done(v.Text(), true, nil)
	}), nil
}

// LookupValue is Lookup returning the secret with its content type. It
// returns nil, nil when nothing matches.
func (c *Client) LookupValue(ctx context.Context, s *schema.Schema, attrs schema.Attributes) (*Value, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return await(c, ctx, "lookup", c.lookupFunc(q))
}

// LookupNonpageable is Lookup returning the secret in memory that is locked
// against swapping and encrypted at rest. The caller must Destroy it.
func (c *Client) LookupNonpageable(ctx context.Context, s *schema.Schema, attrs schema.Attributes) (*secure.SecureBuffer, error) {
	v, err := c.LookupValue(ctx, s, attrs)
	if err != nil || v == nil {
		return nil, err
	}
	// NewSecureBuffer wipes v's bytes
	return secure.NewSecureBuffer(v.Bytes(), v.ContentType()), nil
}

func (c *Client) lookupFunc(q map[string]string) func(context.Context, *logging.Logger) (*Value, error) {
	return func(ctx context.Context, log *logging.Logger) (*Value, error) {
		unlocked, locked, err := c.searchItems(ctx, q)
		if err != nil {
			return nil, err
		}

		var path dbus.ObjectPath
		switch {
		case len(unlocked) > 0:
			path = unlocked[0]
		case len(locked) > 0:
			opened, err := c.unlock(ctx, log, locked[:1])
			if err != nil {
				return nil, err
			}
			if len(opened) == 0 {
				return nil, nil
			}
			path = opened[0]
		default:
			log.Debug("no item matches")
			return nil, nil
		}

		values, err := c.getSecrets(ctx, []dbus.ObjectPath{path})
		if err != nil {
			if isNoSuchObject(err) {
				return nil, nil
			}
			return nil, err
		}
		v, ok := values[path]
		if !ok {
			return nil, nil
		}
		return v, nil
	}
}

// Store saves password under attrs in collection, replacing an item with
// identical attributes. collection may be "" for the default collection,
// an alias name such as "session", or a collection object path.
func (c *Client) Store(ctx context.Context, s *schema.Schema, attrs schema.Attributes, collection, label, password string) (bool, error) {
	return c.StoreValue(ctx, s, attrs, collection, label, NewTextValue(password))
}

// StoreAsync is the non-blocking form of Store.
func (c *Client) StoreAsync(s *schema.Schema, attrs schema.Attributes, collection, label, password string, done func(stored bool, err error)) (*Call, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return launch(c, context.Background(), "store", c.storeFunc(q, collection, label, NewTextValue(password)), done), nil
}

// StoreValue is Store for a secret with an explicit content type.
func (c *Client) StoreValue(ctx context.Context, s *schema.Schema, attrs schema.Attributes, collection, label string, value *Value) (bool, error) {
	q, err := query(s, attrs)
	if err != nil {
		return false, err
	}
	return await(c, ctx, "store", c.storeFunc(q, collection, label, value))
}

func (c *Client) storeFunc(q map[string]string, collection, label string, value *Value) func(context.Context, *logging.Logger) (bool, error) {
	coll := collectionPath(collection)
	return func(ctx context.Context, log *logging.Logger) (bool, error) {
		sess, err := c.session(ctx)
		if err != nil {
			return false, err
		}
		sec, err := sess.Encode(value.Bytes(), value.ContentType())
		if err != nil {
			return false, err
		}
		props := map[string]dbus.Variant{
			propLabel:      dbus.MakeVariant(label),
			propAttributes: dbus.MakeVariant(q),
		}

		log.Debug("storing %q in %s", label, coll)
		reply, err := c.call(ctx, coll, transport.CollectionIface, "CreateItem", props, sec, true)
		if err != nil {
			if isNoSuchObject(err) {
				return false, &collectionError{path: coll, err: err}
			}
			return false, err
		}
		var item, prompt dbus.ObjectPath
		if err := reply.Store(&item, &prompt); err != nil {
			return false, &ProtocolError{Method: "CreateItem", Err: err}
		}
		if prompt != noPrompt && prompt != "" {
			result, err := c.prompt(ctx, log, prompt)
			if err != nil {
				return false, err
			}
			if err := dbus.Store([]interface{}{result.Value()}, &item); err != nil {
				return false, &ProtocolError{Method: "CreateItem", Err: err}
			}
		}
		return item != "" && item != noPrompt, nil
	}
}

// Clear deletes every item matching attrs and reports how many went.
// Locked matches are unlocked first.
func (c *Client) Clear(ctx context.Context, s *schema.Schema, attrs schema.Attributes) (int, error) {
	q, err := query(s, attrs)
	if err != nil {
		return 0, err
	}
	return await(c, ctx, "clear", c.clearFunc(q))
}

// ClearAsync is the non-blocking form of Clear.
func (c *Client) ClearAsync(s *schema.Schema, attrs schema.Attributes, done func(removed int, err error)) (*Call, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return launch(c, context.Background(), "clear", c.clearFunc(q), done), nil
}

// Remove is Clear reporting only whether anything was deleted.
func (c *Client) Remove(ctx context.Context, s *schema.Schema, attrs schema.Attributes) (bool, error) {
	n, err := c.Clear(ctx, s, attrs)
	return n > 0, err
}

// RemoveAsync is the non-blocking form of Remove.
func (c *Client) RemoveAsync(s *schema.Schema, attrs schema.Attributes, done func(removed bool, err error)) (*Call, error) {
	return c.ClearAsync(s, attrs, func(n int, err error) { done(n > 0, err) })
}

func (c *Client) clearFunc(q map[string]string) func(context.Context, *logging.Logger) (int, error) {
	return func(ctx context.Context, log *logging.Logger) (int, error) {
		unlocked, locked, err := c.searchItems(ctx, q)
		if err != nil {
			return 0, err
		}
		if len(locked) > 0 {
			opened, err := c.unlock(ctx, log, locked)
			if err != nil {
				return 0, err
			}
			unlocked = append(unlocked, opened...)
		}

		removed := 0
		for _, path := range unlocked {
			ok, err := c.deleteItem(ctx, log, path)
			if err != nil {
				return removed, err
			}
			if ok {
				removed++
			}
		}
		log.Debug("removed %d items", removed)
		return removed, nil
	}
}

func (c *Client) deleteItem(ctx context.Context, log *logging.Logger, path dbus.ObjectPath) (bool, error) {
	reply, err := c.call(ctx, path, transport.ItemInterface, "Delete")
	if err != nil {
		if isNoSuchObject(err) {
			// deleted by someone else in the meantime
			return false, nil
		}
		return false, err
	}
	var prompt dbus.ObjectPath
	if err := reply.Store(&prompt); err != nil {
		return false, &ProtocolError{Method: "Delete", Err: err}
	}
	if prompt != noPrompt && prompt != "" {
		if _, err := c.prompt(ctx, log, prompt); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (c *Client) searchItems(ctx context.Context, q map[string]string) (unlocked, locked []dbus.ObjectPath, err error) {
	reply, err := c.call(ctx, transport.ServicePath, transport.ServiceInterface, "SearchItems", q)
	if err != nil {
		return nil, nil, err
	}
	if err := reply.Store(&unlocked, &locked); err != nil {
		return nil, nil, &ProtocolError{Method: "SearchItems", Err: err}
	}
	return unlocked, locked, nil
}

// getSecrets fetches and decodes the secrets of paths. Paths the service
// skips (still locked, vanished) are missing from the result.
func (c *Client) getSecrets(ctx context.Context, paths []dbus.ObjectPath) (map[dbus.ObjectPath]*Value, error) {
	sess, err := c.session(ctx)
	if err != nil {
		return nil, err
	}
	reply, err := c.call(ctx, transport.ServicePath, transport.ServiceInterface, "GetSecrets", paths, sess.Path())
	if err != nil {
		return nil, err
	}
	var raw map[dbus.ObjectPath]session.Secret
	if err := reply.Store(&raw); err != nil {
		return nil, &ProtocolError{Method: "GetSecrets", Err: err}
	}
	out := make(map[dbus.ObjectPath]*Value, len(raw))
	for path, sec := range raw {
		data, contentType, err := sess.Decode(sec)
		if err != nil {
			return nil, &ProtocolError{Method: "GetSecrets", Err: err}
		}
		out[path] = &Value{data: data, contentType: orDefault(contentType)}
	}
	return out, nil
}

func orDefault(contentType string) string {
	if contentType == "" {
		return DefaultContentType
	}
	return contentType
}

type collectionError struct {
	path dbus.ObjectPath
	err  error
}

func (e *collectionError) Error() string {
	return "no such collection " + string(e.path)
}

func (e *collectionError) Unwrap() []error { return []error{ErrNoSuchCollection, e.err} }

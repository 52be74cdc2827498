package secret

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sync/errgroup"

	"github.com/offsoc/libsecret/internal/logging"
	"github.com/offsoc/libsecret/internal/transport"
	"github.com/offsoc/libsecret/pkg/schema"
)

// maxPropertyFetches bounds concurrent property requests in one search.
const maxPropertyFetches = 8

// Search lists the items matching attrs. Without SearchAll only the first
// match is returned. Unlocked items come before locked ones.
func (c *Client) Search(ctx context.Context, s *schema.Schema, attrs schema.Attributes, flags SearchFlags) ([]Item, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return await(c, ctx, "search", c.searchFunc(q, flags))
}

// SearchAsync is the non-blocking form of Search.
func (c *Client) SearchAsync(s *schema.Schema, attrs schema.Attributes, flags SearchFlags, done func(items []Item, err error)) (*Call, error) {
	q, err := query(s, attrs)
	if err != nil {
		return nil, err
	}
	return launch(c, context.Background(), "search", c.searchFunc(q, flags), done), nil
}

func (c *Client) searchFunc(q map[string]string, flags SearchFlags) func(context.Context, *logging.Logger) ([]Item, error) {
	return func(ctx context.Context, log *logging.Logger) ([]Item, error) {
		unlocked, locked, err := c.searchItems(ctx, q)
		if err != nil {
			return nil, err
		}
		if flags&SearchAll == 0 {
			switch {
			case len(unlocked) > 0:
				unlocked, locked = unlocked[:1], nil
			case len(locked) > 0:
				locked = locked[:1]
			}
		}

		if flags&SearchUnlock != 0 && len(locked) > 0 {
			opened, err := c.unlock(ctx, log, locked)
			if err != nil {
				return nil, err
			}
			unlocked = append(unlocked, opened...)
			locked = without(locked, opened)
		}

		paths := append(append([]dbus.ObjectPath{}, unlocked...), locked...)
		items := make([]Item, len(paths))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxPropertyFetches)
		for i, path := range paths {
			g.Go(func() error {
				item, err := c.itemProperties(gctx, path)
				if err != nil {
					return err
				}
				items[i] = item
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if flags&SearchLoadSecrets != 0 && len(unlocked) > 0 {
			values, err := c.getSecrets(ctx, unlocked)
			if err != nil {
				return nil, err
			}
			for i := range items {
				items[i].Value = values[dbus.ObjectPath(items[i].Path)]
			}
		}
		log.Debug("search found %d items", len(items))
		return items, nil
	}
}

func (c *Client) itemProperties(ctx context.Context, path dbus.ObjectPath) (Item, error) {
	reply, err := c.call(ctx, path, transport.PropertiesIface, "GetAll", transport.ItemInterface)
	if err != nil {
		return Item{}, err
	}
	var props map[string]dbus.Variant
	if err := reply.Store(&props); err != nil {
		return Item{}, &ProtocolError{Method: "GetAll", Err: err}
	}

	item := Item{Path: string(path), Attributes: map[string]string{}}
	if v, ok := props[propLabel]; ok {
		item.Label, _ = v.Value().(string)
	}
	if v, ok := props[propAttributes]; ok {
		var attrs map[string]string
		if err := dbus.Store([]interface{}{v.Value()}, &attrs); err != nil {
			return Item{}, &ProtocolError{Method: "GetAll", Err: err}
		}
		for k, val := range attrs {
			if k == SchemaAttribute {
				item.Schema = val
				continue
			}
			item.Attributes[k] = val
		}
	}
	if v, ok := props[propLocked]; ok {
		item.Locked, _ = v.Value().(bool)
	}
	if v, ok := props[propCreated]; ok {
		if secs, ok := v.Value().(uint64); ok {
			item.Created = time.Unix(int64(secs), 0)
		}
	}
	if v, ok := props[propModified]; ok {
		if secs, ok := v.Value().(uint64); ok {
			item.Modified = time.Unix(int64(secs), 0)
		}
	}
	return item, nil
}

func without(paths, remove []dbus.ObjectPath) []dbus.ObjectPath {
	drop := make(map[dbus.ObjectPath]bool, len(remove))
	for _, p := range remove {
		drop[p] = true
	}
	var out []dbus.ObjectPath
	for _, p := range paths {
		if !drop[p] {
			out = append(out, p)
		}
	}
	return out
}

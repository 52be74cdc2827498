package transport_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/offsoc/libsecret/internal/transport"
)

func TestRequestMember(t *testing.T) {
	t.Parallel()

	req := transport.Request{Interface: transport.ServiceInterface, Method: "SearchItems"}
	assert.Equal(t, "org.freedesktop.Secret.Service.SearchItems", req.Member())
}

func TestReplyStore(t *testing.T) {
	t.Parallel()

	reply := transport.Reply{Body: []interface{}{
		[]dbus.ObjectPath{"/org/freedesktop/secrets/collection/english/1"},
		[]dbus.ObjectPath{},
	}}

	var unlocked, locked []dbus.ObjectPath
	require.NoError(t, reply.Store(&unlocked, &locked))
	assert.Len(t, unlocked, 1)
	assert.Empty(t, locked)

	failed := transport.Reply{Err: errors.New("nope")}
	assert.EqualError(t, failed.Store(&unlocked), "nope")
}

func TestErrorName(t *testing.T) {
	t.Parallel()

	err := transport.NewError(transport.ErrNameNoSuchObject, "no such item")
	assert.Equal(t, transport.ErrNameNoSuchObject, transport.ErrorName(err))
	assert.Equal(t, transport.ErrNameNoSuchObject, transport.ErrorName(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, transport.ErrNameIsLocked, transport.ErrorName(&dbus.Error{Name: transport.ErrNameIsLocked}))
	assert.Equal(t, "", transport.ErrorName(errors.New("plain")))
	assert.Equal(t, "", transport.ErrorName(nil))
}

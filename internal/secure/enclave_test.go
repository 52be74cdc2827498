package secure

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureBuffer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "password", data: []byte("111")},
		{name: "empty", data: []byte{}},
		{name: "binary", data: []byte{0x00, 0xFF, 0x10, 0x20}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// memguard wipes the source, keep a copy for comparison
			expected := append([]byte(nil), tt.data...)

			buf := NewSecureBuffer(tt.data, "text/plain")
			defer buf.Destroy()

			assert.Equal(t, len(expected), buf.Size())
			assert.Equal(t, "text/plain", buf.ContentType())

			locked, err := buf.Open()
			require.NoError(t, err)
			defer locked.Destroy()
			assert.True(t, bytes.Equal(expected, locked.Bytes()))
		})
	}
}

func TestSecureBuffer_With(t *testing.T) {
	t.Parallel()

	buf := NewSecureBuffer([]byte("999"), "text/plain")
	defer buf.Destroy()

	var seen string
	err := buf.With(func(b []byte) error {
		seen = string(b)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "999", seen)

	sentinel := errors.New("boom")
	assert.ErrorIs(t, buf.With(func([]byte) error { return sentinel }), sentinel)
}

func TestSecureBuffer_Destroy(t *testing.T) {
	t.Parallel()

	buf := NewSecureBuffer([]byte("secret-to-destroy"), "text/plain")
	buf.Destroy()
	buf.Destroy()

	_, err := buf.Open()
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, buf.With(func([]byte) error { return nil }), ErrDestroyed)
}

func TestSecureBuffer_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	buf := NewSecureBuffer([]byte("concurrent-secret"), "text/plain")
	defer buf.Destroy()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- buf.With(func(b []byte) error {
				if string(b) != "concurrent-secret" {
					return errors.New("corrupted")
				}
				return nil
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

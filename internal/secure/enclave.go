package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed buffer is opened.
var ErrDestroyed = errors.New("secure buffer destroyed")

// SecureBuffer is a secret value sealed in a memguard enclave, together with
// the content type the secret service reported for it.
type SecureBuffer struct {
	mu          sync.RWMutex
	enclave     *memguard.Enclave
	contentType string
	size        int
	destroyed   bool
}

// NewSecureBuffer seals data into an enclave. memguard wipes data once it
// has been copied, so callers must not reuse the slice.
func NewSecureBuffer(data []byte, contentType string) *SecureBuffer {
	b := &SecureBuffer{contentType: contentType, size: len(data)}
	if len(data) > 0 {
		b.enclave = memguard.NewEnclave(data)
	}
	return b
}

// ContentType returns the MIME type of the secret, e.g. "text/plain".
func (b *SecureBuffer) ContentType() string { return b.contentType }

// Size returns the length of the sealed secret in bytes.
func (b *SecureBuffer) Size() int { return b.size }

// Open decrypts the secret into a locked buffer. The caller must Destroy it.
func (b *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return b.enclave.Open()
}

// With opens the buffer, passes the plaintext to fn and destroys the
// plaintext copy when fn returns. fn must not retain the slice.
func (b *SecureBuffer) With(fn func([]byte) error) error {
	locked, err := b.Open()
	if err != nil {
		return err
	}
	defer locked.Destroy()
	return fn(locked.Bytes())
}

// Destroy drops the enclave. It is idempotent; Open fails afterwards.
func (b *SecureBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return
	}
	b.enclave = nil
	b.destroyed = true
}

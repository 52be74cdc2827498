// Package session implements Secret Service transfer sessions: how secret
// values are wrapped on the wire between client and service.
//
// Two algorithms are supported:
//
//   - "plain": values travel unencrypted
//   - "dh-ietf1024-sha256-aes128-cbc-pkcs7": a Diffie-Hellman exchange over
//     the 1024-bit IETF group establishes a shared secret; HKDF-SHA256 derives
//     a 128-bit AES key; values are AES-CBC encrypted with PKCS#7 padding and
//     a fresh IV per value.
//
// Client and service sides are both provided so the in-process fake service
// can speak the same protocol.
package session

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Algorithm names as sent to OpenSession.
const (
	AlgorithmPlain = "plain"
	AlgorithmAES   = "dh-ietf1024-sha256-aes128-cbc-pkcs7"
)

var (
	// ErrUnsupportedAlgorithm is returned for algorithms other than the two above.
	ErrUnsupportedAlgorithm = errors.New("unsupported session algorithm")
	// ErrInvalidSecret is returned when a secret cannot be decoded.
	ErrInvalidSecret = errors.New("invalid secret encoding")
)

// Secret is the D-Bus (oayays) secret structure.
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// Session is an open transfer session.
type Session struct {
	path      dbus.ObjectPath
	algorithm string
	key       []byte
}

// Path returns the session object path.
func (s *Session) Path() dbus.ObjectPath { return s.path }

// Algorithm returns the negotiated algorithm.
func (s *Session) Algorithm() string { return s.algorithm }

// Encode wraps value for transmission.
func (s *Session) Encode(value []byte, contentType string) (Secret, error) {
	sec := Secret{Session: s.path, ContentType: contentType, Parameters: []byte{}}
	if s.key == nil {
		sec.Value = append([]byte{}, value...)
		return sec, nil
	}
	iv, ct, err := encrypt(s.key, value)
	if err != nil {
		return Secret{}, err
	}
	sec.Parameters = iv
	sec.Value = ct
	return sec, nil
}

// Decode unwraps a received secret.
func (s *Session) Decode(sec Secret) ([]byte, string, error) {
	if s.key == nil {
		if len(sec.Parameters) != 0 {
			return nil, "", fmt.Errorf("%w: plain secret carries parameters", ErrInvalidSecret)
		}
		return append([]byte{}, sec.Value...), sec.ContentType, nil
	}
	value, err := decrypt(s.key, sec.Parameters, sec.Value)
	if err != nil {
		return nil, "", err
	}
	return value, sec.ContentType, nil
}

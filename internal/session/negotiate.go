package session

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"math/big"

	"github.com/godbus/dbus/v5"
	"golang.org/x/crypto/hkdf"
)

// RFC 2409 second Oakley group (1024-bit MODP), generator 2.
var (
	ietfPrime = mustHex("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
		"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
		"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
		"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
		"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE65381" +
		"FFFFFFFFFFFFFFFF")
	ietfGenerator = big.NewInt(2)
	primeBytes    = (ietfPrime.BitLen() + 7) / 8
)

const aesKeySize = 16

func mustHex(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("session: bad prime")
	}
	return n
}

// Negotiation is the client half of an OpenSession exchange.
type Negotiation struct {
	algorithm string
	private   *big.Int
}

// Begin starts a negotiation and returns the OpenSession input argument.
// rnd defaults to crypto/rand.
func Begin(algorithm string, rnd io.Reader) (*Negotiation, dbus.Variant, error) {
	switch algorithm {
	case AlgorithmPlain:
		return &Negotiation{algorithm: algorithm}, dbus.MakeVariant(""), nil
	case AlgorithmAES:
		priv, pub, err := keypair(rnd)
		if err != nil {
			return nil, dbus.Variant{}, err
		}
		return &Negotiation{algorithm: algorithm, private: priv}, dbus.MakeVariant(pub.Bytes()), nil
	default:
		return nil, dbus.Variant{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

// Algorithm returns the algorithm being negotiated.
func (n *Negotiation) Algorithm() string { return n.algorithm }

// Complete consumes the OpenSession reply.
func (n *Negotiation) Complete(output dbus.Variant, path dbus.ObjectPath) (*Session, error) {
	if n.algorithm == AlgorithmPlain {
		return &Session{path: path, algorithm: n.algorithm}, nil
	}
	peer, ok := output.Value().([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: OpenSession output has signature %s, want ay", ErrInvalidSecret, output.Signature())
	}
	key, err := deriveKey(n.private, peer)
	if err != nil {
		return nil, err
	}
	return &Session{path: path, algorithm: n.algorithm, key: key}, nil
}

// Accept is the service half: it answers an OpenSession request.
func Accept(algorithm string, input dbus.Variant, path dbus.ObjectPath, rnd io.Reader) (*Session, dbus.Variant, error) {
	switch algorithm {
	case AlgorithmPlain:
		return &Session{path: path, algorithm: algorithm}, dbus.MakeVariant(""), nil
	case AlgorithmAES:
		peer, ok := input.Value().([]byte)
		if !ok {
			return nil, dbus.Variant{}, fmt.Errorf("%w: OpenSession input has signature %s, want ay", ErrInvalidSecret, input.Signature())
		}
		priv, pub, err := keypair(rnd)
		if err != nil {
			return nil, dbus.Variant{}, err
		}
		key, err := deriveKey(priv, peer)
		if err != nil {
			return nil, dbus.Variant{}, err
		}
		return &Session{path: path, algorithm: algorithm, key: key}, dbus.MakeVariant(pub.Bytes()), nil
	default:
		return nil, dbus.Variant{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
}

func keypair(rnd io.Reader) (priv, pub *big.Int, err error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	// private exponent in [2, p-2]
	limit := new(big.Int).Sub(ietfPrime, big.NewInt(3))
	priv, err = rand.Int(rnd, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("generating session key: %w", err)
	}
	priv.Add(priv, big.NewInt(2))
	pub = new(big.Int).Exp(ietfGenerator, priv, ietfPrime)
	return priv, pub, nil
}

func deriveKey(priv *big.Int, peerBytes []byte) ([]byte, error) {
	peer := new(big.Int).SetBytes(peerBytes)
	one := big.NewInt(1)
	if peer.Cmp(one) <= 0 || peer.Cmp(new(big.Int).Sub(ietfPrime, one)) >= 0 {
		return nil, fmt.Errorf("%w: peer public key out of range", ErrInvalidSecret)
	}
	shared := new(big.Int).Exp(peer, priv, ietfPrime)

	ikm := make([]byte, primeBytes)
	shared.FillBytes(ikm)

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, ikm, nil, nil), key); err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	return key, nil
}

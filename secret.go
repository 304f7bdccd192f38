package art

import (
	"encoding/hex"
	"io"
)

// Secret wraps a Scalar together with its derived PublicKey, the unit
// of key material a Key holds when it has not been tombstoned or
// stripped of its private half.
type Secret struct {
	scalar *Scalar
	pub    *PublicKey
}

// RandomSecret draws a fresh Secret from rng.
func RandomSecret(rng io.Reader) (*Secret, error) {
	s, err := RandomScalar(rng)
	if err != nil {
		return nil, err
	}
	return &Secret{scalar: s, pub: basePointMul(s)}, nil
}

// SecretFromRepr builds a Secret from a 32-byte scalar representation.
func SecretFromRepr(repr []byte) (*Secret, error) {
	s, err := NewScalarFromRepr(repr)
	if err != nil {
		return nil, err
	}
	return &Secret{scalar: s, pub: basePointMul(s)}, nil
}

// ReplaceScalar overwrites the secret's scalar (and recomputes its
// public key) in place. Key.DiffieHellman uses it to fill a freshly
// allocated Secret with the scalar a reduction produced.
func (s *Secret) ReplaceScalar(scalar *Scalar) {
	s.scalar = scalar
	s.pub = basePointMul(scalar)
}

// PublicKey returns the public half of s.
func (s *Secret) PublicKey() *PublicKey {
	return s.pub
}

// DiffieHellman computes the ECDH shared secret between s and pub,
// reduced to a Scalar via the X-coordinate of the shared point.
func (s *Secret) DiffieHellman(pub *PublicKey) (*Scalar, error) {
	shared := scalarMul(s.scalar, pub)
	return NewScalarFromRepr(xCoordinate(shared))
}

// String renders s's public key for debugging; the scalar itself is
// never printed.
func (s *Secret) String() string {
	if s == nil {
		return "Secret(nil)"
	}
	return "Secret(pub=" + hex.EncodeToString(s.pub.Bytes()) + ")"
}

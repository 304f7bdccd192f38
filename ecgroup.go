package art

import (
	"encoding/binary"
	"io"

	"github.com/bwesterb/byteswriter"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// scalarSize is the byte length of a canonical secp256k1 scalar or
// field-element representation.
const scalarSize = 32

// Scalar is a nonzero element of the secp256k1 scalar field. The zero
// value is not a valid Scalar; use RandomScalar or NewScalarFromRepr.
type Scalar struct {
	v secp256k1.ModNScalar
}

// RandomScalar draws a uniformly random nonzero Scalar from rng,
// rejecting and redrawing zero/out-of-range 32-byte draws.
func RandomScalar(rng io.Reader) (*Scalar, error) {
	var buf [scalarSize]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return nil, wrapErrorf(ErrInvalidScalar, err, "reading random scalar")
		}
		s, err := NewScalarFromRepr(buf[:])
		if err == nil {
			return s, nil
		}
	}
}

// NewScalarFromRepr decodes a 32-byte big-endian representation into a
// Scalar, rejecting zero and values not reduced modulo the group order.
func NewScalarFromRepr(repr []byte) (*Scalar, error) {
	if len(repr) != scalarSize {
		return nil, errInvalidScalar()
	}
	var s secp256k1.ModNScalar
	overflow := s.SetByteSlice(repr)
	if overflow || s.IsZero() {
		return nil, errInvalidScalar()
	}
	return &Scalar{v: s}, nil
}

// Bytes returns the canonical 32-byte big-endian representation.
func (s *Scalar) Bytes() []byte {
	b := s.v.Bytes()
	return b[:]
}

// PublicKey is a point on secp256k1, stored as Jacobian coordinates
// that every constructor here normalizes to affine form. The zero value is the point at infinity and is not a valid
// PublicKey for DH purposes; use basePointMul or curve-group composition.
type PublicKey struct {
	p secp256k1.JacobianPoint
}

// basePointMul computes s*G.
func basePointMul(s *Scalar) *PublicKey {
	var p secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&s.v, &p)
	p.ToAffine()
	return &PublicKey{p: p}
}

// scalarMul computes s*P.
func scalarMul(s *Scalar, pub *PublicKey) *PublicKey {
	var p secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&s.v, &pub.p, &p)
	p.ToAffine()
	return &PublicKey{p: p}
}

// Bytes returns the compressed SEC1 encoding of the point.
func (pk *PublicKey) Bytes() []byte {
	x, y := pk.p.X, pk.p.Y
	pub := secp256k1.NewPublicKey(&x, &y)
	return pub.SerializeCompressed()
}

// Equal reports whether pk and other encode the same point.
func (pk *PublicKey) Equal(other *PublicKey) bool {
	if pk == nil || other == nil {
		return pk == other
	}
	return pk.p.X.Equals(&other.p.X) && pk.p.Y.Equals(&other.p.Y) && pk.p.Z.Equals(&other.p.Z)
}

// xCoordinate extracts the canonical 32-byte big-endian X-coordinate of
// pk, the standard ECDH reduction of a shared point to a scalar-sized
// secret representation. The fixed-size buffer is filled through a
// byteswriter.Writer.
func xCoordinate(pk *PublicKey) []byte {
	fieldBytes := pk.p.X.Bytes()

	out := make([]byte, scalarSize)
	w := byteswriter.NewWriter(out)
	if err := binary.Write(w, binary.BigEndian, fieldBytes[:]); err != nil {
		panic("art: writing fixed-size field buffer cannot fail: " + err.Error())
	}
	return out
}

// identityPublicKey is the point at infinity, used only as a zero value
// placeholder; it is never a valid DH operand.
var identityPublicKey = &PublicKey{}

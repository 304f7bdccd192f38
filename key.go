package art

// tombstoneScalarRepr is the fixed scalar representation (the integer
// 1) used to derive the sentinel public key that marks a removed leaf.
// It carries no secret: Tombstone() sets only the public half.
var tombstoneScalarRepr = func() []byte {
	b := make([]byte, scalarSize)
	b[scalarSize-1] = 1
	return b
}()

var tombstonePublicKey = func() *PublicKey {
	s, err := NewScalarFromRepr(tombstoneScalarRepr)
	if err != nil {
		panic("art: tombstone scalar representation must be valid: " + err.Error())
	}
	return basePointMul(s)
}()

// Key is the value stored at every node of a RatchetTree: either a
// Secret (this node's owner knows the private half), a bare public
// key (a leaf or internal node whose secret this party does not
// hold), a tombstone (a removed leaf), or the zero value (unset,
// default).
type Key struct {
	secret *Secret
	pub    *PublicKey
}

// DefaultKey returns the zero-value Key representing an unset slot.
func DefaultKey() Key {
	return Key{}
}

// Tombstone returns a Key marking a removed leaf: it carries the
// sentinel public key and no secret.
func Tombstone() Key {
	return Key{pub: tombstonePublicKey}
}

// NewKey constructs a Key from a known public key only.
func NewKey(pub *PublicKey) Key {
	return Key{pub: pub}
}

// KeyFromSecret constructs a Key that holds both halves of secret.
func KeyFromSecret(secret *Secret) Key {
	return Key{secret: secret, pub: secret.PublicKey()}
}

// IsDefault reports whether k is the unset zero value.
func (k Key) IsDefault() bool {
	return k.pub == nil && k.secret == nil
}

// IsTombstone reports whether k is the removed-leaf sentinel.
func (k Key) IsTombstone() bool {
	return k.secret == nil && k.pub != nil && k.pub.Equal(tombstonePublicKey)
}

// HasSecret reports whether k holds the private half.
func (k Key) HasSecret() bool {
	return k.secret != nil
}

// PublicKey returns k's public half, or nil if k is the default key.
func (k Key) PublicKey() *PublicKey {
	return k.pub
}

// Secret returns k's private half, or nil if k does not hold one.
func (k Key) Secret() *Secret {
	return k.secret
}

// SetPk sets k's public half to pub. If k already holds a secret whose
// derived public key disagrees with pub, SetPk returns ErrKeyMismatch
// and leaves k unchanged.
func (k *Key) SetPk(pub *PublicKey) error {
	if k.secret != nil && !k.secret.PublicKey().Equal(pub) {
		return errKeyMismatch()
	}
	k.pub = pub
	return nil
}

// SetSk replaces k's secret (and recomputed public half) with secret.
func (k *Key) SetSk(secret *Secret) {
	k.secret = secret
	k.pub = secret.PublicKey()
}

// Equal reports whether k and other carry the same public key. Two
// default keys are not considered equal to each other or to anything
// else, mirroring that an unset slot has no identity yet.
func (k Key) Equal(other Key) bool {
	if k.pub == nil || other.pub == nil {
		return false
	}
	return k.pub.Equal(other.pub)
}

// DiffieHellman reduces k and other into the Key for their shared
// parent node. At least one of k, other must hold a secret.
//
// Absence (tombstone) is handled by the caller via the path iterator's
// per-step policy (see RatchetTree.Ratchet); DiffieHellman itself
// always performs a real ECDH reduction and never special-cases
// tombstones.
func (k Key) DiffieHellman(other Key) (Key, error) {
	switch {
	case k.secret != nil:
		s, err := k.secret.DiffieHellman(other.pub)
		if err != nil {
			return Key{}, err
		}
		sec := &Secret{}
		sec.ReplaceScalar(s)
		return KeyFromSecret(sec), nil
	case other.secret != nil:
		s, err := other.secret.DiffieHellman(k.pub)
		if err != nil {
			return Key{}, err
		}
		sec := &Secret{}
		sec.ReplaceScalar(s)
		return KeyFromSecret(sec), nil
	default:
		return Key{}, errNoSecret()
	}
}

// Take zeroes k in place and returns its previous value. Taking from
// an already-default Key is an error: there is nothing to remove.
func (k *Key) Take() (Key, error) {
	if k.IsDefault() {
		return Key{}, errTakeEmpty()
	}
	prev := *k
	*k = Key{}
	return prev, nil
}

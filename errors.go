package art

import "fmt"

//go:generate enumer -type ErrKind

// ErrKind tags the reason an Error was returned, so callers can switch
// on it instead of string-matching.
type ErrKind uint8

const (
	// ErrInvalidScalar: a 32-byte representation decoded to zero or
	// out-of-range.
	ErrInvalidScalar ErrKind = iota
	// ErrNoSecret: DH attempted with two Keys both lacking a secret.
	ErrNoSecret
	// ErrKeyMismatch: setting a public key on a Key whose existing
	// secret disagrees.
	ErrKeyMismatch
	// ErrTakeEmpty: taking from an already-default Key.
	ErrTakeEmpty
	// ErrDiffieHellmanFailed: crypto reduction yielded an invalid
	// scalar during ratcheting.
	ErrDiffieHellmanFailed
	// ErrBranchTooShort: commit invoked with a branch shorter than the
	// current tree height.
	ErrBranchTooShort
	// ErrOutOfMemory: commit would require more arena slots than the
	// pool holds, or a segmented allocator ran out of bytes.
	ErrOutOfMemory
	// ErrIndexOutOfRange: leaf-layer or layer-local index exceeds
	// bounds.
	ErrIndexOutOfRange
	// ErrNoLayer: requested layer does not exist.
	ErrNoLayer
	// ErrNoAllocatorAtIndex: no cell reserved at the requested pool
	// index.
	ErrNoAllocatorAtIndex
	// ErrCellBorrowed: an arena-pool cell is still held by another
	// handle, or a handle outlived a reset of its cell.
	ErrCellBorrowed
)

// Error is the single error type this package returns. It carries the
// offending kind plus whatever index/height context applies; Unwrap
// exposes an inner error where one caused the failure (e.g. a short
// read from the caller's RNG).
type Error struct {
	Kind   ErrKind
	Index  int
	Height int

	msg   string
	inner error
}

func (e *Error) Error() string {
	if e.inner != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.inner.Error())
	}
	return e.msg
}

// Unwrap exposes the wrapped error, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.inner }

// Formats a new Error.
func errorf(kind ErrKind, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Formats a new Error that wraps another.
func wrapErrorf(kind ErrKind, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, a...), inner: err}
}

func errInvalidScalar() *Error {
	return errorf(ErrInvalidScalar, "scalar representation is zero or out of range")
}

func errNoSecret() *Error {
	return errorf(ErrNoSecret, "diffie-hellman requires at least one key to hold a secret")
}

func errKeyMismatch() *Error {
	return errorf(ErrKeyMismatch, "public key does not match the key's existing secret")
}

func errTakeEmpty() *Error {
	return errorf(ErrTakeEmpty, "take called on a key already at its default value")
}

func errDiffieHellmanFailed(index, height int, err error) *Error {
	e := wrapErrorf(ErrDiffieHellmanFailed, err, "diffie-hellman reduction failed at height %d index %d", height, index)
	e.Index, e.Height = index, height
	return e
}

func errBranchTooShort(got, want int) *Error {
	return errorf(ErrBranchTooShort, "branch has %d nodes, tree height requires at least %d", got, want)
}

func errOutOfMemory(index int) *Error {
	e := errorf(ErrOutOfMemory, "commit requires more arena slots than the pool holds")
	e.Index = index
	return e
}

func errIndexOutOfRange(index, height int) *Error {
	e := errorf(ErrIndexOutOfRange, "index %d is out of range at height %d", index, height)
	e.Index, e.Height = index, height
	return e
}

func errNoLayer(height int) *Error {
	e := errorf(ErrNoLayer, "no layer exists at height %d", height)
	e.Height = height
	return e
}

func errNoAllocatorAtIndex(index int) *Error {
	e := errorf(ErrNoAllocatorAtIndex, "no allocator cell reserved at index %d", index)
	e.Index = index
	return e
}

func errCellBorrowed(index int) *Error {
	e := errorf(ErrCellBorrowed, "cell %d is still borrowed by another handle", index)
	e.Index = index
	return e
}

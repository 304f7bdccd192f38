package art

// Branch is the uncommitted, scratch-allocated sequence of Keys a
// ratchet produces: nodes[0] is the new leaf (or tombstone), and each
// successive entry is the recomputed node one layer up, from leaf
// toward root. Dropped without a call to RatchetTree.Commit, a Branch
// has no effect on the tree it was built against.
//
// A Branch is only valid for the lifetime of the scratch cell handle
// it was built with; holding one past that handle's Release is a
// lifetime violation this package does not detect for the caller.
type Branch struct {
	handle *Handle
	root   int
	nodes  []Key
}

// newBranch starts a Branch rooted at the given leaf index, backed by
// a scratch cell handle obtained from the tree's arena pool.
func newBranch(handle *Handle, rootIndex int) *Branch {
	return &Branch{handle: handle, root: rootIndex}
}

// Root returns the leaf index this branch was ratcheted from.
func (b *Branch) Root() int { return b.root }

// AddNode appends key as the next entry of the branch.
func (b *Branch) AddNode(key Key) {
	b.nodes = append(b.nodes, key)
}

// GetNode returns the entry at i.
func (b *Branch) GetNode(i int) (Key, error) {
	if i < 0 || i >= len(b.nodes) {
		return Key{}, errIndexOutOfRange(i, 0)
	}
	return b.nodes[i], nil
}

// GetLast returns the most recently appended entry, or the default Key
// if the branch is still empty.
func (b *Branch) GetLast() Key {
	if len(b.nodes) == 0 {
		return DefaultKey()
	}
	return b.nodes[len(b.nodes)-1]
}

// Len returns the number of entries appended so far.
func (b *Branch) Len() int { return len(b.nodes) }

// Iter returns the branch's entries, leaf to root. The returned slice
// aliases the branch's own storage and must not be retained past a
// Clear or the branch's lifetime.
func (b *Branch) Iter() []Key {
	return b.nodes
}

// Clear empties the branch and releases its scratch cell handle, so
// the cell can be reset and reused by the next ratchet.
func (b *Branch) Clear() {
	b.nodes = b.nodes[:0]
	if b.handle != nil {
		b.handle.Release()
		b.handle = nil
	}
}

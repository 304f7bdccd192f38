package art

import "math/bits"

// memoryTreeStartIndex is the first arena pool slot reserved for layer
// backing storage; slots 0-2 are the root header, orphan list, and
// branch scratch cell respectively.
const memoryTreeStartIndex = 3

// RatchetTree is a left-balanced binary tree of Keys over secp256k1.
// layers[0] is the leaf layer; layers[h+1] holds the parents of
// layers[h]. Every layer's index 0 is a reserved default slot, so
// valid node indices within a layer start at 1.
type RatchetTree struct {
	layers    [][]Key
	orphans   []int
	tombstone Key
	pool      *AllocatorPool
}

// NewRatchetTree constructs an empty tree backed by pool, which must
// reserve at least the 4 fixed logical slots (root header, orphan
// list, branch scratch, and layer 0's backing storage).
func NewRatchetTree(pool *AllocatorPool) (*RatchetTree, error) {
	if pool.Capacity() < 4 {
		return nil, errorf(ErrOutOfMemory, "arena pool must reserve at least 4 slots, has %d", pool.Capacity())
	}
	return &RatchetTree{
		layers:    [][]Key{{DefaultKey()}},
		tombstone: Tombstone(),
		pool:      pool,
	}, nil
}

// GetNextIndex returns the leaf index the next Insert will use: the
// oldest orphaned slot if one exists, else a fresh index.
func (t *RatchetTree) GetNextIndex() int {
	if len(t.orphans) > 0 {
		return t.orphans[0]
	}
	return len(t.layers[0])
}

// Height is 0 for a tree with at most one committed leaf, else
// ceil(log2(n)) where n is the number of committed leaves.
func (t *RatchetTree) Height() int {
	return heightForLeafCount(len(t.layers[0]) - 1)
}

func heightForLeafCount(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ensureLayerPresent grows the layers slice, if needed, so that layer
// h exists with a default Key at its reserved index 0.
func (t *RatchetTree) ensureLayerPresent(h int) {
	for len(t.layers) <= h {
		t.layers = append(t.layers, []Key{DefaultKey()})
		t.accountHeader(len(t.layers) - 1)
	}
}

// nodeAt returns the Key at (h, i), or the default Key if either index
// is out of range — the bounds check doubles as this tree's "absent"
// test for nodes past the frontier of what has been committed.
func (t *RatchetTree) nodeAt(h, i int) Key {
	if h < 0 || h >= len(t.layers) {
		return DefaultKey()
	}
	layer := t.layers[h]
	if i < 0 || i >= len(layer) {
		return DefaultKey()
	}
	return layer[i]
}

func isAbsent(k Key) bool {
	return k.IsDefault() || k.IsTombstone()
}

// accountHeader, accountOrphan and accountNode are best-effort arena
// byte accounting against the pool's reserved header/orphan/layer
// cells. A real tree never exhausts these given reasonably sized
// slots (the hard out-of-memory check commit performs is the slot
// count check in Commit); a failure here is logged and otherwise
// ignored so it can never leave a commit partially applied.
func (t *RatchetTree) accountHeader(h int) {
	handle, err := t.pool.Get(0)
	if err != nil {
		log.Logf("art: could not account layer %d header: %v", h, err)
		return
	}
	defer handle.Release()
	if _, err := handle.Alloc(8); err != nil {
		log.Logf("art: root header cell exhausted accounting layer %d: %v", h, err)
	}
}

func (t *RatchetTree) accountOrphan() {
	handle, err := t.pool.Get(1)
	if err != nil {
		log.Logf("art: could not account orphan entry: %v", err)
		return
	}
	defer handle.Release()
	if _, err := handle.Alloc(4); err != nil {
		log.Logf("art: orphan list cell exhausted: %v", err)
	}
}

func (t *RatchetTree) accountNode(h int) {
	handle, err := t.pool.Get(memoryTreeStartIndex + h)
	if err != nil {
		log.Logf("art: could not account node at layer %d: %v", h, err)
		return
	}
	defer handle.Release()
	if _, err := handle.Alloc(scalarSize); err != nil {
		log.Logf("art: layer %d cell exhausted accounting new node: %v", h, err)
	}
}

// Ratchet recomputes the root-ward path from index with key as the new
// leaf, without mutating the tree. The returned Branch must later be
// passed to Commit (or Cleared) to release its scratch cell.
func (t *RatchetTree) Ratchet(index int, key Key) (*Branch, error) {
	handle, err := t.pool.GetMut(2)
	if err != nil {
		return nil, err
	}
	branch := newBranch(handle, index)
	branch.AddNode(key)

	it := newPathIter(index, t.Height())
	for {
		step, ok := it.Next()
		if !ok {
			break
		}
		if step.Height >= len(t.layers) {
			break
		}

		k1 := branch.GetLast()
		k2 := t.nodeAt(step.Height, step.Sibling)
		noK1, noK2 := isAbsent(k1), isAbsent(k2)

		switch {
		case noK1 && noK2:
			branch.AddNode(t.tombstone)
		case !noK1 && noK2:
			branch.AddNode(k1)
		case noK1 && !noK2:
			branch.AddNode(k2)
		default:
			combined, err := k1.DiffieHellman(k2)
			if err != nil {
				branch.Clear()
				return nil, errDiffieHellmanFailed(step.Self, step.Height, err)
			}
			branch.AddNode(combined)
		}
	}
	return branch, nil
}

// Insert ratchets key in at the next available leaf index. It does
// not mutate the tree; pass the result to Commit.
func (t *RatchetTree) Insert(key Key) (*Branch, error) {
	return t.Ratchet(t.GetNextIndex(), key)
}

// Remove ratchets the tombstone in at index, marking that leaf for
// removal once the resulting branch is committed.
func (t *RatchetTree) Remove(index int) (*Branch, error) {
	if index < 1 || index >= len(t.layers[0]) {
		return nil, errIndexOutOfRange(index, 0)
	}
	return t.Ratchet(index, t.tombstone)
}

// Commit atomically writes branch into the tree's layers, returning
// the topmost node written (the new tree root once the branch reaches
// it). branch's scratch cell is released on success.
func (t *RatchetTree) Commit(branch *Branch) (Key, error) {
	height := t.Height()
	if branch.Len() < height {
		return Key{}, errBranchTooShort(branch.Len(), height)
	}
	if memoryTreeStartIndex+branch.Len() > t.pool.Capacity() {
		return Key{}, errOutOfMemory(branch.Root())
	}

	index := branch.Root()
	if len(t.orphans) > 0 && t.orphans[0] == index {
		t.orphans = t.orphans[1:]
	}

	leaf, err := branch.GetNode(0)
	if err != nil {
		return Key{}, err
	}
	if leaf.IsTombstone() {
		t.orphans = append(t.orphans, index)
		t.accountOrphan()
	}

	h := 0
	var final Key
	for i := 0; i < branch.Len(); i++ {
		node, _ := branch.GetNode(i)
		t.ensureLayerPresent(h)

		if index >= len(t.layers[h]) {
			for len(t.layers[h]) <= index {
				t.layers[h] = append(t.layers[h], DefaultKey())
			}
			t.accountNode(h)
		}
		t.layers[h][index] = node

		final = node
		h++
		index = (index + (index & 1)) / 2
	}

	branch.Clear()
	return final, nil
}

// Get returns the Key at (height, index).
func (t *RatchetTree) Get(height, index int) (Key, error) {
	layer, err := t.GetLayer(height)
	if err != nil {
		return Key{}, err
	}
	if index < 0 || index >= len(layer) {
		return Key{}, errIndexOutOfRange(index, height)
	}
	return layer[index], nil
}

// GetLayer returns the full backing slice for a layer.
func (t *RatchetTree) GetLayer(height int) ([]Key, error) {
	if height < 0 || height >= len(t.layers) {
		return nil, errNoLayer(height)
	}
	return t.layers[height], nil
}

// GetLayerLen returns the committed length of a layer, including its
// reserved index-0 slot.
func (t *RatchetTree) GetLayerLen(height int) (int, error) {
	layer, err := t.GetLayer(height)
	if err != nil {
		return 0, err
	}
	return len(layer), nil
}

// Set overwrites the Key at (height, index) directly, bypassing
// ratchet/commit. Callers needing DH-consistent nodes should use
// Ratchet and Commit instead; Set exists for tests and for repairing
// layers after an out-of-band resync.
func (t *RatchetTree) Set(height, index int, v Key) error {
	if height < 0 || height >= len(t.layers) {
		return errNoLayer(height)
	}
	layer := t.layers[height]
	if index < 0 || index >= len(layer) {
		return errIndexOutOfRange(index, height)
	}
	t.layers[height][index] = v
	return nil
}

// InsertMany ratchets and commits each key in order, returning the
// tree root after each commit. It stops at the first error, returning
// the roots successfully committed so far alongside it.
func (t *RatchetTree) InsertMany(keys []Key) ([]Key, error) {
	roots := make([]Key, 0, len(keys))
	for _, k := range keys {
		branch, err := t.Insert(k)
		if err != nil {
			return roots, err
		}
		root, err := t.Commit(branch)
		if err != nil {
			return roots, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// Snapshot is a read-only, independently-owned copy of a tree's
// committed state, safe to retain after the tree itself mutates
// further.
type Snapshot struct {
	Layers  [][]Key
	Orphans []int
}

// Snapshot copies out the tree's current layers and orphan list.
func (t *RatchetTree) Snapshot() Snapshot {
	layers := make([][]Key, len(t.layers))
	for h, layer := range t.layers {
		cp := make([]Key, len(layer))
		copy(cp, layer)
		layers[h] = cp
	}
	orphans := make([]int, len(t.orphans))
	copy(orphans, t.orphans)
	return Snapshot{Layers: layers, Orphans: orphans}
}

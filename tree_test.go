package art

import (
	"crypto/rand"
	"testing"
)

func secretFromUint64(n uint64) *Secret {
	repr := make([]byte, scalarSize)
	encodeUint64Into(n, repr)
	s, err := SecretFromRepr(repr)
	if err != nil {
		panic(err)
	}
	return s
}

func newTestTree(t *testing.T, nLayerSlots int) *RatchetTree {
	t.Helper()
	pool, err := newTestPool(nLayerSlots, 512)
	if err != nil {
		t.Fatalf("newTestPool: %v", err)
	}
	tree, err := NewRatchetTree(pool)
	if err != nil {
		t.Fatalf("NewRatchetTree: %v", err)
	}
	return tree
}

func commitInsert(t *testing.T, tree *RatchetTree, k Key) Key {
	t.Helper()
	branch, err := tree.Insert(k)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	root, err := tree.Commit(branch)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return root
}

// TestS1TwoLeafAgreement is scenario S1: two-leaf DH agreement.
func TestS1TwoLeafAgreement(t *testing.T) {
	tree := newTestTree(t, 8)

	a := secretFromUint64(2)
	b := secretFromUint64(3)

	commitInsert(t, tree, KeyFromSecret(a))
	commitInsert(t, tree, KeyFromSecret(b))

	if tree.Height() != 1 {
		t.Fatalf("Height() = %d, want 1", tree.Height())
	}
	if tree.GetNextIndex() != 3 {
		t.Fatalf("GetNextIndex() = %d, want 3", tree.GetNextIndex())
	}

	got, err := tree.Get(1, 1)
	if err != nil {
		t.Fatalf("Get(1,1): %v", err)
	}

	want, err := a.DiffieHellman(b.PublicKey())
	if err != nil {
		t.Fatalf("a.DiffieHellman(b.pk): %v", err)
	}
	if !got.PublicKey().Equal(basePointMul(want)) {
		t.Fatalf("root key does not match A.dh(B.pk)")
	}
}

// buildSevenLeafTree inserts A..G (scenario S2's fixed shape) and
// returns the tree plus each leaf's Secret in insertion order.
func buildSevenLeafTree(t *testing.T) (*RatchetTree, []*Secret) {
	t.Helper()
	tree := newTestTree(t, 8)

	secrets := make([]*Secret, 7)
	for i := range secrets {
		secrets[i] = secretFromUint64(uint64(i + 2))
		commitInsert(t, tree, KeyFromSecret(secrets[i]))
	}
	return tree, secrets
}

func dh(t *testing.T, k1, k2 Key) Key {
	t.Helper()
	out, err := k1.DiffieHellman(k2)
	if err != nil {
		t.Fatalf("DiffieHellman: %v", err)
	}
	return out
}

// TestS2SevenLeafCanonicalShape is scenario S2.
func TestS2SevenLeafCanonicalShape(t *testing.T) {
	tree, secrets := buildSevenLeafTree(t)

	if tree.Height() != 3 {
		t.Fatalf("Height() = %d, want 3", tree.Height())
	}
	wantLens := map[int]int{0: 8, 1: 5, 2: 3, 3: 2}
	for h, want := range wantLens {
		got, err := tree.GetLayerLen(h)
		if err != nil {
			t.Fatalf("GetLayerLen(%d): %v", h, err)
		}
		if got != want {
			t.Fatalf("|layer[%d]| = %d, want %d", h, got, want)
		}
	}

	a, b, c, d, e, f, g := KeyFromSecret(secrets[0]), KeyFromSecret(secrets[1]), KeyFromSecret(secrets[2]),
		KeyFromSecret(secrets[3]), KeyFromSecret(secrets[4]), KeyFromSecret(secrets[5]), KeyFromSecret(secrets[6])

	wantRoot := dh(t, dh(t, dh(t, a, b), dh(t, c, d)), dh(t, dh(t, e, f), g))

	gotRoot, err := tree.Get(3, 1)
	if err != nil {
		t.Fatalf("Get(3,1): %v", err)
	}
	if !gotRoot.Equal(wantRoot) {
		t.Fatalf("root does not match DH(DH(DH(A,B),DH(C,D)),DH(DH(E,F),G))")
	}
}

// TestS3RemoveFromSevenLeaf is scenario S3: remove D from the S2 tree.
func TestS3RemoveFromSevenLeaf(t *testing.T) {
	tree, secrets := buildSevenLeafTree(t)

	branch, err := tree.Remove(4)
	if err != nil {
		t.Fatalf("Remove(4): %v", err)
	}
	if _, err := tree.Commit(branch); err != nil {
		t.Fatalf("Commit(remove): %v", err)
	}

	gotTomb, err := tree.Get(0, 4)
	if err != nil {
		t.Fatalf("Get(0,4): %v", err)
	}
	if !gotTomb.IsTombstone() {
		t.Fatalf("Get(0,4) should be the tombstone after removal")
	}

	a, c, e, f, g := KeyFromSecret(secrets[0]), KeyFromSecret(secrets[2]), KeyFromSecret(secrets[4]),
		KeyFromSecret(secrets[5]), KeyFromSecret(secrets[6])
	b := KeyFromSecret(secrets[1])

	wantRoot := dh(t, dh(t, dh(t, a, b), c), dh(t, dh(t, e, f), g))
	gotRoot, err := tree.Get(3, 1)
	if err != nil {
		t.Fatalf("Get(3,1): %v", err)
	}
	if !gotRoot.Equal(wantRoot) {
		t.Fatalf("root after removing D should carry C up unchanged")
	}
}

// TestS4OrphanReuse is scenario S4: inserting after a removal reuses
// the vacated index instead of allocating a fresh one.
func TestS4OrphanReuse(t *testing.T) {
	tree, _ := buildSevenLeafTree(t)

	branch, err := tree.Remove(4)
	if err != nil {
		t.Fatalf("Remove(4): %v", err)
	}
	if _, err := tree.Commit(branch); err != nil {
		t.Fatalf("Commit(remove): %v", err)
	}

	nextBefore := tree.GetNextIndex()
	if nextBefore != 4 {
		t.Fatalf("GetNextIndex() after removal = %d, want 4 (orphan reuse)", nextBefore)
	}

	k := secretFromUint64(100)
	root := commitInsert(t, tree, KeyFromSecret(k))

	if tree.GetNextIndex() == 4 {
		t.Fatalf("orphan slot should be consumed, not left for the next insert too")
	}
	got, err := tree.Get(0, 4)
	if err != nil {
		t.Fatalf("Get(0,4): %v", err)
	}
	if !got.Equal(KeyFromSecret(k)) {
		t.Fatalf("new leaf was not written into the reused orphan slot")
	}
	if root.IsTombstone() {
		t.Fatalf("root after reinsertion should no longer be a tombstone")
	}
}

// TestS5OutOfMemoryOnCommit is scenario S5: a pool sized too small for
// the branch's required layers must fail at commit, unchanged. Two
// leaves fit in a 5-slot pool (root header, orphan list, scratch, plus
// 2 layer cells); the third leaf's branch needs a 3rd layer cell and
// must be rejected before any layer is touched.
func TestS5OutOfMemoryOnCommit(t *testing.T) {
	tree := newTestTree(t, 5)

	commitInsert(t, tree, KeyFromSecret(secretFromUint64(2)))
	commitInsert(t, tree, KeyFromSecret(secretFromUint64(3)))

	before := tree.Snapshot()

	branch, err := tree.Insert(KeyFromSecret(secretFromUint64(4)))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := tree.Commit(branch); err == nil {
		t.Fatalf("expected OutOfMemory committing against an undersized pool")
	}

	after := tree.Snapshot()
	if len(before.Layers) != len(after.Layers) {
		t.Fatalf("tree layer count changed after a failed commit")
	}
	for h := range before.Layers {
		if len(before.Layers[h]) != len(after.Layers[h]) {
			t.Fatalf("layer %d length changed after a failed commit", h)
		}
	}
}

// TestS6InvalidScalarRejection is scenario S6.
func TestS6InvalidScalarRejection(t *testing.T) {
	var zero [scalarSize]byte
	if _, err := SecretFromRepr(zero[:]); err == nil {
		t.Fatalf("expected InvalidScalar for Secret.from_repr([0;32])")
	}
}

// TestLayerSizeInvariant checks property 5: |layer[h]|-1 = ceil(n/2^h).
func TestLayerSizeInvariant(t *testing.T) {
	tree, _ := buildSevenLeafTree(t)
	n := 7
	for h := 0; h <= tree.Height(); h++ {
		got, err := tree.GetLayerLen(h)
		if err != nil {
			t.Fatalf("GetLayerLen(%d): %v", h, err)
		}
		want := ceilDiv(n, 1<<uint(h)) + 1
		if got != want {
			t.Fatalf("|layer[%d]|-1 = %d, want ceil(%d/2^%d)=%d", h, got-1, n, h, want-1)
		}
	}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// TestInsertAdvancesNextIndex checks property 3: insert-then-commit
// advances GetNextIndex by 1 when no orphans exist.
func TestInsertAdvancesNextIndex(t *testing.T) {
	tree := newTestTree(t, 8)
	before := tree.GetNextIndex()
	commitInsert(t, tree, KeyFromSecret(secretFromUint64(2)))
	if tree.GetNextIndex() != before+1 {
		t.Fatalf("GetNextIndex() = %d, want %d", tree.GetNextIndex(), before+1)
	}
}

// TestTreeRootAgreement checks property 4: two trees built from the
// same ordered leaves produce the same root.
func TestTreeRootAgreement(t *testing.T) {
	secrets := make([]*Secret, 4)
	for i := range secrets {
		secrets[i] = secretFromUint64(uint64(i + 2))
	}

	t1 := newTestTree(t, 8)
	t2 := newTestTree(t, 8)
	for _, s := range secrets {
		commitInsert(t, t1, KeyFromSecret(s))
		commitInsert(t, t2, KeyFromSecret(s))
	}

	r1, err := t1.Get(t1.Height(), 1)
	if err != nil {
		t.Fatalf("t1.Get: %v", err)
	}
	r2, err := t2.Get(t2.Height(), 1)
	if err != nil {
		t.Fatalf("t2.Get: %v", err)
	}
	if !r1.Equal(r2) {
		t.Fatalf("two trees built from the same leaves disagree on their root")
	}
}

// TestAbsencePropagation checks property 8: when a sibling is a
// tombstone, the parent equals the surviving side unchanged.
func TestAbsencePropagation(t *testing.T) {
	tree, secrets := buildSevenLeafTree(t)

	branch, err := tree.Remove(3)
	if err != nil {
		t.Fatalf("Remove(3): %v", err)
	}
	if _, err := tree.Commit(branch); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	gotParent, err := tree.Get(1, 2)
	if err != nil {
		t.Fatalf("Get(1,2): %v", err)
	}
	wantParent := KeyFromSecret(secrets[3]) // D alone, C (index 3) removed
	if !gotParent.Equal(wantParent) {
		t.Fatalf("parent of a tombstoned sibling should equal the surviving child unchanged")
	}
}

// TestIdempotentBranch checks property 7: ratcheting the same state
// twice without committing yields equal branches.
func TestIdempotentBranch(t *testing.T) {
	tree, _ := buildSevenLeafTree(t)

	k := KeyFromSecret(secretFromUint64(99))
	idx := tree.GetNextIndex()

	b1, err := tree.Ratchet(idx, k)
	if err != nil {
		t.Fatalf("Ratchet (1st): %v", err)
	}
	nodes1 := append([]Key(nil), b1.Iter()...)
	b1.Clear()

	b2, err := tree.Ratchet(idx, k)
	if err != nil {
		t.Fatalf("Ratchet (2nd): %v", err)
	}
	nodes2 := b2.Iter()

	if len(nodes1) != len(nodes2) {
		t.Fatalf("branch lengths differ across identical ratchets: %d vs %d", len(nodes1), len(nodes2))
	}
	for i := range nodes1 {
		if !nodes1[i].Equal(nodes2[i]) {
			t.Fatalf("branch entry %d differs across identical ratchets", i)
		}
	}
	b2.Clear()
}

func TestRemoveOutOfRangeIndexFails(t *testing.T) {
	tree, _ := buildSevenLeafTree(t)
	if _, err := tree.Remove(0); err == nil {
		t.Fatalf("expected IndexOutOfRange removing the reserved default slot")
	}
	if _, err := tree.Remove(50); err == nil {
		t.Fatalf("expected IndexOutOfRange removing an index past the leaf layer")
	}
}

func TestBranchTooShortFails(t *testing.T) {
	tree := newTestTree(t, 8)
	for i := 0; i < 7; i++ {
		commitInsert(t, tree, KeyFromSecret(secretFromUint64(uint64(i+2))))
	}

	handle, err := tree.pool.GetMut(2)
	if err != nil {
		t.Fatalf("GetMut(2): %v", err)
	}
	shortBranch := newBranch(handle, tree.GetNextIndex())
	shortBranch.AddNode(KeyFromSecret(secretFromUint64(123)))

	if _, err := tree.Commit(shortBranch); err == nil {
		t.Fatalf("expected BranchTooShort committing a branch shorter than the tree height")
	}
}

func TestSetAndGetAccessors(t *testing.T) {
	tree := newTestTree(t, 8)
	commitInsert(t, tree, KeyFromSecret(secretFromUint64(2)))

	repl := KeyFromSecret(secretFromUint64(77))
	if err := tree.Set(0, 1, repl); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := tree.Get(0, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Equal(repl) {
		t.Fatalf("Set did not take effect")
	}

	if _, err := tree.Get(0, 50); err == nil {
		t.Fatalf("expected IndexOutOfRange")
	}
	if _, err := tree.Get(9, 1); err == nil {
		t.Fatalf("expected NoLayer")
	}
}

func TestInsertMany(t *testing.T) {
	tree := newTestTree(t, 8)
	keys := []Key{
		KeyFromSecret(secretFromUint64(2)),
		KeyFromSecret(secretFromUint64(3)),
		KeyFromSecret(secretFromUint64(4)),
	}
	roots, err := tree.InsertMany(keys)
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}
	if len(roots) != len(keys) {
		t.Fatalf("got %d roots, want %d", len(roots), len(keys))
	}
	if tree.GetNextIndex() != 4 {
		t.Fatalf("GetNextIndex() = %d, want 4", tree.GetNextIndex())
	}
}

func TestRandomSecretsStillAgree(t *testing.T) {
	tree := newTestTree(t, 8)
	a, err := RandomSecret(rand.Reader)
	if err != nil {
		t.Fatalf("RandomSecret: %v", err)
	}
	b, err := RandomSecret(rand.Reader)
	if err != nil {
		t.Fatalf("RandomSecret: %v", err)
	}
	commitInsert(t, tree, KeyFromSecret(a))
	commitInsert(t, tree, KeyFromSecret(b))

	want, err := a.DiffieHellman(b.PublicKey())
	if err != nil {
		t.Fatalf("DiffieHellman: %v", err)
	}
	got, err := tree.Get(1, 1)
	if err != nil {
		t.Fatalf("Get(1,1): %v", err)
	}
	if !got.PublicKey().Equal(basePointMul(want)) {
		t.Fatalf("root does not match expected DH agreement for random secrets")
	}
}

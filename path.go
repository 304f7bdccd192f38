package art

// pathStep is one hop of a root-ward walk: self and sibling are
// layer-local indices at height, siblings are to be combined via DH
// (or absence-propagated) to produce the node at height+1.
type pathStep struct {
	Height  int
	Self    int
	Sibling int
}

// pathIter enumerates a leaf's root-ward path as a sequence of
// pathSteps. It is driven entirely by arithmetic on 1-based
// complete-binary-tree indices; it never touches tree storage.
type pathIter struct {
	curIndex   int
	curHeight  int
	treeHeight int
}

// newPathIter starts a walk from leaf index i0 against a tree whose
// current height is treeHeight.
func newPathIter(i0, treeHeight int) *pathIter {
	return &pathIter{curIndex: i0, curHeight: 0, treeHeight: treeHeight}
}

// siblingOf returns the sibling index of i within its layer:
// sibling(even i) = i-1, sibling(odd i) = i+1.
func siblingOf(i int) int {
	if i%2 == 0 {
		return i - 1
	}
	return i + 1
}

// Next yields the next pathStep, or false once the walk has reached
// the root. The stricter termination form adopted here stops when
// curHeight has passed treeHeight outright, or when curIndex has
// collapsed to the root slot (<2) at or beyond treeHeight.
func (it *pathIter) Next() (pathStep, bool) {
	if it.curHeight > it.treeHeight {
		return pathStep{}, false
	}
	if it.curIndex < 2 && it.curHeight >= it.treeHeight {
		return pathStep{}, false
	}

	step := pathStep{
		Height:  it.curHeight,
		Self:    it.curIndex,
		Sibling: siblingOf(it.curIndex),
	}

	it.curIndex = (it.curIndex + (it.curIndex & 1)) / 2
	it.curHeight++

	return step, true
}

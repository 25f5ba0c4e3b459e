package bptree

// findNextNonLeafChild selects the child pointer an internal node descends
// into for key. Equal keys descend into the right child of a separator
// equal to the key, giving keys < sep on the left and keys >= sep on the
// right, per the separator invariant.
func findNextNonLeafChild(node internalView, key int32) PageId {
	j := node.presentChildCount() - 1
	for j > 0 && node.key(j-1) >= key {
		j--
	}
	return node.pageNo(j)
}

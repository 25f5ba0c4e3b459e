package bptree

// promotedEntry is the {new_sibling_pid, separator_key} pair a split hands
// up to its parent. It is returned by value — never through an output
// parameter referencing a stack-local, which is unsafe once the callee has
// returned.
type promotedEntry struct {
	pageId PageId
	key    int32
}

// insertLeaf places (key, rid) into a non-full leaf, preserving ascending
// key order. Equal keys are placed after any existing entries with the same
// key — new entries break ties by going to the right.
func insertLeaf(leaf leafView, key int32, rid RecordId) {
	n := leaf.presentCount()
	i := n
	for i > 0 && leaf.key(i-1) > key {
		leaf.setKey(i, leaf.key(i-1))
		leaf.setRid(i, leaf.rid(i-1))
		i--
	}
	leaf.setKey(i, key)
	leaf.setRid(i, rid)
}

// insertInternal places a new separator/child pair into a non-full internal
// node. The new child becomes the right-hand child of the new separator.
func insertInternal(node internalView, childPage PageId, key int32) {
	j := node.presentChildCount() - 1
	i := j
	for i > 0 && node.key(i-1) > key {
		node.setKey(i, node.key(i-1))
		node.setPageNo(i+1, node.pageNo(i))
		i--
	}
	node.setKey(i, key)
	node.setPageNo(i+1, childPage)
}

// splitLeaf splits a full leaf, inserting (newKey, newRid) into whichever
// half it belongs to, and returns the promoted separator.
func splitLeaf(bm BufferManager, oldPage *Page, newKey int32, newRid RecordId) (promotedEntry, error) {
	newPage, err := bm.AllocPage()
	if err != nil {
		return promotedEntry{}, err
	}
	initLeaf(newPage)

	old := asLeaf(oldPage)
	newLeaf := asLeaf(newPage)

	const L = LeafOccupancy
	mid := L / 2
	if L%2 == 1 && newKey > old.key(mid) {
		mid++
	}

	for i := mid; i < L; i++ {
		newLeaf.setKey(i-mid, old.key(i))
		newLeaf.setRid(i-mid, old.rid(i))
		old.clearEntry(i)
	}

	if newKey > old.key(mid-1) {
		insertLeaf(newLeaf, newKey, newRid)
	} else {
		insertLeaf(old, newKey, newRid)
	}

	newLeaf.setRightSib(old.rightSib())
	old.setRightSib(newPage.ID)

	return promotedEntry{pageId: newPage.ID, key: newLeaf.key(0)}, nil
}

// splitInternal splits a full internal node, inserting the incoming
// child/key pair into whichever half it belongs to, and returns the
// promoted separator. old.level is copied onto the new sibling.
func splitInternal(bm BufferManager, oldPage *Page, incomingChild PageId, incomingKey int32) (promotedEntry, error) {
	old := asInternal(oldPage)

	const N = NodeOccupancy
	mid := N / 2
	var pushUpIndex int
	if N%2 == 0 {
		if incomingKey < old.key(mid) {
			pushUpIndex = mid - 1
		} else {
			pushUpIndex = mid
		}
	} else {
		pushUpIndex = mid
	}

	newPage, err := bm.AllocPage()
	if err != nil {
		return promotedEntry{}, err
	}
	initInternal(newPage, old.level())
	newNode := asInternal(newPage)

	promotedKey := old.key(pushUpIndex)

	// Everything strictly right of the promoted separator — its right
	// child onward — moves to new_node. old.pageNo(pushUpIndex), the
	// promoted separator's left child, stays in old untouched.
	start := pushUpIndex + 1
	newCount := N - start
	for i := 0; i < newCount; i++ {
		newNode.setKey(i, old.key(start+i))
		newNode.setPageNo(i, old.pageNo(start+i))
		old.clearKey(start + i)
		old.clearPageNo(start + i)
	}
	newNode.setPageNo(newCount, old.pageNo(N))
	old.clearPageNo(N)
	old.clearKey(pushUpIndex)

	if incomingKey < newNode.key(0) {
		insertInternal(old, incomingChild, incomingKey)
	} else {
		insertInternal(newNode, incomingChild, incomingKey)
	}

	return promotedEntry{pageId: newPage.ID, key: promotedKey}, nil
}

package bptree

// InsertEntry inserts (key, rid) into the tree rooted at idx.rootPageNum.
// The root is a leaf iff it is still the original leaf allocated at
// construction — once the root becomes an internal node it never reverts.
func (idx *Index) InsertEntry(key int32, rid RecordId) error {
	isLeaf := idx.rootPageNum == idx.initialRootPageNo
	_, err := idx.insert(idx.rootPageNum, isLeaf, key, rid)
	return err
}

// insert descends into pid (a leaf iff isLeaf), inserting (key, rid), and
// returns the promoted separator if pid's subtree split — nil if it did
// not. Root replacement, when a split escapes the current root, is handled
// here rather than by the caller, since only this frame knows whether pid
// is presently the root.
func (idx *Index) insert(pid PageId, isLeaf bool, key int32, rid RecordId) (*promotedEntry, error) {
	pg, err := idx.bm.ReadPage(pid)
	if err != nil {
		return nil, err
	}

	if isLeaf {
		return idx.insertLeafCase(pg, pid, key, rid)
	}
	return idx.insertInternalCase(pg, pid, key, rid)
}

func (idx *Index) insertLeafCase(pg *Page, pid PageId, key int32, rid RecordId) (*promotedEntry, error) {
	leaf := asLeaf(pg)

	if !leaf.isFull() {
		insertLeaf(leaf, key, rid)
		if err := idx.bm.UnpinPage(pid, true); err != nil {
			return nil, err
		}
		return nil, nil
	}

	promoted, err := splitLeaf(idx.bm, pg, key, rid)
	if err != nil {
		_ = idx.bm.UnpinPage(pid, false)
		return nil, err
	}
	if err := idx.bm.UnpinPage(pid, true); err != nil {
		return nil, err
	}
	if err := idx.bm.UnpinPage(promoted.pageId, true); err != nil {
		return nil, err
	}

	if pid == idx.rootPageNum {
		// The root just split and it was a leaf — the replaced child is the
		// original leaf, so the new root's level is 1.
		if err := idx.replaceRoot(pid, promoted, true); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &promoted, nil
}

func (idx *Index) insertInternalCase(pg *Page, pid PageId, key int32, rid RecordId) (*promotedEntry, error) {
	node := asInternal(pg)
	childIsLeaf := node.level() == 1
	childPid := findNextNonLeafChild(node, key)

	promoted, err := idx.insert(childPid, childIsLeaf, key, rid)
	if err != nil {
		_ = idx.bm.UnpinPage(pid, false)
		return nil, err
	}
	if promoted == nil {
		if err := idx.bm.UnpinPage(pid, false); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if !node.isFull() {
		insertInternal(node, promoted.pageId, promoted.key)
		if err := idx.bm.UnpinPage(pid, true); err != nil {
			return nil, err
		}
		return nil, nil
	}

	newPromoted, err := splitInternal(idx.bm, pg, promoted.pageId, promoted.key)
	if err != nil {
		_ = idx.bm.UnpinPage(pid, false)
		return nil, err
	}
	if err := idx.bm.UnpinPage(pid, true); err != nil {
		return nil, err
	}
	if err := idx.bm.UnpinPage(newPromoted.pageId, true); err != nil {
		return nil, err
	}

	if pid == idx.rootPageNum {
		// The replaced child is an internal node, so the new root's
		// children are not leaves: level 0.
		if err := idx.replaceRoot(pid, newPromoted, false); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &newPromoted, nil
}

// replaceRoot allocates a new internal root over oldRootPid and promoted's
// sibling, and repoints the meta page at it. replacedIsLeaf is passed down
// by the caller rather than re-derived from rootPageNum, which this function
// itself overwrites with the new root.
func (idx *Index) replaceRoot(oldRootPid PageId, promoted promotedEntry, replacedIsLeaf bool) error {
	newRootPg, err := idx.bm.AllocPage()
	if err != nil {
		return err
	}

	level := int32(0)
	if replacedIsLeaf {
		level = 1
	}
	initInternal(newRootPg, level)
	newRoot := asInternal(newRootPg)
	newRoot.setPageNo(0, oldRootPid)
	newRoot.setPageNo(1, promoted.pageId)
	newRoot.setKey(0, promoted.key)

	idx.rootPageNum = newRootPg.ID

	metaPg, err := idx.bm.ReadPage(idx.metaPid)
	if err != nil {
		_ = idx.bm.UnpinPage(newRootPg.ID, true)
		return err
	}
	meta := decodeMeta(metaPg.Data)
	meta.RootPageNo = idx.rootPageNum
	if encErr := encodeMeta(metaPg.Data, meta); encErr != nil {
		_ = idx.bm.UnpinPage(idx.metaPid, false)
		_ = idx.bm.UnpinPage(newRootPg.ID, true)
		return encErr
	}
	// root_page_no changed, so the meta page is unpinned dirty unconditionally
	// on this path.
	if err := idx.bm.UnpinPage(idx.metaPid, true); err != nil {
		_ = idx.bm.UnpinPage(newRootPg.ID, true)
		return err
	}

	return idx.bm.UnpinPage(newRootPg.ID, true)
}

package bptree

// LeafEntry is one present (key, RID) pair, as yielded by a full
// left-to-right leaf-chain walk.
type LeafEntry struct {
	Key int32
	Rid RecordId
}

// WalkLeaves descends to the leftmost leaf — always slot 0, at every level,
// regardless of key — and walks the sibling chain in ascending key order,
// invoking fn with every present entry. This is independent of
// StartScan/ScanNext and backs both diagnostic tooling and the reachability
// and count-law test properties.
func (idx *Index) WalkLeaves(fn func(LeafEntry)) error {
	pid := idx.rootPageNum
	if pid != idx.initialRootPageNo {
		for {
			pg, err := idx.bm.ReadPage(pid)
			if err != nil {
				return err
			}
			node := asInternal(pg)
			level := node.level()
			child := node.pageNo(0)
			if err := idx.bm.UnpinPage(pid, false); err != nil {
				return err
			}
			pid = child
			if level == 1 {
				break
			}
		}
	}

	for pid != 0 {
		pg, err := idx.bm.ReadPage(pid)
		if err != nil {
			return err
		}
		leaf := asLeaf(pg)
		n := leaf.presentCount()
		for i := 0; i < n; i++ {
			fn(LeafEntry{Key: leaf.key(i), Rid: leaf.rid(i)})
		}
		next := leaf.rightSib()
		if err := idx.bm.UnpinPage(pid, false); err != nil {
			return err
		}
		pid = next
	}
	return nil
}

// Meta returns the index's current meta page contents, for diagnostic
// tooling that wants to print relation name, attribute offset, and root.
func (idx *Index) Meta() (IndexMetaPage, error) {
	pg, err := idx.bm.ReadPage(idx.metaPid)
	if err != nil {
		return IndexMetaPage{}, err
	}
	meta := decodeMeta(pg.Data)
	if err := idx.bm.UnpinPage(idx.metaPid, false); err != nil {
		return IndexMetaPage{}, err
	}
	return meta, nil
}

package bptree

import "encoding/binary"

// Index is one open B+Tree secondary index: the in-memory cursor state and
// root bookkeeping layered over a caller-supplied BufferManager. Nothing
// here is itself persistent beyond what the meta, leaf, and internal pages
// already carry — Index can be discarded and rebuilt from the meta page at
// any time.
type Index struct {
	bm      BufferManager
	metaPid PageId

	rootPageNum       PageId
	initialRootPageNo PageId

	scan scanState
}

// Open opens an index whose meta page is metaPid. When isNew is false, the
// meta page is read and validated against relationName/attrByteOffset/
// attrType, failing BadIndexInfo on a mismatch. When isNew is true, metaPid
// must already be a freshly allocated page whose allocation pin the caller
// has released (the caller's File contract having just created the backing
// file); Open pins it itself while writing it, and writes an empty
// tree into it and, if scanner is non-nil, bulk-loads every tuple the
// scanner yields before flushing the file.
//
// Deciding isNew and resolving metaPid is the File contract's job (§6) —
// out of scope for this core, so Open takes both as parameters rather than
// probing the buffer manager itself.
func Open(bm BufferManager, metaPid PageId, isNew bool, relationName string, attrByteOffset int32, attrType AttrType, scanner RelationScanner) (*Index, error) {
	idx := &Index{bm: bm, metaPid: metaPid}

	if isNew {
		if err := idx.create(relationName, attrByteOffset, attrType, scanner); err != nil {
			return nil, err
		}
		return idx, nil
	}

	metaPg, err := bm.ReadPage(metaPid)
	if err != nil {
		return nil, err
	}
	meta := decodeMeta(metaPg.Data)
	if err := bm.UnpinPage(metaPid, false); err != nil {
		return nil, err
	}

	if meta.RelationName != relationName || meta.AttrByteOffset != attrByteOffset || meta.AttrType != attrType {
		return nil, newError(BadIndexInfo, "meta {%s,%d,%d} does not match requested {%s,%d,%d}",
			meta.RelationName, meta.AttrByteOffset, meta.AttrType, relationName, attrByteOffset, attrType)
	}

	idx.rootPageNum = meta.RootPageNo
	idx.initialRootPageNo = meta.InitialRootPageNo
	return idx, nil
}

// create builds an empty one-leaf tree, records it in the meta page (pinned
// and unpinned here), and, when scanner is non-nil, inserts every tuple it
// yields.
func (idx *Index) create(relationName string, attrByteOffset int32, attrType AttrType, scanner RelationScanner) error {
	rootPg, err := idx.bm.AllocPage()
	if err != nil {
		return err
	}
	initLeaf(rootPg)
	idx.rootPageNum = rootPg.ID
	idx.initialRootPageNo = rootPg.ID
	if err := idx.bm.UnpinPage(rootPg.ID, true); err != nil {
		return err
	}

	metaPg, err := idx.bm.ReadPage(idx.metaPid)
	if err != nil {
		return err
	}
	meta := IndexMetaPage{
		RelationName:      relationName,
		AttrByteOffset:    attrByteOffset,
		AttrType:          attrType,
		RootPageNo:        idx.rootPageNum,
		InitialRootPageNo: idx.initialRootPageNo,
	}
	if err := encodeMeta(metaPg.Data, meta); err != nil {
		_ = idx.bm.UnpinPage(idx.metaPid, false)
		return err
	}
	if err := idx.bm.UnpinPage(idx.metaPid, true); err != nil {
		return err
	}

	if scanner != nil {
		for {
			record, rid, ok, err := scanner.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			key := decodeInt32Key(record, attrByteOffset)
			if err := idx.InsertEntry(key, rid); err != nil {
				return err
			}
		}
	}

	return idx.bm.FlushFile()
}

// decodeInt32Key reads the little-endian int32 at offset within record — the
// raw tuple bytes the relation scanner yields.
func decodeInt32Key(record []byte, offset int32) int32 {
	return int32(binary.LittleEndian.Uint32(record[offset : offset+4]))
}

// Close ends any active scan and flushes the index file. Per §7, Close
// (standing in for the source's fallible-but-ignored destructor) still
// surfaces a flush failure to the caller rather than swallowing it —
// callers that truly want best-effort semantics can ignore the error.
func (idx *Index) Close() error {
	if idx.scan.active {
		_ = idx.EndScan()
	}
	return idx.bm.FlushFile()
}

// RootPageNo exposes the meta truth invariant's counterpart for tests: the
// in-memory root the index believes is current.
func (idx *Index) RootPageNo() PageId { return idx.rootPageNum }

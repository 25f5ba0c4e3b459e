// Package index wires the concrete storage and catalog layers into
// bptree.BufferManager / bptree.RelationScanner instances, and resolves
// relation/column names to an open bptree.Index — the part of the system
// that the core itself (package bptree) treats as an out-of-scope
// collaborator.
package index

import (
	"fmt"

	"btreeidx/bptree"
	"btreeidx/storage/bufferpool"
	"btreeidx/types"
)

// fileBufferManager adapts one (bufferpool, fileID) pair — the pages of a
// single index file — into bptree.BufferManager. PageIds are the buffer
// pool's global page ids, unchanged.
type fileBufferManager struct {
	bp     *bufferpool.BufferPool
	fileID uint32
}

func newFileBufferManager(bp *bufferpool.BufferPool, fileID uint32) *fileBufferManager {
	return &fileBufferManager{bp: bp, fileID: fileID}
}

func (f *fileBufferManager) ReadPage(pid bptree.PageId) (*bptree.Page, error) {
	pg, err := f.bp.FetchPage(int64(pid))
	if err != nil {
		return nil, fmt.Errorf("index file %d: read page %d: %w", f.fileID, pid, err)
	}
	return &bptree.Page{ID: pid, Data: pg.Data}, nil
}

func (f *fileBufferManager) AllocPage() (*bptree.Page, error) {
	pg, err := f.bp.NewPage(f.fileID, types.PageTypeIndexNode)
	if err != nil {
		return nil, fmt.Errorf("index file %d: alloc page: %w", f.fileID, err)
	}
	return &bptree.Page{ID: bptree.PageId(pg.ID), Data: pg.Data}, nil
}

func (f *fileBufferManager) UnpinPage(pid bptree.PageId, dirty bool) error {
	if err := f.bp.UnpinPage(int64(pid), dirty); err != nil {
		return fmt.Errorf("index file %d: unpin page %d: %w", f.fileID, pid, err)
	}
	return nil
}

func (f *fileBufferManager) FlushFile() error {
	if err := f.bp.FlushFilePages(f.fileID); err != nil {
		return fmt.Errorf("index file %d: flush: %w", f.fileID, err)
	}
	return nil
}

// heapRelationScanner adapts storage/heap.Scanner's (bytes, RowPointer)
// pairs into bptree.RecordId. RowPointer.PageNumber is the heap file's
// local page number and, for the very first page of a freshly created heap
// file, is 0 — which collides with RecordId's "empty slot" sentinel (no
// valid RecordId may name heap page 0). The scanner shifts every emitted
// page number up by one so no RID the index ever stores is 0;
// recordIdToRowPointer shifts back when a caller resolves a RID to a row.
type heapRelationScanner struct {
	src heapScanner
}

// heapScanner is the subset of storage/heap.Scanner's API this package
// depends on, named locally so this file doesn't import storage/heap and
// create an import cycle should heap ever need bptree's error kinds.
type heapScanner interface {
	Next() ([]byte, types.RowPointer, bool, error)
}

func newHeapRelationScanner(src heapScanner) *heapRelationScanner {
	return &heapRelationScanner{src: src}
}

func (s *heapRelationScanner) Next() ([]byte, bptree.RecordId, bool, error) {
	record, rp, ok, err := s.src.Next()
	if err != nil || !ok {
		return nil, bptree.RecordId{}, ok, err
	}
	return record, rowPointerToRecordId(rp), true, nil
}

func rowPointerToRecordId(rp types.RowPointer) bptree.RecordId {
	return bptree.RecordId{PageNumber: rp.PageNumber + 1, SlotNumber: rp.SlotIndex}
}

func recordIdToRowPointer(rid bptree.RecordId, fileID uint32) types.RowPointer {
	return types.RowPointer{FileID: fileID, PageNumber: rid.PageNumber - 1, SlotIndex: rid.SlotNumber}
}

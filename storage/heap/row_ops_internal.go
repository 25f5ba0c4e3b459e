package heap

import (
	"btreeidx/types"
	"fmt"

	"github.com/sirupsen/logrus"
)

// this file contains internal functions, they do not contain locks.
// but it is to be ensured that the external functions for each should contain locks to avoid cirtical section

// insertRow inserts a row into the heap file and returns a RowPointer.
func (hf *HeapFile) insertRow(rowData []byte) (*types.RowPointer, error) {

	rowLen := uint16(len(rowData))
	maxRowSize := uint16(types.PageSize - HeapHeaderSize - SlotSize)
	if rowLen > maxRowSize {
		return nil, fmt.Errorf("row too large: %d bytes (max: %d)", rowLen, maxRowSize)
	}

	for {
		pg, localPageNum, err := hf.findSuitablePage(rowLen)
		if err != nil {
			return nil, fmt.Errorf("failed to find suitable page: %w", err)
		}

		pg.Lock()

		// Double-check space after acquiring lock — another goroutine may
		// have filled this page between findSuitablePage and Lock.
		if FreeSpace(pg) < int(rowLen) {
			pg.Unlock()
			hf.bufferPool.UnpinPage(pg.ID, false)
			continue // retry — findSuitablePage will allocate a new page
		}

		slotIndex, err := InsertRecord(pg, rowData)
		if err != nil {
			// InsertRecord only fails if space check is wrong — shouldn't happen
			// after FreeSpace check above, but handle it cleanly.
			pg.Unlock()
			hf.bufferPool.UnpinPage(pg.ID, false)
			return nil, fmt.Errorf("failed to insert record into page: %w", err)
		}

		pg.Unlock()
		hf.bufferPool.UnpinPage(pg.ID, true) // unpin but dont flush it yet

		logrus.WithFields(logrus.Fields{
			"component": "heap",
			"fileID":    hf.fileID,
			"page":      localPageNum,
			"slot":      slotIndex,
		}).Debug("insert")

		return &types.RowPointer{
			FileID:     hf.fileID,
			PageNumber: localPageNum,
			SlotIndex:  slotIndex,
		}, nil
	}
}

func (hf *HeapFile) getRow(ptr *types.RowPointer) ([]byte, error) {

	globalPageID, err := hf.diskManager.GetGlobalPageID(hf.fileID, int64(ptr.PageNumber))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve page %d: %w", ptr.PageNumber, err)
	}

	pg, err := hf.bufferPool.FetchPage(globalPageID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", globalPageID, err)
	}
	defer hf.bufferPool.UnpinPage(pg.ID, false)

	pg.RLock()
	defer pg.RUnlock()

	return GetRecord(pg, ptr.SlotIndex)
}

// GetAllRowPointers returns all valid row pointers in the heap file (full table scan).
func (hf *HeapFile) GetAllRowPointers() []types.RowPointer {

	var result []types.RowPointer

	fd, err := hf.diskManager.GetFileDescriptor(hf.fileID)
	if err != nil {
		return result
	}

	totalPages := fd.NextPageID

	for localPageNum := int64(0); localPageNum < totalPages; localPageNum++ {
		globalPageID, err := hf.diskManager.GetGlobalPageID(hf.fileID, localPageNum)
		if err != nil {
			continue
		}

		pg, err := hf.bufferPool.FetchPage(globalPageID)
		if err != nil {
			continue
		}

		pg.RLock()

		// Skip non-heap pages or uninitialized pages.
		if pg.PageType != types.PageTypeHeapData {
			pg.RUnlock()
			hf.bufferPool.UnpinPage(globalPageID, false)
			continue
		}

		slotCount := GetSlotCount(pg)
		for slotIdx := uint16(0); slotIdx < slotCount; slotIdx++ {
			if IsSlotLive(pg, slotIdx) {
				result = append(result, types.RowPointer{
					FileID:     hf.fileID,
					PageNumber: uint32(localPageNum), // ← local
					SlotIndex:  slotIdx,
				})
			}
		}
		pg.RUnlock()
		hf.bufferPool.UnpinPage(globalPageID, false)
	}

	return result
}

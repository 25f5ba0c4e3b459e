package heap

import (
	"btreeidx/types"
	"fmt"
)

/* this file contains external functions for row operations on the heapfile, they will lock the row before calling there internal function
it is to be ensured that the internal functions of these should not contain locks,
otherwise two or more dependent function will get into deadlock
*/

// InsertRow inserts a row into the specified heap file (delegates to HeapFile.insertRow).
func (hfm *HeapFileManager) InsertRow(fileID uint32, rowData []byte) (*types.RowPointer, error) {
	hfm.mu.RLock()
	heapFile, exists := hfm.files[fileID]
	hfm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("heap file %d not found", fileID)
	}

	heapFile.mu.Lock()
	defer heapFile.mu.Unlock()

	return heapFile.insertRow(rowData)
}

// GetRow retrieves a row from the heap file using a RowPointer.
func (hfm *HeapFileManager) GetRow(rp *types.RowPointer) ([]byte, error) {
	if rp == nil {
		return nil, fmt.Errorf("row pointer is nil")
	}

	hfm.mu.RLock()
	heapFile, exists := hfm.files[rp.FileID]
	hfm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("heap file not found")
	}

	heapFile.mu.RLock()
	defer heapFile.mu.RUnlock()

	return heapFile.getRow(rp)
}

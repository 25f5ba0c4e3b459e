package heap

import "btreeidx/types"

// Scanner yields every live row of a heap file in page/slot order. It is the
// concrete RelationScanner the bulk-load path of an index drives on create.
type Scanner struct {
	hf       *HeapFile
	pointers []types.RowPointer
	pos      int
}

// NewScanner snapshots the current set of live row pointers for fileID and
// returns a Scanner over them. The snapshot means rows inserted after the
// scanner is created are not visited — adequate for a one-shot bulk load.
func (hfm *HeapFileManager) NewScanner(fileID uint32) (*Scanner, error) {
	hf, err := hfm.GetHeapFileByID(fileID)
	if err != nil {
		return nil, err
	}
	hf.mu.RLock()
	pointers := hf.GetAllRowPointers()
	hf.mu.RUnlock()

	return &Scanner{hf: hf, pointers: pointers}, nil
}

// Next returns the next (record bytes, RowPointer) pair, or ok=false once the
// scan is exhausted. err is non-nil only on an unexpected read failure.
func (s *Scanner) Next() (record []byte, rp types.RowPointer, ok bool, err error) {
	if s.pos >= len(s.pointers) {
		return nil, types.RowPointer{}, false, nil
	}
	rp = s.pointers[s.pos]
	s.pos++

	s.hf.mu.RLock()
	record, err = s.hf.getRow(&rp)
	s.hf.mu.RUnlock()
	if err != nil {
		return nil, types.RowPointer{}, false, err
	}
	return record, rp, true, nil
}

// Close releases the scanner. The underlying heap file stays open.
func (s *Scanner) Close() error {
	s.pointers = nil
	return nil
}

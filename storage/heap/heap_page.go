package heap

import (
	page "btreeidx/storage/page"
	"encoding/binary"
	"fmt"
)

/*
This file contains standalone functions operating on *page.Page for heap file operations.
All functions take *page.Page as first argument since methods cannot be defined on
types from external packages.

Heap page binary layout (all values little-endian):

	Offset  Size  Field
	──────────────────────────────────────────────────────
	0       8     LSN             uint64  — page sequence counter, first in every page type
	8       1     PageType        uint8   — stamped by DiskManager on write
	9       4     FileID          uint32
	13      4     PageNo          uint32
	17      2     RecordEndPtr    uint16  — first free byte after last record
	19      2     SlotRegionStart uint16  — first byte of slot directory
	21      2     NumRows         uint16  — live records
	23      2     NumRowsFree     uint16  — tombstone slots
	25      2     IsPageFull      uint16  — 1 when no usable space remains
	27      2     SlotCount       uint16  — total slot entries (live + tombstone)
	──────────────────────────────────────────────────────
	29            HeapHeaderSize

LSN is the first 8 bytes of every heap page, so the BufferPool can read
pg.LSN without knowing the rest of the layout. B+Tree index pages carry no
LSN or other tag byte at all — their layout (meta/leaf/internal) fills the
whole page, per the index's own page codec.

Standard slotted-page layout:

	[ header 29B ][ records → ][ free space ][ ← slot dir ]
	0            29            ^             ^             4096
	                           RecordEndPtr  SlotRegionStart

	Records grow FORWARD  from HeapHeaderSize.
	Slot directory grows BACKWARD from PageSize.
	Free space is the gap between RecordEndPtr and SlotRegionStart.

A slot entry is 4 bytes: [ Offset uint16 ][ Length uint16 ]

	Offset  — absolute byte offset from start of page to the record data.
	Length  — byte length of the record (0 = tombstone / deleted).

Slot i lives at:  PageSize - (i+1)*SlotSize
This means slot 0 is at bytes 4092-4095, slot 1 at 4088-4091, etc.
*/
const (
	heapOffLSN             = 0  // uint64 (8) ← LSN first
	heapOffPageType        = 8  // uint8  (1)
	heapOffFileID          = 9  // uint32 (4)
	heapOffPageNo          = 13 // uint32 (4)
	heapOffRecordEndPtr    = 17 // uint16 (2)
	heapOffSlotRegionStart = 19 // uint16 (2)
	heapOffNumRows         = 21 // uint16 (2)
	heapOffNumRowsFree     = 23 // uint16 (2)
	heapOffIsPageFull      = 25 // uint16 (2)
	heapOffSlotCount       = 27 // uint16 (2)

	// HeapHeaderSize is the fixed header size in bytes.
	// Records start at this offset on a fresh page.
	HeapHeaderSize = 29

	// SlotSize is the byte size of one slot entry: Offset(2) + Length(2).
	SlotSize = 4
)

// ─────────────────────────────────────────────────────────────────────────────
// Initialisation
// ─────────────────────────────────────────────────────────────────────────────

// InitHeapPage stamps a fresh heap-page header into pg.Data.
//
// After this call:
//   - LastAppliedLSN  == 0              (offset 0)
//   - RecordEndPtr    == HeapHeaderSize (records start right after header)
//   - SlotRegionStart == PageSize       (slot dir starts at end of page, empty)
//   - NumRows         == 0
//   - NumRowsFree     == 0
//   - IsPageFull      == 0
//   - SlotCount       == 0
//   - pg.LSN          == 0              (in-memory field kept in sync with Data)
//   - All non-header bytes zeroed

func InitHeapPage(pg *page.Page) {
	// Zero everything after byte 0 so recycled frames are clean; byte 0 is
	// part of the LSN, which is written just below.
	for i := 1; i < page.PageSize; i++ {
		pg.Data[i] = 0
	}

	binary.LittleEndian.PutUint64(pg.Data[heapOffLSN:], 0) // LSN = 0
	binary.LittleEndian.PutUint32(pg.Data[heapOffFileID:], pg.FileID)
	binary.LittleEndian.PutUint32(pg.Data[heapOffPageNo:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffRecordEndPtr:], HeapHeaderSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotRegionStart:], page.PageSize)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRows:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffNumRowsFree:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffIsPageFull:], 0)
	binary.LittleEndian.PutUint16(pg.Data[heapOffSlotCount:], 0)

	pg.LSN = 0
	pg.IsDirty = true
}

// ─────────────────────────────────────────────────────────────────────────────
// Record operations
// ─────────────────────────────────────────────────────────────────────────────

// InsertRecord writes data into the page and returns the slot index.
// The slot index is the local part of a RowPointer (PageID + SlotIdx).
// Returns an error if there is insufficient space — caller must get a new page.
func InsertRecord(pg *page.Page, data []byte) (slotIdx uint16, err error) {
	recordLen := uint16(len(data))
	if recordLen == 0 {
		return 0, fmt.Errorf("InsertRecord: data must not be empty")
	}
	if FreeSpace(pg) < int(recordLen) {
		return 0, fmt.Errorf("InsertRecord: need %d bytes, only %d available",
			recordLen, FreeSpace(pg))
	}

	// Reuse a tombstone slot if one exists — avoids shrinking SlotRegionStart.
	slotIdx = GetSlotCount(pg) // default: new slot
	for i := uint16(0); i < GetSlotCount(pg); i++ {
		if _, l := readSlot(pg, i); l == 0 {
			slotIdx = i
			break
		}
	}

	// Write record data at RecordEndPtr and advance it forward.
	recordOffset := GetRecordEndPtr(pg)
	copy(pg.Data[recordOffset:], data)
	setRecordEndPtr(pg, recordOffset+recordLen)

	// Write the slot entry pointing at the record.
	writeSlot(pg, slotIdx, recordOffset, recordLen)

	// Update header counts.
	if slotIdx == GetSlotCount(pg) {
		// New slot — grow slot directory backward.
		newSlotRegionStart := GetSlotRegionStart(pg) - SlotSize
		setSlotRegionStart(pg, newSlotRegionStart)
		setSlotCount(pg, GetSlotCount(pg)+1)
	} else {
		// Recycled tombstone — one fewer free slot.
		setNumRowsFree(pg, GetNumRowsFree(pg)-1)
	}
	setNumRows(pg, GetNumRows(pg)+1)

	if FreeSpace(pg) <= 0 {
		setIsPageFull(pg, true)
	}

	pg.IsDirty = true
	return slotIdx, nil
}

// GetRecord returns a copy of the record at slotIdx.
func GetRecord(pg *page.Page, slotIdx uint16) ([]byte, error) {
	if slotIdx >= GetSlotCount(pg) {
		return nil, fmt.Errorf("GetRecord: slot %d out of range (count=%d)",
			slotIdx, GetSlotCount(pg))
	}
	offset, length := readSlot(pg, slotIdx)
	if length == 0 {
		return nil, fmt.Errorf("GetRecord: slot %d is a tombstone", slotIdx)
	}
	out := make([]byte, length)
	copy(out, pg.Data[offset:offset+length])
	return out, nil
}


package bptree

import "encoding/binary"

const (
	keySize    = 4  // int32
	ridSize    = 6  // RecordId: uint32 PageNumber + uint16 SlotNumber
	pageIdSize = 8  // int64 PageId
)

// LeafOccupancy (L) is the largest number of key/RID pairs that fit in one
// page alongside the trailing right-sibling pointer:
//
//	L*(keySize+ridSize) + pageIdSize <= PageSize
const LeafOccupancy = (PageSize - pageIdSize) / (keySize + ridSize)

// Leaf layout:
//
//	[0, L*keySize)                  key_array, int32 little-endian
//	[L*keySize, L*(keySize+ridSize)) rid_array, packed RecordId
//	last pageIdSize bytes           right_sib_page_no
const (
	leafKeysOff = 0
	leafRidsOff = leafKeysOff + LeafOccupancy*keySize
)

func leafRightSibOff() int { return PageSize - pageIdSize }

// leafView interprets a page's bytes as a LeafNode. It is a thin accessor,
// not a copy — writes go straight to page.Data.
type leafView struct{ data []byte }

func asLeaf(pg *Page) leafView { return leafView{data: pg.Data} }

func (l leafView) key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(l.data[leafKeysOff+i*keySize:]))
}

func (l leafView) setKey(i int, k int32) {
	binary.LittleEndian.PutUint32(l.data[leafKeysOff+i*keySize:], uint32(k))
}

func (l leafView) rid(i int) RecordId {
	off := leafRidsOff + i*ridSize
	return RecordId{
		PageNumber: binary.LittleEndian.Uint32(l.data[off:]),
		SlotNumber: binary.LittleEndian.Uint16(l.data[off+4:]),
	}
}

func (l leafView) setRid(i int, r RecordId) {
	off := leafRidsOff + i*ridSize
	binary.LittleEndian.PutUint32(l.data[off:], r.PageNumber)
	binary.LittleEndian.PutUint16(l.data[off+4:], r.SlotNumber)
}

func (l leafView) clearEntry(i int) {
	l.setKey(i, 0)
	l.setRid(i, RecordId{})
}

func (l leafView) rightSib() PageId {
	return PageId(int64(binary.LittleEndian.Uint64(l.data[leafRightSibOff():])))
}

func (l leafView) setRightSib(pid PageId) {
	binary.LittleEndian.PutUint64(l.data[leafRightSibOff():], uint64(pid))
}

// presentCount returns the number of occupied entries. Present slots form a
// prefix — no holes — so this is the first index whose RID is empty.
func (l leafView) presentCount() int {
	for i := 0; i < LeafOccupancy; i++ {
		if l.rid(i).empty() {
			return i
		}
	}
	return LeafOccupancy
}

func (l leafView) isFull() bool {
	return !l.rid(LeafOccupancy - 1).empty()
}

// initLeaf zeroes a fresh page into an empty leaf (no entries, no sibling).
func initLeaf(pg *Page) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
}

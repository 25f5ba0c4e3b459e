package bptree

import "encoding/binary"

// NodeOccupancy (N) is the largest number of separator keys an internal page
// holds, with N+1 child pointers:
//
//	keySize + pageIdSize + N*(keySize+pageIdSize) <= PageSize
const NodeOccupancy = PageSize/(keySize+pageIdSize) - 1

// Internal layout:
//
//	[0, 4)                                level, int32 (1 if children are leaves, 0 otherwise)
//	[4, 4+(N+1)*pageIdSize)                page_no_array[N+1]
//	[4+(N+1)*pageIdSize, ... )             key_array[N]
const (
	internalLevelOff   = 0
	internalPageNosOff = internalLevelOff + 4
	internalKeysOff    = internalPageNosOff + (NodeOccupancy+1)*pageIdSize
)

type internalView struct{ data []byte }

func asInternal(pg *Page) internalView { return internalView{data: pg.Data} }

func (n internalView) level() int32 {
	return int32(binary.LittleEndian.Uint32(n.data[internalLevelOff:]))
}

func (n internalView) setLevel(l int32) {
	binary.LittleEndian.PutUint32(n.data[internalLevelOff:], uint32(l))
}

func (n internalView) key(i int) int32 {
	return int32(binary.LittleEndian.Uint32(n.data[internalKeysOff+i*keySize:]))
}

func (n internalView) setKey(i int, k int32) {
	binary.LittleEndian.PutUint32(n.data[internalKeysOff+i*keySize:], uint32(k))
}

func (n internalView) clearKey(i int) { n.setKey(i, 0) }

func (n internalView) pageNo(i int) PageId {
	return PageId(int64(binary.LittleEndian.Uint64(n.data[internalPageNosOff+i*pageIdSize:])))
}

func (n internalView) setPageNo(i int, pid PageId) {
	binary.LittleEndian.PutUint64(n.data[internalPageNosOff+i*pageIdSize:], uint64(pid))
}

func (n internalView) clearPageNo(i int) { n.setPageNo(i, 0) }

// presentChildCount returns the number of occupied child slots — present
// slots form a prefix of [0, N+1), so this is the first index with an
// absent (zero) PageId.
func (n internalView) presentChildCount() int {
	for i := 0; i <= NodeOccupancy; i++ {
		if n.pageNo(i) == 0 {
			return i
		}
	}
	return NodeOccupancy + 1
}

func (n internalView) isFull() bool {
	return n.pageNo(NodeOccupancy) != 0
}

func initInternal(pg *Page, level int32) {
	for i := range pg.Data {
		pg.Data[i] = 0
	}
	asInternal(pg).setLevel(level)
}

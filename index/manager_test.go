package index

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"btreeidx/bptree"
	"btreeidx/catalog"
	"btreeidx/storage/bufferpool"
	diskmanager "btreeidx/storage/diskmanager"
	"btreeidx/storage/heap"
	"btreeidx/types"

	"github.com/stretchr/testify/require"
)

func encodeInt32LE(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

// testHarness wires the real catalog, heap, buffer pool and disk manager
// stack together under a throwaway directory, mirroring the collaborators
// a running database process hands to Manager.
type testHarness struct {
	t       *testing.T
	cat     *catalog.CatalogManager
	heapMgr *heap.HeapFileManager
	bp      *bufferpool.BufferPool
	dm      *diskmanager.DiskManager
	mgr     *Manager
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	root := t.TempDir()

	cat, err := catalog.NewCatalogManager(root)
	require.NoError(t, err)
	cat.SetCurrentDatabase("testdb")

	dm := diskmanager.NewDiskManager()
	bp := bufferpool.NewBufferPool(64, dm)

	heapMgr, err := heap.NewHeapFileManager(filepath.Join(root, "heap"), dm, bp)
	require.NoError(t, err)

	mgr := NewManager(filepath.Join(root, "index"), cat, heapMgr, bp, dm)

	return &testHarness{t: t, cat: cat, heapMgr: heapMgr, bp: bp, dm: dm, mgr: mgr}
}

// createTable registers a one-column INT table in the catalog and backs it
// with a heap file, returning the heap file's catalog fileID.
func (h *testHarness) createTable(tableName, columnName string) uint32 {
	h.t.Helper()
	schema := types.TableSchema{
		TableName: tableName,
		Columns:   []types.ColumnDef{{Name: columnName, Type: "INT"}},
	}
	heapFileID, _, err := h.cat.RegisterNewTable(schema)
	require.NoError(h.t, err)
	require.NoError(h.t, h.heapMgr.CreateHeapfile(tableName, int(heapFileID)))
	return heapFileID
}

func (h *testHarness) insertRow(heapFileID uint32, key int32) types.RowPointer {
	h.t.Helper()
	rp, err := h.heapMgr.InsertRow(heapFileID, encodeInt32LE(key))
	require.NoError(h.t, err)
	return *rp
}

func scanAllRows(t *testing.T, idx *bptree.Index, low int32, lowOp bptree.ScanOp, high int32, highOp bptree.ScanOp) []bptree.RecordId {
	t.Helper()
	if err := idx.StartScan(low, lowOp, high, highOp); err != nil {
		require.True(t, bptree.IsKind(err, bptree.NoSuchKeyFound))
		return nil
	}
	var out []bptree.RecordId
	for {
		r, err := idx.ScanNext()
		if bptree.IsKind(err, bptree.IndexScanCompleted) {
			return out
		}
		require.NoError(t, err)
		out = append(out, r)
	}
}

func TestOpenIndex_BulkLoadsExistingRowsOnCreate(t *testing.T) {
	h := newTestHarness(t)
	heapFileID := h.createTable("events", "id")

	for i := int32(1); i <= 50; i++ {
		h.insertRow(heapFileID, i)
	}

	idx, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)

	rids := scanAllRows(t, idx, 1, bptree.GTE, 50, bptree.LTE)
	require.Len(t, rids, 50)

	for i, rid := range rids {
		row, err := h.mgr.FetchRow("events", rid)
		require.NoError(t, err)
		require.Equal(t, int32(i+1), int32(binary.LittleEndian.Uint32(row)))
	}
}

func TestOpenIndex_RowsInsertedAfterCreateAreNotBulkLoaded(t *testing.T) {
	h := newTestHarness(t)
	heapFileID := h.createTable("events", "id")
	h.insertRow(heapFileID, 1)

	idx, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)

	rp2 := h.insertRow(heapFileID, 2)
	rids := scanAllRows(t, idx, 1, bptree.GTE, 10, bptree.LTE)
	require.Len(t, rids, 1, "bulk load snapshots the heap file at index-creation time")

	require.NoError(t, idx.InsertEntry(2, rowPointerToRecordId(rp2)))
	rids = scanAllRows(t, idx, 1, bptree.GTE, 10, bptree.LTE)
	require.Len(t, rids, 2)

	row, err := h.mgr.FetchRow("events", rids[1])
	require.NoError(t, err)
	require.Equal(t, int32(2), int32(binary.LittleEndian.Uint32(row)))
}

func TestOpenIndex_ReturnsCachedIndexOnSecondCall(t *testing.T) {
	h := newTestHarness(t)
	heapFileID := h.createTable("events", "id")
	h.insertRow(heapFileID, 1)

	idx1, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)
	idx2, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)
	require.Same(t, idx1, idx2)
}

func TestOpenIndex_CloseAndReopenFromDisk(t *testing.T) {
	h := newTestHarness(t)
	heapFileID := h.createTable("events", "id")
	for i := int32(1); i <= 20; i++ {
		h.insertRow(heapFileID, i)
	}

	idx, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)
	before := scanAllRows(t, idx, 1, bptree.GTE, 20, bptree.LTE)
	require.NoError(t, h.mgr.CloseIndex("events", "id"))

	reopened, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)
	after := scanAllRows(t, reopened, 1, bptree.GTE, 20, bptree.LTE)
	require.Equal(t, before, after)
}

func TestLookupRowPointer_RoundTripsThroughAdapterShift(t *testing.T) {
	h := newTestHarness(t)
	heapFileID := h.createTable("events", "id")
	rp := h.insertRow(heapFileID, 7)

	idx, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)

	rids := scanAllRows(t, idx, 7, bptree.GTE, 7, bptree.LTE)
	require.Len(t, rids, 1)

	got, err := h.mgr.LookupRowPointer("events", rids[0])
	require.NoError(t, err)
	require.Equal(t, rp.PageNumber, got.PageNumber)
	require.Equal(t, rp.SlotIndex, got.SlotIndex)
}

func TestCloseAll_ClosesEveryOpenIndex(t *testing.T) {
	h := newTestHarness(t)
	heapFileID1 := h.createTable("events", "id")
	heapFileID2 := h.createTable("users", "id")
	h.insertRow(heapFileID1, 1)
	h.insertRow(heapFileID2, 1)

	_, err := h.mgr.OpenIndex("events", "id")
	require.NoError(t, err)
	_, err = h.mgr.OpenIndex("users", "id")
	require.NoError(t, err)

	h.mgr.CloseAll()
	require.Empty(t, h.mgr.open)
}

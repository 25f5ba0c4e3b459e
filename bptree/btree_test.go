package bptree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// This build's real occupancy, for documentation in test failure messages
// and to explain why certain boundary scenarios (written against a small
// L=5/N=4 harness) aren't exercised at these literal sizes: at
// PageSize=4096, LeafOccupancy and NodeOccupancy both come out even, so the
// "L is odd" adjustment in splitLeaf is not reachable by any test built on
// the real page layout. The even-L and even-N paths are exercised below.
func TestOccupancyIsEvenAtRealPageSize(t *testing.T) {
	require.Equal(t, 0, LeafOccupancy%2, "LeafOccupancy is assumed even by the rest of this file")
	require.Equal(t, 0, NodeOccupancy%2, "NodeOccupancy is assumed even by the rest of this file")
}

func rid(page uint32, slot uint16) RecordId {
	return RecordId{PageNumber: page, SlotNumber: slot}
}

func TestInsertEntry_EmptyLeafPlacesAtSlotZero(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)

	require.NoError(t, idx.InsertEntry(42, rid(1, 0)))
	require.Equal(t, 0, bm.totalPins())

	leafPg, err := bm.ReadPage(idx.rootPageNum)
	require.NoError(t, err)
	leaf := asLeaf(leafPg)
	require.Equal(t, int32(42), leaf.key(0))
	require.Equal(t, rid(1, 0), leaf.rid(0))
	require.NoError(t, bm.UnpinPage(leafPg.ID, false))
}

func TestOpen_BadIndexInfoOnReopenMismatch(t *testing.T) {
	bm := newMockBufferManager()
	metaPg, err := bm.AllocPage()
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(metaPg.ID, false))

	idx, err := Open(bm, metaPg.ID, true, "events", 4, AttrTypeInt32, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	_, err = Open(bm, metaPg.ID, false, "events", 8, AttrTypeInt32, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, BadIndexInfo))
}

// collectLeaves walks every leaf page left to right, verifying the sorted
// leaves and sibling order invariants along the way, and returns every
// present entry in the order encountered.
func collectLeaves(t *testing.T, idx *Index, bm *mockBufferManager) []LeafEntry {
	t.Helper()
	var out []LeafEntry
	var prevMax int32
	havePrev := false

	err := idx.WalkLeaves(func(e LeafEntry) {
		out = append(out, e)
	})
	require.NoError(t, err)

	// Re-walk page by page (rather than trusting the flat entry list) to
	// check sortedness within each leaf and monotonicity across siblings.
	pid := idx.rootPageNum
	if pid != idx.initialRootPageNo {
		for {
			pg, err := bm.ReadPage(pid)
			require.NoError(t, err)
			node := asInternal(pg)
			level := node.level()
			child := node.pageNo(0)
			require.NoError(t, bm.UnpinPage(pid, false))
			pid = child
			if level == 1 {
				break
			}
		}
	}
	for pid != 0 {
		pg, err := bm.ReadPage(pid)
		require.NoError(t, err)
		leaf := asLeaf(pg)
		n := leaf.presentCount()
		var lastKey int32
		for i := 0; i < n; i++ {
			k := leaf.key(i)
			if i > 0 {
				require.GreaterOrEqual(t, k, lastKey, "sorted leaves invariant violated")
			}
			lastKey = k
		}
		if n > 0 {
			if havePrev {
				require.GreaterOrEqual(t, leaf.key(0), prevMax, "sibling order invariant violated")
			}
			prevMax = leaf.key(n - 1)
			havePrev = true
		}
		next := leaf.rightSib()
		require.NoError(t, bm.UnpinPage(pid, false))
		pid = next
	}

	return out
}

// checkSeparatorInvariant recursively verifies that for every internal node
// and every present separator k_i, all keys in subtree i are < k_i and all
// keys in subtree i+1 are >= k_i.
func checkSeparatorInvariant(t *testing.T, idx *Index, bm *mockBufferManager) {
	t.Helper()
	if idx.rootPageNum == idx.initialRootPageNo {
		return // root is still the original leaf: no internal nodes exist
	}
	checkSubtree(t, bm, idx.rootPageNum)
}

func checkSubtree(t *testing.T, bm *mockBufferManager, pid PageId) (minKey, maxKey int32, has bool) {
	t.Helper()
	pg, err := bm.ReadPage(pid)
	require.NoError(t, err)

	node := asInternal(pg)
	level := node.level()
	n := node.presentChildCount()
	require.NoError(t, bm.UnpinPage(pid, false))

	for i := 0; i < n; i++ {
		childPid := node.pageNo(i)
		var childMin, childMax int32
		var childHas bool
		if level == 1 {
			childMin, childMax, childHas = leafMinMax(t, bm, childPid)
		} else {
			childMin, childMax, childHas = checkSubtree(t, bm, childPid)
		}
		if !childHas {
			continue
		}
		if i > 0 {
			sep := node.key(i - 1)
			require.GreaterOrEqual(t, childMin, sep, "keys in subtree i+1 must be >= separator")
		}
		if i < n-1 {
			sep := node.key(i)
			require.Less(t, childMax, sep, "keys in subtree i must be < separator")
		}
		if !has {
			minKey, has = childMin, true
		}
		maxKey = childMax
	}
	return minKey, maxKey, has
}

func leafMinMax(t *testing.T, bm *mockBufferManager, pid PageId) (int32, int32, bool) {
	t.Helper()
	pg, err := bm.ReadPage(pid)
	require.NoError(t, err)
	leaf := asLeaf(pg)
	n := leaf.presentCount()
	require.NoError(t, bm.UnpinPage(pid, false))
	if n == 0 {
		return 0, 0, false
	}
	return leaf.key(0), leaf.key(n - 1), true
}

// searchTopDown descends the tree via the Tree Navigator, exactly as
// start_scan would, and returns every RID whose key equals key, starting at
// the leaf it lands on and following right siblings until a leaf holds a
// key greater than key (or the chain ends).
func searchTopDown(t *testing.T, idx *Index, bm *mockBufferManager, key int32) []RecordId {
	t.Helper()
	pid := idx.rootPageNum
	if pid != idx.initialRootPageNo {
		for {
			pg, err := bm.ReadPage(pid)
			require.NoError(t, err)
			node := asInternal(pg)
			level := node.level()
			child := findNextNonLeafChild(node, key)
			require.NoError(t, bm.UnpinPage(pid, false))
			pid = child
			if level == 1 {
				break
			}
		}
	}

	var out []RecordId
	for pid != 0 {
		pg, err := bm.ReadPage(pid)
		require.NoError(t, err)
		leaf := asLeaf(pg)
		n := leaf.presentCount()
		exhausted := false
		for i := 0; i < n; i++ {
			k := leaf.key(i)
			if k == key {
				out = append(out, leaf.rid(i))
			}
			if k > key {
				exhausted = true
			}
		}
		next := leaf.rightSib()
		require.NoError(t, bm.UnpinPage(pid, false))
		if exhausted {
			break
		}
		pid = next
	}
	return out
}

func TestInsertEntry_BulkAscending_InvariantsAndReachability(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)

	const m = 3 * LeafOccupancy // guarantees at least two leaf splits
	for i := 0; i < m; i++ {
		key := int32(i)
		require.NoError(t, idx.InsertEntry(key, rid(uint32(i+1), 0)))
		require.Equal(t, 0, bm.totalPins(), "pin balance violated after insert %d", i)
	}

	entries := collectLeaves(t, idx, bm)
	require.Len(t, entries, m, "count law: leaf walk must yield exactly M entries")
	checkSeparatorInvariant(t, idx, bm)

	for i := 0; i < m; i++ {
		rids := searchTopDown(t, idx, bm, int32(i))
		require.Contains(t, rids, rid(uint32(i+1), 0), "reachability: key %d must be found by top-down search", i)
	}

	meta, err := idx.Meta()
	require.NoError(t, err)
	require.Equal(t, idx.RootPageNo(), meta.RootPageNo, "meta truth: meta.root_page_no must equal in-memory root")
	require.Equal(t, 0, bm.totalPins())
}

func TestInsertEntry_BulkRandomPermutation(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)

	const m = 1000
	perm := rand.New(rand.NewSource(1)).Perm(m)
	keyOfRid := make(map[RecordId]int32, m)
	for i, v := range perm {
		key := int32(v + 1)
		r := rid(uint32(i+1), 0)
		keyOfRid[r] = key
		require.NoError(t, idx.InsertEntry(key, r))
	}
	require.Equal(t, 0, bm.totalPins())

	require.NoError(t, idx.StartScan(0, GT, 1001, LT))
	for want := int32(1); want <= m; want++ {
		got, err := idx.ScanNext()
		require.NoError(t, err, "scan should yield key %d", want)
		require.Equal(t, want, keyOfRid[got], "scan must yield keys in ascending order")
	}
	_, err = idx.ScanNext()
	require.True(t, IsKind(err, IndexScanCompleted))
	require.Equal(t, 0, bm.totalPins())
}

func scanAll(t *testing.T, idx *Index, low int32, lowOp ScanOp, high int32, highOp ScanOp) []RecordId {
	t.Helper()
	err := idx.StartScan(low, lowOp, high, highOp)
	if err != nil {
		return nil
	}
	var out []RecordId
	for {
		r, err := idx.ScanNext()
		if IsKind(err, IndexScanCompleted) {
			// ScanNext already unpinned the leaf and cleared active on
			// exhaustion; calling EndScan here would fail ScanNotInitialized.
			return out
		}
		require.NoError(t, err)
		out = append(out, r)
	}
}

func TestScan_BulkAscending1To100_RangeInMiddle(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)

	for i := 1; i <= 100; i++ {
		require.NoError(t, idx.InsertEntry(int32(i), rid(uint32(i), 0)))
	}

	got := scanAll(t, idx, 42, GTE, 47, LTE)
	require.Len(t, got, 6)
	for i, r := range got {
		require.Equal(t, rid(uint32(42+i), 0), r)
	}
	require.Equal(t, 0, bm.totalPins())
}

func TestScan_DuplicateKeys(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)

	r1, r2, r3 := rid(1, 0), rid(2, 0), rid(3, 0)
	require.NoError(t, idx.InsertEntry(7, r1))
	require.NoError(t, idx.InsertEntry(7, r2))
	require.NoError(t, idx.InsertEntry(7, r3))

	got := scanAll(t, idx, 7, GTE, 7, LTE)
	require.ElementsMatch(t, []RecordId{r1, r2, r3}, got)
	require.Equal(t, 0, bm.totalPins())
}

func TestScan_RangeBoundaryOperators(t *testing.T) {
	idx, _, err := newTestIndex("events", 4)
	require.NoError(t, err)

	for _, k := range []int32{10, 20, 30} {
		require.NoError(t, idx.InsertEntry(k, rid(uint32(k), 0)))
	}

	require.Equal(t, []RecordId{rid(30, 0)}, scanAll(t, idx, 20, GT, 30, LTE), "GT 20 excludes 20, leaving only 30")
	require.Equal(t, []RecordId{rid(10, 0), rid(20, 0)}, scanAll(t, idx, 10, GTE, 20, LTE), "GTE 10 includes 10")
	require.Equal(t, []RecordId{rid(10, 0)}, scanAll(t, idx, 10, GTE, 20, LT), "LT 20 excludes 20, leaving only 10")
}

func TestScan_BadOpcodesAndBadScanRange(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)
	require.NoError(t, idx.InsertEntry(1, rid(1, 0)))

	err = idx.StartScan(5, GT, 5, LT)
	require.Error(t, err)
	// 5 > 5 is false, so low <= high; this is a valid (empty) range that
	// finds no qualifying key, not a malformed opcode pair.
	require.True(t, IsKind(err, NoSuchKeyFound))

	err = idx.StartScan(1, GT, 5, GT)
	require.Error(t, err)
	require.True(t, IsKind(err, BadOpcodes))

	err = idx.StartScan(10, GTE, 1, LTE)
	require.Error(t, err)
	require.True(t, IsKind(err, BadScanRange))

	require.Equal(t, 0, bm.totalPins())
}

func TestScan_StartScanWhileActiveEndsPrevious(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)
	for _, k := range []int32{1, 2, 3} {
		require.NoError(t, idx.InsertEntry(k, rid(uint32(k), 0)))
	}

	require.NoError(t, idx.StartScan(1, GTE, 3, LTE))
	require.True(t, idx.scan.active)
	require.NoError(t, idx.StartScan(2, GTE, 3, LTE))
	require.True(t, idx.scan.active)
	require.NoError(t, idx.EndScan())
	require.Equal(t, 0, bm.totalPins())
}

func TestScan_ScanNextWithoutStartFails(t *testing.T) {
	idx, _, err := newTestIndex("events", 4)
	require.NoError(t, err)
	_, err = idx.ScanNext()
	require.True(t, IsKind(err, ScanNotInitialized))
	require.True(t, IsKind(idx.EndScan(), ScanNotInitialized))
}

func TestScan_EndScanThenRestartSameBoundsYieldsSameSequence(t *testing.T) {
	idx, bm, err := newTestIndex("events", 4)
	require.NoError(t, err)
	for i := 1; i <= 50; i++ {
		require.NoError(t, idx.InsertEntry(int32(i), rid(uint32(i), 0)))
	}

	first := scanAll(t, idx, 10, GTE, 20, LTE)
	second := scanAll(t, idx, 10, GTE, 20, LTE)
	require.Equal(t, first, second)
	require.Equal(t, 0, bm.totalPins())
}

// sliceScanner is a fixed in-memory RelationScanner used to drive bulk load
// during Open(isNew=true, ...) without the heap storage layer.
type sliceScanner struct {
	records [][]byte
	rids    []RecordId
	pos     int
}

func (s *sliceScanner) Next() ([]byte, RecordId, bool, error) {
	if s.pos >= len(s.records) {
		return nil, RecordId{}, false, nil
	}
	rec, r := s.records[s.pos], s.rids[s.pos]
	s.pos++
	return rec, r, true, nil
}

func encodeInt32LE(v int32) []byte {
	b := make([]byte, 4)
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestOpen_CreateBulkLoadsFromScanner(t *testing.T) {
	scanner := &sliceScanner{}
	for i := int32(1); i <= 30; i++ {
		scanner.records = append(scanner.records, encodeInt32LE(i))
		scanner.rids = append(scanner.rids, rid(uint32(i), 0))
	}

	bm := newMockBufferManager()
	metaPg, err := bm.AllocPage()
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(metaPg.ID, false))

	idx, err := Open(bm, metaPg.ID, true, "events", 0, AttrTypeInt32, scanner)
	require.NoError(t, err)

	got := scanAll(t, idx, 1, GTE, 30, LTE)
	require.Len(t, got, 30)
	require.Equal(t, 0, bm.totalPins())
}

func TestRoundTrip_CloseAndReopenYieldsSameScanResults(t *testing.T) {
	bm := newMockBufferManager()
	metaPg, err := bm.AllocPage()
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(metaPg.ID, false))

	idx, err := Open(bm, metaPg.ID, true, "events", 4, AttrTypeInt32, nil)
	require.NoError(t, err)
	for i := 1; i <= 200; i++ {
		require.NoError(t, idx.InsertEntry(int32(i), rid(uint32(i), 0)))
	}
	before := scanAll(t, idx, 50, GTE, 150, LTE)
	require.NoError(t, idx.Close())
	require.Equal(t, 0, bm.totalPins())

	reopened, err := Open(bm, metaPg.ID, false, "events", 4, AttrTypeInt32, nil)
	require.NoError(t, err)
	after := scanAll(t, reopened, 50, GTE, 150, LTE)
	require.Equal(t, before, after)
	require.Equal(t, 0, bm.totalPins())
}

func TestSplitLeaf_EvenOccupancy_NewKeyPlacementByComparison(t *testing.T) {
	bm := newMockBufferManager()
	oldPg, err := bm.AllocPage()
	require.NoError(t, err)
	initLeaf(oldPg)
	old := asLeaf(oldPg)
	for i := 0; i < LeafOccupancy; i++ {
		old.setKey(i, int32(i*10))
		old.setRid(i, rid(uint32(i+1), 0))
	}

	// new key falls after the midpoint: old.key(mid) = (L/2)*10.
	mid := LeafOccupancy / 2
	newKey := old.key(mid) + 1
	promoted, err := splitLeaf(bm, oldPg, newKey, rid(999, 0))
	require.NoError(t, err)
	require.NoError(t, bm.UnpinPage(oldPg.ID, true))
	require.NoError(t, bm.UnpinPage(promoted.pageId, true))

	newPg, err := bm.ReadPage(promoted.pageId)
	require.NoError(t, err)
	newLeaf := asLeaf(newPg)
	require.Equal(t, promoted.key, newLeaf.key(0))
	require.Contains(t, []int32{newLeaf.key(0), newLeaf.key(1)}, newKey)
	require.NoError(t, bm.UnpinPage(newPg.ID, false))
	require.Equal(t, 0, bm.totalPins())
}

func TestSplitInternal_EvenOccupancy_PushUpIndexByComparison(t *testing.T) {
	bm := newMockBufferManager()
	oldPg, err := bm.AllocPage()
	require.NoError(t, err)
	initInternal(oldPg, 1)
	old := asInternal(oldPg)

	leafPids := make([]PageId, NodeOccupancy+1)
	for i := range leafPids {
		pg, err := bm.AllocPage()
		require.NoError(t, err)
		initLeaf(pg)
		leafPids[i] = pg.ID
		require.NoError(t, bm.UnpinPage(pg.ID, true))
		old.setPageNo(i, pg.ID)
		if i < NodeOccupancy {
			old.setKey(i, int32((i+1)*100))
		}
	}

	mid := NodeOccupancy / 2
	// incoming.key < old.key(mid) selects push_up_index = mid-1.
	incomingKey := old.key(mid) - 1
	wantPromotedKey := old.key(mid - 1)

	newChildPg, err := bm.AllocPage()
	require.NoError(t, err)
	initLeaf(newChildPg)
	require.NoError(t, bm.UnpinPage(newChildPg.ID, true))

	promoted, err := splitInternal(bm, oldPg, newChildPg.ID, incomingKey)
	require.NoError(t, err)
	require.Equal(t, wantPromotedKey, promoted.key, "push_up_index must be mid-1 when incoming key < key_array[mid]")
	require.Equal(t, incomingKey, old.key(mid-1), "promoted separator leaves the surviving node; the incoming key takes its slot")

	require.NoError(t, bm.UnpinPage(oldPg.ID, true))
	require.NoError(t, bm.UnpinPage(promoted.pageId, true))
	require.Equal(t, 0, bm.totalPins())
}

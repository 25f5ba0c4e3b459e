package bufferpool

import (
	"path/filepath"
	"testing"

	diskmanager "btreeidx/storage/diskmanager"
	"btreeidx/types"

	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, capacity int) (*BufferPool, *diskmanager.DiskManager, uint32) {
	t.Helper()
	dm := diskmanager.NewDiskManager()
	path := filepath.Join(t.TempDir(), "1.heap")
	fileID, err := dm.OpenFileWithID(path, 1, types.PageTypeHeapData)
	require.NoError(t, err)
	return NewBufferPool(capacity, dm), dm, fileID
}

func TestNewPage_PinsAndMarksDirty(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	require.NoError(t, err)
	require.True(t, pg.IsDirty)
	require.EqualValues(t, 1, pg.PinCount)
}

func TestFetchPage_HitReturnsSameFrameAndIncrementsPin(t *testing.T) {
	bp, _, fileID := newTestPool(t, 4)

	pg, err := bp.NewPage(fileID, types.PageTypeHeapData)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg.ID, true))

	got, err := bp.FetchPage(pg.ID)
	require.NoError(t, err)
	require.Same(t, pg, got)
	require.EqualValues(t, 1, got.PinCount)
}

func TestUnpinPage_UnknownPageFails(t *testing.T) {
	bp, _, _ := newTestPool(t, 4)
	require.Error(t, bp.UnpinPage(999, false))
}

func TestEvictLRU_SkipsPinnedPages(t *testing.T) {
	bp, _, fileID := newTestPool(t, 2)

	pinned, err := bp.NewPage(fileID, types.PageTypeHeapData)
	require.NoError(t, err) // stays pinned
	unpinned, err := bp.NewPage(fileID, types.PageTypeHeapData)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(unpinned.ID, false))

	// A third page forces an eviction at capacity 2; the only evictable
	// candidate is `unpinned` since `pinned` is still pinned.
	_, err = bp.NewPage(fileID, types.PageTypeHeapData)
	require.NoError(t, err)

	require.NotNil(t, bp.GetPage(pinned.ID), "pinned page must survive eviction")
	require.Nil(t, bp.GetPage(unpinned.ID), "unpinned page is the only evictable candidate")
}

func TestEvictLRU_AllPagesPinnedFailsAllocation(t *testing.T) {
	bp, _, fileID := newTestPool(t, 1)

	_, err := bp.NewPage(fileID, types.PageTypeHeapData) // fills the pool, stays pinned
	require.NoError(t, err)

	_, err = bp.NewPage(fileID, types.PageTypeHeapData)
	require.Error(t, err, "no unpinned frame to evict")
}

func TestFlushFilePages_OnlyFlushesMatchingFile(t *testing.T) {
	bp, dm, fileID1 := newTestPool(t, 8)
	path2 := filepath.Join(t.TempDir(), "2.heap")
	fileID2, err := dm.OpenFileWithID(path2, 2, types.PageTypeHeapData)
	require.NoError(t, err)

	pg1, err := bp.NewPage(fileID1, types.PageTypeHeapData)
	require.NoError(t, err)
	pg2, err := bp.NewPage(fileID2, types.PageTypeHeapData)
	require.NoError(t, err)
	require.NoError(t, bp.UnpinPage(pg1.ID, true))
	require.NoError(t, bp.UnpinPage(pg2.ID, true))

	require.NoError(t, bp.FlushFilePages(fileID1))

	require.False(t, bp.GetPage(pg1.ID).IsDirty, "file 1's page flushed")
	require.True(t, bp.GetPage(pg2.ID).IsDirty, "file 2's page untouched")
}

func TestAdmissionCache_GivesEvictedPageOneSecondChance(t *testing.T) {
	cache := newAdmissionCache()
	require.False(t, cache.admit(42), "first sighting declines eviction")
	require.True(t, cache.admit(42), "second sighting admits eviction")
}

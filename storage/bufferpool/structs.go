package bufferpool

import (
	diskmanager "btreeidx/storage/diskmanager"
	"btreeidx/storage/page"
	"sync"
)

// ############################################# BUFFER POOL #############################################

// BufferPool manages cached pages in memory with LRU eviction
// Works with both heap file pages and B+ tree index pages
type BufferPool struct {
	pages       map[int64]*page.Page // pageID -> Page
	capacity    int
	diskManager *diskmanager.DiskManager
	admission   *admissionCache
	accessOrder []int64 // LRU tracking: most recently used at end
	mu          sync.Mutex
}

// BufferPoolStats holds buffer pool statistics, as returned by GetStats
type BufferPoolStats struct {
	TotalPages  int
	PinnedPages int
	DirtyPages  int
	Capacity    int
	HitRate     float64 // Could be tracked with counters
}

package bufferpool

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// admissionCache is a small second-chance filter consulted before a true LRU
// eviction. A bulk-load scan (the index's create-time pass over a relation)
// re-touches the first handful of leaf pages on every insert while the
// cursor is still near the root; without this, those pages would be evicted
// and immediately re-faulted on every split. Tracking which page ids have
// already come up for eviction once, and preferring those over first-timers,
// absorbs that thrash.
type admissionCache struct {
	recentlyEvicted *ristretto.Cache[uint64, struct{}]
}

func newAdmissionCache() *admissionCache {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, struct{}]{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
	})
	if err != nil {
		// ristretto.NewCache only fails on invalid config constants above;
		// treat a misconfigured cache as "no second chances" rather than panic.
		return &admissionCache{}
	}
	return &admissionCache{recentlyEvicted: c}
}

func pageKey(pageID int64) uint64 {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(pageID >> (8 * i))
	}
	return xxhash.Sum64(buf[:])
}

// admit reports whether pageID has already had one eviction round and should
// now be evicted for real. The first time it is asked about a page it
// records the sighting and declines, giving the page a second chance.
func (a *admissionCache) admit(pageID int64) bool {
	if a == nil || a.recentlyEvicted == nil {
		return true
	}
	key := pageKey(pageID)
	if _, found := a.recentlyEvicted.Get(key); found {
		return true
	}
	a.recentlyEvicted.Set(key, struct{}{}, 1)
	a.recentlyEvicted.Wait()
	return false
}

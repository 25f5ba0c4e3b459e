package bptree

import (
	"fmt"
	"sync"
)

// mockBufferManager is an in-memory BufferManager for unit-testing the core
// in isolation from storage/bufferpool. Unlike the real buffer pool it never
// evicts — every allocated page lives for the lifetime of the test — which
// is exactly what the pin-balance and reachability properties need: a way
// to assert the index never forgets to unpin.
type mockBufferManager struct {
	mu     sync.Mutex
	pages  map[PageId][]byte
	pins   map[PageId]int
	nextID int64
}

func newMockBufferManager() *mockBufferManager {
	return &mockBufferManager{
		pages:  make(map[PageId][]byte),
		pins:   make(map[PageId]int),
		nextID: 1,
	}
}

func (m *mockBufferManager) ReadPage(pid PageId) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.pages[pid]
	if !ok {
		return nil, fmt.Errorf("mock: no such page %d", pid)
	}
	m.pins[pid]++
	return &Page{ID: pid, Data: data}, nil
}

func (m *mockBufferManager) AllocPage() (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := PageId(m.nextID)
	m.nextID++
	data := make([]byte, PageSize)
	m.pages[id] = data
	m.pins[id]++
	return &Page{ID: id, Data: data}, nil
}

func (m *mockBufferManager) UnpinPage(pid PageId, dirty bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pins[pid] <= 0 {
		return fmt.Errorf("mock: unpin of unpinned page %d", pid)
	}
	m.pins[pid]--
	return nil
}

func (m *mockBufferManager) FlushFile() error { return nil }

// totalPins sums every page's pin count — zero means the index has released
// every pin it took, across success and error paths alike.
func (m *mockBufferManager) totalPins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.pins {
		total += n
	}
	return total
}

// newTestIndex opens a fresh index over relation/attrByteOffset, allocating
// and releasing the meta page exactly as index.Manager.OpenIndex does before
// handing metaPid to bptree.Open.
func newTestIndex(relation string, attrByteOffset int32) (*Index, *mockBufferManager, error) {
	bm := newMockBufferManager()
	metaPg, err := bm.AllocPage()
	if err != nil {
		return nil, nil, err
	}
	if err := bm.UnpinPage(metaPg.ID, false); err != nil {
		return nil, nil, err
	}
	idx, err := Open(bm, metaPg.ID, true, relation, attrByteOffset, AttrTypeInt32, nil)
	if err != nil {
		return nil, nil, err
	}
	return idx, bm, nil
}

package index

import (
	"fmt"
	"os"
	"path/filepath"

	"btreeidx/bptree"
	"btreeidx/catalog"
	"btreeidx/storage/bufferpool"
	diskmanager "btreeidx/storage/diskmanager"
	"btreeidx/storage/heap"
	"btreeidx/types"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "index")

// Manager opens and caches the B+Tree secondary indexes over heap-resident
// relations catalogued by a catalog.CatalogManager, resolving a
// (table, column) pair to a bptree.Index via the shared buffer pool and
// disk manager.
type Manager struct {
	baseDir     string
	catalog     *catalog.CatalogManager
	heapMgr     *heap.HeapFileManager
	bufferPool  *bufferpool.BufferPool
	diskManager *diskmanager.DiskManager

	open map[string]*bptree.Index // index name -> open index
}

// NewManager constructs a Manager over already-initialized collaborators.
// indexDir is where index files (<table>.<attrByteOffset>.idx) live.
func NewManager(indexDir string, cat *catalog.CatalogManager, heapMgr *heap.HeapFileManager, bp *bufferpool.BufferPool, dm *diskmanager.DiskManager) *Manager {
	return &Manager{
		baseDir:     indexDir,
		catalog:     cat,
		heapMgr:     heapMgr,
		bufferPool:  bp,
		diskManager: dm,
		open:        make(map[string]*bptree.Index),
	}
}

// indexName follows the <relation_name>.<attr_byte_offset> naming convention.
func indexName(tableName string, attrByteOffset int) string {
	return fmt.Sprintf("%s.%d", tableName, attrByteOffset)
}

// OpenIndex opens the secondary index over tableName.columnName, creating
// and bulk-loading it from the table's heap file on first use. Subsequent
// calls for the same (table, column) return the already-open Index.
func (m *Manager) OpenIndex(tableName, columnName string) (*bptree.Index, error) {
	attrOffset, err := m.catalog.AttrByteOffset(tableName, columnName)
	if err != nil {
		return nil, err
	}
	name := indexName(tableName, attrOffset)

	if idx, ok := m.open[name]; ok {
		return idx, nil
	}

	heapFileID, err := m.catalog.GetTableFileID(tableName)
	if err != nil {
		return nil, err
	}
	indexFileID, err := m.catalog.GetIndexFileID(tableName)
	if err != nil {
		return nil, err
	}

	indexPath := filepath.Join(m.baseDir, name+".idx")
	_, statErr := os.Stat(indexPath)
	isNew := os.IsNotExist(statErr)

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	if _, err := m.diskManager.OpenFileWithID(indexPath, indexFileID, types.PageTypeIndexNode); err != nil {
		return nil, fmt.Errorf("failed to open index file %s: %w", indexPath, err)
	}

	fbm := newFileBufferManager(m.bufferPool, indexFileID)

	var metaPid bptree.PageId
	var scanner bptree.RelationScanner

	if isNew {
		metaPg, err := fbm.AllocPage()
		if err != nil {
			return nil, fmt.Errorf("failed to allocate meta page: %w", err)
		}
		metaPid = metaPg.ID
		// bptree.Open's create path re-fetches and pins metaPid itself; drop
		// the pin AllocPage just took so it isn't held twice.
		if err := fbm.UnpinPage(metaPid, false); err != nil {
			return nil, fmt.Errorf("failed to unpin meta page: %w", err)
		}

		heapScan, err := m.heapMgr.NewScanner(heapFileID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table %q for bulk load: %w", tableName, err)
		}
		scanner = newHeapRelationScanner(heapScan)

		log.WithFields(logrus.Fields{"table": tableName, "column": columnName, "index": name}).Info("creating index, bulk loading")
	} else {
		if err := m.registerExistingPages(indexFileID); err != nil {
			return nil, err
		}
		firstLocal, err := m.diskManager.GetGlobalPageID(indexFileID, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve meta page: %w", err)
		}
		metaPid = bptree.PageId(firstLocal)
	}

	idx, err := bptree.Open(fbm, metaPid, isNew, tableName, int32(attrOffset), bptree.AttrTypeInt32, scanner)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", name, err)
	}

	m.open[name] = idx
	return idx, nil
}

// registerExistingPages re-registers every local page of an already-created
// index file with the disk manager's global page map, mirroring
// heap.HeapFileManager.LoadHeapFile's reopen path.
func (m *Manager) registerExistingPages(fileID uint32) error {
	fd, err := m.diskManager.GetFileDescriptor(fileID)
	if err != nil {
		return err
	}
	for localPage := int64(0); localPage < fd.NextPageID; localPage++ {
		if err := m.diskManager.RegisterPage(fileID, localPage); err != nil {
			return fmt.Errorf("failed to register index page %d: %w", localPage, err)
		}
	}
	return nil
}

// CloseIndex closes and forgets the open index over tableName.columnName, if
// one is open.
func (m *Manager) CloseIndex(tableName, columnName string) error {
	attrOffset, err := m.catalog.AttrByteOffset(tableName, columnName)
	if err != nil {
		return err
	}
	name := indexName(tableName, attrOffset)

	idx, ok := m.open[name]
	if !ok {
		return nil
	}
	delete(m.open, name)
	return idx.Close()
}

// CloseAll closes every open index. Errors from individual closes are
// logged, not aggregated, matching the best-effort shutdown convention used
// elsewhere in this module.
func (m *Manager) CloseAll() {
	for name, idx := range m.open {
		if err := idx.Close(); err != nil {
			log.WithFields(logrus.Fields{"index": name, "error": err}).Warn("failed to close index cleanly")
		}
	}
	m.open = make(map[string]*bptree.Index)
}

// LookupRowPointer converts a RecordId a scan yielded back into the heap
// RowPointer it names, undoing heapRelationScanner's page-number shift.
func (m *Manager) LookupRowPointer(tableName string, rid bptree.RecordId) (types.RowPointer, error) {
	heapFileID, err := m.catalog.GetTableFileID(tableName)
	if err != nil {
		return types.RowPointer{}, err
	}
	return recordIdToRowPointer(rid, heapFileID), nil
}

// FetchRow resolves a RecordId yielded by a scan all the way to the row
// bytes it names.
func (m *Manager) FetchRow(tableName string, rid bptree.RecordId) ([]byte, error) {
	rp, err := m.LookupRowPointer(tableName, rid)
	if err != nil {
		return nil, err
	}
	return m.heapMgr.GetRow(&rp)
}

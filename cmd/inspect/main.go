// Inspect opens an existing index file read-only and prints its meta page
// and full leaf chain.
//
// Usage: go run ./cmd/inspect <relation_name> <attr_byte_offset> <path-to-index-file>
package main

import (
	"fmt"
	"os"

	"btreeidx/bptree"
	"btreeidx/storage/bufferpool"
	diskmanager "btreeidx/storage/diskmanager"
	"btreeidx/types"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: %s <relation_name> <attr_byte_offset> <path.idx>\n", os.Args[0])
		os.Exit(1)
	}
	relationName := os.Args[1]
	var attrByteOffset int32
	fmt.Sscanf(os.Args[2], "%d", &attrByteOffset)
	path := os.Args[3]

	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(os.Stderr, "index file not found: %v\n", err)
		os.Exit(1)
	}

	const fileID = 1
	dm := diskmanager.NewDiskManager()
	if _, err := dm.OpenFileWithID(path, fileID, types.PageTypeIndexNode); err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}

	fd, err := dm.GetFileDescriptor(fileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	for local := int64(0); local < fd.NextPageID; local++ {
		if err := dm.RegisterPage(fileID, local); err != nil {
			fmt.Fprintf(os.Stderr, "register page %d: %v\n", local, err)
			os.Exit(1)
		}
	}

	bp := bufferpool.NewBufferPool(int(fd.NextPageID)+1, dm)

	metaPid, err := dm.GetGlobalPageID(fileID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	bm := inspectBufferManager{bp: bp, fileID: fileID}
	idx, err := bptree.Open(bm, bptree.PageId(metaPid), false, relationName, attrByteOffset, bptree.AttrTypeInt32, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open index: %v\n", err)
		os.Exit(1)
	}

	meta, err := idx.Meta()
	if err != nil {
		fmt.Fprintf(os.Stderr, "meta: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("relation=%s attr_byte_offset=%d root_page_no=%d initial_root_page_no=%d\n",
		meta.RelationName, meta.AttrByteOffset, meta.RootPageNo, meta.InitialRootPageNo)

	count := 0
	err = idx.WalkLeaves(func(e bptree.LeafEntry) {
		fmt.Printf("  key=%d rid=(%d,%d)\n", e.Key, e.Rid.PageNumber, e.Rid.SlotNumber)
		count++
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk leaves: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("total entries: %d\n", count)
}

// inspectBufferManager is a minimal read-mostly bptree.BufferManager over a
// single dedicated BufferPool/DiskManager pair for command-line inspection.
type inspectBufferManager struct {
	bp     *bufferpool.BufferPool
	fileID uint32
}

func (b inspectBufferManager) ReadPage(pid bptree.PageId) (*bptree.Page, error) {
	pg, err := b.bp.FetchPage(int64(pid))
	if err != nil {
		return nil, err
	}
	return &bptree.Page{ID: pid, Data: pg.Data}, nil
}

func (b inspectBufferManager) AllocPage() (*bptree.Page, error) {
	return nil, fmt.Errorf("inspect: read-only, alloc not supported")
}

func (b inspectBufferManager) UnpinPage(pid bptree.PageId, dirty bool) error {
	return b.bp.UnpinPage(int64(pid), dirty)
}

func (b inspectBufferManager) FlushFile() error { return nil }

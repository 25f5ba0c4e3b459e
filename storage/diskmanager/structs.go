package diskmanager

import (
	"btreeidx/types"
	"os"
	"sync"
)

// ############################################# FILE DESCRIPTOR ###########################################

type PageKey struct {
	FileID   uint32
	LocalNum int64
}

// FileDescriptor represents an open file managed by the disk manager
type FileDescriptor struct {
	FileID     uint32
	FilePath   string
	File       *os.File
	NextPageID int64 // Next available page ID within this file
	// PageType is fixed for the lifetime of the file (a heap file holds only
	// heap pages, an index file holds only meta/leaf/internal pages) and is
	// supplied by the caller at open time rather than read back from page
	// bytes — B+Tree pages carry no on-disk type tag, their layout fills the
	// whole page (see bptree's page codec).
	PageType types.PageType
	mu       sync.RWMutex
}

// ############################################# DISK MANAGER #############################################

// DiskManager manages all disk I/O operations and file handles
type DiskManager struct {
	files      map[uint32]*FileDescriptor // fileID -> file descriptor
	nextFileID uint32                     // one past the highest fileID passed to OpenFileWithID; nothing else reads it.
	// Heap and index files always use OpenFileWithID with the catalog's fileID.
	globalPageMap map[int64]uint32  // globalPageID -> fileID mapping
	localToGlobal map[PageKey]int64 // // (fileID, localNum) → globalPageID
	mu            sync.RWMutex
}

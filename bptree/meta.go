package bptree

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the fixed byte size of every page this index touches —
// meta, leaf, and internal alike. It matches the storage layer's page size
// since the buffer manager supplying pages to this index is, in practice,
// storage/bufferpool; the core itself makes no assumption beyond "every
// page is exactly PageSize bytes."
const PageSize = 4096

// AttrType enumerates the key types a meta page can declare. Only Int32 is
// implemented by this core; the enum exists so IndexMetaPage.AttrType can be
// validated against the attribute type the caller asks to index.
type AttrType uint8

const (
	AttrTypeInt32 AttrType = 1
)

const relationNameLen = 20

// Meta page layout:
//
//	offset  size  field
//	0       20    relation_name (null-padded)
//	20      4     attr_byte_offset (int32)
//	24      1     attr_type
//	25      8     root_page_no (PageId, int64)
//	33      8     initial_root_page_no (PageId, int64)
const (
	metaOffRelationName  = 0
	metaOffAttrOffset    = relationNameLen
	metaOffAttrType      = metaOffAttrOffset + 4
	metaOffRootPageNo    = metaOffAttrType + 1
	metaOffInitialRootNo = metaOffRootPageNo + 8
)

// IndexMetaPage is the first page of every index file.
type IndexMetaPage struct {
	RelationName      string
	AttrByteOffset    int32
	AttrType          AttrType
	RootPageNo        PageId
	InitialRootPageNo PageId
}

func decodeMeta(data []byte) IndexMetaPage {
	nameBytes := data[metaOffRelationName : metaOffRelationName+relationNameLen]
	end := 0
	for end < len(nameBytes) && nameBytes[end] != 0 {
		end++
	}
	return IndexMetaPage{
		RelationName:      string(nameBytes[:end]),
		AttrByteOffset:    int32(binary.LittleEndian.Uint32(data[metaOffAttrOffset:])),
		AttrType:          AttrType(data[metaOffAttrType]),
		RootPageNo:        PageId(binary.LittleEndian.Uint64(data[metaOffRootPageNo:])),
		InitialRootPageNo: PageId(binary.LittleEndian.Uint64(data[metaOffInitialRootNo:])),
	}
}

func encodeMeta(data []byte, m IndexMetaPage) error {
	if len(m.RelationName) > relationNameLen {
		return fmt.Errorf("relation name %q exceeds %d bytes", m.RelationName, relationNameLen)
	}
	for i := range data[metaOffRelationName : metaOffRelationName+relationNameLen] {
		data[metaOffRelationName+i] = 0
	}
	copy(data[metaOffRelationName:], m.RelationName)
	binary.LittleEndian.PutUint32(data[metaOffAttrOffset:], uint32(m.AttrByteOffset))
	data[metaOffAttrType] = byte(m.AttrType)
	binary.LittleEndian.PutUint64(data[metaOffRootPageNo:], uint64(m.RootPageNo))
	binary.LittleEndian.PutUint64(data[metaOffInitialRootNo:], uint64(m.InitialRootPageNo))
	return nil
}

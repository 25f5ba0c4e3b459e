package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"btreeidx/types"
)

// ColumnWidth returns the fixed byte width of a column type. Only fixed-width
// types are supported — the index's relation must be a heap of fixed-size
// tuples, so every column in it must have a byte width known at schema time.
func ColumnWidth(colType string) (int, error) {
	colType = strings.ToUpper(strings.TrimSpace(colType))
	switch {
	case colType == "INT":
		return 4, nil
	case strings.HasPrefix(colType, "CHAR(") && strings.HasSuffix(colType, ")"):
		n, err := strconv.Atoi(colType[len("CHAR(") : len(colType)-1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid CHAR length in type %q", colType)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("column type %q has no fixed width — VARCHAR and similar variable-length types cannot back an indexed heap relation", colType)
	}
}

// RowWidth returns the total fixed byte width of one tuple of schema.
func RowWidth(schema types.TableSchema) (int, error) {
	width := 0
	for _, col := range schema.Columns {
		w, err := ColumnWidth(col.Type)
		if err != nil {
			return 0, fmt.Errorf("table %s: %w", schema.TableName, err)
		}
		width += w
	}
	return width, nil
}

// AttrByteOffset returns the byte offset of columnName within one fixed-size
// tuple of schema, and the column's declared type.
func AttrByteOffset(schema types.TableSchema, columnName string) (offset int, colType string, err error) {
	for _, col := range schema.Columns {
		w, werr := ColumnWidth(col.Type)
		if werr != nil {
			return 0, "", fmt.Errorf("table %s: %w", schema.TableName, werr)
		}
		if col.Name == columnName {
			return offset, col.Type, nil
		}
		offset += w
	}
	return 0, "", fmt.Errorf("column %q not found in table %s", columnName, schema.TableName)
}

// (cm *CatalogManager) AttrByteOffset resolves columnName on tableName via the
// loaded schema, for callers that only have a table/column name pair and not
// a types.TableSchema in hand.
func (cm *CatalogManager) AttrByteOffset(tableName, columnName string) (int, error) {
	schema, err := cm.GetTableSchema(tableName)
	if err != nil {
		return 0, err
	}
	offset, colType, err := AttrByteOffset(schema, columnName)
	if err != nil {
		return 0, err
	}
	if strings.ToUpper(colType) != "INT" {
		return 0, fmt.Errorf("column %q is %s, not INT — this index only supports 32-bit signed integer keys", columnName, colType)
	}
	return offset, nil
}

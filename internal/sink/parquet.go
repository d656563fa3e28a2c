package sink

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"
	"github.com/thirdweb-dev/extractor/internal/collect"
)

var baseWriterOptions = []parquet.WriterOption{
	parquet.DataPageStatistics(true),
	parquet.PageBufferSize(8 * 1024 * 1024), // 8MB pages
	parquet.ColumnIndexSizeLimit(16 * 1024),
}

// CompressionCodec resolves a codec name, zstd when empty.
func CompressionCodec(name string) (compress.Codec, error) {
	switch strings.ToLower(name) {
	case "", "zstd":
		return &parquet.Zstd, nil
	case "snappy":
		return &parquet.Snappy, nil
	case "gzip":
		return &parquet.Gzip, nil
	case "lz4":
		return &parquet.Lz4Raw, nil
	case "none", "uncompressed":
		return &parquet.Uncompressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", name)
	}
}

func columnNode(t collect.ColumnType) (parquet.Node, error) {
	var node parquet.Node
	switch t {
	case collect.UInt32:
		node = parquet.Uint(32)
	case collect.UInt64:
		node = parquet.Uint(64)
	case collect.Int64:
		node = parquet.Int(64)
	case collect.Float64:
		node = parquet.Leaf(parquet.DoubleType)
	case collect.Boolean:
		node = parquet.Leaf(parquet.BooleanType)
	case collect.String:
		node = parquet.String()
	case collect.Binary:
		node = parquet.Leaf(parquet.ByteArrayType)
	case collect.UInt256:
		node = parquet.Leaf(parquet.FixedLenByteArrayType(32))
	default:
		return nil, fmt.Errorf("no parquet type for column type %s", t)
	}
	return parquet.Optional(node), nil
}

// Schema builds the parquet schema of a table. Every column is optional so
// nulls round-trip.
func Schema(table *collect.Table) (*parquet.Schema, error) {
	group := parquet.Group{}
	for _, name := range table.Columns {
		node, err := columnNode(table.ColumnTypes[name])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		group[name] = node
	}
	return parquet.NewSchema(string(table.Datatype), group), nil
}

// WriteParquet encodes columns as one parquet file on w, rows ordered by
// the table's sort columns.
func WriteParquet(w io.Writer, table *collect.Table, columns *collect.Columns, compression string) error {
	if err := columns.Validate(table); err != nil {
		return err
	}
	codec, err := CompressionCodec(compression)
	if err != nil {
		return err
	}
	schema, err := Schema(table)
	if err != nil {
		return err
	}

	// leaf order follows the schema, which sorts group fields by name
	leaves := schema.Columns()
	values := make([][]any, len(leaves))
	types := make([]collect.ColumnType, len(leaves))
	for i, path := range leaves {
		name := path[0]
		types[i] = table.ColumnTypes[name]
		if column, ok := columns.Column(name); ok {
			values[i] = column
		}
	}

	order := sortedRowOrder(table, columns)
	rows := make([]parquet.Row, 0, columns.NRows)
	for _, r := range order {
		row := make(parquet.Row, len(leaves))
		for i := range leaves {
			var v any
			if values[i] != nil {
				v = values[i][r]
			}
			pv, err := parquetValue(types[i], v)
			if err != nil {
				return fmt.Errorf("column %s row %d: %w", leaves[i][0], r, err)
			}
			if pv.IsNull() {
				row[i] = pv.Level(0, 0, i)
			} else {
				row[i] = pv.Level(0, 1, i)
			}
		}
		rows = append(rows, row)
	}

	options := append([]parquet.WriterOption{schema, parquet.Compression(codec)}, baseWriterOptions...)
	writer := parquet.NewWriter(w, options...)
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

func parquetValue(t collect.ColumnType, v any) (parquet.Value, error) {
	if v == nil {
		return parquet.NullValue(), nil
	}
	switch t {
	case collect.UInt32:
		if x, ok := v.(uint32); ok {
			return parquet.Int32Value(int32(x)), nil
		}
	case collect.UInt64:
		if x, ok := v.(uint64); ok {
			return parquet.Int64Value(int64(x)), nil
		}
	case collect.Int64:
		if x, ok := v.(int64); ok {
			return parquet.Int64Value(x), nil
		}
	case collect.Float64:
		if x, ok := v.(float64); ok {
			return parquet.DoubleValue(x), nil
		}
	case collect.Boolean:
		if x, ok := v.(bool); ok {
			return parquet.BooleanValue(x), nil
		}
	case collect.String:
		if x, ok := v.(string); ok {
			return parquet.ByteArrayValue([]byte(x)), nil
		}
	case collect.Binary:
		if x, ok := v.([]byte); ok {
			return parquet.ByteArrayValue(x), nil
		}
	case collect.UInt256:
		if x, ok := v.(*uint256.Int); ok {
			if x == nil {
				return parquet.NullValue(), nil
			}
			word := x.Bytes32()
			return parquet.FixedLenByteArrayValue(word[:]), nil
		}
	}
	return parquet.Value{}, fmt.Errorf("value %T does not fit column type %s", v, t)
}

// sortedRowOrder returns row indexes ordered by the table's sort columns,
// nulls first. Ties keep insertion order.
func sortedRowOrder(table *collect.Table, columns *collect.Columns) []int {
	order := make([]int, columns.NRows)
	for i := range order {
		order[i] = i
	}
	var keys [][]any
	for _, name := range table.SortColumns {
		if column, ok := columns.Column(name); ok {
			keys = append(keys, column)
		}
	}
	if len(keys) == 0 {
		return order
	}
	sort.SliceStable(order, func(a, b int) bool {
		for _, key := range keys {
			if c := compareValues(key[order[a]], key[order[b]]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return order
}

func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch x := a.(type) {
	case uint32:
		return compareOrdered(x, b.(uint32))
	case uint64:
		return compareOrdered(x, b.(uint64))
	case int64:
		return compareOrdered(x, b.(int64))
	case float64:
		return compareOrdered(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case []byte:
		return bytes.Compare(x, b.([]byte))
	case *uint256.Int:
		return x.Cmp(b.(*uint256.Int))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	return 0
}

type ordered interface {
	~uint32 | ~uint64 | ~int64 | ~float64
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

package collect

import (
	"github.com/thirdweb-dev/extractor/internal/common"
)

type Datatype string

const (
	Blocks         Datatype = "blocks"
	Transactions   Datatype = "transactions"
	Logs           Datatype = "logs"
	Traces         Datatype = "traces"
	VMTraces       Datatype = "vm_traces"
	CodeDiffs      Datatype = "code_diffs"
	StorageDiffs   Datatype = "storage_diffs"
	BalanceDiffs   Datatype = "balance_diffs"
	NonceDiffs     Datatype = "nonce_diffs"
	Erc20Metadata  Datatype = "erc20_metadata"
	Erc721Metadata Datatype = "erc721_metadata"
	Balances       Datatype = "balances"
	Nonces         Datatype = "nonces"
	Codes          Datatype = "codes"
)

type ColumnType int

const (
	UInt32 ColumnType = iota
	UInt64
	Int64
	Float64
	Boolean
	String
	Binary
	// UInt256 values are *uint256.Int
	UInt256
)

func (t ColumnType) String() string {
	switch t {
	case UInt32:
		return "uint32"
	case UInt64:
		return "uint64"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Boolean:
		return "bool"
	case String:
		return "string"
	case Binary:
		return "binary"
	case UInt256:
		return "uint256"
	default:
		return "unknown"
	}
}

// Table is the resolved schema of one dataset: the ordered columns that
// should be populated and their types.
type Table struct {
	Datatype    Datatype
	Columns     []string
	ColumnTypes map[string]ColumnType
	SortColumns []string

	wanted *common.Set[string]
}

// NewTable resolves a dataset's columns: the defaults followed by include,
// with exclude removed last.
func NewTable(ds Dataset, include []string, exclude []string) (*Table, error) {
	types := ds.ColumnTypes()
	names := append(append([]string{}, ds.DefaultColumns()...), include...)

	excluded := common.NewSet(exclude...)
	table := &Table{
		Datatype:    ds.Datatype(),
		ColumnTypes: make(map[string]ColumnType, len(names)),
		wanted:      common.NewSet[string](),
	}
	for _, name := range names {
		columnType, ok := types[name]
		if !ok {
			return nil, common.NewSchemaError("dataset %s has no column %q", ds.Datatype(), name)
		}
		if excluded.Contains(name) || !table.wanted.Add(name) {
			continue
		}
		table.ColumnTypes[name] = columnType
	}
	table.Columns = table.wanted.List()
	for _, name := range ds.DefaultSort() {
		if table.wanted.Contains(name) {
			table.SortColumns = append(table.SortColumns, name)
		}
	}
	return table, nil
}

func (t *Table) HasColumn(name string) bool {
	return t.wanted.Contains(name)
}

// Schemas is the registry of resolved tables handed to extract and transform.
type Schemas map[Datatype]*Table

func (s Schemas) Get(datatype Datatype) (*Table, error) {
	table, ok := s[datatype]
	if !ok || table == nil {
		return nil, common.NewSchemaError("schema not provided for %s", datatype)
	}
	return table, nil
}

// Has reports whether datatype has a schema that wants the named column.
func (s Schemas) Has(datatype Datatype, column string) bool {
	table, ok := s[datatype]
	return ok && table != nil && table.HasColumn(column)
}

package collect

import (
	"sort"

	"github.com/thirdweb-dev/extractor/internal/common"
)

// Columns accumulates the rows of one chunk of one dataset. A column is
// either populated for every row or absent, never partially populated.
type Columns struct {
	Datatype Datatype
	NRows    int

	values map[string][]any
}

func NewColumns(datatype Datatype) *Columns {
	return &Columns{
		Datatype: datatype,
		values:   make(map[string][]any),
	}
}

// Row is a handle on the row most recently emitted through NewRow.
type Row struct {
	columns *Columns
	table   *Table
}

// NewRow counts one more row. Callers then Set every column of the dataset;
// columns the table does not want are skipped.
func (c *Columns) NewRow(table *Table) Row {
	c.NRows++
	return Row{columns: c, table: table}
}

// Set stores value for the current row if the table wants name. A nil value
// records a null.
func (r Row) Set(name string, value any) {
	if !r.table.HasColumn(name) {
		return
	}
	r.columns.values[name] = append(r.columns.values[name], value)
}

// Wants is the explicit check used to skip optional decoding work.
func (r Row) Wants(name string) bool {
	return r.table.HasColumn(name)
}

func (c *Columns) Column(name string) ([]any, bool) {
	values, ok := c.values[name]
	return values, ok
}

// Names returns the populated column names in sorted order.
func (c *Columns) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every column the table wants holds exactly NRows
// values and that nothing else was written.
func (c *Columns) Validate(table *Table) error {
	for name, values := range c.values {
		if !table.HasColumn(name) {
			return common.NewCollectError("%s: column %s is not in the schema", c.Datatype, name)
		}
		if len(values) != c.NRows {
			return common.NewCollectError("%s: column %s has %d values for %d rows", c.Datatype, name, len(values), c.NRows)
		}
	}
	if c.NRows == 0 {
		return nil
	}
	for _, name := range table.Columns {
		if _, ok := c.values[name]; !ok {
			return common.NewCollectError("%s: column %s was not populated", c.Datatype, name)
		}
	}
	return nil
}

package datasets

import (
	"sort"
	"strings"

	"github.com/holiman/uint256"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
)

// Entry is a registered dataset and the collectors it supports. Either
// collector may be nil.
type Entry struct {
	Dataset       collect.Dataset
	ByBlock       collect.UnitCollector
	ByTransaction collect.UnitCollector
}

var registry = map[collect.Datatype]Entry{}

func register(ds collect.Dataset, byBlock, byTransaction collect.UnitCollector) {
	registry[ds.Datatype()] = Entry{Dataset: ds, ByBlock: byBlock, ByTransaction: byTransaction}
}

func init() {
	blocks := NewBlocks()
	register(blocks, collect.ByBlock[blockResponse](blocks), collect.ByTransaction[blockResponse](blocks))

	txs := NewTransactions()
	register(txs, collect.ByBlock[transactionsResponse](txs), collect.ByTransaction[transactionsResponse](txs))

	logs := NewLogs()
	register(logs, collect.ByBlock[logsResponse](logs), collect.ByTransaction[logsResponse](logs))

	traces := NewTraces()
	register(traces, collect.ByBlock[tracesResponse](traces), collect.ByTransaction[tracesResponse](traces))

	vmTraces := NewVMTraces()
	register(vmTraces, collect.ByBlock[traceResponse](vmTraces), collect.ByTransaction[traceResponse](vmTraces))

	codeDiffs := NewCodeDiffs()
	register(codeDiffs, collect.ByBlock[traceResponse](codeDiffs), collect.ByTransaction[traceResponse](codeDiffs))
	storageDiffs := NewStorageDiffs()
	register(storageDiffs, collect.ByBlock[traceResponse](storageDiffs), collect.ByTransaction[traceResponse](storageDiffs))
	balanceDiffs := NewBalanceDiffs()
	register(balanceDiffs, collect.ByBlock[traceResponse](balanceDiffs), collect.ByTransaction[traceResponse](balanceDiffs))
	nonceDiffs := NewNonceDiffs()
	register(nonceDiffs, collect.ByBlock[traceResponse](nonceDiffs), collect.ByTransaction[traceResponse](nonceDiffs))

	erc20 := NewErc20Metadata()
	register(erc20, collect.ByBlock[tokenMetadata](erc20), nil)
	erc721 := NewErc721Metadata()
	register(erc721, collect.ByBlock[tokenMetadata](erc721), nil)

	balances := NewBalances()
	register(balances, collect.ByBlock[accountRead[*uint256.Int]](balances), nil)
	nonces := NewNonces()
	register(nonces, collect.ByBlock[accountRead[uint64]](nonces), nil)
	codes := NewCodes()
	register(codes, collect.ByBlock[accountRead[[]byte]](codes), nil)
}

// Lookup resolves a dataset name. Dashes are accepted in place of
// underscores.
func Lookup(name string) (Entry, error) {
	datatype := collect.Datatype(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
	entry, ok := registry[datatype]
	if !ok {
		return Entry{}, common.NewSchemaError("unknown dataset %q", name)
	}
	return entry, nil
}

// All returns every registered dataset sorted by name.
func All() []Entry {
	entries := make([]Entry, 0, len(registry))
	for _, entry := range registry {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Dataset.Name() < entries[j].Dataset.Name()
	})
	return entries
}

// Schemas resolves a table for every named dataset: its default columns
// plus include, minus exclude.
func Schemas(names []string, include, exclude []string) (collect.Schemas, error) {
	schemas := collect.Schemas{}
	matched := common.NewSet[string]()
	for _, name := range names {
		entry, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		for _, column := range filterKnown(entry.Dataset, include) {
			matched.Add(column)
		}
		table, err := collect.NewTable(entry.Dataset, filterKnown(entry.Dataset, include), exclude)
		if err != nil {
			return nil, err
		}
		schemas[entry.Dataset.Datatype()] = table
	}
	for _, column := range include {
		if !matched.Contains(column) {
			return nil, common.NewSchemaError("no requested dataset has column %q", column)
		}
	}
	return schemas, nil
}

// filterKnown keeps the included columns a dataset actually has so one
// include list can serve several datasets.
func filterKnown(ds collect.Dataset, include []string) []string {
	if len(include) == 0 {
		return nil
	}
	types := ds.ColumnTypes()
	known := make([]string, 0, len(include))
	for _, name := range include {
		if _, ok := types[name]; ok {
			known = append(known, name)
		}
	}
	return known
}

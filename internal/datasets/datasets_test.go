package datasets

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/rpc"
	"github.com/thirdweb-dev/extractor/test/mocks"
)

type testDataset interface {
	collect.Dataset
	AllColumns() []string
}

// allColumnSchemas builds schemas that want every column of ds.
func allColumnSchemas(t *testing.T, ds testDataset) collect.Schemas {
	t.Helper()
	table, err := collect.NewTable(ds, ds.AllColumns(), nil)
	require.NoError(t, err)
	return collect.Schemas{ds.Datatype(): table}
}

func defaultSchemas(t *testing.T, ds collect.Dataset, exclude ...string) collect.Schemas {
	t.Helper()
	table, err := collect.NewTable(ds, nil, exclude)
	require.NoError(t, err)
	return collect.Schemas{ds.Datatype(): table}
}

func testSource(m *mocks.MockCaller) collect.Source {
	return collect.Source{Fetcher: rpc.NewFetcher(m, nil), ChainID: 1, InnerRequestSize: 1, MaxConcurrentChunks: 1}
}

func columnValues(t *testing.T, columns *collect.Columns, name string) []any {
	t.Helper()
	values, ok := columns.Column(name)
	require.True(t, ok, "column %s not populated", name)
	return values
}

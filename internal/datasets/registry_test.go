package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
)

func TestRegistry_EveryDatatypeRegistered(t *testing.T) {
	for _, datatype := range []collect.Datatype{
		collect.Blocks, collect.Transactions, collect.Logs, collect.Traces, collect.VMTraces,
		collect.CodeDiffs, collect.StorageDiffs, collect.BalanceDiffs, collect.NonceDiffs,
		collect.Erc20Metadata, collect.Erc721Metadata, collect.Balances, collect.Nonces, collect.Codes,
	} {
		entry, err := Lookup(string(datatype))
		require.NoError(t, err, datatype)
		assert.Equal(t, datatype, entry.Dataset.Datatype())
		assert.NotNil(t, entry.ByBlock, datatype)
	}
	assert.Len(t, All(), 14)
}

func TestRegistry_CodeDiffsIsOneDataset(t *testing.T) {
	entry, err := Lookup("code-diffs")
	require.NoError(t, err)
	assert.Equal(t, "code_diffs", entry.Dataset.Name())
	assert.NotNil(t, entry.ByTransaction)

	schemas, err := Schemas([]string{"code_diffs"}, nil, nil)
	require.NoError(t, err)
	_, err = schemas.Get(collect.CodeDiffs)
	assert.NoError(t, err)
}

func TestRegistry_UnknownDataset(t *testing.T) {
	_, err := Lookup("uncles")
	assert.ErrorIs(t, err, common.ErrSchema)
}

func TestSchemas_SharedIncludeList(t *testing.T) {
	schemas, err := Schemas([]string{"blocks", "logs"}, []string{"size", "removed"}, []string{"chain_id"})
	require.NoError(t, err)

	blocks, err := schemas.Get(collect.Blocks)
	require.NoError(t, err)
	assert.True(t, blocks.HasColumn("size"))
	assert.False(t, blocks.HasColumn("removed"))
	assert.False(t, blocks.HasColumn("chain_id"))

	logs, err := schemas.Get(collect.Logs)
	require.NoError(t, err)
	assert.True(t, logs.HasColumn("removed"))
	assert.False(t, logs.HasColumn("size"))
}

func TestSchemas_UnknownIncludedColumn(t *testing.T) {
	_, err := Schemas([]string{"blocks", "logs"}, []string{"size", "uncle_count"}, nil)
	assert.ErrorIs(t, err, common.ErrSchema)
}

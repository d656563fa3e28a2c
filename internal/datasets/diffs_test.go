package datasets

import (
	"bytes"
	"context"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/rpc"
	"github.com/thirdweb-dev/extractor/test/mocks"
)

var (
	addrA = gethCommon.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB = gethCommon.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func stateDiffResponse(diffs ...rpc.StateDiff) traceResponse {
	block := uint64(7)
	response := traceResponse{TraceResponse: rpc.TraceResponse{BlockNumber: &block}, chainID: 1}
	for _, diff := range diffs {
		response.Traces = append(response.Traces, rpc.BlockTrace{StateDiff: diff})
	}
	return response
}

func TestNormalize(t *testing.T) {
	zero := common.ZeroWord()
	tests := []struct {
		name     string
		diff     rpc.Diff
		from, to []byte
	}{
		{"same", rpc.Diff{Kind: rpc.DiffSame}, zero, zero},
		{"born", rpc.Diff{Kind: rpc.DiffBorn, To: []byte{0x60}}, zero, []byte{0x60}},
		{"died", rpc.Diff{Kind: rpc.DiffDied, From: []byte{0x60}}, []byte{0x60}, zero},
		{"changed", rpc.Diff{Kind: rpc.DiffChanged, From: []byte{0x01}, To: []byte{0x02}}, []byte{0x01}, []byte{0x02}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := Normalize(tt.diff, zero)
			assert.Equal(t, tt.from, from)
			assert.Equal(t, tt.to, to)
		})
	}
}

func TestNormalize_SameNeverMixesZeroAndNonZero(t *testing.T) {
	// a malformed "same" entry that still carries values must not leak them
	from, to := Normalize(rpc.Diff{Kind: rpc.DiffSame, From: []byte{0x01}, To: []byte{0x02}}, common.ZeroWord())
	assert.Equal(t, from, to)
	assert.True(t, bytes.Equal(from, common.ZeroWord()))
}

func TestCodeDiffs_ChangedDiffYieldsOneRow(t *testing.T) {
	response := stateDiffResponse(rpc.StateDiff{
		addrA: {Code: rpc.Diff{Kind: rpc.DiffChanged, From: []byte{0x01}, To: []byte{0x02}}},
	})
	ds := NewCodeDiffs()
	schemas := defaultSchemas(t, ds)
	columns := collect.NewColumns(ds.Datatype())

	require.NoError(t, ds.TransformByBlock(response, columns, schemas))
	table, _ := schemas.Get(collect.CodeDiffs)
	require.NoError(t, columns.Validate(table))

	require.Equal(t, 1, columns.NRows)
	assert.Equal(t, addrA.Bytes(), columnValues(t, columns, "address")[0])
	assert.Equal(t, []byte{0x01}, columnValues(t, columns, "from_value")[0])
	assert.Equal(t, []byte{0x02}, columnValues(t, columns, "to_value")[0])
	assert.Equal(t, uint32(7), columnValues(t, columns, "block_number")[0])
	assert.Equal(t, uint64(0), columnValues(t, columns, "transaction_index")[0])
}

func TestCodeDiffs_AddressesInAscendingOrder(t *testing.T) {
	response := stateDiffResponse(
		rpc.StateDiff{
			addrB: {Code: rpc.Diff{Kind: rpc.DiffBorn, To: []byte{0x60}}},
			addrA: {Code: rpc.Diff{Kind: rpc.DiffSame}},
		},
		rpc.StateDiff{
			addrA: {Code: rpc.Diff{Kind: rpc.DiffDied, From: []byte{0x60}}},
		},
	)
	ds := NewCodeDiffs()
	schemas := defaultSchemas(t, ds)
	columns := collect.NewColumns(ds.Datatype())
	require.NoError(t, ds.TransformByTransaction(response, columns, schemas))

	require.Equal(t, 3, columns.NRows)
	assert.Equal(t, []any{addrA.Bytes(), addrB.Bytes(), addrA.Bytes()}, columnValues(t, columns, "address"))
	assert.Equal(t, []any{uint64(0), uint64(0), uint64(1)}, columnValues(t, columns, "transaction_index"))
	from := columnValues(t, columns, "from_value")
	to := columnValues(t, columns, "to_value")
	assert.Equal(t, common.ZeroWord(), from[0])
	assert.Equal(t, common.ZeroWord(), to[0])
	assert.Equal(t, []byte{0x60}, to[1])
	assert.Equal(t, common.ZeroWord(), to[2])
}

func TestCodeDiffs_TransformIsIdempotent(t *testing.T) {
	response := stateDiffResponse(rpc.StateDiff{
		addrA: {Code: rpc.Diff{Kind: rpc.DiffBorn, To: []byte{0x60}}},
		addrB: {Code: rpc.Diff{Kind: rpc.DiffChanged, From: []byte{0x01}, To: []byte{0x02}}},
	})
	ds := NewCodeDiffs()
	schemas := defaultSchemas(t, ds)

	first := collect.NewColumns(ds.Datatype())
	second := collect.NewColumns(ds.Datatype())
	require.NoError(t, ds.TransformByBlock(response, first, schemas))
	require.NoError(t, ds.TransformByBlock(response, second, schemas))
	assert.Equal(t, first, second)
}

func TestCodeDiffs_MissingSchema(t *testing.T) {
	ds := NewCodeDiffs()
	err := ds.TransformByBlock(stateDiffResponse(), collect.NewColumns(ds.Datatype()), collect.Schemas{})
	assert.ErrorIs(t, err, common.ErrSchema)
}

func TestStorageDiffs_OneRowPerSlot(t *testing.T) {
	slot1 := gethCommon.BigToHash(gethCommon.Big1)
	slot2 := gethCommon.BigToHash(gethCommon.Big2)
	response := stateDiffResponse(rpc.StateDiff{
		addrA: {Storage: map[gethCommon.Hash]rpc.Diff{
			slot2: {Kind: rpc.DiffBorn, To: []byte{0x05}},
			slot1: {Kind: rpc.DiffChanged, From: []byte{0x01}, To: []byte{0x02}},
		}},
	})
	ds := NewStorageDiffs()
	schemas := defaultSchemas(t, ds)
	columns := collect.NewColumns(ds.Datatype())
	require.NoError(t, ds.TransformByBlock(response, columns, schemas))

	require.Equal(t, 2, columns.NRows)
	assert.Equal(t, []any{slot1.Bytes(), slot2.Bytes()}, columnValues(t, columns, "slot"))
	assert.Equal(t, []any{[]byte{0x01}, common.ZeroWord()}, columnValues(t, columns, "from_value"))
}

func TestBalanceAndNonceDiffs(t *testing.T) {
	response := stateDiffResponse(rpc.StateDiff{
		addrA: {
			Balance: rpc.Diff{Kind: rpc.DiffChanged, From: []byte{0x10}, To: []byte{0x20}},
			Nonce:   rpc.Diff{Kind: rpc.DiffBorn, To: []byte{0x01}},
		},
	})

	balances := NewBalanceDiffs()
	schemas := defaultSchemas(t, balances)
	columns := collect.NewColumns(balances.Datatype())
	require.NoError(t, balances.TransformByBlock(response, columns, schemas))
	require.Equal(t, 1, columns.NRows)
	assert.Equal(t, uint256.NewInt(0x10), columnValues(t, columns, "from_value")[0])
	assert.Equal(t, uint256.NewInt(0x20), columnValues(t, columns, "to_value")[0])

	nonces := NewNonceDiffs()
	schemas = defaultSchemas(t, nonces)
	columns = collect.NewColumns(nonces.Datatype())
	require.NoError(t, nonces.TransformByBlock(response, columns, schemas))
	require.Equal(t, 1, columns.NRows)
	assert.Equal(t, uint64(0), columnValues(t, columns, "from_value")[0])
	assert.Equal(t, uint64(1), columnValues(t, columns, "to_value")[0])
}

func TestCodeDiffs_ExtractByTransaction(t *testing.T) {
	txHash := gethCommon.HexToHash("0x1234")
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("trace_replayTransaction", txHash, []string{"stateDiff"}).Return(`{
		"output": "0x",
		"stateDiff": {"0x00000000000000000000000000000000000000aa": {
			"balance": "=", "nonce": "=", "storage": {},
			"code": {"*": {"from": "0x01", "to": "0x02"}}
		}},
		"trace": [], "vmTrace": null
	}`, nil)

	ds := NewCodeDiffs()
	schemas := defaultSchemas(t, ds)
	response, err := ds.ExtractByTransaction(context.Background(), collect.TransactionParams(txHash), testSource(mockCaller), schemas)
	require.NoError(t, err)

	columns := collect.NewColumns(ds.Datatype())
	require.NoError(t, ds.TransformByTransaction(response, columns, schemas))
	require.Equal(t, 1, columns.NRows)
	assert.Equal(t, txHash.Bytes(), columnValues(t, columns, "transaction_hash")[0])
	assert.Nil(t, columnValues(t, columns, "block_number")[0])
	assert.Equal(t, []byte{0x02}, columnValues(t, columns, "to_value")[0])
	mockCaller.AssertExpectations(t)
}

package cmd

import (
	"bytes"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/datasets"
)

func TestParseBlockSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    blockSpec
		wantErr bool
	}{
		{in: "100:200", want: blockSpec{from: 100, to: 200}},
		{in: "17_000_000", want: blockSpec{from: 17_000_000, to: 17_000_000}},
		{in: "0x10:0x20", want: blockSpec{from: 16, to: 32}},
		{in: "5:latest", want: blockSpec{from: 5, toLatest: true}},
		{in: "200:100", wantErr: true},
		{in: ":100", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseBlockSpec(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseTxHashes(t *testing.T) {
	hash := "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
	hashes, err := parseTxHashes([]string{hash})
	require.NoError(t, err)
	assert.Equal(t, gethCommon.HexToHash(hash), hashes[0])

	_, err = parseTxHashes([]string{"0x1234"})
	assert.Error(t, err)
	_, err = parseTxHashes([]string{"not-a-hash"})
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	address, err := parseAddress("")
	require.NoError(t, err)
	assert.Nil(t, address)

	address, err = parseAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
	require.NoError(t, err)
	assert.Equal(t, gethCommon.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7"), *address)

	_, err = parseAddress("0xdead")
	assert.Error(t, err)
}

func TestPlanUnits(t *testing.T) {
	logs, err := datasets.Lookup("logs")
	require.NoError(t, err)
	collector, units, err := planUnits(logs, &blockSpec{from: 1, to: 10}, nil, nil, 4)
	require.NoError(t, err)
	assert.Equal(t, logs.ByBlock, collector)
	require.Len(t, units, 3)
	from, to, err := units[2].BlockRange()
	require.NoError(t, err)
	assert.Equal(t, uint64(9), from)
	assert.Equal(t, uint64(10), to)

	blocks, err := datasets.Lookup("blocks")
	require.NoError(t, err)
	_, units, err = planUnits(blocks, &blockSpec{from: 1, to: 10}, nil, nil, 4)
	require.NoError(t, err)
	assert.Len(t, units, 10)

	hash := gethCommon.HexToHash("0x01")
	_, units, err = planUnits(blocks, nil, []gethCommon.Hash{hash}, nil, 1)
	require.NoError(t, err)
	require.Len(t, units, 1)
	got, err := units[0].TransactionHash()
	require.NoError(t, err)
	assert.Equal(t, hash, got)

	balances, err := datasets.Lookup("balances")
	require.NoError(t, err)
	_, _, err = planUnits(balances, nil, []gethCommon.Hash{hash}, nil, 1)
	assert.ErrorContains(t, err, "cannot be collected by transaction")
}

func TestPrintDatasets(t *testing.T) {
	var buf bytes.Buffer
	printDatasets(&buf)
	out := buf.String()
	assert.Contains(t, out, "code_diffs [blocks,txs]")
	assert.Contains(t, out, "erc20_metadata [blocks]")
	assert.Contains(t, out, "default: block_number")
}

package rpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/gate"
	"github.com/thirdweb-dev/extractor/test/mocks"
)

var (
	testTxHash  = gethCommon.HexToHash("0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060")
	testAddress = gethCommon.HexToAddress("0xdac17f958d2ee523a2206206994597c13d831ec7")
)

const testLog = `{
	"address": "0xdac17f958d2ee523a2206206994597c13d831ec7",
	"topics": ["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"],
	"data": "0x0000000000000000000000000000000000000000000000000000000000000064",
	"blockNumber": "0x10",
	"transactionHash": "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060",
	"transactionIndex": "0x0",
	"blockHash": "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b",
	"logIndex": "0x0",
	"removed": false
}`

func TestFetcher_MapsTransportErrors(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_blockNumber").Return(nil, errors.New("connection refused"))
	fetcher := NewFetcher(mockCaller, nil)

	_, err := fetcher.GetBlockNumber(context.Background())

	assert.ErrorIs(t, err, common.ErrRPC)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Contains(t, err.Error(), "eth_blockNumber")
}

func TestFetcher_MapsMalformedBodiesToDecodeErrors(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(`{"not":"a list"}`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	_, err := fetcher.GetBlockReceipts(context.Background(), 16)

	assert.ErrorIs(t, err, common.ErrDecode)
	assert.NotErrorIs(t, err, common.ErrRPC)
}

func TestFetcher_MapsInvalidDiffsToDecodeErrors(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("trace_replayBlockTransactions", "0x1", []string{"stateDiff"}).
		Return(`[{"output":"0x","stateDiff":{"0xdac17f958d2ee523a2206206994597c13d831ec7":{"code":{"?":"0x01"}}}}]`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	_, err := fetcher.TraceBlockStateDiffs(context.Background(), 1)

	assert.ErrorIs(t, err, common.ErrDecode)
}

func TestFetcher_TraceBlockVariantsCarryBlockNumber(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("trace_replayBlockTransactions", "0x64", []string{"vmTrace"}).
		Return(`[{"output":"0x","vmTrace":{"code":"0x","ops":[]}},{"output":"0x","vmTrace":null}]`, nil).Once()
	mockCaller.On("trace_replayBlockTransactions", "0x64", []string{"stateDiff"}).
		Return(`[{"output":"0x","stateDiff":{}}]`, nil).Once()
	fetcher := NewFetcher(mockCaller, nil)

	vm, err := fetcher.TraceBlockVMTraces(context.Background(), 100)
	require.NoError(t, err)
	require.NotNil(t, vm.BlockNumber)
	assert.Equal(t, uint64(100), *vm.BlockNumber)
	assert.Nil(t, vm.TransactionHash)
	assert.Len(t, vm.Traces, 2)

	diffs, err := fetcher.TraceBlockStateDiffs(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), *diffs.BlockNumber)
	assert.Len(t, diffs.Traces, 1)
	mockCaller.AssertExpectations(t)
}

func TestFetcher_TraceTransactionVariantsWrapSingleTrace(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("trace_replayTransaction", testTxHash, []string{"vmTrace"}).
		Return(`{"output":"0x","vmTrace":{"code":"0x","ops":[{"pc":0,"cost":3,"ex":null,"sub":null}]}}`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	resp, err := fetcher.TraceTransactionVMTraces(context.Background(), testTxHash)
	require.NoError(t, err)

	assert.Nil(t, resp.BlockNumber)
	require.NotNil(t, resp.TransactionHash)
	assert.Equal(t, testTxHash, *resp.TransactionHash)
	require.Len(t, resp.Traces, 1)
	assert.Equal(t, testTxHash, *resp.Traces[0].TransactionHash)
	assert.Len(t, resp.Traces[0].VMTrace.Ops, 1)
}

func TestFetcher_GetTransactionLogsNotFound(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getTransactionReceipt", testTxHash).Return(nil, nil)
	fetcher := NewFetcher(mockCaller, nil)

	_, err := fetcher.GetTransactionLogs(context.Background(), testTxHash)

	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetcher_GetTransactionLogs(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getTransactionReceipt", testTxHash).
		Return(`{"transactionHash":"`+testTxHash.Hex()+`","transactionIndex":"0x0","gasUsed":"0x5208","logs":[`+testLog+`]}`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	logs, err := fetcher.GetTransactionLogs(context.Background(), testTxHash)
	require.NoError(t, err)

	require.Len(t, logs, 1)
	assert.Equal(t, testAddress, logs[0].Address)
	assert.Equal(t, uint64(16), logs[0].BlockNumber)
}

func TestFetcher_GetTransactionBlockNumber(t *testing.T) {
	pending := gethCommon.HexToHash("0x01")
	missing := gethCommon.HexToHash("0x02")

	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getTransactionByHash", testTxHash).
		Return(`{"hash":"`+testTxHash.Hex()+`","blockNumber":"0x2a","from":"0xdac17f958d2ee523a2206206994597c13d831ec7","nonce":"0x1","gas":"0x5208","input":"0x","type":"0x0"}`, nil)
	mockCaller.On("eth_getTransactionByHash", pending).
		Return(`{"hash":"`+pending.Hex()+`","blockNumber":null,"from":"0xdac17f958d2ee523a2206206994597c13d831ec7","nonce":"0x1","gas":"0x5208","input":"0x","type":"0x0"}`, nil)
	mockCaller.On("eth_getTransactionByHash", missing).Return(nil, nil)
	fetcher := NewFetcher(mockCaller, nil)

	number, err := fetcher.GetTransactionBlockNumber(context.Background(), testTxHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), number)

	_, err = fetcher.GetTransactionBlockNumber(context.Background(), pending)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = fetcher.GetTransactionBlockNumber(context.Background(), missing)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFetcher_Call2PinsBlock(t *testing.T) {
	data := []byte{0x06, 0xfd, 0xde, 0x03}
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_call", CallRequest{To: testAddress, Data: data}, "0x3e8").Return(`"0xabcd"`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	out, err := fetcher.Call2(context.Background(), testAddress, data, 1000)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xab, 0xcd}, out)
	mockCaller.AssertExpectations(t)
}

func TestFetcher_StateReads(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBalance", testAddress, "0x10").Return(`"0xde0b6b3a7640000"`, nil)
	mockCaller.On("eth_getTransactionCount", testAddress, "0x10").Return(`"0x7"`, nil)
	mockCaller.On("eth_getCode", testAddress, "0x10").Return(`"0x6080"`, nil)
	mockCaller.On("eth_getStorageAt", testAddress, gethCommon.Hash{}, "0x10").Return(`"0x01"`, nil)
	mockCaller.On("eth_chainId").Return(`"0x1"`, nil)
	fetcher := NewFetcher(mockCaller, nil)
	ctx := context.Background()

	balance, err := fetcher.GetBalance(ctx, testAddress, 16)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.Dec())

	nonce, err := fetcher.GetTransactionCount(ctx, testAddress, 16)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), nonce)

	code, err := fetcher.GetCode(ctx, testAddress, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)

	slot, err := fetcher.GetStorageAt(ctx, testAddress, gethCommon.Hash{}, 16)
	require.NoError(t, err)
	assert.Equal(t, gethCommon.BigToHash(hexutil.MustDecodeBig("0x1")), slot)

	chainID, err := fetcher.ChainID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), chainID)
}

func TestFetcher_GetLogsFilter(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getLogs", map[string]interface{}{
		"address":   []gethCommon.Address{testAddress},
		"fromBlock": "0x10",
		"toBlock":   "0x1f",
	}).Return(`[`+testLog+`]`, nil)
	fetcher := NewFetcher(mockCaller, nil)

	logs, err := fetcher.GetLogs(context.Background(), ethereum.FilterQuery{
		FromBlock: hexutil.MustDecodeBig("0x10"),
		ToBlock:   hexutil.MustDecodeBig("0x1f"),
		Addresses: []gethCommon.Address{testAddress},
	})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestFetcher_EveryCallPassesThroughGate(t *testing.T) {
	mockCaller := &mocks.MockCaller{Latency: 20 * time.Millisecond}
	mockCaller.On("eth_blockNumber").Return(`"0x1"`, nil)
	g := gate.New(gate.Config{MaxConcurrentRequests: 2})
	fetcher := NewFetcher(mockCaller, g)

	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		go func() {
			_, err := fetcher.GetBlockNumber(context.Background())
			errs <- err
		}()
	}
	for i := 0; i < 6; i++ {
		assert.NoError(t, <-errs)
	}

	assert.LessOrEqual(t, mockCaller.PeakConcurrency(), 2)
	assert.Equal(t, int64(0), g.InFlight())
	mockCaller.AssertNumberOfCalls(t, "eth_blockNumber", 6)
}

func TestFetcher_CancelledWhileWaitingForPermit(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	g := gate.New(gate.Config{MaxConcurrentRequests: 1})
	holder, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer holder.Release()
	fetcher := NewFetcher(mockCaller, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.GetBlockNumber(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	mockCaller.AssertNotCalled(t, "eth_blockNumber")
}

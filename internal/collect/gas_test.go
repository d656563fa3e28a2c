package collect

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/rpc"
	"github.com/thirdweb-dev/extractor/test/mocks"
)

var (
	txA = gethCommon.HexToHash("0xaaaa")
	txB = gethCommon.HexToHash("0xbbbb")
	txC = gethCommon.HexToHash("0xcccc")
)

func testBlock(number int64, hashes ...gethCommon.Hash) *rpc.Block[rpc.Transaction] {
	txs := make([]rpc.Transaction, len(hashes))
	for i, h := range hashes {
		txs[i] = rpc.Transaction{Hash: h}
	}
	return &rpc.Block[rpc.Transaction]{Number: (*hexutil.Big)(big.NewInt(number)), Transactions: txs}
}

func receiptJSON(hash gethCommon.Hash, gasUsed string) string {
	if gasUsed == "" {
		return fmt.Sprintf(`{"transactionHash":%q,"transactionIndex":"0x0","gasUsed":null,"logs":[]}`, hash.Hex())
	}
	return fmt.Sprintf(`{"transactionHash":%q,"transactionIndex":"0x0","gasUsed":%q,"logs":[]}`, hash.Hex(), gasUsed)
}

func receiptsJSON(receipts ...string) string {
	return "[" + strings.Join(receipts, ",") + "]"
}

func testSource(m *mocks.MockCaller) Source {
	return Source{Fetcher: rpc.NewFetcher(m, nil), ChainID: 1, InnerRequestSize: 1, MaxConcurrentChunks: 2}
}

func TestTxsGasUsed_BlockReceiptsInBlockOrder(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	// receipts out of order on purpose
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(receiptsJSON(
		receiptJSON(txB, "0x2"),
		receiptJSON(txA, "0x1"),
		receiptJSON(txC, "0x3"),
	), nil)

	gasUsed, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA, txB, txC))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, gasUsed)
	mockCaller.AssertNotCalled(t, "eth_getTransactionReceipt", txA)
	mockCaller.AssertNumberOfCalls(t, "eth_getTransactionReceipt", 0)
}

func TestTxsGasUsed_FallsBackWhenBlockReceiptsFail(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(nil, errors.New("method not found"))
	mockCaller.On("eth_getTransactionReceipt", txA).Return(receiptJSON(txA, "0x5208"), nil)
	mockCaller.On("eth_getTransactionReceipt", txB).Return(receiptJSON(txB, "0x7530"), nil)

	gasUsed, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA, txB))
	require.NoError(t, err)
	assert.Equal(t, []uint64{21000, 30000}, gasUsed)
	mockCaller.AssertNumberOfCalls(t, "eth_getTransactionReceipt", 2)
}

func TestTxsGasUsed_FallsBackWhenGasUsedMissing(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(receiptsJSON(
		receiptJSON(txA, "0x1"),
		receiptJSON(txB, ""),
	), nil)
	mockCaller.On("eth_getTransactionReceipt", txA).Return(receiptJSON(txA, "0x1"), nil)
	mockCaller.On("eth_getTransactionReceipt", txB).Return(receiptJSON(txB, "0x9"), nil)

	gasUsed, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA, txB))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 9}, gasUsed)
}

func TestTxsGasUsed_FallsBackWhenReceiptMissingFromBlock(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(receiptsJSON(receiptJSON(txA, "0x1")), nil)
	mockCaller.On("eth_getTransactionReceipt", txA).Return(receiptJSON(txA, "0x1"), nil)
	mockCaller.On("eth_getTransactionReceipt", txB).Return(receiptJSON(txB, "0x2"), nil)

	gasUsed, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA, txB))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, gasUsed)
}

func TestTxsGasUsed_FallbackFailsOnUnknownReceipt(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(nil, errors.New("unsupported"))
	mockCaller.On("eth_getTransactionReceipt", txA).Return(receiptJSON(txA, "0x1"), nil)
	mockCaller.On("eth_getTransactionReceipt", txB).Return(nil, nil)

	_, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA, txB))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestTxsGasUsed_FallbackFailsOnMissingGasUsed(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	mockCaller.On("eth_getBlockReceipts", "0x10").Return(nil, errors.New("unsupported"))
	mockCaller.On("eth_getTransactionReceipt", txA).Return(receiptJSON(txA, ""), nil)

	_, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16, txA))
	assert.ErrorIs(t, err, common.ErrCollect)
}

func TestTxsGasUsed_EmptyBlockMakesNoCalls(t *testing.T) {
	mockCaller := &mocks.MockCaller{}
	gasUsed, err := testSource(mockCaller).TxsGasUsed(context.Background(), testBlock(16))
	require.NoError(t, err)
	assert.Empty(t, gasUsed)
	mockCaller.AssertExpectations(t)
}

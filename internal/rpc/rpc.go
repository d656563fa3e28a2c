package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/gate"
	"github.com/thirdweb-dev/extractor/internal/metrics"
)

// Caller is the JSON-RPC transport. *gethRpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// Fetcher wraps one RPC client behind a request gate. It is safe for use by
// any number of goroutines; the gate is its only mutable state.
type Fetcher struct {
	client Caller
	gate   *gate.Gate
	url    string
	close  func()
}

func NewFetcher(client Caller, g *gate.Gate) *Fetcher {
	if g == nil {
		g = gate.Unlimited()
	}
	return &Fetcher{client: client, gate: g}
}

func Dial(ctx context.Context, url string, g *gate.Gate) (*Fetcher, error) {
	rpcClient, err := gethRpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	f := NewFetcher(rpcClient, g)
	f.url = url
	f.close = rpcClient.Close
	return f, nil
}

// Initialize dials the configured RPC endpoint behind a gate built from the
// rpc config section.
func Initialize(ctx context.Context) (*Fetcher, error) {
	rpcUrl := config.Cfg.RPC.URL
	if rpcUrl == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is not set")
	}
	log.Debug().Msg("Initializing RPC")
	g := gate.New(gate.Config{
		MaxConcurrentRequests: config.Cfg.RPC.MaxConcurrentRequests,
		RequestsPerSecond:     float64(config.Cfg.RPC.MaxRequestsPerSecond),
		Burst:                 config.Cfg.RPC.Burst,
	})
	return Dial(ctx, rpcUrl, g)
}

func (f *Fetcher) Gate() *gate.Gate {
	return f.gate
}

func (f *Fetcher) GetURL() string {
	return f.url
}

func (f *Fetcher) Close() {
	if f.close != nil {
		f.close()
	}
}

// call performs exactly one round trip under one permit.
func (f *Fetcher) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	permit, err := f.gate.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring permit for %s: %w", method, err)
	}
	defer permit.Release()

	start := time.Now()
	metrics.RPCRequests.WithLabelValues(method).Inc()
	err = f.client.CallContext(ctx, result, method, args...)
	metrics.RPCRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RPCRequestErrors.WithLabelValues(method).Inc()
		log.Debug().Err(err).Str("method", method).Msg("RPC request failed")
		return mapError(method, err)
	}
	return nil
}

func mapError(method string, err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return common.NewDecodeError(method, err)
	}
	if kind, ok := common.KindOf(err); ok && kind == common.KindDecode {
		return common.NewDecodeError(method, err)
	}
	return common.NewRPCError(method, err)
}

// GetLogs returns the logs matching the filter, possibly none.
func (f *Fetcher) GetLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	args, err := GetLogsParams(q)
	if err != nil {
		return nil, common.NewCollectError("invalid log filter: %v", err)
	}
	var logs []types.Log
	if err := f.call(ctx, &logs, "eth_getLogs", args...); err != nil {
		return nil, err
	}
	return logs, nil
}

// TraceReplayBlockTransactions replays every transaction of a block and
// returns the requested traces for each, in block order.
func (f *Fetcher) TraceReplayBlockTransactions(ctx context.Context, block uint64, kinds []TraceKind) ([]BlockTrace, error) {
	var traces []BlockTrace
	if err := f.call(ctx, &traces, "trace_replayBlockTransactions", ReplayBlockParams(block, kinds)...); err != nil {
		return nil, err
	}
	return traces, nil
}

func (f *Fetcher) TraceReplayTransaction(ctx context.Context, txHash gethCommon.Hash, kinds []TraceKind) (BlockTrace, error) {
	var trace BlockTrace
	if err := f.call(ctx, &trace, "trace_replayTransaction", ReplayTransactionParams(txHash, kinds)...); err != nil {
		return BlockTrace{}, err
	}
	if trace.TransactionHash == nil {
		hash := txHash
		trace.TransactionHash = &hash
	}
	return trace, nil
}

func (f *Fetcher) TraceBlockStateDiffs(ctx context.Context, block uint64) (TraceResponse, error) {
	return f.traceBlock(ctx, block, TraceKindStateDiff)
}

func (f *Fetcher) TraceBlockVMTraces(ctx context.Context, block uint64) (TraceResponse, error) {
	return f.traceBlock(ctx, block, TraceKindVMTrace)
}

func (f *Fetcher) traceBlock(ctx context.Context, block uint64, kind TraceKind) (TraceResponse, error) {
	traces, err := f.TraceReplayBlockTransactions(ctx, block, []TraceKind{kind})
	if err != nil {
		return TraceResponse{}, err
	}
	return TraceResponse{BlockNumber: &block, Traces: traces}, nil
}

func (f *Fetcher) TraceTransactionStateDiffs(ctx context.Context, txHash gethCommon.Hash) (TraceResponse, error) {
	return f.traceTransaction(ctx, txHash, TraceKindStateDiff)
}

func (f *Fetcher) TraceTransactionVMTraces(ctx context.Context, txHash gethCommon.Hash) (TraceResponse, error) {
	return f.traceTransaction(ctx, txHash, TraceKindVMTrace)
}

func (f *Fetcher) traceTransaction(ctx context.Context, txHash gethCommon.Hash, kind TraceKind) (TraceResponse, error) {
	trace, err := f.TraceReplayTransaction(ctx, txHash, []TraceKind{kind})
	if err != nil {
		return TraceResponse{}, err
	}
	return TraceResponse{TransactionHash: &txHash, Traces: []BlockTrace{trace}}, nil
}

// GetTransaction returns nil without error when the node does not know the transaction.
func (f *Fetcher) GetTransaction(ctx context.Context, txHash gethCommon.Hash) (*Transaction, error) {
	var tx *Transaction
	if err := f.call(ctx, &tx, "eth_getTransactionByHash", GetTransactionParams(txHash)...); err != nil {
		return nil, err
	}
	return tx, nil
}

// GetTransactionReceipt returns nil without error when the receipt is unknown.
func (f *Fetcher) GetTransactionReceipt(ctx context.Context, txHash gethCommon.Hash) (*Receipt, error) {
	var receipt *Receipt
	if err := f.call(ctx, &receipt, "eth_getTransactionReceipt", GetTransactionParams(txHash)...); err != nil {
		return nil, err
	}
	return receipt, nil
}

// GetBlock returns the block with transaction hashes only, nil if unknown.
func (f *Fetcher) GetBlock(ctx context.Context, block uint64) (*Block[gethCommon.Hash], error) {
	var b *Block[gethCommon.Hash]
	if err := f.call(ctx, &b, "eth_getBlockByNumber", GetBlockWithoutTransactionsParams(block)...); err != nil {
		return nil, err
	}
	return b, nil
}

// GetBlockWithTxs returns the block with full transactions, nil if unknown.
func (f *Fetcher) GetBlockWithTxs(ctx context.Context, block uint64) (*Block[Transaction], error) {
	var b *Block[Transaction]
	if err := f.call(ctx, &b, "eth_getBlockByNumber", GetBlockWithTransactionsParams(block)...); err != nil {
		return nil, err
	}
	return b, nil
}

func (f *Fetcher) GetBlockReceipts(ctx context.Context, block uint64) ([]Receipt, error) {
	var receipts []Receipt
	if err := f.call(ctx, &receipts, "eth_getBlockReceipts", GetBlockReceiptsParams(block)...); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (f *Fetcher) TraceBlock(ctx context.Context, block uint64) ([]Trace, error) {
	var traces []Trace
	if err := f.call(ctx, &traces, "trace_block", TraceBlockParams(block)...); err != nil {
		return nil, err
	}
	return traces, nil
}

func (f *Fetcher) TraceTransaction(ctx context.Context, txHash gethCommon.Hash) ([]Trace, error) {
	var traces []Trace
	if err := f.call(ctx, &traces, "trace_transaction", GetTransactionParams(txHash)...); err != nil {
		return nil, err
	}
	return traces, nil
}

func (f *Fetcher) Call(ctx context.Context, msg CallRequest, block uint64) ([]byte, error) {
	var output hexutil.Bytes
	if err := f.call(ctx, &output, "eth_call", msg, BlockNumberParam(block)); err != nil {
		return nil, err
	}
	return output, nil
}

// Call2 issues a read-only call of data against address, pinned at block.
func (f *Fetcher) Call2(ctx context.Context, address gethCommon.Address, data []byte, block uint64) ([]byte, error) {
	return f.Call(ctx, CallRequest{To: address, Data: data}, block)
}

func (f *Fetcher) TraceCall(ctx context.Context, msg CallRequest, kinds []TraceKind, block *uint64) (BlockTrace, error) {
	blockTag := "latest"
	if block != nil {
		blockTag = BlockNumberParam(*block)
	}
	var trace BlockTrace
	if err := f.call(ctx, &trace, "trace_call", msg, traceKindStrings(kinds), blockTag); err != nil {
		return BlockTrace{}, err
	}
	return trace, nil
}

func (f *Fetcher) GetTransactionCount(ctx context.Context, address gethCommon.Address, block uint64) (uint64, error) {
	var nonce hexutil.Uint64
	if err := f.call(ctx, &nonce, "eth_getTransactionCount", AccountAtBlockParams(address, block)...); err != nil {
		return 0, err
	}
	return uint64(nonce), nil
}

func (f *Fetcher) GetBalance(ctx context.Context, address gethCommon.Address, block uint64) (*uint256.Int, error) {
	var balance hexutil.Big
	if err := f.call(ctx, &balance, "eth_getBalance", AccountAtBlockParams(address, block)...); err != nil {
		return nil, err
	}
	value, overflow := uint256.FromBig(balance.ToInt())
	if overflow {
		return nil, common.NewDecodeError("eth_getBalance", fmt.Errorf("balance %s overflows 256 bits", balance.String()))
	}
	return value, nil
}

func (f *Fetcher) GetCode(ctx context.Context, address gethCommon.Address, block uint64) ([]byte, error) {
	var code hexutil.Bytes
	if err := f.call(ctx, &code, "eth_getCode", AccountAtBlockParams(address, block)...); err != nil {
		return nil, err
	}
	return code, nil
}

func (f *Fetcher) GetStorageAt(ctx context.Context, address gethCommon.Address, slot gethCommon.Hash, block uint64) (gethCommon.Hash, error) {
	var value hexutil.Bytes
	if err := f.call(ctx, &value, "eth_getStorageAt", address, slot, BlockNumberParam(block)); err != nil {
		return gethCommon.Hash{}, err
	}
	return gethCommon.BytesToHash(value), nil
}

func (f *Fetcher) GetBlockNumber(ctx context.Context) (uint64, error) {
	var number hexutil.Uint64
	if err := f.call(ctx, &number, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(number), nil
}

func (f *Fetcher) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Big
	if err := f.call(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	if !id.ToInt().IsUint64() {
		return 0, common.NewDecodeError("eth_chainId", fmt.Errorf("chain id %s does not fit in uint64", id.String()))
	}
	return id.ToInt().Uint64(), nil
}

// GetTransactionBlockNumber returns the block a transaction was mined in.
func (f *Fetcher) GetTransactionBlockNumber(ctx context.Context, txHash gethCommon.Hash) (uint64, error) {
	tx, err := f.GetTransaction(ctx, txHash)
	if err != nil {
		return 0, err
	}
	if tx == nil {
		return 0, common.NewNotFoundError("transaction %s", txHash.Hex())
	}
	if tx.BlockNumber == nil {
		return 0, common.NewNotFoundError("block number of pending transaction %s", txHash.Hex())
	}
	return tx.BlockNumber.ToInt().Uint64(), nil
}

// GetTransactionLogs returns the logs emitted by a mined transaction.
func (f *Fetcher) GetTransactionLogs(ctx context.Context, txHash gethCommon.Hash) ([]types.Log, error) {
	receipt, err := f.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, common.NewNotFoundError("receipt of transaction %s", txHash.Hex())
	}
	return receipt.Logs, nil
}

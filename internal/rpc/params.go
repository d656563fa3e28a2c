package rpc

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func BlockNumberParam(blockNum uint64) string {
	return hexutil.EncodeUint64(blockNum)
}

func GetBlockWithTransactionsParams(blockNum uint64) []interface{} {
	return []interface{}{BlockNumberParam(blockNum), true}
}

func GetBlockWithoutTransactionsParams(blockNum uint64) []interface{} {
	return []interface{}{BlockNumberParam(blockNum), false}
}

func GetTransactionParams(txHash gethCommon.Hash) []interface{} {
	return []interface{}{txHash}
}

func GetBlockReceiptsParams(blockNum uint64) []interface{} {
	return []interface{}{BlockNumberParam(blockNum)}
}

func TraceBlockParams(blockNum uint64) []interface{} {
	return []interface{}{BlockNumberParam(blockNum)}
}

func ReplayBlockParams(blockNum uint64, kinds []TraceKind) []interface{} {
	return []interface{}{BlockNumberParam(blockNum), traceKindStrings(kinds)}
}

func ReplayTransactionParams(txHash gethCommon.Hash, kinds []TraceKind) []interface{} {
	return []interface{}{txHash, traceKindStrings(kinds)}
}

func AccountAtBlockParams(address gethCommon.Address, blockNum uint64) []interface{} {
	return []interface{}{address, BlockNumberParam(blockNum)}
}

func traceKindStrings(kinds []TraceKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

// GetLogsParams turns a filter query into the eth_getLogs argument.
func GetLogsParams(q ethereum.FilterQuery) ([]interface{}, error) {
	arg := map[string]interface{}{}
	if len(q.Addresses) > 0 {
		arg["address"] = q.Addresses
	}
	if len(q.Topics) > 0 {
		arg["topics"] = q.Topics
	}
	if q.BlockHash != nil {
		if q.FromBlock != nil || q.ToBlock != nil {
			return nil, errors.New("cannot specify both BlockHash and FromBlock/ToBlock")
		}
		arg["blockHash"] = *q.BlockHash
		return []interface{}{arg}, nil
	}
	arg["fromBlock"] = blockTagParam(q.FromBlock, "0x0")
	arg["toBlock"] = blockTagParam(q.ToBlock, "latest")
	return []interface{}{arg}, nil
}

func blockTagParam(number *big.Int, fallback string) string {
	if number == nil {
		return fallback
	}
	if number.Sign() < 0 {
		return "latest"
	}
	return hexutil.EncodeBig(number)
}

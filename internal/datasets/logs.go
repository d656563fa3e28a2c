package datasets

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/thirdweb-dev/extractor/internal/collect"
)

// Logs writes one row per event log. Block units span several blocks so a
// single eth_getLogs covers InnerRequestSize blocks.
type Logs struct{ definition }

func NewLogs() Logs {
	return Logs{definition{
		datatype: collect.Logs,
		sort:     []string{"block_number", "log_index"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "block_hash", typ: collect.Binary, optional: true},
			{name: "transaction_index", typ: collect.UInt32},
			{name: "log_index", typ: collect.UInt32},
			{name: "transaction_hash", typ: collect.Binary},
			{name: "address", typ: collect.Binary},
			{name: "topic0", typ: collect.Binary},
			{name: "topic1", typ: collect.Binary},
			{name: "topic2", typ: collect.Binary},
			{name: "topic3", typ: collect.Binary},
			{name: "data", typ: collect.Binary},
			{name: "removed", typ: collect.Boolean, optional: true},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

func (Logs) RangedByBlock() bool { return true }

type logsResponse struct {
	logs    []types.Log
	chainID uint64
}

func (l Logs) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (logsResponse, error) {
	from, to, err := params.BlockRange()
	if err != nil {
		return logsResponse{}, err
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
	}
	if address, err := params.Address(); err == nil {
		query.Addresses = []gethCommon.Address{address}
	}
	logs, err := source.Fetcher.GetLogs(ctx, query)
	if err != nil {
		return logsResponse{}, err
	}
	return logsResponse{logs: logs, chainID: source.ChainID}, nil
}

func (l Logs) TransformByBlock(response logsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return l.transform(response, columns, schemas)
}

func (l Logs) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (logsResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return logsResponse{}, err
	}
	logs, err := source.Fetcher.GetTransactionLogs(ctx, txHash)
	if err != nil {
		return logsResponse{}, err
	}
	if address, err := params.Address(); err == nil {
		filtered := logs[:0]
		for _, log := range logs {
			if log.Address == address {
				filtered = append(filtered, log)
			}
		}
		logs = filtered
	}
	return logsResponse{logs: logs, chainID: source.ChainID}, nil
}

func (l Logs) TransformByTransaction(response logsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return l.transform(response, columns, schemas)
}

func (l Logs) transform(response logsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(l.datatype)
	if err != nil {
		return err
	}
	for _, log := range response.logs {
		row := columns.NewRow(table)
		row.Set("block_number", uint32(log.BlockNumber))
		row.Set("block_hash", log.BlockHash.Bytes())
		row.Set("transaction_index", uint32(log.TxIndex))
		row.Set("log_index", uint32(log.Index))
		row.Set("transaction_hash", log.TxHash.Bytes())
		row.Set("address", log.Address.Bytes())
		for i, name := range []string{"topic0", "topic1", "topic2", "topic3"} {
			if i < len(log.Topics) {
				row.Set(name, log.Topics[i].Bytes())
			} else {
				row.Set(name, nil)
			}
		}
		row.Set("data", []byte(log.Data))
		row.Set("removed", log.Removed)
		row.Set("chain_id", response.chainID)
	}
	return nil
}

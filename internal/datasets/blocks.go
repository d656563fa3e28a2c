package datasets

import (
	"context"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

// Blocks writes one row per block header.
type Blocks struct{ definition }

func NewBlocks() Blocks {
	return Blocks{definition{
		datatype: collect.Blocks,
		sort:     []string{"block_number"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "block_hash", typ: collect.Binary},
			{name: "parent_hash", typ: collect.Binary},
			{name: "author", typ: collect.Binary},
			{name: "state_root", typ: collect.Binary},
			{name: "timestamp", typ: collect.UInt32},
			{name: "gas_used", typ: collect.UInt64},
			{name: "gas_limit", typ: collect.UInt64},
			{name: "extra_data", typ: collect.Binary},
			{name: "base_fee_per_gas", typ: collect.UInt64},
			{name: "size", typ: collect.UInt64, optional: true},
			{name: "transaction_count", typ: collect.UInt64, optional: true},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

type blockResponse struct {
	block   *rpc.Block[gethCommon.Hash]
	chainID uint64
}

func (b Blocks) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (blockResponse, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return blockResponse{}, err
	}
	return fetchBlock(ctx, source, number)
}

func (b Blocks) TransformByBlock(response blockResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return b.transform(response, columns, schemas)
}

func (b Blocks) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (blockResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return blockResponse{}, err
	}
	number, err := source.Fetcher.GetTransactionBlockNumber(ctx, txHash)
	if err != nil {
		return blockResponse{}, err
	}
	return fetchBlock(ctx, source, number)
}

func (b Blocks) TransformByTransaction(response blockResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return b.transform(response, columns, schemas)
}

func fetchBlock(ctx context.Context, source collect.Source, number uint64) (blockResponse, error) {
	block, err := source.Fetcher.GetBlock(ctx, number)
	if err != nil {
		return blockResponse{}, err
	}
	if block == nil {
		return blockResponse{}, common.NewNotFoundError("block %d not found", number)
	}
	return blockResponse{block: block, chainID: source.ChainID}, nil
}

func (b Blocks) transform(response blockResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(b.datatype)
	if err != nil {
		return err
	}
	block := response.block
	row := columns.NewRow(table)
	row.Set("block_number", blockNumberValue(block.Number))
	row.Set("block_hash", optionalHash(block.Hash))
	row.Set("parent_hash", block.ParentHash.Bytes())
	row.Set("author", block.Miner.Bytes())
	row.Set("state_root", block.StateRoot.Bytes())
	row.Set("timestamp", uint32(block.Timestamp))
	row.Set("gas_used", uint64(block.GasUsed))
	row.Set("gas_limit", uint64(block.GasLimit))
	row.Set("extra_data", []byte(block.ExtraData))
	row.Set("base_fee_per_gas", bigToUint64(block.BaseFeePerGas))
	row.Set("size", uint64(block.Size))
	row.Set("transaction_count", uint64(len(block.Transactions)))
	row.Set("chain_id", response.chainID)
	return nil
}

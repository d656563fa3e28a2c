package datasets

import (
	"context"

	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

// Transactions writes one row per transaction. gas_used needs receipts and
// is only fetched when the schema asks for it.
type Transactions struct{ definition }

func NewTransactions() Transactions {
	return Transactions{definition{
		datatype: collect.Transactions,
		sort:     []string{"block_number", "transaction_index"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "transaction_index", typ: collect.UInt64},
			{name: "transaction_hash", typ: collect.Binary},
			{name: "nonce", typ: collect.UInt64},
			{name: "from_address", typ: collect.Binary},
			{name: "to_address", typ: collect.Binary},
			{name: "value", typ: collect.UInt256},
			{name: "input", typ: collect.Binary},
			{name: "gas_limit", typ: collect.UInt64},
			{name: "gas_used", typ: collect.UInt64},
			{name: "gas_price", typ: collect.UInt64},
			{name: "transaction_type", typ: collect.UInt32},
			{name: "max_priority_fee_per_gas", typ: collect.UInt64},
			{name: "max_fee_per_gas", typ: collect.UInt64},
			{name: "block_hash", typ: collect.Binary, optional: true},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

type transactionsResponse struct {
	txs []rpc.Transaction
	// gasUsed is parallel to txs, nil when not requested
	gasUsed []uint64
	chainID uint64
}

func (t Transactions) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (transactionsResponse, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return transactionsResponse{}, err
	}
	block, err := source.Fetcher.GetBlockWithTxs(ctx, number)
	if err != nil {
		return transactionsResponse{}, err
	}
	if block == nil {
		return transactionsResponse{}, common.NewNotFoundError("block %d not found", number)
	}

	response := transactionsResponse{txs: block.Transactions, chainID: source.ChainID}
	if schemas.Has(t.datatype, "gas_used") {
		gasUsed, err := source.TxsGasUsed(ctx, block)
		if err != nil {
			return transactionsResponse{}, err
		}
		response.gasUsed = gasUsed
	}
	return response, nil
}

func (t Transactions) TransformByBlock(response transactionsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return t.transform(response, columns, schemas)
}

func (t Transactions) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (transactionsResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return transactionsResponse{}, err
	}
	tx, err := source.Fetcher.GetTransaction(ctx, txHash)
	if err != nil {
		return transactionsResponse{}, err
	}
	if tx == nil {
		return transactionsResponse{}, common.NewNotFoundError("transaction %s not found", txHash.Hex())
	}

	response := transactionsResponse{txs: []rpc.Transaction{*tx}, chainID: source.ChainID}
	if schemas.Has(t.datatype, "gas_used") {
		receipt, err := source.Fetcher.GetTransactionReceipt(ctx, txHash)
		if err != nil {
			return transactionsResponse{}, err
		}
		if receipt == nil {
			return transactionsResponse{}, common.NewNotFoundError("receipt of %s not found", txHash.Hex())
		}
		if receipt.GasUsed == nil {
			return transactionsResponse{}, common.NewCollectError("receipt of %s has no gasUsed", txHash.Hex())
		}
		response.gasUsed = []uint64{uint64(*receipt.GasUsed)}
	}
	return response, nil
}

func (t Transactions) TransformByTransaction(response transactionsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return t.transform(response, columns, schemas)
}

func (t Transactions) transform(response transactionsResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(t.datatype)
	if err != nil {
		return err
	}
	if table.HasColumn("gas_used") && len(response.gasUsed) != len(response.txs) {
		return common.NewCollectError("gas used known for %d of %d transactions", len(response.gasUsed), len(response.txs))
	}
	for i, tx := range response.txs {
		value, err := bigToUint256(tx.Value)
		if err != nil {
			return err
		}
		row := columns.NewRow(table)
		row.Set("block_number", blockNumberValue(tx.BlockNumber))
		row.Set("transaction_index", optionalHexUint64(tx.TransactionIndex))
		row.Set("transaction_hash", tx.Hash.Bytes())
		row.Set("nonce", uint64(tx.Nonce))
		row.Set("from_address", tx.From.Bytes())
		row.Set("to_address", optionalAddress(tx.To))
		row.Set("value", value)
		row.Set("input", []byte(tx.Input))
		row.Set("gas_limit", uint64(tx.Gas))
		if table.HasColumn("gas_used") {
			row.Set("gas_used", response.gasUsed[i])
		}
		row.Set("gas_price", bigToUint64(tx.GasPrice))
		row.Set("transaction_type", uint32(tx.Type))
		row.Set("max_priority_fee_per_gas", bigToUint64(tx.MaxPriorityFeePerGas))
		row.Set("max_fee_per_gas", bigToUint64(tx.MaxFeePerGas))
		row.Set("block_hash", optionalHash(tx.BlockHash))
		row.Set("chain_id", response.chainID)
	}
	return nil
}

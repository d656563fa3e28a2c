package datasets

import (
	"context"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/thirdweb-dev/extractor/internal/collect"
)

// accountRead is the response of a single state read at (block, address).
type accountRead[T any] struct {
	blockNumber uint64
	address     gethCommon.Address
	value       T
	chainID     uint64
}

func readAccount[T any](ctx context.Context, params collect.Params, source collect.Source,
	read func(ctx context.Context, address gethCommon.Address, block uint64) (T, error)) (accountRead[T], error) {
	number, err := params.BlockNumber()
	if err != nil {
		return accountRead[T]{}, err
	}
	address, err := params.Address()
	if err != nil {
		return accountRead[T]{}, err
	}
	value, err := read(ctx, address, number)
	if err != nil {
		return accountRead[T]{}, err
	}
	return accountRead[T]{blockNumber: number, address: address, value: value, chainID: source.ChainID}, nil
}

func writeAccount[T any](table *collect.Table, columns *collect.Columns, response accountRead[T], valueColumn string, value any) {
	row := columns.NewRow(table)
	row.Set("block_number", uint32(response.blockNumber))
	row.Set("address", response.address.Bytes())
	row.Set(valueColumn, value)
	row.Set("chain_id", response.chainID)
}

func accountColumns(datatype collect.Datatype, valueColumn string, valueType collect.ColumnType) definition {
	return definition{
		datatype: datatype,
		sort:     []string{"block_number", "address"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "address", typ: collect.Binary},
			{name: valueColumn, typ: valueType},
			{name: "chain_id", typ: collect.UInt64},
		},
	}
}

// Balances reads the wei balance of an address at a block.
type Balances struct{ definition }

func NewBalances() Balances {
	return Balances{accountColumns(collect.Balances, "balance", collect.UInt256)}
}

func (b Balances) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (accountRead[*uint256.Int], error) {
	return readAccount(ctx, params, source, source.Fetcher.GetBalance)
}

func (b Balances) TransformByBlock(response accountRead[*uint256.Int], columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(b.datatype)
	if err != nil {
		return err
	}
	writeAccount(table, columns, response, "balance", response.value)
	return nil
}

// Nonces reads the transaction count of an address at a block.
type Nonces struct{ definition }

func NewNonces() Nonces {
	return Nonces{accountColumns(collect.Nonces, "nonce", collect.UInt64)}
}

func (n Nonces) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (accountRead[uint64], error) {
	return readAccount(ctx, params, source, source.Fetcher.GetTransactionCount)
}

func (n Nonces) TransformByBlock(response accountRead[uint64], columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(n.datatype)
	if err != nil {
		return err
	}
	writeAccount(table, columns, response, "nonce", response.value)
	return nil
}

// Codes reads the deployed bytecode of an address at a block.
type Codes struct{ definition }

func NewCodes() Codes {
	return Codes{accountColumns(collect.Codes, "code", collect.Binary)}
}

func (c Codes) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (accountRead[[]byte], error) {
	return readAccount(ctx, params, source, source.Fetcher.GetCode)
}

func (c Codes) TransformByBlock(response accountRead[[]byte], columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(c.datatype)
	if err != nil {
		return err
	}
	writeAccount(table, columns, response, "code", response.value)
	return nil
}

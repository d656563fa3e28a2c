package datasets

import (
	"context"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
)

var (
	nameSelector     = common.FunctionSelector("name()")
	symbolSelector   = common.FunctionSelector("symbol()")
	decimalsSelector = common.FunctionSelector("decimals()")
)

type tokenMetadata struct {
	blockNumber uint64
	address     gethCommon.Address
	name        *string
	symbol      *string
	decimals    *uint8
	chainID     uint64
}

// readTokenStrings calls name() and symbol() at the unit's block. Outputs
// that do not decode as a string are recorded as null.
func readTokenStrings(ctx context.Context, params collect.Params, source collect.Source) (tokenMetadata, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return tokenMetadata{}, err
	}
	address, err := params.Address()
	if err != nil {
		return tokenMetadata{}, err
	}
	metadata := tokenMetadata{blockNumber: number, address: address, chainID: source.ChainID}

	output, err := source.Fetcher.Call2(ctx, address, nameSelector, number)
	if err != nil {
		return tokenMetadata{}, err
	}
	if name, ok := common.DecodeStringOutput(output); ok {
		metadata.name = &name
	}

	output, err = source.Fetcher.Call2(ctx, address, symbolSelector, number)
	if err != nil {
		return tokenMetadata{}, err
	}
	if symbol, ok := common.DecodeStringOutput(output); ok {
		metadata.symbol = &symbol
	}
	return metadata, nil
}

func optionalString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Erc20Metadata reads name, symbol and decimals of a token at a block.
type Erc20Metadata struct{ definition }

func NewErc20Metadata() Erc20Metadata {
	return Erc20Metadata{definition{
		datatype: collect.Erc20Metadata,
		sort:     []string{"block_number", "erc20"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "erc20", typ: collect.Binary},
			{name: "name", typ: collect.String},
			{name: "symbol", typ: collect.String},
			{name: "decimals", typ: collect.UInt32},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

func (e Erc20Metadata) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (tokenMetadata, error) {
	metadata, err := readTokenStrings(ctx, params, source)
	if err != nil {
		return tokenMetadata{}, err
	}
	if schemas.Has(e.datatype, "decimals") {
		output, err := source.Fetcher.Call2(ctx, metadata.address, decimalsSelector, metadata.blockNumber)
		if err != nil {
			return tokenMetadata{}, err
		}
		if decimals, ok := common.DecodeUint8Output(output); ok {
			metadata.decimals = &decimals
		}
	}
	return metadata, nil
}

func (e Erc20Metadata) TransformByBlock(response tokenMetadata, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(e.datatype)
	if err != nil {
		return err
	}
	row := columns.NewRow(table)
	row.Set("block_number", uint32(response.blockNumber))
	row.Set("erc20", response.address.Bytes())
	row.Set("name", optionalString(response.name))
	row.Set("symbol", optionalString(response.symbol))
	if response.decimals != nil {
		row.Set("decimals", uint32(*response.decimals))
	} else {
		row.Set("decimals", nil)
	}
	row.Set("chain_id", response.chainID)
	return nil
}

// Erc721Metadata reads name and symbol of an NFT collection at a block.
type Erc721Metadata struct{ definition }

func NewErc721Metadata() Erc721Metadata {
	return Erc721Metadata{definition{
		datatype: collect.Erc721Metadata,
		sort:     []string{"block_number", "erc721"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "erc721", typ: collect.Binary},
			{name: "name", typ: collect.String},
			{name: "symbol", typ: collect.String},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

func (e Erc721Metadata) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (tokenMetadata, error) {
	return readTokenStrings(ctx, params, source)
}

func (e Erc721Metadata) TransformByBlock(response tokenMetadata, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(e.datatype)
	if err != nil {
		return err
	}
	row := columns.NewRow(table)
	row.Set("block_number", uint32(response.blockNumber))
	row.Set("erc721", response.address.Bytes())
	row.Set("name", optionalString(response.name))
	row.Set("symbol", optionalString(response.symbol))
	row.Set("chain_id", response.chainID)
	return nil
}

package datasets

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

// Normalize maps a state diff entry to its (from, to) pair. The side that
// does not exist is filled with zero.
func Normalize(diff rpc.Diff, zero []byte) (from []byte, to []byte) {
	switch diff.Kind {
	case rpc.DiffBorn:
		return zero, diff.To
	case rpc.DiffDied:
		return diff.From, zero
	case rpc.DiffChanged:
		return diff.From, diff.To
	default:
		return zero, zero
	}
}

// stateDiffs is the shared extract half of every *_diffs dataset.
type stateDiffs struct{ definition }

func (s stateDiffs) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (traceResponse, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return traceResponse{}, err
	}
	response, err := source.Fetcher.TraceBlockStateDiffs(ctx, number)
	if err != nil {
		return traceResponse{}, err
	}
	return traceResponse{TraceResponse: response, chainID: source.ChainID}, nil
}

func (s stateDiffs) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (traceResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return traceResponse{}, err
	}
	response, err := source.Fetcher.TraceTransactionStateDiffs(ctx, txHash)
	if err != nil {
		return traceResponse{}, err
	}
	return traceResponse{TraceResponse: response, chainID: source.ChainID}, nil
}

// diffVisitor is called once per address of every traced transaction, in
// ascending address order.
type diffVisitor func(attr diffAttribution, address gethCommon.Address, account *rpc.AccountDiff) error

type diffAttribution struct {
	blockNumber any
	txIndex     uint64
	txHash      any
	chainID     uint64
}

func (a diffAttribution) set(row collect.Row, address gethCommon.Address) {
	row.Set("block_number", a.blockNumber)
	row.Set("transaction_index", a.txIndex)
	row.Set("transaction_hash", a.txHash)
	row.Set("address", address.Bytes())
	row.Set("chain_id", a.chainID)
}

func walkStateDiffs(response traceResponse, visit diffVisitor) error {
	for index, trace := range response.Traces {
		if len(trace.StateDiff) == 0 {
			continue
		}
		txHash := trace.TransactionHash
		if txHash == nil {
			txHash = response.TransactionHash
		}
		attr := diffAttribution{
			blockNumber: optionalBlockNumber(response.BlockNumber),
			txIndex:     uint64(index),
			txHash:      optionalHash(txHash),
			chainID:     response.chainID,
		}

		addresses := make([]gethCommon.Address, 0, len(trace.StateDiff))
		for address := range trace.StateDiff {
			addresses = append(addresses, address)
		}
		sort.Slice(addresses, func(i, j int) bool {
			return bytes.Compare(addresses[i][:], addresses[j][:]) < 0
		})
		for _, address := range addresses {
			account := trace.StateDiff[address]
			if account == nil {
				continue
			}
			if err := visit(attr, address, account); err != nil {
				return err
			}
		}
	}
	return nil
}

func diffColumns(datatype collect.Datatype, valueType collect.ColumnType, withSlot bool) definition {
	columns := []column{
		{name: "block_number", typ: collect.UInt32},
		{name: "transaction_index", typ: collect.UInt64},
		{name: "transaction_hash", typ: collect.Binary},
		{name: "address", typ: collect.Binary},
	}
	if withSlot {
		columns = append(columns, column{name: "slot", typ: collect.Binary})
	}
	columns = append(columns,
		column{name: "from_value", typ: valueType},
		column{name: "to_value", typ: valueType},
		column{name: "chain_id", typ: collect.UInt64},
	)
	return definition{
		datatype: datatype,
		sort:     []string{"block_number", "transaction_index"},
		columns:  columns,
	}
}

// CodeDiffs writes one row per (transaction, address) with the contract
// code before and after.
type CodeDiffs struct{ stateDiffs }

func NewCodeDiffs() CodeDiffs {
	return CodeDiffs{stateDiffs{diffColumns(collect.CodeDiffs, collect.Binary, false)}}
}

func (c CodeDiffs) TransformByBlock(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return c.transform(response, columns, schemas)
}

func (c CodeDiffs) TransformByTransaction(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return c.transform(response, columns, schemas)
}

func (c CodeDiffs) transform(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(c.datatype)
	if err != nil {
		return err
	}
	return walkStateDiffs(response, func(attr diffAttribution, address gethCommon.Address, account *rpc.AccountDiff) error {
		from, to := Normalize(account.Code, common.ZeroWord())
		row := columns.NewRow(table)
		attr.set(row, address)
		row.Set("from_value", from)
		row.Set("to_value", to)
		return nil
	})
}

// StorageDiffs writes one row per (transaction, address, slot).
type StorageDiffs struct{ stateDiffs }

func NewStorageDiffs() StorageDiffs {
	return StorageDiffs{stateDiffs{diffColumns(collect.StorageDiffs, collect.Binary, true)}}
}

func (s StorageDiffs) TransformByBlock(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return s.transform(response, columns, schemas)
}

func (s StorageDiffs) TransformByTransaction(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return s.transform(response, columns, schemas)
}

func (s StorageDiffs) transform(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(s.datatype)
	if err != nil {
		return err
	}
	return walkStateDiffs(response, func(attr diffAttribution, address gethCommon.Address, account *rpc.AccountDiff) error {
		slots := make([]gethCommon.Hash, 0, len(account.Storage))
		for slot := range account.Storage {
			slots = append(slots, slot)
		}
		sort.Slice(slots, func(i, j int) bool {
			return bytes.Compare(slots[i][:], slots[j][:]) < 0
		})
		for _, slot := range slots {
			from, to := Normalize(account.Storage[slot], common.ZeroWord())
			row := columns.NewRow(table)
			attr.set(row, address)
			row.Set("slot", slot.Bytes())
			row.Set("from_value", from)
			row.Set("to_value", to)
		}
		return nil
	})
}

// BalanceDiffs writes one row per (transaction, address) with wei balances.
type BalanceDiffs struct{ stateDiffs }

func NewBalanceDiffs() BalanceDiffs {
	return BalanceDiffs{stateDiffs{diffColumns(collect.BalanceDiffs, collect.UInt256, false)}}
}

func (b BalanceDiffs) TransformByBlock(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return b.transform(response, columns, schemas)
}

func (b BalanceDiffs) TransformByTransaction(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return b.transform(response, columns, schemas)
}

func (b BalanceDiffs) transform(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(b.datatype)
	if err != nil {
		return err
	}
	return walkStateDiffs(response, func(attr diffAttribution, address gethCommon.Address, account *rpc.AccountDiff) error {
		from, to := Normalize(account.Balance, nil)
		fromValue, err := bytesToUint256(from)
		if err != nil {
			return err
		}
		toValue, err := bytesToUint256(to)
		if err != nil {
			return err
		}
		row := columns.NewRow(table)
		attr.set(row, address)
		row.Set("from_value", fromValue)
		row.Set("to_value", toValue)
		return nil
	})
}

// NonceDiffs writes one row per (transaction, address) with account nonces.
type NonceDiffs struct{ stateDiffs }

func NewNonceDiffs() NonceDiffs {
	return NonceDiffs{stateDiffs{diffColumns(collect.NonceDiffs, collect.UInt64, false)}}
}

func (n NonceDiffs) TransformByBlock(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return n.transform(response, columns, schemas)
}

func (n NonceDiffs) TransformByTransaction(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return n.transform(response, columns, schemas)
}

func (n NonceDiffs) transform(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(n.datatype)
	if err != nil {
		return err
	}
	return walkStateDiffs(response, func(attr diffAttribution, address gethCommon.Address, account *rpc.AccountDiff) error {
		from, to := Normalize(account.Nonce, nil)
		fromValue, err := bytesToUint64(from)
		if err != nil {
			return err
		}
		toValue, err := bytesToUint64(to)
		if err != nil {
			return err
		}
		row := columns.NewRow(table)
		attr.set(row, address)
		row.Set("from_value", fromValue)
		row.Set("to_value", toValue)
		return nil
	})
}

// bytesToUint256 reads a big-endian quantity. Empty input is zero.
func bytesToUint256(b []byte) (*uint256.Int, error) {
	if len(b) > 32 {
		return nil, common.NewDecodeError("balance exceeds 256 bits", nil)
	}
	return new(uint256.Int).SetBytes(b), nil
}

func bytesToUint64(b []byte) (uint64, error) {
	v := new(big.Int).SetBytes(b)
	if !v.IsUint64() {
		return 0, common.NewDecodeError("nonce exceeds 64 bits", nil)
	}
	return v.Uint64(), nil
}

package datasets

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

// VMTraces flattens instruction level traces into one row per executed
// opcode, nested calls included, in depth-first pre-order.
type VMTraces struct{ definition }

func NewVMTraces() VMTraces {
	return VMTraces{definition{
		datatype: collect.VMTraces,
		sort:     []string{"block_number", "transaction_position"},
		columns: []column{
			{name: "block_number", typ: collect.UInt32},
			{name: "transaction_hash", typ: collect.Binary},
			{name: "transaction_position", typ: collect.UInt32},
			{name: "pc", typ: collect.UInt64},
			{name: "cost", typ: collect.UInt64},
			{name: "used", typ: collect.UInt64},
			{name: "push", typ: collect.Binary},
			{name: "mem_off", typ: collect.UInt32},
			{name: "mem_data", typ: collect.Binary},
			{name: "storage_key", typ: collect.Binary},
			{name: "storage_val", typ: collect.Binary},
			{name: "op", typ: collect.String},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

type traceResponse struct {
	rpc.TraceResponse
	chainID uint64
}

func (v VMTraces) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (traceResponse, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return traceResponse{}, err
	}
	response, err := source.Fetcher.TraceBlockVMTraces(ctx, number)
	if err != nil {
		return traceResponse{}, err
	}
	return traceResponse{TraceResponse: response, chainID: source.ChainID}, nil
}

func (v VMTraces) TransformByBlock(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return v.transform(response, columns, schemas)
}

func (v VMTraces) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (traceResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return traceResponse{}, err
	}
	response, err := source.Fetcher.TraceTransactionVMTraces(ctx, txHash)
	if err != nil {
		return traceResponse{}, err
	}
	return traceResponse{TraceResponse: response, chainID: source.ChainID}, nil
}

func (v VMTraces) TransformByTransaction(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return v.transform(response, columns, schemas)
}

func (v VMTraces) transform(response traceResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(v.datatype)
	if err != nil {
		return err
	}
	for position, trace := range response.Traces {
		if trace.VMTrace == nil {
			continue
		}
		txHash := trace.TransactionHash
		if txHash == nil {
			txHash = response.TransactionHash
		}
		w := opWriter{
			table:       table,
			columns:     columns,
			blockNumber: optionalBlockNumber(response.BlockNumber),
			txHash:      optionalHash(txHash),
			position:    uint32(position),
			chainID:     response.chainID,
		}
		w.write(trace.VMTrace)
	}
	return nil
}

// opWriter carries the attribution shared by every op of one transaction.
type opWriter struct {
	table       *collect.Table
	columns     *collect.Columns
	blockNumber any
	txHash      any
	position    uint32
	chainID     uint64
}

func (w opWriter) write(trace *rpc.VMTrace) {
	for _, op := range trace.Ops {
		row := w.columns.NewRow(w.table)
		row.Set("block_number", w.blockNumber)
		row.Set("transaction_hash", w.txHash)
		row.Set("transaction_position", w.position)
		row.Set("pc", op.PC)
		row.Set("cost", op.Cost)

		if ex := op.Ex; ex != nil {
			row.Set("used", ex.Used)
			row.Set("push", concatWords(ex.Push))
			if ex.Mem != nil {
				row.Set("mem_off", uint32(ex.Mem.Off))
				row.Set("mem_data", []byte(ex.Mem.Data))
			} else {
				row.Set("mem_off", nil)
				row.Set("mem_data", nil)
			}
			if ex.Store != nil {
				row.Set("storage_key", []byte(ex.Store.Key))
				row.Set("storage_val", []byte(ex.Store.Val))
			} else {
				row.Set("storage_key", nil)
				row.Set("storage_val", nil)
			}
		} else {
			for _, name := range []string{"used", "push", "mem_off", "mem_data", "storage_key", "storage_val"} {
				row.Set(name, nil)
			}
		}

		if row.Wants("op") {
			row.Set("op", opcodeName(op.Op))
		}
		row.Set("chain_id", w.chainID)

		if op.Sub != nil {
			w.write(op.Sub)
		}
	}
}

// concatWords joins 32 byte stack words into one value.
func concatWords(words []rpc.Word) []byte {
	out := make([]byte, 0, len(words)*32)
	for _, word := range words {
		out = append(out, word...)
	}
	return out
}

var legacyOpcodes = map[string]string{
	"SHA3":       "KECCAK256",
	"SUICIDE":    "SELFDESTRUCT",
	"DIFFICULTY": "PREVRANDAO",
}

// opcodeName normalizes a traced mnemonic to its current upper case name.
// Names the EVM does not know are kept as reported by the node.
func opcodeName(name string) string {
	upper := strings.ToUpper(name)
	if current, ok := legacyOpcodes[upper]; ok {
		return current
	}
	if op := vm.StringToOp(upper); op.String() == upper {
		return op.String()
	}
	return name
}

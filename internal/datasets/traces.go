package datasets

import (
	"context"
	"strconv"
	"strings"

	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

// Traces writes one row per flat call trace as returned by trace_block.
type Traces struct{ definition }

func NewTraces() Traces {
	return Traces{definition{
		datatype: collect.Traces,
		sort:     []string{"block_number", "transaction_position", "trace_address"},
		columns: []column{
			{name: "action_from", typ: collect.Binary},
			{name: "action_to", typ: collect.Binary},
			{name: "action_value", typ: collect.UInt256},
			{name: "action_gas", typ: collect.UInt64},
			{name: "action_input", typ: collect.Binary},
			{name: "action_call_type", typ: collect.String},
			{name: "action_init", typ: collect.Binary},
			{name: "action_reward_type", typ: collect.String},
			{name: "action_type", typ: collect.String},
			{name: "result_gas_used", typ: collect.UInt64},
			{name: "result_output", typ: collect.Binary},
			{name: "result_code", typ: collect.Binary},
			{name: "result_address", typ: collect.Binary},
			{name: "trace_address", typ: collect.String},
			{name: "subtraces", typ: collect.UInt64},
			{name: "transaction_position", typ: collect.UInt32},
			{name: "transaction_hash", typ: collect.Binary},
			{name: "block_number", typ: collect.UInt32},
			{name: "block_hash", typ: collect.Binary},
			{name: "error", typ: collect.String},
			{name: "chain_id", typ: collect.UInt64},
		},
	}}
}

type tracesResponse struct {
	traces  []rpc.Trace
	chainID uint64
}

func (t Traces) ExtractByBlock(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (tracesResponse, error) {
	number, err := params.BlockNumber()
	if err != nil {
		return tracesResponse{}, err
	}
	traces, err := source.Fetcher.TraceBlock(ctx, number)
	if err != nil {
		return tracesResponse{}, err
	}
	return tracesResponse{traces: traces, chainID: source.ChainID}, nil
}

func (t Traces) TransformByBlock(response tracesResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return t.transform(response, columns, schemas)
}

func (t Traces) ExtractByTransaction(ctx context.Context, params collect.Params, source collect.Source, schemas collect.Schemas) (tracesResponse, error) {
	txHash, err := params.TransactionHash()
	if err != nil {
		return tracesResponse{}, err
	}
	traces, err := source.Fetcher.TraceTransaction(ctx, txHash)
	if err != nil {
		return tracesResponse{}, err
	}
	return tracesResponse{traces: traces, chainID: source.ChainID}, nil
}

func (t Traces) TransformByTransaction(response tracesResponse, columns *collect.Columns, schemas collect.Schemas) error {
	return t.transform(response, columns, schemas)
}

func (t Traces) transform(response tracesResponse, columns *collect.Columns, schemas collect.Schemas) error {
	table, err := schemas.Get(t.datatype)
	if err != nil {
		return err
	}
	for _, trace := range response.traces {
		action := trace.Action
		value, err := bigToUint256(action.Value)
		if err != nil {
			return err
		}

		// reward and suicide actions carry their parties in other fields
		from, to := action.From, action.To
		switch trace.Type {
		case "reward":
			to = action.Author
		case "suicide":
			from, to = action.Address, action.RefundAddress
			if value == nil {
				if value, err = bigToUint256(action.Balance); err != nil {
					return err
				}
			}
		}

		row := columns.NewRow(table)
		row.Set("action_from", optionalAddress(from))
		row.Set("action_to", optionalAddress(to))
		row.Set("action_value", value)
		row.Set("action_gas", bigToUint64(action.Gas))
		row.Set("action_input", nullableBytes(action.Input))
		row.Set("action_call_type", nullableString(action.CallType))
		row.Set("action_init", nullableBytes(action.Init))
		row.Set("action_reward_type", nullableString(action.RewardType))
		row.Set("action_type", trace.Type)
		if result := trace.Result; result != nil {
			row.Set("result_gas_used", bigToUint64(result.GasUsed))
			row.Set("result_output", nullableBytes(result.Output))
			row.Set("result_code", nullableBytes(result.Code))
			row.Set("result_address", optionalAddress(result.Address))
		} else {
			row.Set("result_gas_used", nil)
			row.Set("result_output", nil)
			row.Set("result_code", nil)
			row.Set("result_address", nil)
		}
		row.Set("trace_address", traceAddress(trace.TraceAddress))
		row.Set("subtraces", trace.Subtraces)
		row.Set("transaction_position", optionalUint32(trace.TransactionPosition))
		row.Set("transaction_hash", optionalHash(trace.TransactionHash))
		row.Set("block_number", optionalBlockNumber(trace.BlockNumber))
		row.Set("block_hash", optionalHash(trace.BlockHash))
		row.Set("error", nullableString(trace.Error))
		row.Set("chain_id", response.chainID)
	}
	return nil
}

// traceAddress renders a call path like [0 2 1] as "0_2_1".
func traceAddress(path []uint64) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = strconv.FormatUint(p, 10)
	}
	return strings.Join(parts, "_")
}

func optionalUint32(n *uint64) any {
	if n == nil {
		return nil
	}
	return uint32(*n)
}

func nullableBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return []byte(b)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

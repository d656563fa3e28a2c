package rpc

import (
	"encoding/json"
	"fmt"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/thirdweb-dev/extractor/internal/common"
)

type TraceKind string

const (
	TraceKindTrace     TraceKind = "trace"
	TraceKindVMTrace   TraceKind = "vmTrace"
	TraceKindStateDiff TraceKind = "stateDiff"
)

// TraceResponse is the result of one replay call together with the unit of
// work that triggered it. Exactly one of BlockNumber and TransactionHash is set.
type TraceResponse struct {
	BlockNumber     *uint64
	TransactionHash *gethCommon.Hash
	Traces          []BlockTrace
}

type BlockTrace struct {
	Output          hexutil.Bytes    `json:"output"`
	StateDiff       StateDiff        `json:"stateDiff"`
	VMTrace         *VMTrace         `json:"vmTrace"`
	Trace           []Trace          `json:"trace"`
	TransactionHash *gethCommon.Hash `json:"transactionHash"`
}

// VMTrace is one frame of execution. Ops that enter a nested call or create
// own the nested frame through Sub.
type VMTrace struct {
	Code hexutil.Bytes `json:"code"`
	Ops  []VMOperation `json:"ops"`
}

type VMOperation struct {
	PC   uint64               `json:"pc"`
	Cost uint64               `json:"cost"`
	Ex   *VMExecutedOperation `json:"ex"`
	Sub  *VMTrace             `json:"sub"`
	Op   string               `json:"op"`
}

// VMExecutedOperation is the outcome of an executed op. Mem and Store are
// never both set.
type VMExecutedOperation struct {
	Used  uint64       `json:"used"`
	Push  []Word       `json:"push"`
	Mem   *MemoryDiff  `json:"mem"`
	Store *StorageDiff `json:"store"`
}

type MemoryDiff struct {
	Off  uint64        `json:"off"`
	Data hexutil.Bytes `json:"data"`
}

type StorageDiff struct {
	Key Word `json:"key"`
	Val Word `json:"val"`
}

// Word is a 256 bit stack or storage value, stored as 32 big endian bytes.
type Word []byte

func (w *Word) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(input, &s); err != nil {
		return common.NewDecodeError("word is not a string", err)
	}
	b, ok := common.DecodeHex(s)
	if !ok {
		return common.NewDecodeError(fmt.Sprintf("invalid hex word %q", s), nil)
	}
	if len(b) > 32 {
		return common.NewDecodeError(fmt.Sprintf("word %q longer than 32 bytes", s), nil)
	}
	*w = gethCommon.LeftPadBytes(b, 32)
	return nil
}

func (w Word) MarshalJSON() ([]byte, error) {
	return json.Marshal(hexutil.Bytes(w).String())
}

// StateDiff maps every touched account to its changes.
type StateDiff map[gethCommon.Address]*AccountDiff

type AccountDiff struct {
	Balance Diff                     `json:"balance"`
	Nonce   Diff                     `json:"nonce"`
	Code    Diff                     `json:"code"`
	Storage map[gethCommon.Hash]Diff `json:"storage"`
}

type DiffKind int

const (
	DiffSame DiffKind = iota
	DiffBorn
	DiffDied
	DiffChanged
)

func (k DiffKind) String() string {
	switch k {
	case DiffBorn:
		return "born"
	case DiffDied:
		return "died"
	case DiffChanged:
		return "changed"
	default:
		return "same"
	}
}

// Diff is a before/after pair. Born only carries To, Died only carries From.
type Diff struct {
	Kind DiffKind
	From []byte
	To   []byte
}

func (d *Diff) UnmarshalJSON(input []byte) error {
	if string(input) == "null" {
		*d = Diff{Kind: DiffSame}
		return nil
	}
	var marker string
	if err := json.Unmarshal(input, &marker); err == nil {
		if marker != "=" {
			return common.NewDecodeError(fmt.Sprintf("unknown diff marker %q", marker), nil)
		}
		*d = Diff{Kind: DiffSame}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(input, &raw); err != nil {
		return common.NewDecodeError("diff is neither a marker nor an object", err)
	}
	if len(raw) != 1 {
		return common.NewDecodeError(fmt.Sprintf("diff object has %d keys, expected 1", len(raw)), nil)
	}
	for key, value := range raw {
		switch key {
		case "+":
			to, err := decodeHexValue(value)
			if err != nil {
				return err
			}
			*d = Diff{Kind: DiffBorn, To: to}
		case "-":
			from, err := decodeHexValue(value)
			if err != nil {
				return err
			}
			*d = Diff{Kind: DiffDied, From: from}
		case "*":
			var changed struct {
				From json.RawMessage `json:"from"`
				To   json.RawMessage `json:"to"`
			}
			if err := json.Unmarshal(value, &changed); err != nil {
				return common.NewDecodeError("invalid changed diff", err)
			}
			from, err := decodeHexValue(changed.From)
			if err != nil {
				return err
			}
			to, err := decodeHexValue(changed.To)
			if err != nil {
				return err
			}
			*d = Diff{Kind: DiffChanged, From: from, To: to}
		default:
			return common.NewDecodeError(fmt.Sprintf("unknown diff key %q", key), nil)
		}
	}
	return nil
}

func decodeHexValue(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, common.NewDecodeError("diff value is not a string", err)
	}
	b, ok := common.DecodeHex(s)
	if !ok {
		return nil, common.NewDecodeError(fmt.Sprintf("invalid hex diff value %q", s), nil)
	}
	return b, nil
}

// Trace is one flat call trace as returned by trace_block and trace_transaction.
type Trace struct {
	Action              TraceAction      `json:"action"`
	Result              *TraceResult     `json:"result"`
	Error               string           `json:"error"`
	Subtraces           uint64           `json:"subtraces"`
	TraceAddress        []uint64         `json:"traceAddress"`
	Type                string           `json:"type"`
	BlockHash           *gethCommon.Hash `json:"blockHash"`
	BlockNumber         *uint64          `json:"blockNumber"`
	TransactionHash     *gethCommon.Hash `json:"transactionHash"`
	TransactionPosition *uint64          `json:"transactionPosition"`
}

type TraceAction struct {
	CallType      string              `json:"callType"`
	From          *gethCommon.Address `json:"from"`
	To            *gethCommon.Address `json:"to"`
	Gas           *hexutil.Big        `json:"gas"`
	Input         hexutil.Bytes       `json:"input"`
	Value         *hexutil.Big        `json:"value"`
	Init          hexutil.Bytes       `json:"init"`
	Address       *gethCommon.Address `json:"address"`
	RefundAddress *gethCommon.Address `json:"refundAddress"`
	Balance       *hexutil.Big        `json:"balance"`
	Author        *gethCommon.Address `json:"author"`
	RewardType    string              `json:"rewardType"`
}

type TraceResult struct {
	GasUsed *hexutil.Big        `json:"gasUsed"`
	Output  hexutil.Bytes       `json:"output"`
	Address *gethCommon.Address `json:"address"`
	Code    hexutil.Bytes       `json:"code"`
}

// Block is a block as returned by eth_getBlockByNumber. T is a transaction
// hash or a full Transaction depending on the request.
type Block[T any] struct {
	Number        *hexutil.Big       `json:"number"`
	Hash          *gethCommon.Hash   `json:"hash"`
	ParentHash    gethCommon.Hash    `json:"parentHash"`
	Miner         gethCommon.Address `json:"miner"`
	StateRoot     gethCommon.Hash    `json:"stateRoot"`
	Timestamp     hexutil.Uint64     `json:"timestamp"`
	GasUsed       hexutil.Uint64     `json:"gasUsed"`
	GasLimit      hexutil.Uint64     `json:"gasLimit"`
	BaseFeePerGas *hexutil.Big       `json:"baseFeePerGas"`
	ExtraData     hexutil.Bytes      `json:"extraData"`
	Size          hexutil.Uint64     `json:"size"`
	Transactions  []T                `json:"transactions"`
}

type Transaction struct {
	Hash                 gethCommon.Hash     `json:"hash"`
	Nonce                hexutil.Uint64      `json:"nonce"`
	BlockHash            *gethCommon.Hash    `json:"blockHash"`
	BlockNumber          *hexutil.Big        `json:"blockNumber"`
	TransactionIndex     *hexutil.Uint64     `json:"transactionIndex"`
	From                 gethCommon.Address  `json:"from"`
	To                   *gethCommon.Address `json:"to"`
	Value                *hexutil.Big        `json:"value"`
	Gas                  hexutil.Uint64      `json:"gas"`
	GasPrice             *hexutil.Big        `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big        `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big        `json:"maxPriorityFeePerGas"`
	Input                hexutil.Bytes       `json:"input"`
	Type                 hexutil.Uint64      `json:"type"`
}

type Receipt struct {
	TransactionHash   gethCommon.Hash     `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64      `json:"transactionIndex"`
	BlockHash         *gethCommon.Hash    `json:"blockHash"`
	BlockNumber       *hexutil.Big        `json:"blockNumber"`
	GasUsed           *hexutil.Uint64     `json:"gasUsed"`
	CumulativeGasUsed *hexutil.Uint64     `json:"cumulativeGasUsed"`
	EffectiveGasPrice *hexutil.Big        `json:"effectiveGasPrice"`
	Status            *hexutil.Uint64     `json:"status"`
	ContractAddress   *gethCommon.Address `json:"contractAddress"`
	Logs              []types.Log         `json:"logs"`
}

// CallRequest is the argument of eth_call and trace_call.
type CallRequest struct {
	From  *gethCommon.Address `json:"from,omitempty"`
	To    gethCommon.Address  `json:"to"`
	Data  hexutil.Bytes       `json:"data,omitempty"`
	Gas   *hexutil.Uint64     `json:"gas,omitempty"`
	Value *hexutil.Big        `json:"value,omitempty"`
}

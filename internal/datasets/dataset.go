package datasets

import (
	"math/big"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
)

type column struct {
	name string
	typ  collect.ColumnType
	// optional columns are known to the dataset but not written unless asked for
	optional bool
}

// definition carries the static description every dataset exposes.
type definition struct {
	datatype collect.Datatype
	sort     []string
	columns  []column
}

func (d definition) Datatype() collect.Datatype { return d.datatype }
func (d definition) Name() string               { return string(d.datatype) }
func (d definition) DefaultSort() []string      { return d.sort }

func (d definition) ColumnTypes() map[string]collect.ColumnType {
	types := make(map[string]collect.ColumnType, len(d.columns))
	for _, c := range d.columns {
		types[c.name] = c.typ
	}
	return types
}

func (d definition) DefaultColumns() []string {
	names := make([]string, 0, len(d.columns))
	for _, c := range d.columns {
		if !c.optional {
			names = append(names, c.name)
		}
	}
	return names
}

// AllColumns lists every column the dataset can write, optional ones included.
func (d definition) AllColumns() []string {
	names := make([]string, 0, len(d.columns))
	for _, c := range d.columns {
		names = append(names, c.name)
	}
	return names
}

func blockNumberValue(n *hexutil.Big) any {
	if n == nil {
		return nil
	}
	return uint32(n.ToInt().Uint64())
}

func optionalBlockNumber(n *uint64) any {
	if n == nil {
		return nil
	}
	return uint32(*n)
}

func optionalUint64(n *uint64) any {
	if n == nil {
		return nil
	}
	return *n
}

func optionalHexUint64(n *hexutil.Uint64) any {
	if n == nil {
		return nil
	}
	return uint64(*n)
}

// bigToUint64 saturates values that do not fit in 64 bits.
func bigToUint64(n *hexutil.Big) any {
	if n == nil {
		return nil
	}
	v := n.ToInt()
	if !v.IsUint64() {
		return uint64(^uint64(0))
	}
	return v.Uint64()
}

func bigToUint256(n *hexutil.Big) (any, error) {
	if n == nil {
		return nil, nil
	}
	return toUint256((*big.Int)(n))
}

func toUint256(n *big.Int) (*uint256.Int, error) {
	v, overflow := uint256.FromBig(n)
	if overflow {
		return nil, common.NewDecodeError("value exceeds 256 bits", nil)
	}
	return v, nil
}

func optionalAddress(a *gethCommon.Address) any {
	if a == nil {
		return nil
	}
	return a.Bytes()
}

func optionalHash(h *gethCommon.Hash) any {
	if h == nil {
		return nil
	}
	return h.Bytes()
}

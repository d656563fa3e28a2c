package collect

import (
	"fmt"
	"strings"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/thirdweb-dev/extractor/internal/common"
)

// Params identifies one unit of work: a block (or block range), a
// transaction, optionally narrowed to an address.
type Params struct {
	blockNumber     *uint64
	toBlock         *uint64
	transactionHash *gethCommon.Hash
	address         *gethCommon.Address
}

func BlockParams(block uint64) Params {
	return Params{blockNumber: &block}
}

// BlockRangeParams covers the inclusive range [from, to].
func BlockRangeParams(from, to uint64) Params {
	return Params{blockNumber: &from, toBlock: &to}
}

func TransactionParams(txHash gethCommon.Hash) Params {
	return Params{transactionHash: &txHash}
}

func (p Params) WithAddress(address gethCommon.Address) Params {
	p.address = &address
	return p
}

func (p Params) WithBlockNumber(block uint64) Params {
	p.blockNumber = &block
	return p
}

func (p Params) BlockNumber() (uint64, error) {
	if p.blockNumber == nil {
		return 0, common.NewCollectError("block number not provided")
	}
	return *p.blockNumber, nil
}

// BlockRange returns the inclusive range of the unit. A single block unit
// yields the same number twice.
func (p Params) BlockRange() (uint64, uint64, error) {
	from, err := p.BlockNumber()
	if err != nil {
		return 0, 0, err
	}
	if p.toBlock == nil {
		return from, from, nil
	}
	if *p.toBlock < from {
		return 0, 0, common.NewCollectError("block range %d:%d is reversed", from, *p.toBlock)
	}
	return from, *p.toBlock, nil
}

func (p Params) TransactionHash() (gethCommon.Hash, error) {
	if p.transactionHash == nil {
		return gethCommon.Hash{}, common.NewCollectError("transaction hash not provided")
	}
	return *p.transactionHash, nil
}

func (p Params) Address() (gethCommon.Address, error) {
	if p.address == nil {
		return gethCommon.Address{}, common.NewCollectError("address not provided")
	}
	return *p.address, nil
}

func (p Params) String() string {
	var parts []string
	if p.blockNumber != nil {
		if p.toBlock != nil {
			parts = append(parts, fmt.Sprintf("blocks=%d:%d", *p.blockNumber, *p.toBlock))
		} else {
			parts = append(parts, fmt.Sprintf("block=%d", *p.blockNumber))
		}
	}
	if p.transactionHash != nil {
		parts = append(parts, "tx="+p.transactionHash.Hex())
	}
	if p.address != nil {
		parts = append(parts, "address="+p.address.Hex())
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// PlanBlockUnits splits [from, to] into units for ds. Datasets that fetch
// block ranges get units of up to step blocks, everything else one unit per
// block. Every unit carries address when one is given.
func PlanBlockUnits(ds Dataset, from, to uint64, step uint64, address *gethCommon.Address) []Params {
	if to < from {
		return nil
	}
	ranged := false
	if r, ok := ds.(RangedDataset); ok {
		ranged = r.RangedByBlock()
	}
	if step == 0 {
		step = 1
	}

	var units []Params
	for block := from; ; {
		var unit Params
		if ranged {
			end := block + step - 1
			if end > to || end < block {
				end = to
			}
			unit = BlockRangeParams(block, end)
			block = end
		} else {
			unit = BlockParams(block)
		}
		if address != nil {
			unit = unit.WithAddress(*address)
		}
		units = append(units, unit)
		if block >= to {
			break
		}
		block++
	}
	return units
}

// PlanTransactionUnits builds one unit per transaction hash.
func PlanTransactionUnits(hashes []gethCommon.Hash, address *gethCommon.Address) []Params {
	units := make([]Params, 0, len(hashes))
	for _, hash := range hashes {
		unit := TransactionParams(hash)
		if address != nil {
			unit = unit.WithAddress(*address)
		}
		units = append(units, unit)
	}
	return units
}

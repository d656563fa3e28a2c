package collect

import (
	"context"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/metrics"
	"github.com/thirdweb-dev/extractor/internal/rpc"
	"golang.org/x/sync/errgroup"
)

// TxsGasUsed returns the gas used by each transaction of block, in block
// order. It asks for the whole block's receipts first and falls back to one
// receipt request per transaction when that answer is unusable.
func (s Source) TxsGasUsed(ctx context.Context, block *rpc.Block[rpc.Transaction]) ([]uint64, error) {
	if block == nil {
		return nil, common.NewCollectError("block not provided")
	}
	if len(block.Transactions) == 0 {
		return []uint64{}, nil
	}

	gasUsed, err := s.txsGasUsedPerBlock(ctx, block)
	if err == nil {
		return gasUsed, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	log.Warn().Err(err).Str("block", blockLabel(block)).Int("txs", len(block.Transactions)).
		Msg("Block receipts unusable, fetching receipts per transaction")
	metrics.GasUsedFallbacks.Inc()
	return s.txsGasUsedPerTx(ctx, block)
}

func (s Source) txsGasUsedPerBlock(ctx context.Context, block *rpc.Block[rpc.Transaction]) ([]uint64, error) {
	if block.Number == nil {
		return nil, common.NewCollectError("block has no number")
	}
	receipts, err := s.Fetcher.GetBlockReceipts(ctx, block.Number.ToInt().Uint64())
	if err != nil {
		return nil, err
	}

	byHash := make(map[gethCommon.Hash]*rpc.Receipt, len(receipts))
	for i := range receipts {
		byHash[receipts[i].TransactionHash] = &receipts[i]
	}

	gasUsed := make([]uint64, len(block.Transactions))
	for i, tx := range block.Transactions {
		receipt, ok := byHash[tx.Hash]
		if !ok {
			return nil, common.NewCollectError("block receipts missing transaction %s", tx.Hash.Hex())
		}
		if receipt.GasUsed == nil {
			return nil, common.NewCollectError("receipt of %s has no gasUsed", tx.Hash.Hex())
		}
		gasUsed[i] = uint64(*receipt.GasUsed)
	}
	return gasUsed, nil
}

func (s Source) txsGasUsedPerTx(ctx context.Context, block *rpc.Block[rpc.Transaction]) ([]uint64, error) {
	gasUsed := make([]uint64, len(block.Transactions))
	g, gctx := errgroup.WithContext(ctx)
	for i, tx := range block.Transactions {
		g.Go(func() error {
			receipt, err := s.Fetcher.GetTransactionReceipt(gctx, tx.Hash)
			if err != nil {
				return err
			}
			if receipt == nil {
				return common.NewNotFoundError("receipt of %s not found", tx.Hash.Hex())
			}
			if receipt.GasUsed == nil {
				return common.NewCollectError("receipt of %s has no gasUsed", tx.Hash.Hex())
			}
			gasUsed[i] = uint64(*receipt.GasUsed)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return gasUsed, nil
}

func blockLabel(block *rpc.Block[rpc.Transaction]) string {
	if block.Number == nil {
		return "pending"
	}
	return block.Number.ToInt().String()
}

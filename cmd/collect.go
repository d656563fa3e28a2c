package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	config "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/common"
	"github.com/thirdweb-dev/extractor/internal/datasets"
	"github.com/thirdweb-dev/extractor/internal/rpc"
	"github.com/thirdweb-dev/extractor/internal/sink"
)

var (
	blocksFlag  string
	txsFlag     []string
	addressFlag string
	includeFlag []string
	excludeFlag []string
)

var collectCmd = &cobra.Command{
	Use:   "collect <datasets...>",
	Short: "collect datasets into parquet files",
	Long:  "collect one or more datasets over a block range (--blocks a:b) or a list of transactions (--txs h1,h2)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  RunCollect,
}

func init() {
	collectCmd.Flags().StringVar(&blocksFlag, "blocks", "", "Inclusive block range a:b, a single block, or a:latest")
	collectCmd.Flags().StringSliceVar(&txsFlag, "txs", nil, "Comma separated transaction hashes")
	collectCmd.Flags().StringVar(&addressFlag, "address", "", "Address filter or contract to read")
	collectCmd.Flags().StringSliceVar(&includeFlag, "include", nil, "Columns to add to the defaults")
	collectCmd.Flags().StringSliceVar(&excludeFlag, "exclude", nil, "Columns to drop from the defaults")
}

// blockSpec is a parsed --blocks value. toLatest means the end is resolved
// against the node.
type blockSpec struct {
	from     uint64
	to       uint64
	toLatest bool
}

func parseBlockSpec(s string) (blockSpec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return blockSpec{}, fmt.Errorf("empty block range")
	}
	fromPart, toPart, isRange := strings.Cut(s, ":")
	from, err := parseBlockNumber(fromPart)
	if err != nil {
		return blockSpec{}, err
	}
	if !isRange {
		return blockSpec{from: from, to: from}, nil
	}
	if toPart == "latest" {
		return blockSpec{from: from, toLatest: true}, nil
	}
	to, err := parseBlockNumber(toPart)
	if err != nil {
		return blockSpec{}, err
	}
	if to < from {
		return blockSpec{}, fmt.Errorf("block range %s is reversed", s)
	}
	return blockSpec{from: from, to: to}, nil
}

// parseBlockNumber accepts decimal, 0x hex and underscore separated values.
func parseBlockNumber(s string) (uint64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if s == "" {
		return 0, fmt.Errorf("missing block number")
	}
	n, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}
	return n, nil
}

func parseTxHashes(values []string) ([]gethCommon.Hash, error) {
	hashes := make([]gethCommon.Hash, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		b, ok := common.DecodeHex(v)
		if !ok || len(b) != gethCommon.HashLength {
			return nil, fmt.Errorf("invalid transaction hash %q", v)
		}
		hashes = append(hashes, gethCommon.BytesToHash(b))
	}
	return hashes, nil
}

func parseAddress(s string) (*gethCommon.Address, error) {
	if s == "" {
		return nil, nil
	}
	if !gethCommon.IsHexAddress(s) {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	address := gethCommon.HexToAddress(s)
	return &address, nil
}

// planUnits picks the collector matching the requested mode and builds its
// units.
func planUnits(entry datasets.Entry, blocks *blockSpec, hashes []gethCommon.Hash, address *gethCommon.Address, innerRequestSize uint64) (collect.UnitCollector, []collect.Params, error) {
	name := entry.Dataset.Name()
	if blocks != nil {
		if entry.ByBlock == nil {
			return nil, nil, fmt.Errorf("dataset %s cannot be collected by block", name)
		}
		return entry.ByBlock, collect.PlanBlockUnits(entry.Dataset, blocks.from, blocks.to, innerRequestSize, address), nil
	}
	if entry.ByTransaction == nil {
		return nil, nil, fmt.Errorf("dataset %s cannot be collected by transaction", name)
	}
	return entry.ByTransaction, collect.PlanTransactionUnits(hashes, address), nil
}

func serveMetrics() {
	addr := config.Cfg.Metrics.Addr
	if addr == "" {
		addr = ":2112"
	}
	log.Info().Str("addr", addr).Msg("Starting Metrics Server")
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()
}

func RunCollect(cmd *cobra.Command, args []string) error {
	if (blocksFlag == "") == (len(txsFlag) == 0) {
		return fmt.Errorf("exactly one of --blocks or --txs is required")
	}
	address, err := parseAddress(addressFlag)
	if err != nil {
		return err
	}
	var blocks *blockSpec
	var hashes []gethCommon.Hash
	if blocksFlag != "" {
		spec, err := parseBlockSpec(blocksFlag)
		if err != nil {
			return err
		}
		blocks = &spec
	} else {
		if hashes, err = parseTxHashes(txsFlag); err != nil {
			return err
		}
	}

	schemas, err := datasets.Schemas(args, includeFlag, excludeFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Cfg.Metrics.Enabled {
		serveMetrics()
	}

	fetcher, err := rpc.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize RPC: %w", err)
	}
	defer fetcher.Close()

	source, err := collect.SourceFromConfig(ctx, fetcher)
	if err != nil {
		return err
	}
	if blocks != nil && blocks.toLatest {
		latest, err := fetcher.GetBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get latest block: %w", err)
		}
		if latest < blocks.from {
			return fmt.Errorf("start block %d is past the chain head %d", blocks.from, latest)
		}
		blocks.to = latest
	}

	out, err := sink.FromConfig(ctx, source.ChainID)
	if err != nil {
		return err
	}

	for _, name := range args {
		if err := collectDataset(ctx, name, source, schemas, out, blocks, hashes, address); err != nil {
			return err
		}
	}
	return nil
}

func collectDataset(ctx context.Context, name string, source collect.Source, schemas collect.Schemas, out *sink.Sink, blocks *blockSpec, hashes []gethCommon.Hash, address *gethCommon.Address) error {
	entry, err := datasets.Lookup(name)
	if err != nil {
		return err
	}
	table, err := schemas.Get(entry.Dataset.Datatype())
	if err != nil {
		return err
	}
	collector, units, err := planUnits(entry, blocks, hashes, address, source.InnerRequestSize)
	if err != nil {
		return err
	}
	chunks := common.SliceToChunks(units, config.Cfg.Collect.ChunkSize)

	log.Info().Str("dataset", entry.Dataset.Name()).Int("units", len(units)).Int("chunks", len(chunks)).Msg("Collecting dataset")
	return collect.CollectChunks(ctx, collector, source, schemas, chunks, func(ctx context.Context, index int, columns *collect.Columns) error {
		_, err := out.Write(ctx, table, columns, chunks[index])
		return err
	})
}

package collect

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/rpc"
)

const (
	DefaultInnerRequestSize    = 1
	DefaultMaxConcurrentChunks = 4
)

// Source is the shared, read-only collection context passed to every unit.
type Source struct {
	Fetcher             *rpc.Fetcher
	ChainID             uint64
	InnerRequestSize    uint64
	MaxConcurrentChunks uint64
}

// NewSource fills in the chain id from the node when chainID is zero.
func NewSource(ctx context.Context, fetcher *rpc.Fetcher, chainID uint64) (Source, error) {
	if chainID == 0 {
		id, err := fetcher.ChainID(ctx)
		if err != nil {
			return Source{}, fmt.Errorf("failed to get chain id: %w", err)
		}
		chainID = id
	}
	source := Source{
		Fetcher:             fetcher,
		ChainID:             chainID,
		InnerRequestSize:    DefaultInnerRequestSize,
		MaxConcurrentChunks: DefaultMaxConcurrentChunks,
	}
	log.Debug().Uint64("chain_id", chainID).Str("rpc", fetcher.GetURL()).Msg("Collection source ready")
	return source, nil
}

// SourceFromConfig builds a Source using the collect config section.
func SourceFromConfig(ctx context.Context, fetcher *rpc.Fetcher) (Source, error) {
	source, err := NewSource(ctx, fetcher, config.Cfg.RPC.ChainID)
	if err != nil {
		return Source{}, err
	}
	if config.Cfg.Collect.InnerRequestSize > 0 {
		source.InnerRequestSize = uint64(config.Cfg.Collect.InnerRequestSize)
	}
	if config.Cfg.Collect.MaxConcurrentChunks > 0 {
		source.MaxConcurrentChunks = uint64(config.Cfg.Collect.MaxConcurrentChunks)
	}
	return source, nil
}

package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/extractor/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// CollectChunk extracts every unit concurrently and then transforms the
// responses in unit order into one validated column store. Any failed unit
// fails the chunk.
func CollectChunk(ctx context.Context, c UnitCollector, source Source, schemas Schemas, units []Params) (*Columns, error) {
	table, err := schemas.Get(c.Datatype())
	if err != nil {
		return nil, err
	}
	dataset := c.Name()
	start := time.Now()

	pending := make([]Pending, len(units))
	g, gctx := errgroup.WithContext(ctx)
	for i, unit := range units {
		g.Go(func() error {
			p, err := c.Collect(gctx, unit, source, schemas)
			if err != nil {
				return fmt.Errorf("collecting %s for %s: %w", dataset, unit, err)
			}
			pending[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ChunkErrors.WithLabelValues(dataset).Inc()
		return nil, err
	}

	columns := NewColumns(c.Datatype())
	for i, p := range pending {
		if err := p(columns, schemas); err != nil {
			metrics.ChunkErrors.WithLabelValues(dataset).Inc()
			return nil, fmt.Errorf("transforming %s for %s: %w", dataset, units[i], err)
		}
	}
	if err := columns.Validate(table); err != nil {
		metrics.ChunkErrors.WithLabelValues(dataset).Inc()
		return nil, err
	}

	metrics.ChunksCollected.WithLabelValues(dataset).Inc()
	metrics.RowsCollected.WithLabelValues(dataset).Add(float64(columns.NRows))
	metrics.ChunkDuration.WithLabelValues(dataset).Observe(time.Since(start).Seconds())
	log.Debug().Str("dataset", dataset).Int("units", len(units)).Int("rows", columns.NRows).
		Dur("duration", time.Since(start)).Msg("Collected chunk")
	return columns, nil
}

// ChunkHandler receives each collected chunk. It may be called from several
// goroutines at once.
type ChunkHandler func(ctx context.Context, index int, columns *Columns) error

// CollectChunks runs CollectChunk over chunks with at most
// source.MaxConcurrentChunks in flight and hands each result to handle.
func CollectChunks(ctx context.Context, c UnitCollector, source Source, schemas Schemas, chunks [][]Params, handle ChunkHandler) error {
	g, gctx := errgroup.WithContext(ctx)
	if source.MaxConcurrentChunks > 0 {
		g.SetLimit(int(source.MaxConcurrentChunks))
	}
	for i, chunk := range chunks {
		g.Go(func() error {
			columns, err := CollectChunk(gctx, c, source, schemas, chunk)
			if err != nil {
				return err
			}
			return handle(gctx, i, columns)
		})
	}
	return g.Wait()
}

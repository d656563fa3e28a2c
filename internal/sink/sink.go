package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/extractor/configs"
	"github.com/thirdweb-dev/extractor/internal/collect"
	"github.com/thirdweb-dev/extractor/internal/metrics"
)

// File describes one written chunk.
type File struct {
	Path    string
	ChainID uint64
	Dataset string
	First   string
	Last    string
	Rows    int
}

// Sink writes finished column stores as parquet files under a directory,
// uploading them when an Uploader is set.
type Sink struct {
	Dir         string
	Compression string
	ChainID     uint64
	Uploader    *Uploader
}

// FromConfig builds a sink from the output config section.
func FromConfig(ctx context.Context, chainID uint64) (*Sink, error) {
	s := &Sink{
		Dir:         config.Cfg.Output.Dir,
		Compression: config.Cfg.Output.Compression,
		ChainID:     chainID,
	}
	if s.Dir == "" {
		s.Dir = "."
	}
	if _, err := CompressionCodec(s.Compression); err != nil {
		return nil, err
	}
	if config.Cfg.Output.S3.Bucket != "" {
		uploader, err := NewUploader(ctx, config.Cfg.Output.S3)
		if err != nil {
			return nil, err
		}
		s.Uploader = uploader
	}
	return s, nil
}

// FileName is <chain>__<dataset>__<first>_to_<last>.parquet.
func FileName(chainID uint64, dataset, first, last string) string {
	return fmt.Sprintf("%d__%s__%s_to_%s.parquet", chainID, dataset, first, last)
}

// ChunkLabels names a chunk by the first and last unit it covers.
func ChunkLabels(units []collect.Params) (string, string) {
	if len(units) == 0 {
		return "empty", "empty"
	}
	return unitLabel(units[0], true), unitLabel(units[len(units)-1], false)
}

func unitLabel(p collect.Params, first bool) string {
	if from, to, err := p.BlockRange(); err == nil {
		if first {
			return fmt.Sprintf("%08d", from)
		}
		return fmt.Sprintf("%08d", to)
	}
	if n, err := p.BlockNumber(); err == nil {
		return fmt.Sprintf("%08d", n)
	}
	if h, err := p.TransactionHash(); err == nil {
		return h.Hex()[:10]
	}
	return "unknown"
}

// Write encodes columns to a parquet file and uploads it when configured.
// The temporary file is renamed into place only after a complete write.
func (s *Sink) Write(ctx context.Context, table *collect.Table, columns *collect.Columns, units []collect.Params) (File, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return File{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	first, last := ChunkLabels(units)
	file := File{
		Path:    filepath.Join(s.Dir, FileName(s.ChainID, string(table.Datatype), first, last)),
		ChainID: s.ChainID,
		Dataset: string(table.Datatype),
		First:   first,
		Last:    last,
		Rows:    columns.NRows,
	}

	tmp := file.Path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return File{}, fmt.Errorf("failed to create parquet file: %w", err)
	}
	if err := WriteParquet(f, table, columns, s.Compression); err != nil {
		f.Close()
		os.Remove(tmp)
		return File{}, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return File{}, fmt.Errorf("failed to close parquet file: %w", err)
	}
	if err := os.Rename(tmp, file.Path); err != nil {
		return File{}, fmt.Errorf("failed to move parquet file into place: %w", err)
	}

	metrics.FilesWritten.WithLabelValues(file.Dataset).Inc()
	log.Info().Str("path", file.Path).Int("rows", file.Rows).Msg("Wrote parquet file")

	if s.Uploader != nil {
		if _, err := s.Uploader.Upload(ctx, file); err != nil {
			return file, err
		}
	}
	return file, nil
}

package collect

import (
	"context"
)

// Dataset describes a table: its name, column types, default columns and
// default sort order.
type Dataset interface {
	Datatype() Datatype
	Name() string
	DefaultSort() []string
	ColumnTypes() map[string]ColumnType
	DefaultColumns() []string
}

// RangedDataset is implemented by datasets whose block units span several
// blocks at once.
type RangedDataset interface {
	RangedByBlock() bool
}

// CollectByBlock is a dataset collectable per block. Extract performs I/O
// and returns an intermediate response R; Transform is pure and appends the
// rows derived from R.
type CollectByBlock[R any] interface {
	Dataset
	ExtractByBlock(ctx context.Context, params Params, source Source, schemas Schemas) (R, error)
	TransformByBlock(response R, columns *Columns, schemas Schemas) error
}

// CollectByTransaction is a dataset collectable per transaction.
type CollectByTransaction[R any] interface {
	Dataset
	ExtractByTransaction(ctx context.Context, params Params, source Source, schemas Schemas) (R, error)
	TransformByTransaction(response R, columns *Columns, schemas Schemas) error
}

// Pending holds an extracted response waiting to be transformed.
type Pending func(columns *Columns, schemas Schemas) error

// UnitCollector hides the response type of a dataset so collectors of
// different datasets can be scheduled together.
type UnitCollector interface {
	Dataset
	Collect(ctx context.Context, params Params, source Source, schemas Schemas) (Pending, error)
}

type byBlock[R any] struct {
	CollectByBlock[R]
}

// ByBlock adapts c to a UnitCollector working on block units.
func ByBlock[R any](c CollectByBlock[R]) UnitCollector {
	return byBlock[R]{c}
}

func (b byBlock[R]) Collect(ctx context.Context, params Params, source Source, schemas Schemas) (Pending, error) {
	response, err := b.ExtractByBlock(ctx, params, source, schemas)
	if err != nil {
		return nil, err
	}
	return func(columns *Columns, schemas Schemas) error {
		return b.TransformByBlock(response, columns, schemas)
	}, nil
}

type byTransaction[R any] struct {
	CollectByTransaction[R]
}

// ByTransaction adapts c to a UnitCollector working on transaction units.
func ByTransaction[R any](c CollectByTransaction[R]) UnitCollector {
	return byTransaction[R]{c}
}

func (b byTransaction[R]) Collect(ctx context.Context, params Params, source Source, schemas Schemas) (Pending, error) {
	response, err := b.ExtractByTransaction(ctx, params, source, schemas)
	if err != nil {
		return nil, err
	}
	return func(columns *Columns, schemas Schemas) error {
		return b.TransformByTransaction(response, columns, schemas)
	}, nil
}

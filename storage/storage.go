package storage

import (
	"context"
	"errors"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

var ErrDatasetNotFound = errors.New("dataset not found")

// Anything the stop catalog loader can fetch datasets from.
type DatasetReader interface {
	// Reads the dataset of the given kind for a line's data
	// key. Returns ErrDatasetNotFound (possibly wrapped) if no
	// such dataset exists.
	ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error)
}

// Writable dataset storage, e.g. a database datasets are imported
// into.
type Storage interface {
	DatasetReader

	// Writes a dataset. If a dataset with the same key and kind
	// exists, it is replaced.
	WriteDataset(ctx context.Context, ds *model.Dataset) error

	// Retrieves all datasets matching the filter. Data is
	// included.
	ListDatasets(ctx context.Context, filter ListDatasetsFilter) ([]*model.Dataset, error)

	DeleteDataset(ctx context.Context, key string, kind model.DatasetKind) error

	Close() error
}

type ListDatasetsFilter struct {
	// If set, only include datasets with the given key.
	Key string

	// If set, only include datasets of the given kind.
	Kind model.DatasetKind
}

// All dataset kinds, in the order they're typically loaded.
var DatasetKinds = []model.DatasetKind{
	model.DatasetStops,
	model.DatasetFares,
	model.DatasetSupplementary,
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// Read-only datasets laid out as <key>/<kind>.json or
// <key>/<kind>.csv. Works with both the embedded bundle and
// os.DirFS.
type FSStorage struct {
	fsys fs.FS
}

func NewFSStorage(fsys fs.FS) *FSStorage {
	return &FSStorage{fsys: fsys}
}

var datasetFormats = []model.DatasetFormat{model.FormatJSON, model.FormatCSV}

func (s *FSStorage) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, format := range datasetFormats {
		name := path.Join(key, string(kind)+"."+string(format))

		data, err := fs.ReadFile(s.fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		updatedAt := time.Time{}
		if info, err := fs.Stat(s.fsys, name); err == nil {
			updatedAt = info.ModTime().UTC()
		}

		return &model.Dataset{
			Key:       key,
			Kind:      kind,
			Format:    format,
			Data:      data,
			UpdatedAt: updatedAt,
		}, nil
	}

	return nil, fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
}

// Reads every dataset for the given keys, skipping those that don't
// exist. Used when importing into a database.
func (s *FSStorage) ListDatasets(ctx context.Context, keys []string) ([]*model.Dataset, error) {
	datasets := []*model.Dataset{}
	for _, key := range keys {
		for _, kind := range DatasetKinds {
			ds, err := s.ReadDataset(ctx, key, kind)
			if errors.Is(err, ErrDatasetNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			datasets = append(datasets, ds)
		}
	}
	return datasets, nil
}

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

// In memory implementation of Storage below

type memoryDatasetKey struct {
	Key  string
	Kind model.DatasetKind
}

type MemoryStorage struct {
	mutex    sync.RWMutex
	datasets map[memoryDatasetKey]*model.Dataset
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		datasets: map[memoryDatasetKey]*model.Dataset{},
	}
}

func (s *MemoryStorage) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ds, found := s.datasets[memoryDatasetKey{key, kind}]
	if !found {
		return nil, fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
	}
	return copyDataset(ds), nil
}

func (s *MemoryStorage) WriteDataset(ctx context.Context, ds *model.Dataset) error {
	if ds.Key == "" || ds.Kind == "" {
		return fmt.Errorf("dataset key and kind are required")
	}

	stored := copyDataset(ds)
	if stored.Format == "" {
		stored.Format = model.FormatJSON
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.datasets[memoryDatasetKey{ds.Key, ds.Kind}] = stored

	return nil
}

func (s *MemoryStorage) ListDatasets(ctx context.Context, filter ListDatasetsFilter) ([]*model.Dataset, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	datasets := []*model.Dataset{}
	for _, ds := range s.datasets {
		if filter.Key != "" && ds.Key != filter.Key {
			continue
		}
		if filter.Kind != "" && ds.Kind != filter.Kind {
			continue
		}
		datasets = append(datasets, copyDataset(ds))
	}

	sort.Slice(datasets, func(i, j int) bool {
		if datasets[i].Key != datasets[j].Key {
			return datasets[i].Key < datasets[j].Key
		}
		return datasets[i].Kind < datasets[j].Kind
	})

	return datasets, nil
}

func (s *MemoryStorage) DeleteDataset(ctx context.Context, key string, kind model.DatasetKind) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	k := memoryDatasetKey{key, kind}
	if _, found := s.datasets[k]; !found {
		return fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
	}
	delete(s.datasets, k)
	return nil
}

func (s *MemoryStorage) Close() error {
	return nil
}

func copyDataset(ds *model.Dataset) *model.Dataset {
	c := *ds
	c.Data = append([]byte(nil), ds.Data...)
	return &c
}

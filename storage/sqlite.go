package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = filepath.Join(directory, "andartayo.db")
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	if !onDisk {
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS dataset (
    key TEXT NOT NULL,
    kind TEXT NOT NULL,
    format TEXT NOT NULL,
    data BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL,
PRIMARY KEY (key, kind)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dataset table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		db: db,
	}, nil
}

func (s *SQLiteStorage) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT key, kind, format, data, updated_at
FROM dataset
WHERE key = ? AND kind = ?`, key, string(kind))

	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	return ds, nil
}

func (s *SQLiteStorage) WriteDataset(ctx context.Context, ds *model.Dataset) error {
	if ds.Key == "" || ds.Kind == "" {
		return fmt.Errorf("dataset key and kind are required")
	}

	format := ds.Format
	if format == "" {
		format = model.FormatJSON
	}
	updatedAt := ds.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO dataset (key, kind, format, data, updated_at)
VALUES (?, ?, ?, ?, ?)`,
		ds.Key,
		string(ds.Kind),
		string(format),
		ds.Data,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) ListDatasets(ctx context.Context, filter ListDatasetsFilter) ([]*model.Dataset, error) {
	query := `
SELECT key, kind, format, data, updated_at
FROM dataset
WHERE (? = '' OR key = ?) AND (? = '' OR kind = ?)
ORDER BY key, kind`

	rows, err := s.db.QueryContext(
		ctx,
		query,
		filter.Key, filter.Key,
		string(filter.Kind), string(filter.Kind),
	)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	datasets := []*model.Dataset{}
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating datasets: %w", err)
	}

	return datasets, nil
}

func (s *SQLiteStorage) DeleteDataset(ctx context.Context, key string, kind model.DatasetKind) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dataset WHERE key = ? AND kind = ?`, key, string(kind))
	if err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting dataset: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*model.Dataset, error) {
	var key, kind, format string
	var data []byte
	var updatedAt time.Time

	if err := row.Scan(&key, &kind, &format, &data, &updatedAt); err != nil {
		return nil, err
	}

	return &model.Dataset{
		Key:       key,
		Kind:      model.DatasetKind(kind),
		Format:    model.DatasetFormat(format),
		Data:      data,
		UpdatedAt: updatedAt.UTC(),
	}, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kurtesianplane/andarTayo-sub000/model"
)

type PSQLStorage struct {
	db *sql.DB
}

// Creates a new Postgres Storage using the provided connection string.
//
// If clearDB is true, the database will be cleared on startup. You
// probably only want this for testing.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if clearDB {
		_, err = db.Exec(`DROP TABLE IF EXISTS dataset;`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("clearing db: %w", err)
		}
	}

	// Create dataset table if needed
	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS dataset (
    key TEXT NOT NULL,
    kind TEXT NOT NULL,
    format TEXT NOT NULL,
    data BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (key, kind)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dataset table: %w", err)
	}

	return &PSQLStorage{
		db: db,
	}, nil
}

func (s *PSQLStorage) Close() error {
	err := s.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close db: %w", err)
	}
	return nil
}

func (s *PSQLStorage) ReadDataset(ctx context.Context, key string, kind model.DatasetKind) (*model.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT key, kind, format, data, updated_at
FROM dataset
WHERE key = $1 AND kind = $2`, key, string(kind))

	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", key, kind, ErrDatasetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	return ds, nil
}

func (s *PSQLStorage) WriteDataset(ctx context.Context, ds *model.Dataset) error {
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
INSERT INTO dataset (key, kind, format, data, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (key, kind) DO UPDATE SET
    format = EXCLUDED.format,
    data = EXCLUDED.data,
    updated_at = EXCLUDED.updated_at`,
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

func (s *PSQLStorage) ListDatasets(ctx context.Context, filter ListDatasetsFilter) ([]*model.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, kind, format, data, updated_at
FROM dataset
WHERE ($1 = '' OR key = $1) AND ($2 = '' OR kind = $2)
ORDER BY key, kind`, filter.Key, string(filter.Kind))
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

func (s *PSQLStorage) DeleteDataset(ctx context.Context, key string, kind model.DatasetKind) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dataset WHERE key = $1 AND kind = $2`, key, string(kind))
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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kurtesianplane/andarTayo-sub000/data"
	"github.com/kurtesianplane/andarTayo-sub000/storage"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Copies line datasets into the SQLite or Postgres database",
	Long: `Copies stops, fares and info datasets of every registered line from
--data-dir (or the bundled datasets) into the database selected by
--postgres or --sqlite.`,
	Args: cobra.NoArgs,
	RunE: importDatasets,
}

var clearDB bool

func init() {
	importCmd.Flags().BoolVarP(&clearDB, "clear", "", false, "Drop existing datasets first (postgres only)")
	rootCmd.AddCommand(importCmd)
}

func openTarget() (storage.Storage, error) {
	switch {
	case postgresConn != "":
		return storage.NewPSQLStorage(postgresConn, clearDB)
	case sqliteDir != "":
		return storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: sqliteDir})
	}
	return nil, fmt.Errorf("one of --postgres or --sqlite is required")
}

func importDatasets(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	registry, err := LoadRegistry()
	if err != nil {
		return err
	}

	src := storage.NewFSStorage(data.FS)
	if dataDir != "" {
		src = storage.NewFSStorage(os.DirFS(dataDir))
	}

	keys := []string{}
	for _, line := range registry.List() {
		keys = append(keys, line.DataKey)
	}

	datasets, err := src.ListDatasets(ctx, keys)
	if err != nil {
		return fmt.Errorf("reading datasets: %w", err)
	}

	target, err := openTarget()
	if err != nil {
		return err
	}
	defer target.Close()

	for _, ds := range datasets {
		if err := target.WriteDataset(ctx, ds); err != nil {
			return fmt.Errorf("writing %s/%s: %w", ds.Key, ds.Kind, err)
		}
		log.Info().
			Str("key", ds.Key).
			Str("kind", string(ds.Kind)).
			Str("format", string(ds.Format)).
			Int("bytes", len(ds.Data)).
			Msg("imported dataset")
	}

	fmt.Printf("imported %d datasets for %d lines\n", len(datasets), len(keys))

	return nil
}

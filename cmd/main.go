package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	andartayo "github.com/kurtesianplane/andarTayo-sub000"
	"github.com/kurtesianplane/andarTayo-sub000/alerts"
	"github.com/kurtesianplane/andarTayo-sub000/catalog"
	"github.com/kurtesianplane/andarTayo-sub000/data"
	"github.com/kurtesianplane/andarTayo-sub000/downloader"
	"github.com/kurtesianplane/andarTayo-sub000/lines"
	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/model"
	"github.com/kurtesianplane/andarTayo-sub000/storage"
)

const (
	DefaultAlertFeedTimeout = 15 * time.Second
	DefaultAlertFeedMaxSize = 2 << 20 // 2 MB
	DefaultAlertFeedTTL     = 1 * time.Minute
)

var rootCmd = &cobra.Command{
	Use:               "andartayo",
	Short:             "Metro Manila trip planner",
	Long:              "Plans trips on LRT-1, LRT-2, MRT-3 and the EDSA Carousel",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	dataDir      string
	dataURL      string
	dataCache    string
	sqliteDir    string
	postgresConn string
	redisAddr    string
	linesFile    string
	alertsFile   string
	alertFeeds   []string
	dataHeaders  []string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "", "", "Directory of line datasets (default: bundled datasets)")
	rootCmd.PersistentFlags().StringVarP(&dataURL, "data-url", "", "", "Base URL of line datasets")
	rootCmd.PersistentFlags().StringVarP(&dataCache, "data-cache", "", "", "File caching --data-url and --alerts-feed downloads across restarts")
	rootCmd.PersistentFlags().StringSliceVarP(&dataHeaders, "data-header", "", []string{}, "HTTP header for --data-url and --alerts-feed")
	rootCmd.PersistentFlags().StringVarP(&sqliteDir, "sqlite", "", "", "Directory holding the SQLite dataset database")
	rootCmd.PersistentFlags().StringVarP(&postgresConn, "postgres", "", "", "Postgres connection string for the dataset database")
	rootCmd.PersistentFlags().StringVarP(&redisAddr, "redis", "", "", "Redis address or URL for the shared dataset cache")
	rootCmd.PersistentFlags().StringVarP(&linesFile, "lines", "", "", "Line registry YAML (default: bundled registry)")
	rootCmd.PersistentFlags().StringVarP(&alertsFile, "alerts", "", "", "JSON file of service alerts")
	rootCmd.PersistentFlags().StringSliceVarP(&alertFeeds, "alerts-feed", "", []string{}, "GTFS Realtime service alert feed URL")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// Configures logging, and fills in flags not given on the command
// line from the environment (or a .env file).
func setup(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	if os.Getenv("ANDARTAYO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if os.Getenv("ANDARTAYO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	fromEnv(&dataDir, "ANDARTAYO_DATA_DIR")
	fromEnv(&dataURL, "ANDARTAYO_DATA_URL")
	fromEnv(&dataCache, "ANDARTAYO_DATA_CACHE")
	fromEnv(&sqliteDir, "ANDARTAYO_SQLITE")
	fromEnv(&postgresConn, "ANDARTAYO_POSTGRES")
	fromEnv(&redisAddr, "ANDARTAYO_REDIS")
	fromEnv(&linesFile, "ANDARTAYO_LINES")
	fromEnv(&alertsFile, "ANDARTAYO_ALERTS")
	if len(alertFeeds) == 0 && os.Getenv("ANDARTAYO_ALERTS_FEED") != "" {
		alertFeeds = strings.Split(os.Getenv("ANDARTAYO_ALERTS_FEED"), ",")
	}

	return nil
}

func fromEnv(value *string, key string) {
	if *value == "" {
		*value = os.Getenv(key)
	}
}

func parseHeaders(headers []string) (map[string]string, error) {
	parsed := map[string]string{}
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("'%s' is not on form <key>:<value>", header)
		}
		parsed[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return parsed, nil
}

func LoadRegistry() (*lines.Registry, error) {
	if linesFile == "" {
		return lines.Default()
	}

	f, err := os.Open(linesFile)
	if err != nil {
		return nil, fmt.Errorf("opening line registry: %w", err)
	}
	defer f.Close()

	return lines.LoadRegistry(f)
}

// Downloader for dataset URLs and alert feeds. With --data-cache,
// downloads survive restarts and stale copies are served while the
// host is unreachable.
func OpenDownloader() (downloader.Downloader, error) {
	if dataCache == "" {
		return downloader.NewMemoryDownloader(), nil
	}

	d, err := downloader.NewFilesystem(dataCache)
	if err != nil {
		return nil, err
	}
	d.StaleOnError = true

	return d, nil
}

// Opens the dataset source selected by flags. Databases take
// precedence over URLs, which take precedence over directories.
// The returned function releases the source.
func OpenSource(d downloader.Downloader) (storage.DatasetReader, func(), error) {
	var source storage.DatasetReader
	closer := func() {}

	switch {
	case postgresConn != "":
		s, err := storage.NewPSQLStorage(postgresConn, false)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres: %w", err)
		}
		source, closer = s, func() { s.Close() }

	case sqliteDir != "":
		s, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: sqliteDir})
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		source, closer = s, func() { s.Close() }

	case dataURL != "":
		headers, err := parseHeaders(dataHeaders)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid data header: %w", err)
		}
		s := storage.NewHTTPStorage(dataURL, d)
		s.Headers = headers
		source = s

	case dataDir != "":
		source = storage.NewFSStorage(os.DirFS(dataDir))

	default:
		source = storage.NewFSStorage(data.FS)
	}

	if redisAddr != "" {
		client, err := redisClient(redisAddr)
		if err != nil {
			closer()
			return nil, nil, err
		}
		inner := closer
		source = storage.NewRedisCache(client, source, storage.DefaultRedisCacheTTL)
		closer = func() {
			client.Close()
			inner()
		}
	}

	return source, closer, nil
}

func redisClient(addr string) (*redis.Client, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}

// Loads alerts from the alert file and feeds, if any.
func LoadAlerts(ctx context.Context, d downloader.Downloader) ([]model.Alert, error) {
	loaded := []model.Alert{}

	if alertsFile != "" {
		fromFile, err := alerts.LoadFile(alertsFile)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, fromFile...)
	}

	if len(alertFeeds) > 0 {
		headers, err := parseHeaders(dataHeaders)
		if err != nil {
			return nil, fmt.Errorf("invalid data header: %w", err)
		}
		fromFeeds, err := alerts.FetchFeeds(ctx, d, alertFeeds, headers, downloader.GetOptions{
			Timeout:  DefaultAlertFeedTimeout,
			MaxSize:  DefaultAlertFeedMaxSize,
			Cache:    true,
			CacheTTL: DefaultAlertFeedTTL,
		})
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, fromFeeds...)
	}

	return loaded, nil
}

type application struct {
	Registry   *lines.Registry
	Loader     *catalog.Loader
	Board      *alerts.Board
	Planner    *andartayo.Planner
	Metrics    *metrics.Collector
	Downloader downloader.Downloader

	close func()
}

func (a *application) Close() { a.close() }

// Wires registry, dataset source, alerts and planner together.
func LoadApp(ctx context.Context, collector *metrics.Collector) (*application, error) {
	registry, err := LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("loading line registry: %w", err)
	}

	d, err := OpenDownloader()
	if err != nil {
		return nil, err
	}

	source, closer, err := OpenSource(d)
	if err != nil {
		return nil, err
	}

	loaded, err := LoadAlerts(ctx, d)
	if err != nil {
		closer()
		return nil, fmt.Errorf("loading alerts: %w", err)
	}
	board := alerts.NewBoard(loaded...)
	collector.AlertsLoaded(len(board.Active(time.Now())))

	loader := catalog.NewLoader(registry, source, catalog.WithMetrics(collector))
	planner := andartayo.NewPlanner(registry, loader, board, andartayo.WithMetrics(collector))

	return &application{
		Registry:   registry,
		Loader:     loader,
		Board:      board,
		Planner:    planner,
		Metrics:    collector,
		Downloader: d,
		close:      closer,
	}, nil
}

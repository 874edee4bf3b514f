package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kurtesianplane/andarTayo-sub000/metrics"
	"github.com/kurtesianplane/andarTayo-sub000/server"
)

const (
	DefaultAlertRefreshInterval = 1 * time.Minute
	DefaultShutdownTimeout      = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the trip planner API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

var (
	listenAddr           string
	allowedOrigins       []string
	alertRefreshInterval time.Duration
	reloadInterval       time.Duration
)

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "addr", "a", "", "Listen address (default $PORT or :8081)")
	serveCmd.Flags().StringSliceVarP(&allowedOrigins, "allowed-origin", "", []string{"*"}, "CORS allowed origin")
	serveCmd.Flags().DurationVarP(&alertRefreshInterval, "alert-refresh", "", DefaultAlertRefreshInterval, "How often to refetch alert feeds")
	serveCmd.Flags().DurationVarP(&reloadInterval, "reload", "", 0, "How often to reload line datasets (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	app, err := LoadApp(ctx, collector)
	if err != nil {
		return err
	}
	defer app.Close()

	// Lines with broken datasets report data errors until fixed.
	if err := app.Loader.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("some datasets failed to load")
	}

	if len(alertFeeds) > 0 && alertRefreshInterval > 0 {
		go refreshAlerts(ctx, app)
	}
	if reloadInterval > 0 {
		go reloadDatasets(ctx, app)
	}

	addr := listenAddr
	if addr == "" && os.Getenv("PORT") != "" {
		addr = ":" + os.Getenv("PORT")
	}
	if addr == "" {
		addr = server.DefaultAddr
	}

	srv := server.New(app.Planner)
	srv.AllowedOrigins = allowedOrigins
	srv.Metrics = collector

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Int("lines", len(app.Registry.List())).Msg("serving")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func refreshAlerts(ctx context.Context, app *application) {
	ticker := time.NewTicker(alertRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		loaded, err := LoadAlerts(ctx, app.Downloader)
		if err != nil {
			// Keep serving the previous snapshot
			log.Warn().Err(err).Msg("refreshing alerts")
			continue
		}
		app.Board.Replace(loaded)
		app.Metrics.AlertsLoaded(len(app.Board.Active(time.Now())))
		log.Debug().Int("alerts", len(loaded)).Msg("refreshed alerts")
	}
}

func reloadDatasets(ctx context.Context, app *application) {
	ticker := time.NewTicker(reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for _, line := range app.Registry.List() {
			app.Loader.Invalidate(line.ID)
		}
		if err := app.Loader.Warm(ctx); err != nil {
			log.Warn().Err(err).Msg("reloading datasets")
		}
	}
}

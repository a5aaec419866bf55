package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/soundreach/fanscout/internal/api"
	"github.com/soundreach/fanscout/internal/candidate"
	"github.com/soundreach/fanscout/internal/config"
	"github.com/soundreach/fanscout/internal/discovery"
	"github.com/soundreach/fanscout/internal/expansion"
	"github.com/soundreach/fanscout/internal/export"
	"github.com/soundreach/fanscout/internal/spotify"
	"github.com/soundreach/fanscout/internal/store"
	"github.com/soundreach/fanscout/internal/worker"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "fanscout",
	Short: "Fanscout - Candidate Discovery Service",
	RunE:  run,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(expandCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	client := newSpotifyClient(cfg)
	slog.Info("platform client initialized", "base_url", cfg.Spotify.BaseURL)

	discoverer := discovery.NewEngine(client, cfg.Scoring.Weights)
	expander := expansion.NewEngine(client, db, cfg.Scoring.Weights)
	runner := worker.NewDiscoveryRunner(db, discoverer, expander)

	uploader, err := export.NewUploader(cfg.Export)
	if err != nil {
		return err
	}
	exporter := worker.NewExportCoordinator(db, uploader, "data/exports", time.Duration(cfg.Export.Interval))

	handler := api.NewHandler(db, runner, exporter, cfg.Auth.APIKey, Version)
	router := api.NewRouter(handler)
	slog.Info("router initialized")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	var wg sync.WaitGroup
	startWorker(ctx, &wg, "discovery-runner", runner.Run)
	if cfg.Export.Enabled {
		startWorker(ctx, &wg, "export-coordinator", exporter.Run)
	}

	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected error when Shutdown() is called
		// gracefully; anything else is a real failure.
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	wg.Wait()

	if err := db.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// loadConfig loads .env, configuration, and installs the default logger.
func loadConfig() (*config.Config, error) {
	// Missing .env is fine; real deployments set env vars directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("configuration loaded", "log_level", cfg.Log.Level)

	return cfg, nil
}

func newSpotifyClient(cfg *config.Config) *spotify.Client {
	tokens := spotify.NewClientCredentials(
		cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, spotify.DefaultTokenURL)
	return spotify.NewClient(tokens,
		spotify.WithBaseURL(cfg.Spotify.BaseURL),
		spotify.WithTimeout(time.Duration(cfg.Spotify.Timeout)),
		spotify.WithBaseBackoff(time.Duration(cfg.Spotify.BaseBackoff)),
	)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// startWorker launches a background worker goroutine that respects context
// cancellation. Workers are tracked via WaitGroup for graceful shutdown.
func startWorker(ctx context.Context, wg *sync.WaitGroup, name string, fn func(ctx context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("worker started", "worker", name)
		fn(ctx)
		slog.Info("worker stopped", "worker", name)
	}()
}

// expansionFacet stamps candidates saved by the one-shot expand command.
var expansionFacet = candidate.Facet{Genre: "unknown", ArtistType: "expansion"}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"tradejournal/internal/api"
	"tradejournal/internal/auth"
	"tradejournal/internal/cache"
	"tradejournal/internal/defaults"
	"tradejournal/internal/events"
	"tradejournal/internal/jobs"
	"tradejournal/internal/notify"
	"tradejournal/internal/trace"
	"tradejournal/internal/upload"
)

func newServeCmd(rc *RootConfig) *cobra.Command {
	var noCron bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API, websocket events and the snapshot scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), rc, !noCron)
		},
	}

	cmd.Flags().BoolVar(&noCron, "no-cron", false, "do not schedule nightly snapshots")

	return cmd
}

func newCache(ctx context.Context, rc *RootConfig) (cache.Store, func() error, error) {
	cfg := rc.Config
	if cfg.RedisAddr == "" {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}

	store := cache.NewRedisStore(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return store, store.Close, nil
}

func newNotifier(rc *RootConfig, store notify.SettingsStore) (notify.Notifier, error) {
	if rc.Config.TelegramToken == "" {
		return notify.Nop{}, nil
	}

	tg, err := notify.NewTelegram(rc.Config.TelegramToken, notify.SettingsChats(store), rc.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram: %w", err)
	}

	return tg, nil
}

func runServe(ctx context.Context, rc *RootConfig, withCron bool) error {
	cfg, logger := rc.Config, rc.Logger

	logger.Info("=== Trading Journal ===", slog.String("version", rc.Version))
	cfg.Warn(logger)

	if err := trace.Init(cfg.TracingEnabled, os.Stdout, rc.Version); err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := trace.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", slog.Any("error", err))
		}
	}()

	store, err := rc.openStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	defs, err := defaults.Load()
	if err != nil {
		return err
	}

	uploads, err := upload.NewStore(cfg.UploadDir, cfg.UploadMaxBytes, "/uploads/")
	if err != nil {
		return fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	cacheStore, closeCache, err := newCache(ctx, rc)
	if err != nil {
		return err
	}
	defer closeCache()

	notifier, err := newNotifier(rc, store)
	if err != nil {
		return err
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	loc := cfg.Location()

	if withCron {
		runner := jobs.NewRunner(ctx, loc, logger)
		snapshotter := jobs.NewSnapshotter(store, hub, notifier, defs.UserSettings(), loc, logger)

		if _, err := runner.Add(cfg.SnapshotCron, "daily-snapshots", snapshotter.Run); err != nil {
			return fmt.Errorf("invalid SNAPSHOT_CRON %q: %w", cfg.SnapshotCron, err)
		}

		runner.Start()
		defer runner.Stop()
	}

	handler := api.New(api.Deps{
		Storage:  store,
		Auth:     auth.NewService(cfg.JWTSecret, cfg.TokenTTL),
		Defaults: defs,
		Uploads:  uploads,
		Hub:      hub,
		Cache:    cacheStore,
		CacheTTL: cfg.CacheTTL,
		Notifier: notifier,
		Location: loc,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.SetupRouter(cfg.WebDir),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)

	go func() {
		logger.Info("🚀 Server starting...", slog.String("port", cfg.Port))
		logger.Info(fmt.Sprintf("📡 API available at http://localhost:%s/api", cfg.Port))
		logger.Info(fmt.Sprintf("🏥 Health check at http://localhost:%s/health", cfg.Port))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}

		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	logger.Info("✅ Server stopped")

	return nil
}

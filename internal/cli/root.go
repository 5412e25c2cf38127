package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"tradejournal/internal/config"
	"tradejournal/internal/logging"
	"tradejournal/internal/storage"
)

// RootConfig общее состояние команд: конфигурация и логгер.
// Заполненные заранее поля не перечитываются (используется в тестах).
type RootConfig struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string

	dsn      string
	closeLog func() error
}

// NewRoot создает корневую команду со всеми подкомандами
func NewRoot(rc *RootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tradejournal",
		Short: "Trading journal backend: REST API, nightly snapshots and data tools",
		Long: `tradejournal stores trades, journals, checklists and no-trade days,
serves the REST API for the journal SPA and keeps daily equity snapshots.

Configuration is read from environment variables and an optional .env file.`,
		Version:       rc.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rc.init(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return rc.close()
		},
	}

	cmd.PersistentFlags().StringVar(&rc.dsn, "dsn", "", "database DSN (overrides DB_DSN)")

	cmd.AddCommand(
		newServeCmd(rc),
		newMigrateCmd(rc),
		newUserCmd(rc),
		newImportCmd(rc),
		newExportCmd(rc),
		newSnapshotCmd(rc),
	)

	return cmd
}

// Execute запускает CLI и возвращает код выхода
func Execute(ctx context.Context, version string) int {
	rc := &RootConfig{Version: version}

	if err := NewRoot(rc).ExecuteContext(ctx); err != nil {
		if rc.Logger != nil {
			rc.Logger.Error("Command failed", slog.Any("error", err))
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}

		_ = rc.close()

		return 1
	}

	return 0
}

func (rc *RootConfig) init(stderr io.Writer) error {
	if rc.Config == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		rc.Config = cfg
	}

	if rc.dsn != "" {
		rc.Config.DBDSN = rc.dsn
	}

	if rc.Logger == nil {
		logger, closeLog, err := logging.New(stderr, rc.Config.LogFile, rc.Config.Level())
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		rc.Logger = logger
		rc.closeLog = closeLog
	}

	return nil
}

func (rc *RootConfig) close() error {
	if rc.closeLog == nil {
		return nil
	}

	closeLog := rc.closeLog
	rc.closeLog = nil

	return closeLog()
}

// openStorage открывает БД из конфигурации; схема применяется при открытии
func (rc *RootConfig) openStorage(ctx context.Context) (*storage.Storage, error) {
	return storage.Open(ctx, rc.storageOptions(), rc.Logger)
}

func (rc *RootConfig) storageOptions() storage.Options {
	return storage.Options{
		Driver:          rc.Config.DBDriver,
		DSN:             rc.Config.DBDSN,
		MaxOpenConns:    rc.Config.DBMaxOpenConns,
		ConnMaxLifetime: rc.Config.DBConnMaxLifetime,
	}
}

// lookupUser находит пользователя по имени для команд обслуживания
func lookupUser(ctx context.Context, store *storage.Storage, username string) (int, error) {
	if username == "" {
		return 0, errors.New("--user is required")
	}

	user, err := store.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("user %q: %w", username, err)
	}

	return user.ID, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("already exists")
	ErrLastJournal = errors.New("cannot delete the last journal")
	ErrClosed      = errors.New("journal is closed")
)

// Поддерживаемые драйверы БД
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options параметры подключения к БД
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Storage управляет базой данных журнала
type Storage struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open открывает БД и применяет схему
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Storage, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverSQLite
	}

	dsn := opts.DSN

	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// SQLite пишет в один поток, одно соединение исключает SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	storage := &Storage{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := storage.init(ctx); err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return storage, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "./tradejournal.db"
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// init инициализирует таблицы БД
func (s *Storage) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaFor(s.driver)); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := s.recordMigration(ctx, schemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	s.logger.Info("✅ Database initialized", slog.String("driver", s.driver))

	return nil
}

func (s *Storage) recordMigration(ctx context.Context, version int) error {
	var count int

	err := s.queryRow(ctx, s.db, `SELECT count(*) FROM schema_migrations WHERE version = ?`, version).Scan(&count)
	if err != nil || count > 0 {
		return err
	}

	_, err = s.exec(ctx, s.db, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, version, now())

	return err
}

// SchemaVersion возвращает последнюю примененную версию схемы
func (s *Storage) SchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64

	err := s.queryRow(ctx, s.db, `SELECT max(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, err
	}

	return int(version.Int64), nil
}

// Driver возвращает имя драйвера
func (s *Storage) Driver() string {
	return s.driver
}

// Ping проверяет соединение с БД
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение с БД
func (s *Storage) Close() error {
	return s.db.Close()
}

// querier - общее подмножество *sql.DB и *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Storage) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Storage) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

// rebind заменяет плейсхолдеры ? на $1..$n для Postgres
func (s *Storage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// inTx выполняет fn в транзакции
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}

	return tx.Commit()
}

// insertID выполняет INSERT ... RETURNING id
func (s *Storage) insertID(ctx context.Context, q querier, query string, args ...any) (int, error) {
	var id int64
	if err := s.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, mapError(err)
	}

	return int(id), nil
}

// mapError приводит ошибки драйверов к ошибкам пакета
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
	}

	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %s", ErrConflict, err.Error())
	}

	return err
}

// expectRows возвращает ErrNotFound, если запрос не затронул ни одной строки
func expectRows(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

func now() time.Time {
	return time.Now().UTC()
}

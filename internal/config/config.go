package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultJWTSecret используется, если JWT_SECRET не задан. Только для разработки.
const DefaultJWTSecret = "default-secret-change-me-in-production"

// Config содержит конфигурацию приложения
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"./tradejournal.db"`

	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"` // Только postgres, у SQLite всегда одно соединение
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"default-secret-change-me-in-production"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	UploadDir      string `env:"UPLOAD_DIR" envDefault:"./uploads"`
	UploadMaxBytes int64  `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`
	WebDir         string `env:"WEB_DIR"` // Статика SPA, пусто - не раздавать

	LogFile  string `env:"LOG_FILE" envDefault:"tradejournal.log"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`

	SnapshotCron string `env:"SNAPSHOT_CRON" envDefault:"0 5 0 * * *"`
	TimeZone     string `env:"TIME_ZONE" envDefault:"UTC"` // Границы дней для аналитики и срезов

	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"` // Чат каждого пользователя задается в его настройках

	TracingEnabled bool `env:"TRACING_ENABLED" envDefault:"false"`
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	_ = godotenv.Load()

	return Parse(nil)
}

// Parse разбирает конфигурацию из переданного окружения; nil - окружение процесса
func Parse(environment map[string]string) (*Config, error) {
	var cfg Config

	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", cfg.TokenTTL)
	}

	if cfg.DBMaxOpenConns < 0 {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS must not be negative, got %d", cfg.DBMaxOpenConns)
	}

	if _, err := time.LoadLocation(cfg.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", cfg.TimeZone, err)
	}

	if cfg.UploadMaxBytes <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_BYTES must be positive, got %d", cfg.UploadMaxBytes)
	}

	return &cfg, nil
}

// InsecureSecret сообщает, что используется секрет по умолчанию
func (c *Config) InsecureSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

// Level возвращает уровень логирования
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return level
}

// Location возвращает часовой пояс; значение проверено в Parse
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// Warn пишет предупреждения о небезопасной конфигурации
func (c *Config) Warn(logger *slog.Logger) {
	if c.InsecureSecret() {
		logger.Warn("⚠️  JWT_SECRET not set, using default (insecure!)")
	}

	if c.TelegramToken == "" {
		logger.Info("🔕 Telegram notifications disabled")
	}

	if c.RedisAddr == "" {
		logger.Info("💾 Using in-memory cache")
	} else {
		logger.Info("🔗 Using Redis cache", slog.String("addr", c.RedisAddr))
	}
}

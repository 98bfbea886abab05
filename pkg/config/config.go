package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers understood by StoreConfig.Driver.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverREST     = "rest"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Store      StoreConfig
	Cache      CacheConfig
	Import     ImportConfig
	Comparison ComparisonConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Enabled    bool
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the external record store and its endpoint.
// Timeout bounds every single call made against the store.
type StoreConfig struct {
	Driver  string
	Timeout time.Duration
	RESTURL string
	RESTKey string
	Table   string
}

// CacheConfig governs the comparison report cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ImportConfig tunes the mirror import pipeline.
type ImportConfig struct {
	BatchSize        int
	Workers          int
	QueueSize        int
	MaxFileSizeBytes int64
	// SpoolDir holds queued uploads on disk. Empty keeps them in memory.
	SpoolDir string
	SpoolTTL time.Duration
}

// ComparisonConfig tunes retrieval and the comparison window.
type ComparisonConfig struct {
	PageSize      int
	WindowDays    int
	Terms         int
	WeekdayLocale string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Enabled:    v.GetBool("AUTH_ENABLED"),
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{
		Driver:  strings.ToLower(v.GetString("STORE_DRIVER")),
		Timeout: parseDuration(v.GetString("STORE_TIMEOUT"), 120*time.Second),
		RESTURL: strings.TrimRight(v.GetString("STORE_REST_URL"), "/"),
		RESTKey: v.GetString("STORE_REST_KEY"),
		Table:   v.GetString("STORE_TABLE"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("COMPARISON_CACHE_TTL"), 5*time.Minute),
	}

	maxFileSize := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 50 * 1024 * 1024
	}
	cfg.Import = ImportConfig{
		BatchSize:        v.GetInt("IMPORT_BATCH_SIZE"),
		Workers:          v.GetInt("IMPORT_WORKERS"),
		QueueSize:        v.GetInt("IMPORT_QUEUE_SIZE"),
		MaxFileSizeBytes: maxFileSize,
		SpoolDir:         strings.TrimSpace(v.GetString("IMPORT_SPOOL_DIR")),
		SpoolTTL:         parseDuration(v.GetString("IMPORT_SPOOL_TTL"), 24*time.Hour),
	}

	cfg.Comparison = ComparisonConfig{
		PageSize:      v.GetInt("RETRIEVAL_PAGE_SIZE"),
		WindowDays:    v.GetInt("COMPARISON_WINDOW_DAYS"),
		Terms:         v.GetInt("COMPARISON_TERMS"),
		WeekdayLocale: strings.ToLower(v.GetString("WEEKDAY_LOCALE")),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_insight")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("STORE_TIMEOUT", "120s")
	v.SetDefault("STORE_REST_URL", "")
	v.SetDefault("STORE_REST_KEY", "")
	v.SetDefault("STORE_TABLE", "enrollment_records")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("COMPARISON_CACHE_TTL", "5m")

	v.SetDefault("IMPORT_BATCH_SIZE", 500)
	v.SetDefault("IMPORT_WORKERS", 2)
	v.SetDefault("IMPORT_QUEUE_SIZE", 16)
	v.SetDefault("IMPORT_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("IMPORT_SPOOL_DIR", "")
	v.SetDefault("IMPORT_SPOOL_TTL", "24h")

	v.SetDefault("RETRIEVAL_PAGE_SIZE", 1000)
	v.SetDefault("COMPARISON_WINDOW_DAYS", 15)
	v.SetDefault("COMPARISON_TERMS", 4)
	v.SetDefault("WEEKDAY_LOCALE", "pt")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

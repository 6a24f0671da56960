// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	AuthModeGateway = "gateway"
	AuthModeJWT     = "jwt"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	Port           string
	AllowedOrigins []string

	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	AuthMode     string
	GatewayToken string
	JWTSecret    string

	RedisURL      string
	LockTTL       time.Duration
	LockWait      time.Duration
	StatsCacheTTL time.Duration

	R2 R2Config

	ExportDir      string
	BackupEnabled  bool
	BackupInterval time.Duration

	LogLevel string
	LogFile  string
}

// R2Config holds the Cloudflare R2 (S3 compatible) export bucket settings.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough is set to talk to the bucket.
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.AccessKeySecret != "" && r.Bucket != ""
}

// Load reads .env (if present) and then the process environment.
// The returned bool is false when no .env file was found.
func Load() (*Config, bool, error) {
	foundEnv := godotenv.Load() == nil
	cfg, err := FromEnv()
	return cfg, foundEnv, err
}

// FromEnv builds a Config from the current environment and validates it.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "5200"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  getEnv("SQLITE_PATH", "quests.db"),

		AuthMode:     strings.ToLower(getEnv("AUTH_MODE", AuthModeGateway)),
		GatewayToken: getEnv("GATEWAY_TOKEN", os.Getenv("GAME_SERVICE_TOKEN")),
		JWTSecret:    os.Getenv("JWT_SECRET"),

		RedisURL: os.Getenv("REDIS_URL"),

		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", os.Getenv("CLOUDFLARE_ACCOUNT_ID")),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},

		ExportDir: getEnv("EXPORT_DIR", "exports"),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:  os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.LockTTL, err = getDuration("LOCK_TTL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockWait, err = getDuration("LOCK_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsCacheTTL, err = getDuration("STATS_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.BackupInterval, err = getDuration("BACKUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BackupEnabled, err = getBool("BACKUP_ENABLED", false); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL environment variable not set")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH must not be empty")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want postgres or sqlite)", c.DBDriver)
	}

	switch c.AuthMode {
	case AuthModeGateway:
		if c.GatewayToken == "" {
			return fmt.Errorf("GATEWAY_TOKEN (or GAME_SERVICE_TOKEN) is not set, service cannot authenticate Gateway")
		}
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q (want gateway or jwt)", c.AuthMode)
	}

	if c.BackupEnabled && c.BackupInterval < time.Minute {
		return fmt.Errorf("BACKUP_INTERVAL must be at least 1m, got %s", c.BackupInterval)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

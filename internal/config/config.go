// Package config loads application configuration from defaults, an optional
// YAML file and NEWSROOM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before mapping them to keys.
const EnvPrefix = "NEWSROOM_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Redis         RedisConfig         `koanf:"redis"`
	Log           LogConfig           `koanf:"log"`
	JWT           JWTConfig           `koanf:"jwt"`
	Cookie        CookieConfig        `koanf:"cookie"`
	CORS          CORSConfig          `koanf:"cors"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Ads           AdsConfig           `koanf:"ads"`
	Subscriptions SubscriptionsConfig `koanf:"subscriptions"`
	Push          PushConfig          `koanf:"push"`
	Digest        DigestConfig        `koanf:"digest"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	Type            string        `koanf:"type"`
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// RedisConfig configures the optional Redis connection.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// JWTConfig configures token signing and lifetimes per principal type.
type JWTConfig struct {
	SecretKey                 string        `koanf:"secret_key"`
	AccessTokenDuration       time.Duration `koanf:"access_token_duration"`
	RefreshTokenDuration      time.Duration `koanf:"refresh_token_duration"`
	AdminAccessTokenDuration  time.Duration `koanf:"admin_access_token_duration"`
	AdminRefreshTokenDuration time.Duration `koanf:"admin_refresh_token_duration"`
}

// CookieConfig configures auth cookies.
type CookieConfig struct {
	Secure bool   `koanf:"secure"`
	Domain string `koanf:"domain"`
}

// CORSConfig configures allowed browser origins.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig throttles credential endpoints per client IP.
type RateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

// AdsConfig configures ad selection.
type AdsConfig struct {
	// CursorStore is "memory" or "redis".
	CursorStore     string `koanf:"cursor_store"`
	InjectLimit     int    `koanf:"inject_limit"`
	InjectStrategy  string `koanf:"inject_strategy"`
	CursorKeyPrefix string `koanf:"cursor_key_prefix"`
}

// SubscriptionsConfig configures plan defaults.
type SubscriptionsConfig struct {
	DefaultPlanName string `koanf:"default_plan_name"`
}

// PushConfig configures Web Push delivery.
type PushConfig struct {
	Enabled         bool          `koanf:"enabled"`
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey string        `koanf:"vapid_private_key"`
	VAPIDSubject    string        `koanf:"vapid_subject"`
	TTL             time.Duration `koanf:"ttl"`
	Timeout         time.Duration `koanf:"timeout"`
	BaseURL         string        `koanf:"base_url"`
}

// DigestConfig configures the daily digest job.
type DigestConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Schedule string        `koanf:"schedule"`
	Window   time.Duration `koanf:"window"`
	TopN     int           `koanf:"top_n"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                      "0.0.0.0",
		"server.port":                      "8080",
		"server.metrics_port":              "9090",
		"server.read_timeout":              "15s",
		"server.read_header_timeout":       "5s",
		"server.write_timeout":             "30s",
		"server.idle_timeout":              "60s",
		"server.request_timeout":           "60s",
		"server.shutdown_timeout":          "15s",
		"database.type":                    "postgres",
		"database.max_open_conns":          25,
		"database.max_idle_conns":          5,
		"database.conn_max_lifetime":       "5m",
		"database.connect_timeout":         "30s",
		"database.connect_attempts":        5,
		"log.level":                        "info",
		"log.format":                       "json",
		"jwt.access_token_duration":        "24h",
		"jwt.refresh_token_duration":       "168h",
		"jwt.admin_access_token_duration":  "1h",
		"jwt.admin_refresh_token_duration": "24h",
		"cookie.secure":                    true,
		"cors.allowed_origins":             []string{"http://localhost:5173"},
		"rate_limit.enabled":               true,
		"rate_limit.rps":                   1.0,
		"rate_limit.burst":                 5,
		"ads.cursor_store":                 "memory",
		"ads.inject_limit":                 3,
		"ads.inject_strategy":              "default",
		"ads.cursor_key_prefix":            "newsroom:ads:cursor:",
		"subscriptions.default_plan_name":  "Free",
		"push.enabled":                     false,
		"push.ttl":                         "12h",
		"push.timeout":                     "10s",
		"push.base_url":                    "",
		"digest.enabled":                   false,
		"digest.schedule":                  "0 8 * * *",
		"digest.window":                    "24h",
		"digest.top_n":                     5,
	}
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; CONFIG_FILE points at an optional YAML file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")

	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// sections lists top-level keys, longest first so a shorter prefix never shadows a longer one.
var sections = []string{
	"subscriptions", "rate_limit", "database", "server", "cookie", "digest",
	"redis", "cors", "push", "ads", "jwt", "log",
}

// envKey maps NEWSROOM_DATABASE_URL to database.url and
// NEWSROOM_RATE_LIMIT_RPS to rate_limit.rps.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(s, section+"_"); ok {
			return section + "." + rest
		}
	}
	return s
}

// Validate checks required settings and supported values.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Type != "postgres" {
		errs = append(errs, fmt.Errorf("database.type %q is not supported (only postgres)", c.Database.Type))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.JWT.SecretKey == "" {
		errs = append(errs, errors.New("jwt.secret_key is required"))
	}
	switch c.Ads.CursorStore {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required when ads.cursor_store is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("ads.cursor_store %q must be memory or redis", c.Ads.CursorStore))
	}
	if c.Push.Enabled && (c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "") {
		errs = append(errs, errors.New("push.vapid_public_key and push.vapid_private_key are required when push is enabled"))
	}
	if c.Push.Enabled && c.Push.VAPIDSubject == "" {
		errs = append(errs, errors.New("push.vapid_subject is required when push is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

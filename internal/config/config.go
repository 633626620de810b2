// Package config defines the top-level configuration for the steam market
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STEAMBOT_* environment variables.
type Config struct {
	Account  AccountConfig  `toml:"account"`
	Session  SessionConfig  `toml:"session"`
	Browser  BrowserConfig  `toml:"browser"`
	Apps     []AppConfig    `toml:"apps"`
	Pricing  PricingConfig  `toml:"pricing"`
	Items    ItemsConfig    `toml:"items"`
	Trade    TradeConfig    `toml:"trade"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`

	// Path is the file this configuration was loaded from, set by Load. It
	// lets long-running modes re-read the file between cycles.
	Path string `toml:"-"`
}

// AccountConfig holds the trading account's credentials. Either the plain
// fields or an encrypted vault file must be provided; the plain fields win
// when both are set.
type AccountConfig struct {
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	SharedSecret   string `toml:"shared_secret"`
	IdentitySecret string `toml:"identity_secret"`
	SteamID        string `toml:"steam_id"`
	VaultPath      string `toml:"vault_path"`
	VaultPassword  string `toml:"vault_password"`
}

// SessionConfig holds the token-refresh endpoints and persistence paths.
type SessionConfig struct {
	LoginBase     string `toml:"login_base"`
	CommunityBase string `toml:"community_base"`
	StoreBase     string `toml:"store_base"`

	// PriorPath and CookiePath are where refresh tokens and cookies are
	// persisted between runs.
	PriorPath  string `toml:"prior_path"`
	CookiePath string `toml:"cookie_path"`

	// RefreshThreshold is how long before expiry a token is refreshed.
	RefreshThreshold duration `toml:"refresh_threshold"`
}

// BrowserConfig holds the interactive-login browser parameters.
type BrowserConfig struct {
	ProfileDir string `toml:"profile_dir"`
	LoginPath  string `toml:"login_path"`

	// ManualTimeout is how long a headful login waits for the operator to
	// finish signing in when no shared secret is configured.
	ManualTimeout duration `toml:"manual_timeout"`
}

// AppConfig identifies one game whose market the bot trades.
type AppConfig struct {
	AppID     int `toml:"app_id"`
	ContextID int `toml:"context_id"`
	Currency  int `toml:"currency"`
}

// PricingConfig wraps the pricing policy plus the marketplace commission.
type PricingConfig struct {
	domain.PricingPolicy

	// Commission is the fraction of the buyer price the seller receives,
	// e.g. 0.87 with a 13% marketplace fee.
	Commission float64 `toml:"commission"`
}

// ItemsConfig locates the item catalog, trade list and paused list files.
type ItemsConfig struct {
	Dir string `toml:"dir"`
}

// TradeConfig holds trading-cycle scheduling parameters.
type TradeConfig struct {
	// CycleInterval is the pause between full trading cycles. Zero or
	// RunOnce runs a single cycle and exits.
	CycleInterval duration `toml:"cycle_interval"`
	RunOnce       bool     `toml:"run_once"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Session: SessionConfig{
			LoginBase:        "https://login.steampowered.com",
			CommunityBase:    "https://steamcommunity.com",
			StoreBase:        "https://store.steampowered.com",
			PriorPath:        "data/priors.json",
			CookiePath:       "data/cookies.json",
			RefreshThreshold: duration{30 * time.Minute},
		},
		Browser: BrowserConfig{
			ProfileDir:    "data/browser",
			LoginPath:     "/login",
			ManualTimeout: duration{5 * time.Minute},
		},
		Apps: []AppConfig{
			{AppID: 730, ContextID: 2, Currency: 1},
		},
		Pricing: PricingConfig{
			PricingPolicy: domain.DefaultPricingPolicy(),
			Commission:    0.87,
		},
		Items: ItemsConfig{
			Dir: "data",
		},
		Trade: TradeConfig{
			CycleInterval: duration{time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "steambot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "steambot-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"rate_limited", "session_login", "report_ready", "cycle_failed", "confirmations"},
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade":  true,
	"ledger": true,
	"login":  true,
	"serve":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, ledger, login, serve, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Account — every mode except serve talks to authenticated endpoints.
	if mode != "serve" {
		plain := c.Account.Username != "" && c.Account.Password != ""
		if !plain && c.Account.VaultPath == "" {
			errs = append(errs, "account: either username+password or vault_path must be set for mode "+c.Mode)
		}
		if c.Account.VaultPath != "" && !plain && c.Account.VaultPassword == "" {
			errs = append(errs, "account: vault_password is required when vault_path is the only credential source")
		}
		if c.Account.SteamID == "" && (mode == "trade" || mode == "full") {
			errs = append(errs, "account: steam_id is required for inventory access in mode "+c.Mode)
		}
	}

	// Session endpoints and persistence.
	if c.Session.LoginBase == "" {
		errs = append(errs, "session: login_base must not be empty")
	}
	if c.Session.CommunityBase == "" {
		errs = append(errs, "session: community_base must not be empty")
	}
	if c.Session.PriorPath == "" {
		errs = append(errs, "session: prior_path must not be empty")
	}
	if c.Session.CookiePath == "" {
		errs = append(errs, "session: cookie_path must not be empty")
	}
	if c.Session.RefreshThreshold.Duration < 0 {
		errs = append(errs, "session: refresh_threshold must not be negative")
	}

	// Apps — trading modes need at least one.
	if mode == "trade" || mode == "full" {
		if len(c.Apps) == 0 {
			errs = append(errs, "apps: at least one app is required for mode "+c.Mode)
		}
	}
	for i, app := range c.Apps {
		if app.AppID <= 0 {
			errs = append(errs, fmt.Sprintf("apps[%d]: app_id must be positive", i))
		}
		if app.ContextID <= 0 {
			errs = append(errs, fmt.Sprintf("apps[%d]: context_id must be positive", i))
		}
		if app.Currency <= 0 {
			errs = append(errs, fmt.Sprintf("apps[%d]: currency must be positive", i))
		}
	}

	// Pricing
	if err := c.Pricing.PricingPolicy.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Pricing.Commission <= 0 || c.Pricing.Commission > 1 {
		errs = append(errs, fmt.Sprintf("pricing: commission must be in (0, 1], got %v", c.Pricing.Commission))
	}

	if c.Items.Dir == "" {
		errs = append(errs, "items: dir must not be empty")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only the ledger mode uploads reports.
	if mode == "ledger" || mode == "full" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STEAMBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	cfg.Path = path
	return &cfg, nil
}

// applyEnvOverrides reads well-known STEAMBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Account ──
	setStr(&cfg.Account.Username, "STEAMBOT_ACCOUNT_USERNAME")
	setStr(&cfg.Account.Password, "STEAMBOT_ACCOUNT_PASSWORD")
	setStr(&cfg.Account.SharedSecret, "STEAMBOT_ACCOUNT_SHARED_SECRET")
	setStr(&cfg.Account.IdentitySecret, "STEAMBOT_ACCOUNT_IDENTITY_SECRET")
	setStr(&cfg.Account.SteamID, "STEAMBOT_ACCOUNT_STEAM_ID")
	setStr(&cfg.Account.VaultPath, "STEAMBOT_ACCOUNT_VAULT_PATH")
	setStr(&cfg.Account.VaultPassword, "STEAMBOT_ACCOUNT_VAULT_PASSWORD")

	// ── Session ──
	setStr(&cfg.Session.LoginBase, "STEAMBOT_SESSION_LOGIN_BASE")
	setStr(&cfg.Session.CommunityBase, "STEAMBOT_SESSION_COMMUNITY_BASE")
	setStr(&cfg.Session.StoreBase, "STEAMBOT_SESSION_STORE_BASE")
	setStr(&cfg.Session.PriorPath, "STEAMBOT_SESSION_PRIOR_PATH")
	setStr(&cfg.Session.CookiePath, "STEAMBOT_SESSION_COOKIE_PATH")
	setDuration(&cfg.Session.RefreshThreshold, "STEAMBOT_SESSION_REFRESH_THRESHOLD")

	// ── Browser ──
	setStr(&cfg.Browser.ProfileDir, "STEAMBOT_BROWSER_PROFILE_DIR")
	setStr(&cfg.Browser.LoginPath, "STEAMBOT_BROWSER_LOGIN_PATH")
	setDuration(&cfg.Browser.ManualTimeout, "STEAMBOT_BROWSER_MANUAL_TIMEOUT")

	// ── Pricing ──
	setFloat64(&cfg.Pricing.AcceptablePriceDiff, "STEAMBOT_PRICING_ACCEPTABLE_PRICE_DIFF")
	setFloat64(&cfg.Pricing.Reduction, "STEAMBOT_PRICING_REDUCTION")
	setFloat64(&cfg.Pricing.MinDesiredProfit, "STEAMBOT_PRICING_MIN_DESIRED_PROFIT")
	setFloat64(&cfg.Pricing.DesiredProfit, "STEAMBOT_PRICING_DESIRED_PROFIT")
	setInt(&cfg.Pricing.LowLiquidityThreshold, "STEAMBOT_PRICING_LOW_LIQUIDITY_THRESHOLD")
	setFloat64(&cfg.Pricing.MinDesiredProfitLowLiquidity, "STEAMBOT_PRICING_MIN_DESIRED_PROFIT_LOW_LIQUIDITY")
	setFloat64(&cfg.Pricing.DesiredProfitLowLiquidity, "STEAMBOT_PRICING_DESIRED_PROFIT_LOW_LIQUIDITY")
	setFloat64(&cfg.Pricing.Commission, "STEAMBOT_PRICING_COMMISSION")

	// ── Items / trade ──
	setStr(&cfg.Items.Dir, "STEAMBOT_ITEMS_DIR")
	setDuration(&cfg.Trade.CycleInterval, "STEAMBOT_TRADE_CYCLE_INTERVAL")
	setBool(&cfg.Trade.RunOnce, "STEAMBOT_TRADE_RUN_ONCE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STEAMBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STEAMBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STEAMBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STEAMBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STEAMBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STEAMBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STEAMBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STEAMBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STEAMBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STEAMBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STEAMBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STEAMBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STEAMBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STEAMBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STEAMBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STEAMBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "STEAMBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STEAMBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "STEAMBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STEAMBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STEAMBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STEAMBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STEAMBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "STEAMBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "STEAMBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STEAMBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "STEAMBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STEAMBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STEAMBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STEAMBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STEAMBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "STEAMBOT_MODE")
	setStr(&cfg.LogLevel, "STEAMBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

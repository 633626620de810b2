package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/tradebotlabs/steambot/internal/blob/s3"
	"github.com/tradebotlabs/steambot/internal/browser"
	"github.com/tradebotlabs/steambot/internal/cache/redis"
	"github.com/tradebotlabs/steambot/internal/config"
	"github.com/tradebotlabs/steambot/internal/crypto"
	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/notify"
	"github.com/tradebotlabs/steambot/internal/ratelimit"
	"github.com/tradebotlabs/steambot/internal/session"
	"github.com/tradebotlabs/steambot/internal/store/postgres"
)

// Dependencies bundles the shared infrastructure the application modes build
// their services on. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Account and session — nil/zero in serve mode, which never touches
	// authenticated endpoints.
	Creds   crypto.Credentials
	Session *session.Manager

	// Limiter spaces requests per marketplace endpoint. One limiter is
	// shared by every client so multi-app setups stay inside the budget.
	Limiter *ratelimit.Limiter

	// Ledger persistence — nil in login mode.
	Ledger domain.LedgerStore

	// Caches and the event bus.
	Liquidity domain.LiquidityCache
	Books     domain.OrderBookCache
	Bus       domain.SignalBus

	// Archiver uploads rendered ledger reports — nil outside ledger and
	// full mode.
	Archiver *s3blob.Archiver

	Notifier *notify.Notifier
}

// needsSession reports whether a mode talks to authenticated endpoints.
func needsSession(mode string) bool {
	switch mode {
	case "trade", "ledger", "login", "full":
		return true
	default:
		return false
	}
}

// needsPostgres reports whether a mode reads or writes the ledger.
func needsPostgres(mode string) bool {
	switch mode {
	case "trade", "ledger", "serve", "full":
		return true
	default:
		return false
	}
}

// needsRedis reports whether a mode uses the caches or the event bus.
func needsRedis(mode string) bool {
	return mode != "login"
}

// needsS3 reports whether a mode uploads reports to object storage.
func needsS3(mode string) bool {
	switch mode {
	case "ledger", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Limiter: ratelimit.New(),
	}

	// --- Credentials and session (only for modes that authenticate) ---
	if needsSession(mode) {
		creds, err := crypto.LoadCredentials(crypto.VaultConfig{
			PlainUsername:  cfg.Account.Username,
			PlainPassword:  cfg.Account.Password,
			SharedSecret:   cfg.Account.SharedSecret,
			IdentitySecret: cfg.Account.IdentitySecret,
			VaultPath:      cfg.Account.VaultPath,
			VaultPassword:  cfg.Account.VaultPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: credentials: %w", err)
		}
		deps.Creds = creds

		executor := browser.NewLoginExecutor(logger, browser.Config{
			Username:      creds.Username,
			Password:      creds.Password,
			SharedSecret:  creds.SharedSecret,
			ProfileDir:    cfg.Browser.ProfileDir,
			LoginPath:     cfg.Browser.LoginPath,
			ManualTimeout: cfg.Browser.ManualTimeout.Duration,
		})

		// Each origin refreshes against a page it legitimately serves: the
		// market page for community, the account page for store.
		origins := map[string]string{
			cfg.Session.CommunityBase: cfg.Session.CommunityBase + "/market/",
		}
		if cfg.Session.StoreBase != "" {
			origins[cfg.Session.StoreBase] = cfg.Session.StoreBase + "/account/"
		}

		sess, err := session.NewManager(logger, session.Config{
			LoginBase:        cfg.Session.LoginBase,
			Origins:          origins,
			PriorPath:        cfg.Session.PriorPath,
			CookiePath:       cfg.Session.CookiePath,
			RefreshThreshold: cfg.Session.RefreshThreshold.Duration,
		}, executor)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: session: %w", err)
		}
		deps.Session = sess
	}

	// --- PostgreSQL ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Ledger = postgres.NewLedgerStore(pgClient.Pool())
	}

	// --- Redis ---
	if needsRedis(mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Liquidity = redis.NewLiquidityCache(redisClient)
		deps.Books = redis.NewOrderBookCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), s3blob.NewReader(s3Client))
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tradebotlabs/steambot/internal/config"
	"github.com/tradebotlabs/steambot/internal/items"
	"github.com/tradebotlabs/steambot/internal/notify"
	"github.com/tradebotlabs/steambot/internal/platform/steam"
	"github.com/tradebotlabs/steambot/internal/pricing"
	"github.com/tradebotlabs/steambot/internal/server"
	"github.com/tradebotlabs/steambot/internal/server/handler"
	"github.com/tradebotlabs/steambot/internal/server/ws"
	"github.com/tradebotlabs/steambot/internal/service"
)

// ledgerInterval is how often full mode folds new market history into the
// ledger. History accumulates slowly, so once a day is plenty.
const ledgerInterval = 24 * time.Hour

// TradeMode runs the trading cycle for every configured app, plus the
// dashboard server when enabled. With run_once set, the server is skipped and
// the process exits after a single cycle.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode", slog.Int("apps", len(a.cfg.Apps)))

	traders, engine, err := a.buildTraders(deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled && !a.cfg.Trade.RunOnce {
		a.startServer(ctx, g, deps)
	}
	g.Go(func() error {
		return a.runTradeLoop(ctx, deps, traders, engine)
	})

	return g.Wait()
}

// LedgerMode runs one incremental ledger aggregation pass and exits.
func (a *App) LedgerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ledger mode")

	svc, err := a.newLedgerService(deps)
	if err != nil {
		return fmt.Errorf("ledger mode: %w", err)
	}
	return svc.Run(ctx)
}

// LoginMode forces a full interactive login, replacing whatever tokens are on
// disk. Run it once on a new machine before scheduling the other modes.
func (a *App) LoginMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting login mode")

	if err := deps.Session.ForceLogin(ctx); err != nil {
		return fmt.Errorf("login mode: %w", err)
	}
	_ = deps.Notifier.Notify(ctx, notify.EventSessionLogin,
		"Session login", "Interactive login completed; fresh tokens saved.")
	return nil
}

// ServeMode runs only the dashboard API and WebSocket hub. Useful for reading
// the ledger from a machine that never trades.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything: trading cycles, periodic ledger aggregation, and
// the dashboard server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode", slog.Int("apps", len(a.cfg.Apps)))

	traders, engine, err := a.buildTraders(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}
	ledgerSvc, err := a.newLedgerService(deps)
	if err != nil {
		return fmt.Errorf("full mode: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}
	g.Go(func() error {
		return a.runTradeLoop(ctx, deps, traders, engine)
	})
	g.Go(func() error {
		return a.runLedgerLoop(ctx, ledgerSvc)
	})

	return g.Wait()
}

// runTradeLoop runs trading cycles for every app on the configured interval.
// A failed cycle is logged and alerted, never fatal: the next tick gets a
// fresh session and a fresh chance. Before each tick the pricing section of
// the config file is re-read so policy tweaks land without a restart.
func (a *App) runTradeLoop(ctx context.Context, deps *Dependencies, traders []*service.TradeService, engine *pricing.Engine) error {
	runAll := func() {
		for _, t := range traders {
			if ctx.Err() != nil {
				return
			}
			if err := t.RunCycle(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				a.logger.ErrorContext(ctx, "trading cycle failed",
					slog.String("error", err.Error()),
				)
				_ = deps.Notifier.Notify(ctx, notify.EventCycleFailed,
					"Trading cycle failed", err.Error())
			}
		}
	}

	runAll()

	interval := a.cfg.Trade.CycleInterval.Duration
	if a.cfg.Trade.RunOnce || interval <= 0 {
		a.logger.InfoContext(ctx, "single trading cycle complete")
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.reloadPricingPolicy(ctx, engine)
			runAll()
		}
	}
}

// reloadPricingPolicy re-reads the config file and swaps the engine's policy
// when the pricing section changed. An unreadable file or an invalid policy
// keeps the running one.
func (a *App) reloadPricingPolicy(ctx context.Context, engine *pricing.Engine) {
	if a.cfg.Path == "" {
		return
	}
	fresh, err := config.Load(a.cfg.Path)
	if err != nil {
		a.logger.WarnContext(ctx, "pricing reload skipped, config unreadable",
			slog.String("path", a.cfg.Path),
			slog.String("error", err.Error()))
		return
	}
	if err := fresh.Pricing.PricingPolicy.Validate(); err != nil {
		a.logger.WarnContext(ctx, "pricing reload skipped, invalid policy",
			slog.String("error", err.Error()))
		return
	}
	if fresh.Pricing.PricingPolicy == engine.Policy() {
		return
	}
	engine.SetPolicy(fresh.Pricing.PricingPolicy)
	a.logger.InfoContext(ctx, "pricing policy reloaded", slog.String("path", a.cfg.Path))
}

// runLedgerLoop folds new history into the ledger once immediately and then
// on a daily schedule.
func (a *App) runLedgerLoop(ctx context.Context, svc *service.LedgerService) error {
	runOnce := func() {
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "ledger aggregation failed",
				slog.String("error", err.Error()),
			)
		}
	}

	runOnce()

	ticker := time.NewTicker(ledgerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runOnce()
		}
	}
}

// buildTraders creates one trading service per configured app. They share the
// returned pricing engine, the session, rate limiter and caches; each gets
// its own market client and item files.
func (a *App) buildTraders(deps *Dependencies) ([]*service.TradeService, *pricing.Engine, error) {
	engine := pricing.New(a.cfg.Pricing.PricingPolicy, a.cfg.Pricing.Commission)

	traders := make([]*service.TradeService, 0, len(a.cfg.Apps))
	for _, appCfg := range a.cfg.Apps {
		catalog, err := items.NewCatalog(a.cfg.Items.Dir, appCfg.AppID)
		if err != nil {
			return nil, nil, err
		}
		tradeList, err := items.NewTradeList(a.cfg.Items.Dir, appCfg.AppID)
		if err != nil {
			return nil, nil, err
		}
		paused, err := items.NewPaused(a.cfg.Items.Dir, appCfg.AppID)
		if err != nil {
			return nil, nil, err
		}

		client := a.newMarketClient(deps, appCfg, catalog)
		traders = append(traders, service.NewTradeService(
			a.logger, client, deps.Session, engine,
			tradeList, paused, deps.Books, deps.Bus, deps.Notifier,
		))
	}
	return traders, engine, nil
}

// newLedgerService builds the ledger aggregation service. Market history is
// account-wide, so any app's client can fetch it; the first configured app is
// used, falling back to the community items app when none is set.
func (a *App) newLedgerService(deps *Dependencies) (*service.LedgerService, error) {
	appCfg := config.AppConfig{AppID: 753, ContextID: 6, Currency: 1}
	if len(a.cfg.Apps) > 0 {
		appCfg = a.cfg.Apps[0]
	}

	catalog, err := items.NewCatalog(a.cfg.Items.Dir, appCfg.AppID)
	if err != nil {
		return nil, err
	}
	client := a.newMarketClient(deps, appCfg, catalog)

	var archiver service.ReportArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	return service.NewLedgerService(a.logger, client, deps.Session, deps.Ledger, archiver, deps.Notifier), nil
}

// newMarketClient creates a marketplace client for one app, riding the shared
// session and rate limiter.
func (a *App) newMarketClient(deps *Dependencies, appCfg config.AppConfig, names steam.NameIDResolver) *steam.Client {
	return steam.NewClient(a.logger, steam.Config{
		CommunityBase:  a.cfg.Session.CommunityBase,
		AppID:          appCfg.AppID,
		ContextID:      appCfg.ContextID,
		Currency:       appCfg.Currency,
		SteamID:        a.cfg.Account.SteamID,
		IdentitySecret: deps.Creds.IdentitySecret,
		Commission:     a.cfg.Pricing.Commission,
	}, deps.Session, deps.Limiter, names, deps.Liquidity)
}

// startServer adds the HTTP server and WebSocket hub goroutines to the given
// errgroup. The server is shut down gracefully when the context is cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	appIDs := make([]int, 0, len(a.cfg.Apps))
	for _, appCfg := range a.cfg.Apps {
		appIDs = append(appIDs, appCfg.AppID)
	}
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		AppIDs:    appIDs,
		StartedAt: startedAt,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Status:    handler.NewStatusHandler(a.cfg.Mode, appIDs, startedAt),
		Ledger:    handler.NewLedgerHandler(deps.Ledger, a.logger),
		OrderBook: handler.NewOrderBookHandler(deps.Books, a.logger),
	}
	if deps.Archiver != nil {
		handlers.Reports = handler.NewReportsHandler(deps.Archiver, a.logger)
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

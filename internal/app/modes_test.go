package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tradebotlabs/steambot/internal/config"
	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/pricing"
)

func newReloadApp(t *testing.T, tomlBody string) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(tomlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := config.Defaults()
	cfg.Path = path
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestReloadPricingPolicyAppliesChanges(t *testing.T) {
	a := newReloadApp(t, `
[pricing]
desired_profit = 0.25
reduction = 0.02
`)
	engine := pricing.New(domain.DefaultPricingPolicy(), 0.87)

	a.reloadPricingPolicy(context.Background(), engine)

	got := engine.Policy()
	if got.DesiredProfit != 0.25 || got.Reduction != 0.02 {
		t.Fatalf("policy not reloaded: %+v", got)
	}
}

func TestReloadPricingPolicyKeepsRunningPolicyOnBadFile(t *testing.T) {
	a := newReloadApp(t, `[pricing`)
	want := domain.DefaultPricingPolicy()
	engine := pricing.New(want, 0.87)

	a.reloadPricingPolicy(context.Background(), engine)

	if engine.Policy() != want {
		t.Fatalf("policy changed on unreadable config: %+v", engine.Policy())
	}
}

func TestReloadPricingPolicyRejectsInvalidPolicy(t *testing.T) {
	a := newReloadApp(t, `
[pricing]
reduction = -1.0
`)
	want := domain.DefaultPricingPolicy()
	engine := pricing.New(want, 0.87)

	a.reloadPricingPolicy(context.Background(), engine)

	if engine.Policy() != want {
		t.Fatalf("policy changed despite failing validation: %+v", engine.Policy())
	}
}

func TestReloadPricingPolicyNoPathIsNoop(t *testing.T) {
	cfg := config.Defaults()
	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	want := domain.DefaultPricingPolicy()
	engine := pricing.New(want, 0.87)

	a.reloadPricingPolicy(context.Background(), engine)

	if engine.Policy() != want {
		t.Fatalf("policy changed without a config path: %+v", engine.Policy())
	}
}

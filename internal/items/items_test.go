package items

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCatalogRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c, err := NewCatalog(dir, 730)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	added, err := c.Add("Dreams & Nightmares Case", 176321160)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !added {
		t.Fatal("first add must report new")
	}

	id, ok := c.NameID("Dreams & Nightmares Case")
	if !ok || id != "176321160" {
		t.Fatalf("NameID got=(%q,%v)", id, ok)
	}

	// A fresh catalog over the same directory sees the persisted entry.
	reopened, err := NewCatalog(dir, 730)
	if err != nil {
		t.Fatalf("NewCatalog reopen: %v", err)
	}
	if id, ok := reopened.NameID("Dreams & Nightmares Case"); !ok || id != "176321160" {
		t.Fatalf("reopened NameID got=(%q,%v)", id, ok)
	}
}

func TestCatalogUnknownItem(t *testing.T) {
	c, err := NewCatalog(t.TempDir(), 730)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	if _, ok := c.NameID("nope"); ok {
		t.Fatal("unknown item must not resolve")
	}
}

func TestTradeListReloadPicksUpEdits(t *testing.T) {
	dir := t.TempDir()

	l, err := NewTradeList(dir, 730)
	if err != nil {
		t.Fatalf("NewTradeList: %v", err)
	}
	if err := l.Set("case", 5); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Simulate an external edit between cycles.
	path := filepath.Join(dir, "trade_items", "730.json")
	if err := os.WriteFile(path, []byte(`{"case": 2, "key": 10}`), 0o644); err != nil {
		t.Fatalf("external edit: %v", err)
	}
	if err := l.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if target, ok := l.Target("case"); !ok || target != 2 {
		t.Fatalf("target after reload got=(%d,%v) want=(2,true)", target, ok)
	}
	if len(l.Items()) != 2 {
		t.Fatalf("items got=%v", l.Items())
	}
}

func TestTradeListZeroTargetStaysTracked(t *testing.T) {
	l, err := NewTradeList(t.TempDir(), 730)
	if err != nil {
		t.Fatalf("NewTradeList: %v", err)
	}
	if err := l.Set("case", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if target, ok := l.Target("case"); !ok || target != 0 {
		t.Fatalf("zero target got=(%d,%v) want=(0,true)", target, ok)
	}
}

func TestPausedContains(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paused_items", "730.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"case": true}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p, err := NewPaused(dir, 730)
	if err != nil {
		t.Fatalf("NewPaused: %v", err)
	}
	if !p.Contains("case") {
		t.Fatal("paused item not found")
	}
	if p.Contains("key") {
		t.Fatal("unlisted item must not be paused")
	}
}

package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/platform/steam"
)

// fakeHistory serves a fixed chronological transaction list through the
// paged newest-first wire protocol, pageLimit rows at a time.
type fakeHistory struct {
	chrono    []steam.HistoryRow // oldest first
	pageLimit int
	calls     int
}

func (f *fakeHistory) FetchHistoryPage(ctx context.Context, start, count int) (steam.HistoryPage, error) {
	f.calls++
	n := len(f.chrono)
	if start >= n {
		return steam.HistoryPage{TotalCount: n}, nil
	}
	end := start + f.pageLimit
	if end > n {
		end = n
	}
	// Newest-first positions [start, end) map onto the chronological slice
	// [n-end, n-start), which is already oldest-first.
	return steam.HistoryPage{
		TotalCount: n,
		Rows:       f.chrono[n-end : n-start],
	}, nil
}

type memLedgerStore struct {
	items       map[string]domain.ItemStats
	months      map[string]domain.MonthStats
	cp          domain.LedgerCheckpoint
	itemUpserts int
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{
		items:  make(map[string]domain.ItemStats),
		months: make(map[string]domain.MonthStats),
	}
}

func (m *memLedgerStore) UpsertItemStats(ctx context.Context, stats []domain.ItemStats) error {
	m.itemUpserts++
	for _, st := range stats {
		key := st.Game + "|" + st.ItemName
		cur := m.items[key]
		cur.Game, cur.ItemName = st.Game, st.ItemName
		cur.TotalBought += st.TotalBought
		cur.TotalSold += st.TotalSold
		cur.SumBought += st.SumBought
		cur.SumSold += st.SumSold
		m.items[key] = cur
	}
	return nil
}

func (m *memLedgerStore) UpsertMonthStats(ctx context.Context, stats []domain.MonthStats) error {
	for _, st := range stats {
		cur := m.months[st.Month]
		cur.Month = st.Month
		cur.TotalBought += st.TotalBought
		cur.TotalSold += st.TotalSold
		cur.SumBought += st.SumBought
		cur.SumSold += st.SumSold
		m.months[st.Month] = cur
	}
	return nil
}

func (m *memLedgerStore) ListItemStats(ctx context.Context) ([]domain.ItemStats, error) {
	out := make([]domain.ItemStats, 0, len(m.items))
	for _, st := range m.items {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemName < out[j].ItemName })
	return out, nil
}

func (m *memLedgerStore) ListMonthStats(ctx context.Context) ([]domain.MonthStats, error) {
	out := make([]domain.MonthStats, 0, len(m.months))
	for _, st := range m.months {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (m *memLedgerStore) Checkpoint(ctx context.Context) (domain.LedgerCheckpoint, error) {
	return m.cp, nil
}

func (m *memLedgerStore) SaveCheckpoint(ctx context.Context, cp domain.LedgerCheckpoint) error {
	m.cp = cp
	return nil
}

type fakeArchiver struct {
	kinds []string
}

func (a *fakeArchiver) Archive(ctx context.Context, kind string, at time.Time, body []byte) (string, error) {
	a.kinds = append(a.kinds, kind)
	return "reports/" + kind + "/test.csv", nil
}

func newLedgerService(history *fakeHistory, store *memLedgerStore, arch *fakeArchiver) *LedgerService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var archiver ReportArchiver
	if arch != nil {
		archiver = arch
	}
	svc := NewLedgerService(logger, history, &fakeSession{}, store, archiver, nil)
	svc.now = func() time.Time {
		return time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func historyFixture() []steam.HistoryRow {
	return []steam.HistoryRow{
		{Game: "Counter-Strike 2", Item: "Case", Count: 1, Price: 2.00, Purchase: true, Day: 5, Month: time.December},
		{Game: "Counter-Strike 2", Item: "Case", Count: 1, Price: 2.10, Purchase: true, Day: 20, Month: time.December},
		{Game: "Counter-Strike 2", Item: "Case", Count: 1, Price: 3.00, Purchase: false, Day: 14, Month: time.January},
		{Game: "Steam", Item: "Gems", Count: 200, Price: 0.90, Purchase: true, Day: 1, Month: time.February},
		{Game: "Counter-Strike 2", Item: "Case", Count: 1, Price: 3.20, Purchase: false, Day: 9, Month: time.February},
	}
}

func TestLedgerRunFromScratch(t *testing.T) {
	history := &fakeHistory{chrono: historyFixture(), pageLimit: 2}
	store := newMemLedgerStore()
	arch := &fakeArchiver{}

	if err := newLedgerService(history, store, arch).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.cp.ProcessedCount != 5 {
		t.Fatalf("checkpoint = %d, want 5", store.cp.ProcessedCount)
	}

	caseStats := store.items["Counter-Strike 2|Case"]
	if caseStats.TotalBought != 2 || caseStats.TotalSold != 2 {
		t.Fatalf("case stats = %+v", caseStats)
	}
	if caseStats.SumBought != 4.10 || caseStats.SumSold != 6.20 {
		t.Fatalf("case sums = %+v", caseStats)
	}
	if gems := store.items["Steam|Gems"]; gems.TotalBought != 200 {
		t.Fatalf("gems stats = %+v", gems)
	}

	// December is behind the frozen clock (Feb 2026), so it lands in 2025.
	dec := store.months["2025-12"]
	if dec.TotalBought != 2 {
		t.Fatalf("2025-12 stats = %+v", dec)
	}
	if jan := store.months["2026-01"]; jan.TotalSold != 1 {
		t.Fatalf("2026-01 stats = %+v", jan)
	}
	if feb := store.months["2026-02"]; feb.TotalBought != 200 || feb.TotalSold != 1 {
		t.Fatalf("2026-02 stats = %+v", feb)
	}

	if len(arch.kinds) != 2 {
		t.Fatalf("archived kinds = %v, want items and months", arch.kinds)
	}
}

func TestLedgerRunIncremental(t *testing.T) {
	history := &fakeHistory{chrono: historyFixture(), pageLimit: 2}
	store := newMemLedgerStore()
	store.cp = domain.LedgerCheckpoint{ProcessedCount: 3}

	if err := newLedgerService(history, store, nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.cp.ProcessedCount != 5 {
		t.Fatalf("checkpoint = %d, want 5", store.cp.ProcessedCount)
	}
	// Only the two newest rows are folded: the Gems purchase and one sale.
	caseStats := store.items["Counter-Strike 2|Case"]
	if caseStats.TotalBought != 0 || caseStats.TotalSold != 1 {
		t.Fatalf("case stats = %+v, want only the newest sale", caseStats)
	}
	if gems := store.items["Steam|Gems"]; gems.TotalBought != 200 {
		t.Fatalf("gems stats = %+v", gems)
	}
}

func TestLedgerRunUpToDate(t *testing.T) {
	history := &fakeHistory{chrono: historyFixture(), pageLimit: 2}
	store := newMemLedgerStore()
	store.cp = domain.LedgerCheckpoint{ProcessedCount: 5}
	arch := &fakeArchiver{}

	if err := newLedgerService(history, store, arch).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if store.itemUpserts != 0 {
		t.Fatalf("upserts ran with nothing new")
	}
	if store.cp.ProcessedCount != 5 {
		t.Fatalf("checkpoint moved to %d", store.cp.ProcessedCount)
	}
	// Reports regenerate from stored totals regardless.
	if len(arch.kinds) != 2 {
		t.Fatalf("archived kinds = %v", arch.kinds)
	}
}

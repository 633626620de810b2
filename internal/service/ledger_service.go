package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradebotlabs/steambot/internal/domain"
	"github.com/tradebotlabs/steambot/internal/notify"
	"github.com/tradebotlabs/steambot/internal/platform/steam"
	"github.com/tradebotlabs/steambot/internal/report"
)

// historyPageSize is how many rows one myhistory request asks for.
const historyPageSize = 500

// HistoryFetcher walks the account's market transaction history.
type HistoryFetcher interface {
	FetchHistoryPage(ctx context.Context, start, count int) (steam.HistoryPage, error)
}

// ReportArchiver uploads a rendered report and returns its storage key.
type ReportArchiver interface {
	Archive(ctx context.Context, kind string, at time.Time, body []byte) (string, error)
}

// LedgerService folds new market-history rows into the persistent per-item
// and per-month totals, then renders and archives fresh CSV reports. A
// checkpoint of processed rows makes runs incremental: only rows beyond the
// checkpoint are fetched and folded.
type LedgerService struct {
	logger   *slog.Logger
	history  HistoryFetcher
	session  SessionKeeper
	store    domain.LedgerStore
	archiver ReportArchiver   // optional
	notifier *notify.Notifier // optional
	now      func() time.Time
}

// NewLedgerService creates a LedgerService. The archiver and notifier may be
// nil; reports are then neither uploaded nor announced.
func NewLedgerService(
	logger *slog.Logger,
	history HistoryFetcher,
	session SessionKeeper,
	store domain.LedgerStore,
	archiver ReportArchiver,
	notifier *notify.Notifier,
) *LedgerService {
	return &LedgerService{
		logger:   logger.With(slog.String("component", "ledger_service")),
		history:  history,
		session:  session,
		store:    store,
		archiver: archiver,
		notifier: notifier,
		now:      time.Now,
	}
}

// Run performs one incremental aggregation pass followed by report
// generation.
func (s *LedgerService) Run(ctx context.Context) error {
	if err := s.session.EnsureValid(ctx); err != nil {
		return fmt.Errorf("ledger_service: session: %w", err)
	}

	cp, err := s.store.Checkpoint(ctx)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}

	rows, total, err := s.fetchNewRows(ctx, cp.ProcessedCount)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}

	if len(rows) > 0 {
		if err := s.fold(ctx, rows); err != nil {
			return fmt.Errorf("ledger_service: %w", err)
		}
		if err := s.store.SaveCheckpoint(ctx, domain.LedgerCheckpoint{
			ProcessedCount: cp.ProcessedCount + len(rows),
		}); err != nil {
			return fmt.Errorf("ledger_service: %w", err)
		}
		s.logger.InfoContext(ctx, "folded history rows",
			slog.Int("new_rows", len(rows)),
			slog.Int("total_rows", total),
		)
	} else {
		s.logger.InfoContext(ctx, "history already up to date",
			slog.Int("total_rows", total),
		)
	}

	return s.generateReports(ctx)
}

// fetchNewRows pulls every history row past the checkpoint and returns them
// in chronological order together with the account's total row count.
func (s *LedgerService) fetchNewRows(ctx context.Context, processed int) ([]steam.HistoryRow, int, error) {
	first, err := s.history.FetchHistoryPage(ctx, 0, historyPageSize)
	if err != nil {
		return nil, 0, err
	}

	newCount := first.TotalCount - processed
	if newCount <= 0 {
		return nil, first.TotalCount, nil
	}

	// Pages arrive newest-chunk first; collect until the unprocessed span is
	// covered.
	pages := []steam.HistoryPage{first}
	fetched := len(first.Rows)
	for fetched < newCount {
		page, err := s.history.FetchHistoryPage(ctx, fetched, historyPageSize)
		if err != nil {
			return nil, 0, err
		}
		if len(page.Rows) == 0 {
			break
		}
		pages = append(pages, page)
		fetched += len(page.Rows)
	}

	// Later pages are older, rows within a page are already oldest-first.
	rows := make([]steam.HistoryRow, 0, fetched)
	for i := len(pages) - 1; i >= 0; i-- {
		rows = append(rows, pages[i].Rows...)
	}

	// The oldest fetched page can reach back past the checkpoint; drop the
	// already-processed surplus from the front.
	if len(rows) > newCount {
		rows = rows[len(rows)-newCount:]
	}
	return rows, first.TotalCount, nil
}

// fold accumulates the rows into per-item and per-month deltas and upserts
// them onto the stored totals.
func (s *LedgerService) fold(ctx context.Context, rows []steam.HistoryRow) error {
	type itemKey struct {
		game string
		item string
	}
	itemDeltas := make(map[itemKey]*domain.ItemStats)
	monthDeltas := make(map[string]*domain.MonthStats)

	for _, row := range rows {
		k := itemKey{game: row.Game, item: row.Item}
		st, ok := itemDeltas[k]
		if !ok {
			st = &domain.ItemStats{Game: row.Game, ItemName: row.Item}
			itemDeltas[k] = st
		}
		if row.Purchase {
			st.TotalBought += row.Count
			st.SumBought += row.Price
		} else {
			st.TotalSold += row.Count
			st.SumSold += row.Price
		}

		month, ok := s.resolveMonth(row)
		if !ok {
			continue
		}
		mst, ok := monthDeltas[month]
		if !ok {
			mst = &domain.MonthStats{Month: month}
			monthDeltas[month] = mst
		}
		if row.Purchase {
			mst.TotalBought += row.Count
			mst.SumBought += row.Price
		} else {
			mst.TotalSold += row.Count
			mst.SumSold += row.Price
		}
	}

	itemStats := make([]domain.ItemStats, 0, len(itemDeltas))
	for _, st := range itemDeltas {
		itemStats = append(itemStats, *st)
	}
	monthStats := make([]domain.MonthStats, 0, len(monthDeltas))
	for _, st := range monthDeltas {
		monthStats = append(monthStats, *st)
	}

	if err := s.store.UpsertItemStats(ctx, itemStats); err != nil {
		return err
	}
	return s.store.UpsertMonthStats(ctx, monthStats)
}

// resolveMonth turns a row's yearless date cell into a "2006-01" key. Months
// later than the current one must belong to the previous year; rows without
// a date cell are skipped.
func (s *LedgerService) resolveMonth(row steam.HistoryRow) (string, bool) {
	if row.Month == 0 {
		return "", false
	}
	now := s.now()
	year := now.Year()
	if row.Month > now.Month() {
		year--
	}
	return fmt.Sprintf("%04d-%02d", year, int(row.Month)), true
}

// generateReports renders the current totals as CSV and archives both
// flavours.
func (s *LedgerService) generateReports(ctx context.Context) error {
	if s.archiver == nil {
		return nil
	}

	itemStats, err := s.store.ListItemStats(ctx)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}
	monthStats, err := s.store.ListMonthStats(ctx)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}

	now := s.now()
	paths := make([]string, 0, 2)

	itemsCSV, err := report.RenderItems(itemStats)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}
	path, err := s.archiver.Archive(ctx, report.KindItems, now, itemsCSV)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}
	paths = append(paths, path)

	monthsCSV, err := report.RenderMonths(monthStats)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}
	path, err = s.archiver.Archive(ctx, report.KindMonths, now, monthsCSV)
	if err != nil {
		return fmt.Errorf("ledger_service: %w", err)
	}
	paths = append(paths, path)

	s.logger.InfoContext(ctx, "archived ledger reports",
		slog.Any("paths", paths),
	)
	if s.notifier != nil {
		msg := fmt.Sprintf("Ledger reports archived:\n%s\n%s", paths[0], paths[1])
		if err := s.notifier.Notify(ctx, notify.EventReportReady, "Reports ready", msg); err != nil {
			s.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradebotlabs/steambot/internal/domain"
)

// LedgerStore implements domain.LedgerStore using PostgreSQL.
type LedgerStore struct {
	pool *pgxpool.Pool
}

// NewLedgerStore creates a LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// UpsertItemStats adds the deltas in stats onto the stored per-item totals
// in one batch.
func (s *LedgerStore) UpsertItemStats(ctx context.Context, stats []domain.ItemStats) error {
	if len(stats) == 0 {
		return nil
	}

	const query = `
		INSERT INTO ledger_item_stats (
			game, item_name, total_bought, total_sold, sum_bought, sum_sold
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (game, item_name) DO UPDATE SET
			total_bought = ledger_item_stats.total_bought + EXCLUDED.total_bought,
			total_sold   = ledger_item_stats.total_sold + EXCLUDED.total_sold,
			sum_bought   = ledger_item_stats.sum_bought + EXCLUDED.sum_bought,
			sum_sold     = ledger_item_stats.sum_sold + EXCLUDED.sum_sold,
			updated_at   = NOW()`

	batch := &pgx.Batch{}
	for _, st := range stats {
		batch.Queue(query, st.Game, st.ItemName, st.TotalBought, st.TotalSold, st.SumBought, st.SumSold)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range stats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert item stats: %w", err)
		}
	}
	return nil
}

// UpsertMonthStats adds the deltas in stats onto the stored per-month
// totals.
func (s *LedgerStore) UpsertMonthStats(ctx context.Context, stats []domain.MonthStats) error {
	if len(stats) == 0 {
		return nil
	}

	const query = `
		INSERT INTO ledger_month_stats (
			month, total_bought, total_sold, sum_bought, sum_sold
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (month) DO UPDATE SET
			total_bought = ledger_month_stats.total_bought + EXCLUDED.total_bought,
			total_sold   = ledger_month_stats.total_sold + EXCLUDED.total_sold,
			sum_bought   = ledger_month_stats.sum_bought + EXCLUDED.sum_bought,
			sum_sold     = ledger_month_stats.sum_sold + EXCLUDED.sum_sold,
			updated_at   = NOW()`

	batch := &pgx.Batch{}
	for _, st := range stats {
		batch.Queue(query, st.Month, st.TotalBought, st.TotalSold, st.SumBought, st.SumSold)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range stats {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert month stats: %w", err)
		}
	}
	return nil
}

// ListItemStats returns all stored per-item totals ordered by game and item
// name.
func (s *LedgerStore) ListItemStats(ctx context.Context) ([]domain.ItemStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT game, item_name, total_bought, total_sold, sum_bought, sum_sold
		FROM ledger_item_stats
		ORDER BY game, item_name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list item stats: %w", err)
	}
	defer rows.Close()

	var out []domain.ItemStats
	for rows.Next() {
		var st domain.ItemStats
		if err := rows.Scan(&st.Game, &st.ItemName, &st.TotalBought, &st.TotalSold, &st.SumBought, &st.SumSold); err != nil {
			return nil, fmt.Errorf("postgres: scan item stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ListMonthStats returns all stored per-month totals ordered by month.
func (s *LedgerStore) ListMonthStats(ctx context.Context) ([]domain.MonthStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT month, total_bought, total_sold, sum_bought, sum_sold
		FROM ledger_month_stats
		ORDER BY month`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list month stats: %w", err)
	}
	defer rows.Close()

	var out []domain.MonthStats
	for rows.Next() {
		var st domain.MonthStats
		if err := rows.Scan(&st.Month, &st.TotalBought, &st.TotalSold, &st.SumBought, &st.SumSold); err != nil {
			return nil, fmt.Errorf("postgres: scan month stats: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Checkpoint returns the stored history checkpoint, or a zero value when no
// history has been processed yet.
func (s *LedgerStore) Checkpoint(ctx context.Context) (domain.LedgerCheckpoint, error) {
	var cp domain.LedgerCheckpoint
	err := s.pool.QueryRow(ctx,
		`SELECT processed_count FROM ledger_checkpoint WHERE id = TRUE`,
	).Scan(&cp.ProcessedCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LedgerCheckpoint{}, nil
		}
		return domain.LedgerCheckpoint{}, fmt.Errorf("postgres: load checkpoint: %w", err)
	}
	return cp, nil
}

// SaveCheckpoint replaces the stored history checkpoint.
func (s *LedgerStore) SaveCheckpoint(ctx context.Context, cp domain.LedgerCheckpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ledger_checkpoint (id, processed_count) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET
			processed_count = EXCLUDED.processed_count,
			updated_at = NOW()`,
		cp.ProcessedCount)
	if err != nil {
		return fmt.Errorf("postgres: save checkpoint: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.LedgerStore = (*LedgerStore)(nil)

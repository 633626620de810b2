package domain

import "context"

// LedgerStore persists aggregated transaction-history statistics.
type LedgerStore interface {
	// UpsertItemStats adds the deltas in stats onto the stored per-item
	// totals, inserting rows for items seen for the first time.
	UpsertItemStats(ctx context.Context, stats []ItemStats) error

	// UpsertMonthStats adds the deltas in stats onto the stored per-month
	// totals.
	UpsertMonthStats(ctx context.Context, stats []MonthStats) error

	// ListItemStats returns all stored per-item totals ordered by game and
	// item name.
	ListItemStats(ctx context.Context) ([]ItemStats, error)

	// ListMonthStats returns all stored per-month totals ordered by month.
	ListMonthStats(ctx context.Context) ([]MonthStats, error)

	// Checkpoint returns the stored history checkpoint; a zero value when
	// no history has been processed yet.
	Checkpoint(ctx context.Context) (LedgerCheckpoint, error)

	// SaveCheckpoint replaces the stored history checkpoint.
	SaveCheckpoint(ctx context.Context, cp LedgerCheckpoint) error
}

package domain

import "math"

// ItemStats aggregates the account's historical market transactions for one
// item of one game: how many units were bought and sold and for how much.
type ItemStats struct {
	Game        string
	ItemName    string
	TotalBought int
	TotalSold   int
	SumBought   float64
	SumSold     float64
}

// QuantityDifference is the net number of units still held (bought - sold).
func (s ItemStats) QuantityDifference() int {
	return s.TotalBought - s.TotalSold
}

// SumDifference is the realised cash difference (sold - bought), rounded to
// cents.
func (s ItemStats) SumDifference() float64 {
	return math.Round((s.SumSold-s.SumBought)*100) / 100
}

// MonthStats aggregates transactions per calendar month. Month is formatted
// "2006-01".
type MonthStats struct {
	Month       string
	TotalBought int
	TotalSold   int
	SumBought   float64
	SumSold     float64
}

// LedgerCheckpoint records how far into the account's transaction history
// the aggregator has already walked, so subsequent runs only fold new rows.
type LedgerCheckpoint struct {
	ProcessedCount int
}

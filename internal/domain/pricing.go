package domain

import "fmt"

// PricingPolicy is the tunable configuration for the pricing engine. All
// profit and deviation fields are fractions (0.05 == 5%), Reduction is an
// absolute price amount. The policy may be reloaded between pricing calls.
type PricingPolicy struct {
	// AcceptablePriceDiff is the maximum fractional deviation below the
	// reference price at which an ask is still considered "available".
	AcceptablePriceDiff float64 `toml:"acceptable_price_diff"`

	// Reduction is the absolute price shading applied to undercut asks and
	// outbid the top of the buy book.
	Reduction float64 `toml:"reduction"`

	// MinDesiredProfit is the profit fraction below which an existing buy
	// order is cancelled.
	MinDesiredProfit float64 `toml:"min_desired_profit"`

	// DesiredProfit is the profit fraction a new buy order must clear.
	DesiredProfit float64 `toml:"desired_profit"`

	// LowLiquidityThreshold is the sales-per-day value below which the
	// stricter low-liquidity profit thresholds apply.
	LowLiquidityThreshold int `toml:"low_liquidity_threshold"`

	MinDesiredProfitLowLiquidity float64 `toml:"min_desired_profit_low_liquidity"`
	DesiredProfitLowLiquidity    float64 `toml:"desired_profit_low_liquidity"`
}

// DefaultPricingPolicy mirrors the settings the bot ships with.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		AcceptablePriceDiff:          0.03,
		Reduction:                    0.01,
		MinDesiredProfit:             0.05,
		DesiredProfit:                0.1,
		LowLiquidityThreshold:        20,
		MinDesiredProfitLowLiquidity: 0.1,
		DesiredProfitLowLiquidity:    0.2,
	}
}

// Validate rejects policies with negative thresholds.
func (p PricingPolicy) Validate() error {
	fields := map[string]float64{
		"acceptable_price_diff":            p.AcceptablePriceDiff,
		"reduction":                        p.Reduction,
		"min_desired_profit":               p.MinDesiredProfit,
		"desired_profit":                   p.DesiredProfit,
		"min_desired_profit_low_liquidity": p.MinDesiredProfitLowLiquidity,
		"desired_profit_low_liquidity":     p.DesiredProfitLowLiquidity,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("pricing policy: %s must be >= 0, got %v", name, v)
		}
	}
	if p.LowLiquidityThreshold < 0 {
		return fmt.Errorf("pricing policy: low_liquidity_threshold must be >= 0, got %d", p.LowLiquidityThreshold)
	}
	return nil
}

// MinProfitFor returns the keep-or-cancel profit threshold for an existing
// buy order, switching to the low-liquidity variant for illiquid items.
func (p PricingPolicy) MinProfitFor(salesPerDay int) float64 {
	if salesPerDay < p.LowLiquidityThreshold {
		return p.MinDesiredProfitLowLiquidity
	}
	return p.MinDesiredProfit
}

// DesiredProfitFor returns the profit threshold a new buy order must clear.
func (p PricingPolicy) DesiredProfitFor(salesPerDay int) float64 {
	if salesPerDay < p.LowLiquidityThreshold {
		return p.DesiredProfitLowLiquidity
	}
	return p.DesiredProfit
}

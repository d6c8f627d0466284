package validation

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrPriceImpactExceeded is returned when a swap would move the spot price
// further than the configured maximum.
var ErrPriceImpactExceeded = errors.New("price impact limit exceeded")

// ImpactLimiter enforces price-impact thresholds on swaps.
//
//   - WarnPct flags a quote as high impact without rejecting it.
//   - MaxPct rejects the swap outright; zero disables the hard cap.
type ImpactLimiter struct {
	WarnPct decimal.Decimal
	MaxPct  decimal.Decimal
}

// NewImpactLimiter creates a limiter. Negative thresholds are treated as
// zero.
func NewImpactLimiter(warnPct, maxPct decimal.Decimal) *ImpactLimiter {
	if warnPct.IsNegative() {
		warnPct = decimal.Zero
	}
	if maxPct.IsNegative() {
		maxPct = decimal.Zero
	}
	return &ImpactLimiter{WarnPct: warnPct, MaxPct: maxPct}
}

// High reports whether impactPct is above the warning threshold. A zero
// threshold never warns.
func (l *ImpactLimiter) High(impactPct decimal.Decimal) bool {
	if l == nil || l.WarnPct.IsZero() {
		return false
	}
	return impactPct.GreaterThan(l.WarnPct)
}

// CheckLimit returns ErrPriceImpactExceeded when a hard cap is configured
// and impactPct is above it. A nil limiter accepts everything.
func (l *ImpactLimiter) CheckLimit(impactPct decimal.Decimal) error {
	if l == nil || l.MaxPct.IsZero() {
		return nil
	}
	if impactPct.GreaterThan(l.MaxPct) {
		return ErrPriceImpactExceeded
	}
	return nil
}

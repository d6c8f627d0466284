// Package validation holds the guards run by the allocation and exchange
// engines before any ledger mutation, and the error kinds they report.
package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/model"
)

var (
	// ErrConfig reports an invalid or inconsistent configuration.
	ErrConfig = errors.New("config error")

	// ErrInvalidAmount reports a non-positive, non-finite, or out-of-range
	// operation parameter.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance reports an operation that would overdraw a
	// balance that must stay non-negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDivisionByZero reports an operation against an empty pool or a
	// zero LP supply.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrUnknownParticipant is returned when an operation names a
	// participant id that is not in the ledger.
	ErrUnknownParticipant = errors.New("unknown participant")
)

var hundred = decimal.NewFromInt(100)

// Amount converts a float64 coming from flags or config files into a
// decimal, rejecting NaN and infinities.
func Amount(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, f)
	}
	return decimal.NewFromFloat(f), nil
}

// Positive requires v > 0.
func Positive(name string, v decimal.Decimal) error {
	if !v.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidAmount, name, v)
	}
	return nil
}

// Percent requires p in (0, 100].
func Percent(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage must be in (0, 100], got %s", ErrInvalidAmount, p)
	}
	return nil
}

// FeeRate requires 0 <= fee < 1.
func FeeRate(fee decimal.Decimal) error {
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: fee rate must be in [0, 1), got %s", ErrInvalidAmount, fee)
	}
	return nil
}

// Sufficient requires balance >= need for the named token.
func Sufficient(t model.Token, balance, need decimal.Decimal) error {
	if balance.LessThan(need) {
		return fmt.Errorf("%w: %s balance %s is less than required %s",
			ErrInsufficientBalance, t, balance, need)
	}
	return nil
}

// Config checks every field constraint of a simulation configuration and
// the two cross-field caps (DDP split and USDC split).
func Config(c model.Config) error {
	if !c.TotalSupply.IsPositive() {
		return fmt.Errorf("%w: total supply must be positive, got %s", ErrConfig, c.TotalSupply)
	}
	if c.NumBoardMembers < 0 {
		return fmt.Errorf("%w: number of board members must not be negative", ErrConfig)
	}
	if c.NumTraders < 0 {
		return fmt.Errorf("%w: number of traders must not be negative", ErrConfig)
	}

	nonNegative := []struct {
		name string
		v    decimal.Decimal
	}{
		{"amm percent", c.AmmPercent},
		{"player percent", c.PlayerPercent},
		{"platform percent", c.PlatformPercent},
		{"chairman contribution", c.ChairmanContribution},
		{"board member contribution", c.BoardMemberContribution},
		{"platform fee percent", c.PlatformFeePercent},
		{"treasury USDC percent", c.TreasuryUSDCPercent},
	}
	for _, f := range nonNegative {
		if f.v.IsNegative() {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrConfig, f.name, f.v)
		}
	}

	if c.TreasuryPercent().IsNegative() {
		return fmt.Errorf("%w: DDP allocation exceeds 100%%", ErrConfig)
	}
	if split := c.PlatformFeePercent.Add(c.TreasuryUSDCPercent); split.GreaterThan(hundred) {
		return fmt.Errorf("%w: USDC split (%s%%) exceeds 100%%", ErrConfig, split)
	}
	return nil
}

// Setup checks a preset ledger seed.
func Setup(s model.SetupConfig) error {
	if s.NumPlayers < 1 || s.NumPlayers > 20 {
		return fmt.Errorf("%w: number of players must be between 1 and 20, got %d", ErrConfig, s.NumPlayers)
	}
	if s.PoolDDP.IsNegative() || s.PoolUSDC.IsNegative() {
		return fmt.Errorf("%w: pool reserves must not be negative", ErrConfig)
	}
	if s.WhaleDDP.IsNegative() || s.PlayerDDP.IsNegative() {
		return fmt.Errorf("%w: DDP balances must not be negative", ErrConfig)
	}
	return nil
}

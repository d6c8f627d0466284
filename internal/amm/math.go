// Package amm implements the constant-product (x·y = k) automated market
// maker for the DDP/USDC pool.
//
// The math functions in this file are stateless; reserves are passed as
// arguments, not stored. Engine binds them to a participant ledger.
//
// All monetary values use shopspring/decimal. Square roots go through
// float64 and are immediately converted back.
package amm

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/validation"
)

var (
	// DefaultFeeRate is the 0.3% swap fee retained by the pool.
	DefaultFeeRate = decimal.NewFromFloat(0.003)

	// Precision is the number of decimal places kept on swap outputs, LP
	// amounts and withdrawals. Those values are truncated, never rounded
	// up, so rounding dust always stays in the pool.
	Precision int32 = 12

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// AmountOut returns the output of swapping amountIn into a pool:
//
//	inAfterFee = amountIn × (1 - fee)
//	out        = inAfterFee × reserveOut / (reserveIn + inAfterFee)
func AmountOut(amountIn, reserveIn, reserveOut, feeRate decimal.Decimal) decimal.Decimal {
	inAfterFee := amountIn.Mul(one.Sub(feeRate))
	num := inAfterFee.Mul(reserveOut)
	den := reserveIn.Add(inAfterFee)
	out, _ := num.QuoRem(den, Precision)
	return out
}

// amountOutFromInvariant computes the same output through the invariant:
// out = reserveOut - k / (reserveIn + inAfterFee).
func amountOutFromInvariant(amountIn, reserveIn, reserveOut, feeRate decimal.Decimal) decimal.Decimal {
	inAfterFee := amountIn.Mul(one.Sub(feeRate))
	k := reserveIn.Mul(reserveOut)
	return reserveOut.Sub(k.Div(reserveIn.Add(inAfterFee)))
}

// PriceImpact returns the percentage move of the output-per-input price:
//
//	initial = reserveOut / reserveIn
//	final   = (reserveOut - out) / (reserveIn + inAfterFee)
//	impact  = |final - initial| / initial × 100
func PriceImpact(amountIn, reserveIn, reserveOut, feeRate decimal.Decimal) decimal.Decimal {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return decimal.Zero
	}
	inAfterFee := amountIn.Mul(one.Sub(feeRate))
	out := AmountOut(amountIn, reserveIn, reserveOut, feeRate)

	initial := reserveOut.Div(reserveIn)
	final := reserveOut.Sub(out).Div(reserveIn.Add(inAfterFee))
	return final.Sub(initial).Abs().Div(initial).Mul(hundred)
}

// RequiredOther returns the amount of the opposite token needed to add
// `amount` at the current reserve ratio. The result is rounded up to a
// whole unit so the pool is never under-collateralised by rounding.
func RequiredOther(amount, sameReserve, otherReserve decimal.Decimal) (decimal.Decimal, error) {
	if sameReserve.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: pool has no reserve to price against", validation.ErrDivisionByZero)
	}
	return amount.Mul(otherReserve).Div(sameReserve).Ceil(), nil
}

// SeedLP returns the LP supply minted by a first deposit: sqrt(ddp × usdc).
// Empty or negative sides mint nothing.
func SeedLP(ddp, usdc decimal.Decimal) decimal.Decimal {
	if !ddp.IsPositive() || !usdc.IsPositive() {
		return decimal.Zero
	}
	product := ddp.InexactFloat64() * usdc.InexactFloat64()
	return decimal.NewFromFloat(math.Sqrt(product)).Truncate(Precision)
}

// SpotPrice returns USDC per DDP. An uninitialised pool has no price.
func SpotPrice(ddpReserve, usdcReserve decimal.Decimal) (decimal.Decimal, error) {
	if ddpReserve.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: pool holds no DDP", validation.ErrDivisionByZero)
	}
	return usdcReserve.Div(ddpReserve), nil
}

// K returns the constant-product invariant of the given reserves.
func K(ddpReserve, usdcReserve decimal.Decimal) decimal.Decimal {
	return ddpReserve.Mul(usdcReserve)
}

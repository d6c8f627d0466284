package amm

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/ledger"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

// Engine quotes and executes exchange operations against a ledger. It holds
// no ledger state; only the fee rate and the optional impact limiter.
type Engine struct {
	feeRate decimal.Decimal
	limiter *validation.ImpactLimiter
}

// NewEngine creates an engine with the given swap fee. Pass nil for limiter
// to disable price-impact warnings and caps.
func NewEngine(feeRate decimal.Decimal, limiter *validation.ImpactLimiter) (*Engine, error) {
	if err := validation.FeeRate(feeRate); err != nil {
		return nil, err
	}
	return &Engine{feeRate: feeRate, limiter: limiter}, nil
}

// FeeRate returns the swap fee.
func (e *Engine) FeeRate() decimal.Decimal {
	return e.feeRate
}

// Limiter returns the price-impact limiter. May be nil.
func (e *Engine) Limiter() *validation.ImpactLimiter {
	return e.limiter
}

// Simulate computes the deltas of op without touching the ledger.
func (e *Engine) Simulate(l *ledger.Ledger, op model.Operation) (model.Result, error) {
	switch op.Type {
	case model.OpSwap:
		return e.Swap(l, op.ParticipantID, op.Token, op.Amount)
	case model.OpAddLiquidity:
		return e.AddLiquidity(l, op.ParticipantID, op.Token, op.Amount, op.OtherAmount)
	case model.OpRemoveLiquidity:
		return e.RemoveLiquidity(l, op.ParticipantID, op.Percent)
	}
	return model.Result{}, fmt.Errorf("%w: unknown operation type %q", validation.ErrInvalidAmount, op.Type)
}

// Execute simulates op and commits the result to the ledger. On error the
// ledger is unchanged.
func (e *Engine) Execute(l *ledger.Ledger, op model.Operation) (model.Result, error) {
	res, err := e.Simulate(l, op)
	if err != nil {
		return model.Result{}, err
	}
	if err := l.Apply(res); err != nil {
		return model.Result{}, err
	}
	return res, nil
}

// Swap quotes exchanging amountIn of token `in` with the pool.
//
// Only DDP inputs are balance-checked: USDC balances may go negative and
// model unsecured credit.
func (e *Engine) Swap(l *ledger.Ledger, participantID int, in model.Token, amountIn decimal.Decimal) (model.Result, error) {
	if err := validation.Positive("swap amount", amountIn); err != nil {
		return model.Result{}, err
	}
	if in != model.TokenDDP && in != model.TokenUSDC {
		return model.Result{}, fmt.Errorf("%w: unknown input token %q", validation.ErrInvalidAmount, in)
	}
	p, err := l.Trader(participantID)
	if err != nil {
		return model.Result{}, err
	}
	if in == model.TokenDDP {
		if err := validation.Sufficient(in, p.DDPBalance, amountIn); err != nil {
			return model.Result{}, err
		}
	}

	pool := l.Pool()
	reserveIn, reserveOut := pool.Balance(in), pool.Balance(in.Other())
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return model.Result{}, fmt.Errorf("%w: pool is empty", validation.ErrDivisionByZero)
	}

	out := AmountOut(amountIn, reserveIn, reserveOut, e.feeRate)
	impact := PriceImpact(amountIn, reserveIn, reserveOut, e.feeRate)
	if err := e.limiter.CheckLimit(impact); err != nil {
		return model.Result{}, fmt.Errorf("%w: %s%% impact", err, impact.StringFixed(2))
	}

	res := model.Result{
		Type:           model.OpSwap,
		ParticipantID:  participantID,
		InputToken:     in,
		InputAmount:    amountIn,
		OutputToken:    in.Other(),
		OutputAmount:   out,
		PriceImpactPct: impact,
		HighImpact:     e.limiter.High(impact),
	}
	if in == model.TokenDDP {
		res.PoolDelta = model.PoolDelta{DDP: amountIn, USDC: out.Neg()}
		res.ParticipantDelta = model.ParticipantDelta{DDP: amountIn.Neg(), USDC: out}
	} else {
		res.PoolDelta = model.PoolDelta{DDP: out.Neg(), USDC: amountIn}
		res.ParticipantDelta = model.ParticipantDelta{DDP: out, USDC: amountIn.Neg()}
	}
	setPrices(&res, pool)
	return res, nil
}

// AddLiquidity quotes a two-sided deposit. The participant names one side;
// the other is derived from the reserve ratio (rounded up). Into an empty
// pool both sides must be given explicitly via otherAmount.
//
// Minted LP is sqrt(ddp × usdc) for the first deposit, otherwise
// totalLP × ddpAdded / ddpReserve, which leaves the depositor holding
// ddpAdded / (ddpReserve + ddpAdded) of the LP supply.
func (e *Engine) AddLiquidity(l *ledger.Ledger, participantID int, token model.Token, amount, otherAmount decimal.Decimal) (model.Result, error) {
	if err := validation.Positive("liquidity amount", amount); err != nil {
		return model.Result{}, err
	}
	if token != model.TokenDDP && token != model.TokenUSDC {
		return model.Result{}, fmt.Errorf("%w: unknown token %q", validation.ErrInvalidAmount, token)
	}
	p, err := l.Trader(participantID)
	if err != nil {
		return model.Result{}, err
	}

	pool := l.Pool()
	ddpReserve, usdcReserve := pool.DDPBalance, pool.USDCBalance
	empty := ddpReserve.IsZero() && usdcReserve.IsZero()

	var other decimal.Decimal
	switch {
	case empty:
		if err := validation.Positive("initial deposit of the other token", otherAmount); err != nil {
			return model.Result{}, fmt.Errorf("%w: pool is empty, both amounts are required", err)
		}
		other = otherAmount
	case ddpReserve.IsZero() || usdcReserve.IsZero():
		return model.Result{}, fmt.Errorf("%w: pool holds only one asset", validation.ErrDivisionByZero)
	default:
		other, err = RequiredOther(amount, pool.Balance(token), pool.Balance(token.Other()))
		if err != nil {
			return model.Result{}, err
		}
	}

	ddpIn, usdcIn := amount, other
	if token == model.TokenUSDC {
		ddpIn, usdcIn = other, amount
	}
	if err := validation.Sufficient(model.TokenDDP, p.DDPBalance, ddpIn); err != nil {
		return model.Result{}, err
	}
	if err := validation.Sufficient(model.TokenUSDC, p.USDCBalance, usdcIn); err != nil {
		return model.Result{}, err
	}

	totalLP := l.TotalLPSupply()
	var minted decimal.Decimal
	if empty || totalLP.IsZero() {
		minted = SeedLP(ddpIn, usdcIn)
	} else {
		minted, _ = totalLP.Mul(ddpIn).QuoRem(ddpReserve, Precision)
	}
	if !minted.IsPositive() {
		return model.Result{}, fmt.Errorf("%w: deposit too small to mint LP tokens", validation.ErrInvalidAmount)
	}

	res := model.Result{
		Type:             model.OpAddLiquidity,
		ParticipantID:    participantID,
		PoolDelta:        model.PoolDelta{DDP: ddpIn, USDC: usdcIn},
		ParticipantDelta: model.ParticipantDelta{DDP: ddpIn.Neg(), USDC: usdcIn.Neg(), LPTokens: minted},
		DDPAmount:        ddpIn,
		USDCAmount:       usdcIn,
		LPMinted:         minted,
		PoolSharePct:     minted.Div(totalLP.Add(minted)).Mul(hundred),
	}
	setPrices(&res, pool)
	return res, nil
}

// RemoveLiquidity quotes burning percent of the participant's LP tokens for
// the matching share of both reserves.
func (e *Engine) RemoveLiquidity(l *ledger.Ledger, participantID int, percent decimal.Decimal) (model.Result, error) {
	if err := validation.Percent(percent); err != nil {
		return model.Result{}, err
	}
	p, err := l.Trader(participantID)
	if err != nil {
		return model.Result{}, err
	}

	totalLP := l.TotalLPSupply()
	if totalLP.IsZero() {
		return model.Result{}, fmt.Errorf("%w: %w: no LP tokens in circulation",
			validation.ErrInvalidAmount, validation.ErrDivisionByZero)
	}
	burned := p.LPTokens.Mul(percent.Div(hundred))
	if !burned.IsPositive() {
		return model.Result{}, fmt.Errorf("%w: participant %d holds no LP tokens",
			validation.ErrInvalidAmount, participantID)
	}

	pool := l.Pool()
	ddpOut, _ := pool.DDPBalance.Mul(burned).QuoRem(totalLP, Precision)
	usdcOut, _ := pool.USDCBalance.Mul(burned).QuoRem(totalLP, Precision)

	res := model.Result{
		Type:             model.OpRemoveLiquidity,
		ParticipantID:    participantID,
		PoolDelta:        model.PoolDelta{DDP: ddpOut.Neg(), USDC: usdcOut.Neg()},
		ParticipantDelta: model.ParticipantDelta{DDP: ddpOut, USDC: usdcOut, LPTokens: burned.Neg()},
		DDPAmount:        ddpOut,
		USDCAmount:       usdcOut,
		LPBurned:         burned,
		PoolSharePct:     burned.Div(totalLP).Mul(hundred),
	}
	setPrices(&res, pool)
	return res, nil
}

// setPrices records the spot price before and after the deltas. Either side
// is left at zero when the pool holds no DDP.
func setPrices(res *model.Result, pool model.Participant) {
	if before, err := SpotPrice(pool.DDPBalance, pool.USDCBalance); err == nil {
		res.SpotPriceBefore = before
	}
	ddp := pool.DDPBalance.Add(res.PoolDelta.DDP)
	usdc := pool.USDCBalance.Add(res.PoolDelta.USDC)
	if after, err := SpotPrice(ddp, usdc); err == nil {
		res.SpotPriceAfter = after
	}
}

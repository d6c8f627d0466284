package amm

import (
	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/ledger"
	"github.com/atmx/ddp-sim/internal/model"
)

// PoolState is a read-only summary of the pool and the token economy around
// it.
type PoolState struct {
	DDPReserve  decimal.Decimal `json:"ddp_reserve"`
	USDCReserve decimal.Decimal `json:"usdc_reserve"`
	SpotPrice   decimal.Decimal `json:"spot_price"` // zero when the pool holds no DDP
	K           decimal.Decimal `json:"k"`
	TotalLP     decimal.Decimal `json:"total_lp_supply"`
	TotalDDP    decimal.Decimal `json:"total_ddp"`
	MarketCap   decimal.Decimal `json:"market_cap_usdc"`
	FeeRate     decimal.Decimal `json:"fee_rate"`
}

// Portfolio values one participant at the current spot price.
type Portfolio struct {
	Participant  model.Participant `json:"participant"`
	DDPValueUSDC decimal.Decimal   `json:"ddp_value_usdc"`
	TotalValue   decimal.Decimal   `json:"total_value_usdc"`
	PoolSharePct decimal.Decimal   `json:"pool_share_pct"`
	ClaimDDP     decimal.Decimal   `json:"claim_ddp"`
	ClaimUSDC    decimal.Decimal   `json:"claim_usdc"`
}

// State summarises the pool held by l.
func (e *Engine) State(l *ledger.Ledger) PoolState {
	ddp, usdc := l.Reserves()
	spot, _ := SpotPrice(ddp, usdc)
	total := l.TotalDDP()
	return PoolState{
		DDPReserve:  ddp,
		USDCReserve: usdc,
		SpotPrice:   spot,
		K:           K(ddp, usdc),
		TotalLP:     l.TotalLPSupply(),
		TotalDDP:    total,
		MarketCap:   total.Mul(spot),
		FeeRate:     e.feeRate,
	}
}

// ValuePortfolio marks a participant to market. LP tokens are valued by the
// reserves they would withdraw, not included in TotalValue.
func ValuePortfolio(l *ledger.Ledger, participantID int) (Portfolio, error) {
	p, err := l.Participant(participantID)
	if err != nil {
		return Portfolio{}, err
	}
	ddp, usdc := l.Reserves()
	spot, _ := SpotPrice(ddp, usdc)

	pf := Portfolio{
		Participant:  p,
		DDPValueUSDC: p.DDPBalance.Mul(spot),
		TotalValue:   p.USDCBalance.Add(p.DDPBalance.Mul(spot)),
		PoolSharePct: decimal.Zero,
		ClaimDDP:     decimal.Zero,
		ClaimUSDC:    decimal.Zero,
	}
	if totalLP := l.TotalLPSupply(); totalLP.IsPositive() && p.LPTokens.IsPositive() {
		share := p.LPTokens.Div(totalLP)
		pf.PoolSharePct = share.Mul(hundred)
		pf.ClaimDDP = ddp.Mul(share)
		pf.ClaimUSDC = usdc.Mul(share)
	}
	return pf, nil
}

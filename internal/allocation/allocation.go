// Package allocation derives the initial DDP/USDC split of a simulation run
// and builds the participant ledger seeded from it.
//
// Every function here is pure: the same configuration always yields the
// same breakdown and the same participant rows.
package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

var hundred = decimal.NewFromInt(100)

// Compute splits the total supply and the pooled contributions:
//
//	totalContributions = chairman + boardMember × numBoardMembers
//	ammDDP             = totalSupply × ammPercent / 100
//	platformDDP        = totalSupply × platformPercent / 100
//	playerPoolDDP      = totalSupply × playerPercent / 100
//	treasuryDDP        = totalSupply - ammDDP - platformDDP - playerPoolDDP
//
// The player pool is divided between the chairman and each board member in
// proportion to what they paid in. USDC is split into platform fee,
// treasury, and the remainder that seeds the pool.
func Compute(cfg model.Config) (*model.AllocationBreakdown, error) {
	if err := validation.Config(cfg); err != nil {
		return nil, err
	}

	members := decimal.NewFromInt(int64(cfg.NumBoardMembers))
	totalContrib := cfg.ChairmanContribution.Add(cfg.BoardMemberContribution.Mul(members))

	ammDDP := pct(cfg.TotalSupply, cfg.AmmPercent)
	platformDDP := pct(cfg.TotalSupply, cfg.PlatformPercent)
	playerPool := pct(cfg.TotalSupply, cfg.PlayerPercent)
	treasuryDDP := cfg.TotalSupply.Sub(ammDDP).Sub(platformDDP).Sub(playerPool)
	if treasuryDDP.IsNegative() {
		return nil, fmt.Errorf("%w: DDP allocation exceeds 100%%", validation.ErrConfig)
	}

	chairmanDDP, boardDDP := decimal.Zero, decimal.Zero
	chairmanShare, boardShare := decimal.Zero, decimal.Zero
	if playerPool.IsPositive() {
		if totalContrib.IsZero() {
			return nil, fmt.Errorf("%w: %w: player pool of %s DDP cannot be split without contributions",
				validation.ErrConfig, validation.ErrDivisionByZero, playerPool)
		}
		// Multiply before dividing to keep the split exact for round shares.
		chairmanDDP = playerPool.Mul(cfg.ChairmanContribution).Div(totalContrib)
		boardDDP = playerPool.Mul(cfg.BoardMemberContribution).Div(totalContrib)
	}
	if totalContrib.IsPositive() {
		chairmanShare = cfg.ChairmanContribution.Div(totalContrib)
		boardShare = cfg.BoardMemberContribution.Div(totalContrib)
	}

	platformFee := pct(totalContrib, cfg.PlatformFeePercent)
	treasuryUSDC := pct(totalContrib, cfg.TreasuryUSDCPercent)
	poolUSDC := totalContrib.Sub(platformFee).Sub(treasuryUSDC)
	if poolUSDC.IsNegative() {
		return nil, fmt.Errorf("%w: USDC split exceeds 100%%", validation.ErrConfig)
	}

	poolPrice := decimal.Zero
	if ammDDP.IsPositive() {
		poolPrice = poolUSDC.Div(ammDDP)
	}

	return &model.AllocationBreakdown{
		TreasuryDDP:    treasuryDDP,
		AmmDDP:         ammDDP,
		PlayerPoolDDP:  playerPool,
		ChairmanDDP:    chairmanDDP,
		BoardMemberDDP: boardDDP,
		PlatformDDP:    platformDDP,

		TotalContributionsUSDC: totalContrib,
		PlatformFeeUSDC:        platformFee,
		TreasuryUSDC:           treasuryUSDC,
		PoolUSDC:               poolUSDC,

		TreasuryPercent:            cfg.TreasuryPercent(),
		ChairmanShare:              chairmanShare,
		BoardMemberShare:           boardShare,
		ChairmanPercentOfSupply:    chairmanDDP.Div(cfg.TotalSupply).Mul(hundred),
		BoardMemberPercentOfSupply: boardDDP.Div(cfg.TotalSupply).Mul(hundred),
		InitialDDPPrice:            totalContrib.Div(cfg.TotalSupply),
		PoolPrice:                  poolPrice,
	}, nil
}

// AllocatedDDP sums every DDP split, counting the per-member amount once per
// board member. For a valid breakdown it equals the configured total supply.
func AllocatedDDP(cfg model.Config, b *model.AllocationBreakdown) decimal.Decimal {
	members := decimal.NewFromInt(int64(cfg.NumBoardMembers))
	return b.TreasuryDDP.
		Add(b.AmmDDP).
		Add(b.PlatformDDP).
		Add(b.ChairmanDDP).
		Add(b.BoardMemberDDP.Mul(members))
}

func pct(total, percent decimal.Decimal) decimal.Decimal {
	return total.Mul(percent).Div(hundred)
}

package allocation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

// Display names of the fixed rows.
const (
	NameChairman = "Chairman"
	NameAmmPool  = "AMM Pool"
	NamePlatform = "Platform"
	NameTreasury = "Treasury"
	NameWhale    = "Whale"
)

// BuildLedger creates the participant rows for an allocation, in display
// order: Chairman, each Board Member, AMM Pool, Platform, Treasury.
//
// Contributors carry the negative of what they paid in. The pool row holds
// the reserves and the seed LP supply sqrt(ammDDP × poolUSDC).
func BuildLedger(cfg model.Config, b *model.AllocationBreakdown) []model.Participant {
	rows := make([]model.Participant, 0, cfg.NumBoardMembers+4)
	next := 1
	add := func(name string, role model.Role, ddp, usdc, lp decimal.Decimal) {
		rows = append(rows, model.Participant{
			ID:          next,
			Name:        name,
			Role:        role,
			DDPBalance:  ddp,
			USDCBalance: usdc,
			LPTokens:    lp,
		})
		next++
	}

	add(NameChairman, model.RoleChairman, b.ChairmanDDP, cfg.ChairmanContribution.Neg(), decimal.Zero)
	for i := 0; i < cfg.NumBoardMembers; i++ {
		add(fmt.Sprintf("Board Member %d", i+1), model.RoleBoardMember,
			b.BoardMemberDDP, cfg.BoardMemberContribution.Neg(), decimal.Zero)
	}
	add(NameAmmPool, model.RoleAmmPool, b.AmmDDP, b.PoolUSDC, amm.SeedLP(b.AmmDDP, b.PoolUSDC))
	add(NamePlatform, model.RolePlatform, b.PlatformDDP, b.PlatformFeeUSDC, decimal.Zero)
	add(NameTreasury, model.RoleTreasury, b.TreasuryDDP, b.TreasuryUSDC, decimal.Zero)
	return rows
}

// DefaultSetup returns the preset used when a ledger is seeded directly
// from pool reserves instead of an allocation.
func DefaultSetup() model.SetupConfig {
	return model.SetupConfig{
		PoolDDP:    decimal.NewFromInt(45_000_000),
		PoolUSDC:   decimal.NewFromInt(135_000),
		WhaleDDP:   decimal.NewFromInt(10_000_000),
		WhaleUSDC:  decimal.NewFromInt(-27_000),
		PlayerDDP:  decimal.NewFromInt(4_000_000),
		PlayerUSDC: decimal.NewFromInt(-10_800),
		NumPlayers: 10,
	}
}

// BuildSetupLedger seeds a ledger from a preset: one Whale, NumPlayers
// regular players, then the AMM Pool.
func BuildSetupLedger(s model.SetupConfig) ([]model.Participant, error) {
	if err := validation.Setup(s); err != nil {
		return nil, err
	}

	rows := make([]model.Participant, 0, s.NumPlayers+2)
	rows = append(rows, model.Participant{
		ID:          1,
		Name:        NameWhale,
		Role:        model.RoleWhale,
		DDPBalance:  s.WhaleDDP,
		USDCBalance: s.WhaleUSDC,
		LPTokens:    decimal.Zero,
	})
	for i := 0; i < s.NumPlayers; i++ {
		rows = append(rows, model.Participant{
			ID:          i + 2,
			Name:        fmt.Sprintf("Player %d", i+1),
			Role:        model.RoleRegularPlayer,
			DDPBalance:  s.PlayerDDP,
			USDCBalance: s.PlayerUSDC,
			LPTokens:    decimal.Zero,
		})
	}
	rows = append(rows, model.Participant{
		ID:          s.NumPlayers + 2,
		Name:        NameAmmPool,
		Role:        model.RoleAmmPool,
		DDPBalance:  s.PoolDDP,
		USDCBalance: s.PoolUSDC,
		LPTokens:    amm.SeedLP(s.PoolDDP, s.PoolUSDC),
	})
	return rows, nil
}

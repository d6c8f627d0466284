package allocation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func defaultConfig() model.Config {
	return model.Config{
		TotalSupply:             d(1_000_000_000),
		NumBoardMembers:         100,
		NumTraders:              10,
		AmmPercent:              d(30),
		PlayerPercent:           d(40),
		PlatformPercent:         d(10),
		ChairmanContribution:    d(500),
		BoardMemberContribution: d(5),
		PlatformFeePercent:      d(0),
		TreasuryUSDCPercent:     d(0),
	}
}

func assertDec(t *testing.T, want, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, want.Equal(got), append([]interface{}{"want %s, got %s", want, got}, msgAndArgs...)...)
}

func TestCompute_DefaultEconomy(t *testing.T) {
	b, err := Compute(defaultConfig())
	require.NoError(t, err)

	assertDec(t, d(200_000_000), b.TreasuryDDP)
	assertDec(t, d(300_000_000), b.AmmDDP)
	assertDec(t, d(400_000_000), b.PlayerPoolDDP)
	assertDec(t, d(100_000_000), b.PlatformDDP)
	assertDec(t, d(1_000), b.TotalContributionsUSDC)

	// Chairman paid half of the 1,000 USDC and receives half the player pool.
	assertDec(t, d(200_000_000), b.ChairmanDDP)
	assertDec(t, d(2_000_000), b.BoardMemberDDP)
	assertDec(t, d(0.5), b.ChairmanShare)
	assertDec(t, d(0.005), b.BoardMemberShare)
	assertDec(t, d(20), b.ChairmanPercentOfSupply)
	assertDec(t, d(0.2), b.BoardMemberPercentOfSupply)

	assertDec(t, d(20), b.TreasuryPercent)
	assertDec(t, d(1_000), b.PoolUSDC)
	assertDec(t, d(0.000001), b.InitialDDPPrice)
}

func TestCompute_ConservesSupply(t *testing.T) {
	configs := []model.Config{defaultConfig()}

	odd := defaultConfig()
	odd.TotalSupply = d(777_777_777)
	odd.NumBoardMembers = 7
	odd.ChairmanContribution = d(333)
	odd.BoardMemberContribution = d(11)
	odd.AmmPercent = d(12.5)
	configs = append(configs, odd)

	nobody := defaultConfig()
	nobody.NumBoardMembers = 0
	nobody.PlayerPercent = d(0)
	nobody.ChairmanContribution = d(0)
	nobody.BoardMemberContribution = d(0)
	configs = append(configs, nobody)

	for _, cfg := range configs {
		b, err := Compute(cfg)
		require.NoError(t, err)
		diff := AllocatedDDP(cfg, b).Sub(cfg.TotalSupply).Abs()
		assert.True(t, diff.LessThan(d(1e-6)), "allocated %s of %s", AllocatedDDP(cfg, b), cfg.TotalSupply)
	}
}

func TestCompute_USDCSplit(t *testing.T) {
	cfg := defaultConfig()
	cfg.PlatformFeePercent = d(5)
	cfg.TreasuryUSDCPercent = d(20)

	b, err := Compute(cfg)
	require.NoError(t, err)
	assertDec(t, d(50), b.PlatformFeeUSDC)
	assertDec(t, d(200), b.TreasuryUSDC)
	assertDec(t, d(750), b.PoolUSDC)
	assertDec(t, d(750).Div(d(300_000_000)), b.PoolPrice)
}

func TestCompute_NoAMMHasNoPoolPrice(t *testing.T) {
	cfg := defaultConfig()
	cfg.AmmPercent = d(0)

	b, err := Compute(cfg)
	require.NoError(t, err)
	assert.True(t, b.PoolPrice.IsZero())
	assertDec(t, d(500_000_000), b.TreasuryDDP)
}

func TestCompute_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Config)
	}{
		{"zero supply", func(c *model.Config) { c.TotalSupply = d(0) }},
		{"negative board", func(c *model.Config) { c.NumBoardMembers = -1 }},
		{"negative percent", func(c *model.Config) { c.AmmPercent = d(-1) }},
		{"negative contribution", func(c *model.Config) { c.BoardMemberContribution = d(-5) }},
		{"over-allocated supply", func(c *model.Config) { c.AmmPercent = d(60) }},
		{"over-allocated USDC", func(c *model.Config) { c.PlatformFeePercent = d(60); c.TreasuryUSDCPercent = d(50) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			_, err := Compute(cfg)
			require.ErrorIs(t, err, validation.ErrConfig)
		})
	}
}

func TestCompute_PlayerPoolWithoutContributions(t *testing.T) {
	cfg := defaultConfig()
	cfg.ChairmanContribution = d(0)
	cfg.BoardMemberContribution = d(0)

	_, err := Compute(cfg)
	require.ErrorIs(t, err, validation.ErrConfig)
	require.ErrorIs(t, err, validation.ErrDivisionByZero)
}

func TestBuildLedger_Order(t *testing.T) {
	cfg := defaultConfig()
	cfg.NumBoardMembers = 3
	b, err := Compute(cfg)
	require.NoError(t, err)

	rows := BuildLedger(cfg, b)
	require.Len(t, rows, 7)

	wantRoles := []model.Role{
		model.RoleChairman,
		model.RoleBoardMember, model.RoleBoardMember, model.RoleBoardMember,
		model.RoleAmmPool, model.RolePlatform, model.RoleTreasury,
	}
	for i, p := range rows {
		assert.Equal(t, i+1, p.ID)
		assert.Equal(t, wantRoles[i], p.Role, "row %d", i)
	}
	assert.Equal(t, "Board Member 2", rows[2].Name)

	chairman := rows[0]
	assertDec(t, d(-500), chairman.USDCBalance)
	assertDec(t, b.ChairmanDDP, chairman.DDPBalance)
	assertDec(t, d(-5), rows[1].USDCBalance)

	pool := rows[4]
	assertDec(t, b.AmmDDP, pool.DDPBalance)
	assertDec(t, b.PoolUSDC, pool.USDCBalance)
	assertDec(t, amm.SeedLP(b.AmmDDP, b.PoolUSDC), pool.LPTokens)
	assert.True(t, pool.LPTokens.IsPositive())
}

func TestBuildLedger_ConservesDDP(t *testing.T) {
	cfg := defaultConfig()
	b, err := Compute(cfg)
	require.NoError(t, err)

	total := decimal.Zero
	for _, p := range BuildLedger(cfg, b) {
		total = total.Add(p.DDPBalance)
	}
	assertDec(t, cfg.TotalSupply, total)
}

func TestBuildSetupLedger(t *testing.T) {
	rows, err := BuildSetupLedger(DefaultSetup())
	require.NoError(t, err)
	require.Len(t, rows, 12)

	assert.Equal(t, model.RoleWhale, rows[0].Role)
	assertDec(t, d(-27_000), rows[0].USDCBalance)
	assert.Equal(t, "Player 10", rows[10].Name)
	assert.Equal(t, 11, rows[10].ID)

	pool := rows[11]
	assert.Equal(t, model.RoleAmmPool, pool.Role)
	assert.Equal(t, 12, pool.ID)
	assertDec(t, d(45_000_000), pool.DDPBalance)
	assert.True(t, pool.LPTokens.IsPositive())
}

func TestBuildSetupLedger_Rejections(t *testing.T) {
	s := DefaultSetup()
	s.NumPlayers = 21
	_, err := BuildSetupLedger(s)
	require.ErrorIs(t, err, validation.ErrConfig)

	s = DefaultSetup()
	s.PoolUSDC = d(-1)
	_, err = BuildSetupLedger(s)
	require.ErrorIs(t, err, validation.ErrConfig)
}

package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
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

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "ddpsim version "+Version)
}

func TestAllocate_Defaults(t *testing.T) {
	out, err := run(t, "allocate")
	require.NoError(t, err)

	var got allocationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Breakdown.TreasuryDDP.Equal(d(200_000_000)), "treasury %s", got.Breakdown.TreasuryDDP)
	assert.True(t, got.Breakdown.AmmDDP.Equal(d(300_000_000)), "amm %s", got.Breakdown.AmmDDP)
	assert.Len(t, got.Participants, 104)
}

func TestAllocate_FlagOverrides(t *testing.T) {
	out, err := run(t, "allocate", "--board-members", "2", "--platform-fee-percent", "10")
	require.NoError(t, err)

	var got allocationOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Participants, 6)
	assert.Equal(t, 2, got.Config.NumBoardMembers)
	// 510 USDC raised, 10% to the platform.
	assert.True(t, got.Breakdown.PlatformFeeUSDC.Equal(d(51)), "platform fee %s", got.Breakdown.PlatformFeeUSDC)
	assert.True(t, got.Config.AmmPercent.Equal(d(30)), "unset flags keep defaults")
}

func TestAllocate_Table(t *testing.T) {
	out, err := run(t, "allocate", "--board-members", "1", "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "AMM_POOL")
	assert.Contains(t, out, "Board Member 1")
	assert.Contains(t, out, "Treasury")
}

func TestAllocate_Rejections(t *testing.T) {
	_, err := run(t, "allocate", "--amm-percent", "95")
	assert.ErrorIs(t, err, validation.ErrConfig)

	_, err = run(t, "allocate", "--output", "yaml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestQuoteSwap_Setup(t *testing.T) {
	out, err := run(t, "quote", "swap", "--setup", "--participant", "1", "--amount", "1000000")
	require.NoError(t, err)

	var got quoteOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	want := amm.AmountOut(d(1_000_000), d(45_000_000), d(135_000), amm.DefaultFeeRate)
	assert.True(t, got.Result.OutputAmount.Equal(want), "output %s, want %s", got.Result.OutputAmount, want)
	assert.Equal(t, model.TokenUSDC, got.Result.OutputToken)
	assert.True(t, got.Pool.DDPReserve.Equal(d(45_000_000)), "quote must not move the pool")
	assert.Empty(t, got.Participants)
}

func TestQuoteSwap_Execute(t *testing.T) {
	out, err := run(t, "quote", "swap", "--setup", "--players", "2", "--execute",
		"--participant", "1", "--token", "usdc", "--amount", "3000")
	require.NoError(t, err)

	var got quoteOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Participants, 4)
	whale := got.Participants[0]
	assert.Equal(t, model.RoleWhale, whale.Role)
	assert.True(t, whale.USDCBalance.Equal(d(-30_000)), "whale USDC %s", whale.USDCBalance)
	assert.True(t, whale.DDPBalance.Equal(d(10_000_000).Add(got.Result.OutputAmount)))
	assert.True(t, got.Pool.USDCReserve.Equal(d(138_000)), "pool USDC %s", got.Pool.USDCReserve)
}

func TestQuoteAdd_FromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ddpsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  platform_fee_percent: 10\n"), 0o600))

	// Platform is row 103 behind the chairman, 100 members and the pool.
	out, err := run(t, "--config", path, "quote", "add", "--participant", "103", "--amount", "1000000")
	require.NoError(t, err)

	var got quoteOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Result.DDPAmount.Equal(d(1_000_000)))
	// 1M DDP at 900 USDC / 300M DDP needs 3 USDC.
	assert.True(t, got.Result.USDCAmount.Equal(d(3)), "usdc %s", got.Result.USDCAmount)
	assert.True(t, got.Result.LPMinted.IsPositive())
}

func TestQuote_Rejections(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
	}{
		{"no LP to remove", []string{"quote", "remove", "--setup", "--participant", "2", "--percent", "50"}, validation.ErrInvalidAmount},
		{"overdrawn DDP", []string{"quote", "swap", "--setup", "--participant", "2", "--amount", "5000000"}, validation.ErrInsufficientBalance},
		{"unknown participant", []string{"quote", "swap", "--setup", "--participant", "99", "--amount", "1"}, validation.ErrUnknownParticipant},
		{"zero amount", []string{"quote", "swap", "--setup", "--participant", "1"}, validation.ErrInvalidAmount},
		{"not finite", []string{"quote", "swap", "--setup", "--participant", "1", "--amount", "NaN"}, validation.ErrInvalidAmount},
		{"too many players", []string{"quote", "swap", "--setup", "--players", "25", "--participant", "1", "--amount", "1"}, validation.ErrConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuote_RequiresParticipant(t *testing.T) {
	_, err := run(t, "quote", "swap", "--amount", "1")
	assert.ErrorContains(t, err, "participant")

	_, err = run(t, "quote", "swap", "--participant", "1", "--token", "ETH", "--amount", "1")
	assert.ErrorContains(t, err, "unknown token")
}

package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func rows() []model.Participant {
	return []model.Participant{
		{ID: 1, Name: "Whale", Role: model.RoleWhale, DDPBalance: d(1_000), USDCBalance: d(-500)},
		{ID: 2, Name: "Player 1", Role: model.RoleRegularPlayer, DDPBalance: d(10), LPTokens: d(5)},
		{ID: 3, Name: "AMM Pool", Role: model.RoleAmmPool, DDPBalance: d(100_000), USDCBalance: d(300), LPTokens: d(95)},
	}
}

func TestNew_Valid(t *testing.T) {
	l, err := New(rows())
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 3, l.Pool().ID)

	ddp, usdc := l.Reserves()
	assert.True(t, ddp.Equal(d(100_000)))
	assert.True(t, usdc.Equal(d(300)))
	assert.True(t, l.TotalLPSupply().Equal(d(100)))
	assert.True(t, l.TotalDDP().Equal(d(101_010)))
}

func TestNew_CopiesInput(t *testing.T) {
	in := rows()
	l, err := New(in)
	require.NoError(t, err)

	in[0].DDPBalance = d(0)
	p, err := l.Participant(1)
	require.NoError(t, err)
	assert.True(t, p.DDPBalance.Equal(d(1_000)))

	out := l.Participants()
	out[0].DDPBalance = d(0)
	p, _ = l.Participant(1)
	assert.True(t, p.DDPBalance.Equal(d(1_000)))
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]model.Participant) []model.Participant
	}{
		{"no pool", func(r []model.Participant) []model.Participant { return r[:2] }},
		{"two pools", func(r []model.Participant) []model.Participant {
			r[0].Role = model.RoleAmmPool
			return r
		}},
		{"duplicate id", func(r []model.Participant) []model.Participant {
			r[1].ID = 1
			return r
		}},
		{"negative LP", func(r []model.Participant) []model.Participant {
			r[1].LPTokens = d(-1)
			return r
		}},
		{"negative reserve", func(r []model.Participant) []model.Participant {
			r[2].USDCBalance = d(-1)
			return r
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mutate(rows()))
			require.ErrorIs(t, err, validation.ErrConfig)
		})
	}
}

func TestParticipant_Unknown(t *testing.T) {
	l, err := New(rows())
	require.NoError(t, err)

	_, err = l.Participant(9)
	require.ErrorIs(t, err, validation.ErrUnknownParticipant)
}

func TestTrader_RejectsPool(t *testing.T) {
	l, err := New(rows())
	require.NoError(t, err)

	_, err = l.Trader(3)
	require.ErrorIs(t, err, validation.ErrInvalidAmount)

	p, err := l.Trader(1)
	require.NoError(t, err)
	assert.Equal(t, "Whale", p.Name)
}

func TestApply(t *testing.T) {
	l, err := New(rows())
	require.NoError(t, err)

	err = l.Apply(model.Result{
		ParticipantID:    1,
		PoolDelta:        model.PoolDelta{DDP: d(100), USDC: d(-0.3)},
		ParticipantDelta: model.ParticipantDelta{DDP: d(-100), USDC: d(0.3)},
	})
	require.NoError(t, err)

	p, _ := l.Participant(1)
	assert.True(t, p.DDPBalance.Equal(d(900)))
	assert.True(t, p.USDCBalance.Equal(d(-499.7)))
	ddp, usdc := l.Reserves()
	assert.True(t, ddp.Equal(d(100_100)))
	assert.True(t, usdc.Equal(d(299.7)))
}

func TestApply_RejectsAtomically(t *testing.T) {
	tests := []struct {
		name string
		res  model.Result
		want error
	}{
		{"overdrawn DDP", model.Result{
			ParticipantID:    2,
			PoolDelta:        model.PoolDelta{DDP: d(11)},
			ParticipantDelta: model.ParticipantDelta{DDP: d(-11)},
		}, validation.ErrInsufficientBalance},
		{"drained pool", model.Result{
			ParticipantID:    1,
			PoolDelta:        model.PoolDelta{USDC: d(-301)},
			ParticipantDelta: model.ParticipantDelta{USDC: d(301)},
		}, validation.ErrInsufficientBalance},
		{"negative LP", model.Result{
			ParticipantID:    2,
			ParticipantDelta: model.ParticipantDelta{LPTokens: d(-6)},
		}, validation.ErrInsufficientBalance},
		{"unknown", model.Result{ParticipantID: 99}, validation.ErrUnknownParticipant},
		{"pool", model.Result{ParticipantID: 3}, validation.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(rows())
			require.NoError(t, err)
			before := l.Participants()

			require.ErrorIs(t, l.Apply(tt.res), tt.want)
			assert.Equal(t, before, l.Participants())
		})
	}
}

func TestApply_NegativeUSDCAllowed(t *testing.T) {
	l, err := New(rows())
	require.NoError(t, err)

	require.NoError(t, l.Apply(model.Result{
		ParticipantID:    2,
		PoolDelta:        model.PoolDelta{USDC: d(50)},
		ParticipantDelta: model.ParticipantDelta{USDC: d(-50)},
	}))
	p, _ := l.Participant(2)
	assert.True(t, p.USDCBalance.Equal(d(-50)))
}

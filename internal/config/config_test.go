package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, uint(5), cfg.Database.ConnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 0.003, cfg.AMM.FeeRate)
	assert.Equal(t, 15.0, cfg.AMM.WarnPriceImpactPct)
	assert.Equal(t, 100, cfg.Simulation.NumBoardMembers)

	m, err := cfg.Simulation.Model()
	require.NoError(t, err)
	assert.True(t, m.TotalSupply.Equal(decimal.NewFromInt(1_000_000_000)))
	assert.True(t, m.ChairmanContribution.Equal(decimal.NewFromInt(500)))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ddpsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  request_timeout: 45s
log:
  format: text
amm:
  fee_rate: 0.01
  max_price_impact_pct: 25
simulation:
  num_board_members: 7
  chairman_contribution: 1000
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 0.01, cfg.AMM.FeeRate)
	assert.Equal(t, 25.0, cfg.AMM.MaxPriceImpactPct)
	assert.Equal(t, 7, cfg.Simulation.NumBoardMembers)
	assert.Equal(t, 1000.0, cfg.Simulation.ChairmanContribution)
	// Untouched keys keep their defaults.
	assert.Equal(t, 40.0, cfg.Simulation.PlayerPercent)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DDPSIM_AMM_FEE_RATE", "0.005")
	t.Setenv("DDPSIM_LOG_LEVEL", "debug")
	t.Setenv("PORT", "9191")
	t.Setenv("DATABASE_URL", "postgres://localhost/ddpsim")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.005, cfg.AMM.FeeRate)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/ddpsim", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero timeout", func(c *Config) { c.Server.WriteTimeout = 0 }},
		{"no connect attempts", func(c *Config) { c.Database.URL = "postgres://x"; c.Database.ConnectAttempts = 0 }},
		{"fee of one", func(c *Config) { c.AMM.FeeRate = 1 }},
		{"negative fee", func(c *Config) { c.AMM.FeeRate = -0.1 }},
		{"negative warn", func(c *Config) { c.AMM.WarnPriceImpactPct = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestAMMConfig_NewEngine(t *testing.T) {
	e, err := AMMConfig{FeeRate: 0.003, WarnPriceImpactPct: 15}.NewEngine()
	require.NoError(t, err)
	assert.True(t, e.FeeRate().Equal(decimal.NewFromFloat(0.003)))
}

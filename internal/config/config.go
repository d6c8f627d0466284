// Package config loads service and CLI settings from defaults, an optional
// config file, and the environment.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

// EnvPrefix prefixes every environment override, e.g. DDPSIM_SERVER_PORT.
const EnvPrefix = "DDPSIM"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	AMM        AMMConfig        `mapstructure:"amm"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig selects PostgreSQL. An empty URL means the in-memory store.
type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	ConnectAttempts uint   `mapstructure:"connect_attempts"`
}

// RedisConfig enables the read-through cache when URL is set. Ignored
// without a database.
type RedisConfig struct {
	URL string        `mapstructure:"url"`
	TTL time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AMMConfig holds the exchange parameters applied to new sessions.
type AMMConfig struct {
	FeeRate            float64 `mapstructure:"fee_rate"`
	WarnPriceImpactPct float64 `mapstructure:"warn_price_impact_pct"`
	MaxPriceImpactPct  float64 `mapstructure:"max_price_impact_pct"` // 0 disables the cap
}

// SimulationConfig is the default token-economy configuration.
type SimulationConfig struct {
	TotalSupply             float64 `mapstructure:"total_supply"`
	NumBoardMembers         int     `mapstructure:"num_board_members"`
	NumTraders              int     `mapstructure:"num_traders"`
	AmmPercent              float64 `mapstructure:"amm_percent"`
	PlayerPercent           float64 `mapstructure:"player_percent"`
	PlatformPercent         float64 `mapstructure:"platform_percent"`
	ChairmanContribution    float64 `mapstructure:"chairman_contribution"`
	BoardMemberContribution float64 `mapstructure:"board_member_contribution"`
	PlatformFeePercent      float64 `mapstructure:"platform_fee_percent"`
	TreasuryUSDCPercent     float64 `mapstructure:"treasury_usdc_percent"`
}

// Load reads configuration in priority order: defaults, the file at path
// (skipped when empty), then environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names kept for deployments that predate the prefix.
	for key, legacy := range map[string]string{
		"server.port":  "PORT",
		"database.url": "DATABASE_URL",
		"redis.url":    "REDIS_URL",
	} {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("amm.fee_rate", 0.003)
	v.SetDefault("amm.warn_price_impact_pct", 15.0)
	v.SetDefault("amm.max_price_impact_pct", 0.0)

	v.SetDefault("simulation.total_supply", 1_000_000_000.0)
	v.SetDefault("simulation.num_board_members", 100)
	v.SetDefault("simulation.num_traders", 10)
	v.SetDefault("simulation.amm_percent", 30.0)
	v.SetDefault("simulation.player_percent", 40.0)
	v.SetDefault("simulation.platform_percent", 10.0)
	v.SetDefault("simulation.chairman_contribution", 500.0)
	v.SetDefault("simulation.board_member_contribution", 5.0)
	v.SetDefault("simulation.platform_fee_percent", 0.0)
	v.SetDefault("simulation.treasury_usdc_percent", 0.0)
}

// Validate checks the settings that would otherwise fail late, at server
// start or on the first session.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.request_timeout":  c.Server.RequestTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalid, name)
		}
	}
	if c.Database.URL != "" && c.Database.ConnectAttempts == 0 {
		return fmt.Errorf("%w: database.connect_attempts must be at least 1", ErrInvalid)
	}

	if _, err := c.AMM.NewEngine(); err != nil {
		return fmt.Errorf("%w: amm: %v", ErrInvalid, err)
	}
	if _, err := c.Simulation.Model(); err != nil {
		return fmt.Errorf("%w: simulation: %v", ErrInvalid, err)
	}
	return nil
}

// NewEngine builds the exchange engine described by the AMM settings.
func (a AMMConfig) NewEngine() (*amm.Engine, error) {
	fee, err := validation.Amount(a.FeeRate)
	if err != nil {
		return nil, err
	}
	warn, err := validation.Amount(a.WarnPriceImpactPct)
	if err != nil {
		return nil, err
	}
	maxPct, err := validation.Amount(a.MaxPriceImpactPct)
	if err != nil {
		return nil, err
	}
	if warn.IsNegative() || maxPct.IsNegative() {
		return nil, fmt.Errorf("%w: price impact thresholds must not be negative", validation.ErrInvalidAmount)
	}
	return amm.NewEngine(fee, validation.NewImpactLimiter(warn, maxPct))
}

// Model converts the defaults into an allocation configuration. Only
// finiteness is checked here; allocation.Compute applies the domain rules.
func (s SimulationConfig) Model() (model.Config, error) {
	fields := []float64{
		s.TotalSupply, s.AmmPercent, s.PlayerPercent, s.PlatformPercent,
		s.ChairmanContribution, s.BoardMemberContribution,
		s.PlatformFeePercent, s.TreasuryUSDCPercent,
	}
	dec := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return model.Config{}, fmt.Errorf("%w: %v is not finite", validation.ErrConfig, f)
		}
		dec[i] = decimal.NewFromFloat(f)
	}
	return model.Config{
		TotalSupply:             dec[0],
		NumBoardMembers:         s.NumBoardMembers,
		NumTraders:              s.NumTraders,
		AmmPercent:              dec[1],
		PlayerPercent:           dec[2],
		PlatformPercent:         dec[3],
		ChairmanContribution:    dec[4],
		BoardMemberContribution: dec[5],
		PlatformFeePercent:      dec[6],
		TreasuryUSDCPercent:     dec[7],
	}, nil
}

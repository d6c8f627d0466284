// Package model defines the core domain types shared across the simulator.
// All monetary values use shopspring/decimal, never float64.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies what a participant row represents in the economy.
type Role string

const (
	RoleChairman      Role = "CHAIRMAN"
	RoleBoardMember   Role = "BOARD_MEMBER"
	RoleAmmPool       Role = "AMM_POOL"
	RolePlatform      Role = "PLATFORM"
	RoleTreasury      Role = "TREASURY"
	RoleWhale         Role = "WHALE"
	RoleRegularPlayer Role = "REGULAR_PLAYER"
)

// Token is one of the two pooled assets.
type Token string

const (
	TokenDDP  Token = "DDP"
	TokenUSDC Token = "USDC"
)

// ParseToken accepts "ddp"/"usdc" in any case.
func ParseToken(s string) (Token, error) {
	switch Token(strings.ToUpper(strings.TrimSpace(s))) {
	case TokenDDP:
		return TokenDDP, nil
	case TokenUSDC:
		return TokenUSDC, nil
	}
	return "", fmt.Errorf("model: unknown token %q (expected DDP or USDC)", s)
}

// Other returns the opposite pool asset.
func (t Token) Other() Token {
	if t == TokenDDP {
		return TokenUSDC
	}
	return TokenDDP
}

// UnmarshalText lets JSON request bodies use lower-case token names.
func (t *Token) UnmarshalText(b []byte) error {
	parsed, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Config is the immutable input of one simulation run. Percentages are of
// total supply; treasury receives the residual.
type Config struct {
	TotalSupply             decimal.Decimal `json:"total_supply"`
	NumBoardMembers         int             `json:"num_board_members"`
	NumTraders              int             `json:"num_traders"` // informational
	AmmPercent              decimal.Decimal `json:"amm_percent"`
	PlayerPercent           decimal.Decimal `json:"player_percent"`
	PlatformPercent         decimal.Decimal `json:"platform_percent"`
	ChairmanContribution    decimal.Decimal `json:"chairman_contribution"`
	BoardMemberContribution decimal.Decimal `json:"board_member_contribution"`
	PlatformFeePercent      decimal.Decimal `json:"platform_fee_percent"`
	TreasuryUSDCPercent     decimal.Decimal `json:"treasury_usdc_percent"`
}

// TreasuryPercent is 100 - (amm + player + platform). May be negative for
// an invalid configuration.
func (c Config) TreasuryPercent() decimal.Decimal {
	return decimal.NewFromInt(100).Sub(c.AmmPercent.Add(c.PlayerPercent).Add(c.PlatformPercent))
}

// AllocationBreakdown is derived once from a Config.
type AllocationBreakdown struct {
	// DDP splits
	TreasuryDDP    decimal.Decimal `json:"treasury_ddp"`
	AmmDDP         decimal.Decimal `json:"amm_ddp"`
	PlayerPoolDDP  decimal.Decimal `json:"player_pool_ddp"`
	ChairmanDDP    decimal.Decimal `json:"chairman_ddp"`
	BoardMemberDDP decimal.Decimal `json:"board_member_ddp"` // per member
	PlatformDDP    decimal.Decimal `json:"platform_ddp"`

	// USDC splits
	TotalContributionsUSDC decimal.Decimal `json:"total_contributions_usdc"`
	PlatformFeeUSDC        decimal.Decimal `json:"platform_fee_usdc"`
	TreasuryUSDC           decimal.Decimal `json:"treasury_usdc"`
	PoolUSDC               decimal.Decimal `json:"pool_usdc"`

	// Shares and prices
	TreasuryPercent            decimal.Decimal `json:"treasury_percent"`
	ChairmanShare              decimal.Decimal `json:"chairman_share"`
	BoardMemberShare           decimal.Decimal `json:"board_member_share"` // per member
	ChairmanPercentOfSupply    decimal.Decimal `json:"chairman_percent_of_supply"`
	BoardMemberPercentOfSupply decimal.Decimal `json:"board_member_percent_of_supply"`
	InitialDDPPrice            decimal.Decimal `json:"initial_ddp_price"`
	PoolPrice                  decimal.Decimal `json:"pool_price"` // poolUSDC / ammDDP, zero without pool DDP
}

// Participant is one mutable ledger row. USDC is signed: negative means the
// participant is a net payer.
type Participant struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Role        Role            `json:"role"`
	DDPBalance  decimal.Decimal `json:"ddp_balance"`
	USDCBalance decimal.Decimal `json:"usdc_balance"`
	LPTokens    decimal.Decimal `json:"lp_tokens"`
}

// Balance returns the participant's holding of token.
func (p Participant) Balance(t Token) decimal.Decimal {
	if t == TokenDDP {
		return p.DDPBalance
	}
	return p.USDCBalance
}

// SetupConfig seeds a ledger directly from pool reserves and player
// templates, bypassing the allocation engine.
type SetupConfig struct {
	PoolDDP    decimal.Decimal `json:"pool_ddp"`
	PoolUSDC   decimal.Decimal `json:"pool_usdc"`
	WhaleDDP   decimal.Decimal `json:"whale_ddp"`
	WhaleUSDC  decimal.Decimal `json:"whale_usdc"`
	PlayerDDP  decimal.Decimal `json:"player_ddp"`
	PlayerUSDC decimal.Decimal `json:"player_usdc"`
	NumPlayers int             `json:"num_players"`
}

// OperationType selects the exchange operation.
type OperationType string

const (
	OpSwap            OperationType = "swap"
	OpAddLiquidity    OperationType = "add_liquidity"
	OpRemoveLiquidity OperationType = "remove_liquidity"
)

// Operation is one user action against the pool.
//
// Swap uses Token and Amount. AddLiquidity uses Token and Amount; OtherAmount
// is only read when the pool is empty and both sides must be given. Remove
// uses Percent of the participant's LP holdings.
type Operation struct {
	Type          OperationType   `json:"type"`
	ParticipantID int             `json:"participant_id"`
	Token         Token           `json:"token,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OtherAmount   decimal.Decimal `json:"other_amount"`
	Percent       decimal.Decimal `json:"percent"`
}

// PoolDelta is the signed change applied to the AmmPool row.
type PoolDelta struct {
	DDP  decimal.Decimal `json:"ddp"`
	USDC decimal.Decimal `json:"usdc"`
}

// ParticipantDelta is the signed change applied to the acting participant.
type ParticipantDelta struct {
	DDP      decimal.Decimal `json:"ddp"`
	USDC     decimal.Decimal `json:"usdc"`
	LPTokens decimal.Decimal `json:"lp_tokens"`
}

// Result is a fully computed operation: the deltas to apply plus the quote
// details shown in previews.
type Result struct {
	Type             OperationType    `json:"type"`
	ParticipantID    int              `json:"participant_id"`
	PoolDelta        PoolDelta        `json:"pool_delta"`
	ParticipantDelta ParticipantDelta `json:"participant_delta"`

	// Swap
	InputToken     Token           `json:"input_token,omitempty"`
	InputAmount    decimal.Decimal `json:"input_amount"`
	OutputToken    Token           `json:"output_token,omitempty"`
	OutputAmount   decimal.Decimal `json:"output_amount"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	HighImpact     bool            `json:"high_impact"`

	// Liquidity
	DDPAmount    decimal.Decimal `json:"ddp_amount"`
	USDCAmount   decimal.Decimal `json:"usdc_amount"`
	LPMinted     decimal.Decimal `json:"lp_minted"`
	LPBurned     decimal.Decimal `json:"lp_burned"`
	PoolSharePct decimal.Decimal `json:"pool_share_pct"`

	SpotPriceBefore decimal.Decimal `json:"spot_price_before"`
	SpotPriceAfter  decimal.Decimal `json:"spot_price_after"`
}

// Session is one simulation run owned by the service: its configuration,
// derived breakdown, and the current ledger snapshot.
type Session struct {
	ID           string               `json:"id"`
	Config       *Config              `json:"config,omitempty"`
	Setup        *SetupConfig         `json:"setup,omitempty"`
	Breakdown    *AllocationBreakdown `json:"breakdown,omitempty"`
	FeeRate      decimal.Decimal      `json:"fee_rate"`
	Participants []Participant        `json:"participants"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Clone returns a deep copy so stores never share participant slices with
// callers.
func (s *Session) Clone() *Session {
	c := *s
	c.Participants = append([]Participant(nil), s.Participants...)
	if s.Config != nil {
		cfg := *s.Config
		c.Config = &cfg
	}
	if s.Setup != nil {
		setup := *s.Setup
		c.Setup = &setup
	}
	if s.Breakdown != nil {
		b := *s.Breakdown
		c.Breakdown = &b
	}
	return &c
}

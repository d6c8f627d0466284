// Package ledger holds the participant rows of one simulation run.
//
// A Ledger is built once from an allocation (or a setup preset) and is then
// mutated only through Apply with a fully computed exchange result. It is
// not safe for concurrent use: its owner serialises every read-compute-apply
// step behind a single lock.
package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/validation"
)

// Ledger is the in-memory participant collection. Exactly one row has role
// AmmPool; its balances are the pool reserves.
type Ledger struct {
	rows  []model.Participant
	index map[int]int // participant id → position in rows
	pool  int
}

// New validates the rows and takes a private copy of them.
func New(rows []model.Participant) (*Ledger, error) {
	l := &Ledger{
		rows:  append([]model.Participant(nil), rows...),
		index: make(map[int]int, len(rows)),
		pool:  -1,
	}

	for i, p := range l.rows {
		if _, dup := l.index[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate participant id %d", validation.ErrConfig, p.ID)
		}
		l.index[p.ID] = i

		if p.LPTokens.IsNegative() {
			return nil, fmt.Errorf("%w: participant %d has negative LP tokens", validation.ErrConfig, p.ID)
		}
		if p.Role != model.RoleAmmPool {
			continue
		}
		if l.pool >= 0 {
			return nil, fmt.Errorf("%w: more than one AMM pool participant", validation.ErrConfig)
		}
		if p.DDPBalance.IsNegative() || p.USDCBalance.IsNegative() {
			return nil, fmt.Errorf("%w: pool reserves must not be negative", validation.ErrConfig)
		}
		l.pool = i
	}

	if l.pool < 0 {
		return nil, fmt.Errorf("%w: ledger has no AMM pool participant", validation.ErrConfig)
	}
	return l, nil
}

// Participants returns a copy of all rows in display order.
func (l *Ledger) Participants() []model.Participant {
	return append([]model.Participant(nil), l.rows...)
}

// Len returns the number of rows.
func (l *Ledger) Len() int { return len(l.rows) }

// Pool returns the AMM pool row.
func (l *Ledger) Pool() model.Participant {
	return l.rows[l.pool]
}

// Reserves returns the pool's DDP and USDC holdings.
func (l *Ledger) Reserves() (ddp, usdc decimal.Decimal) {
	p := l.rows[l.pool]
	return p.DDPBalance, p.USDCBalance
}

// Participant looks a row up by id.
func (l *Ledger) Participant(id int) (model.Participant, error) {
	i, ok := l.index[id]
	if !ok {
		return model.Participant{}, fmt.Errorf("%w: id %d", validation.ErrUnknownParticipant, id)
	}
	return l.rows[i], nil
}

// Trader looks up a row that may act against the pool: any participant
// except the pool itself.
func (l *Ledger) Trader(id int) (model.Participant, error) {
	p, err := l.Participant(id)
	if err != nil {
		return p, err
	}
	if p.Role == model.RoleAmmPool {
		return p, fmt.Errorf("%w: the pool cannot trade against itself", validation.ErrInvalidAmount)
	}
	return p, nil
}

// TotalLPSupply sums LP tokens across every row, the pool's seed included.
func (l *Ledger) TotalLPSupply() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.rows {
		total = total.Add(p.LPTokens)
	}
	return total
}

// TotalDDP sums DDP balances across every row.
func (l *Ledger) TotalDDP() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.rows {
		total = total.Add(p.DDPBalance)
	}
	return total
}

// Apply commits an exchange result to the pool row and the acting
// participant. All checks run before either row is touched, so a rejected
// result leaves the ledger unchanged.
func (l *Ledger) Apply(res model.Result) error {
	i, ok := l.index[res.ParticipantID]
	if !ok {
		return fmt.Errorf("%w: id %d", validation.ErrUnknownParticipant, res.ParticipantID)
	}
	if i == l.pool {
		return fmt.Errorf("%w: the pool cannot trade against itself", validation.ErrInvalidAmount)
	}

	pool := l.rows[l.pool]
	pool.DDPBalance = pool.DDPBalance.Add(res.PoolDelta.DDP)
	pool.USDCBalance = pool.USDCBalance.Add(res.PoolDelta.USDC)
	if pool.DDPBalance.IsNegative() || pool.USDCBalance.IsNegative() {
		return fmt.Errorf("%w: pool reserves would go negative", validation.ErrInsufficientBalance)
	}

	p := l.rows[i]
	p.DDPBalance = p.DDPBalance.Add(res.ParticipantDelta.DDP)
	p.USDCBalance = p.USDCBalance.Add(res.ParticipantDelta.USDC)
	p.LPTokens = p.LPTokens.Add(res.ParticipantDelta.LPTokens)
	if p.DDPBalance.IsNegative() {
		return fmt.Errorf("%w: DDP balance of participant %d would go negative",
			validation.ErrInsufficientBalance, p.ID)
	}
	if p.LPTokens.IsNegative() {
		return fmt.Errorf("%w: LP balance of participant %d would go negative",
			validation.ErrInsufficientBalance, p.ID)
	}

	l.rows[l.pool] = pool
	l.rows[i] = p
	return nil
}

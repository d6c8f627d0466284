// Package sim provides the session service: it owns simulation sessions,
// runs allocation and exchange operations against their ledgers, persists
// the resulting snapshots, and exposes all of it over HTTP.
//
// All monetary values use shopspring/decimal, never float64.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/allocation"
	"github.com/atmx/ddp-sim/internal/amm"
	"github.com/atmx/ddp-sim/internal/ledger"
	"github.com/atmx/ddp-sim/internal/metrics"
	"github.com/atmx/ddp-sim/internal/model"
	"github.com/atmx/ddp-sim/internal/store"
	"github.com/atmx/ddp-sim/internal/validation"
)

// Service manages sessions. Uses a mutex to serialise every
// read-quote-apply-save step (single-instance). For horizontal scaling,
// replace with distributed locking or optimistic concurrency on the session
// row.
type Service struct {
	store    store.Store
	defaults model.Config
	feeRate  decimal.Decimal
	limiter  *validation.ImpactLimiter
	mu       sync.Mutex
	wsHub    *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a session service. defaults fills any configuration
// field a request leaves out; feeRate and limiter apply to new sessions.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, defaults model.Config, feeRate decimal.Decimal, limiter *validation.ImpactLimiter, hub *WSHub) (*Service, error) {
	if err := validation.FeeRate(feeRate); err != nil {
		return nil, err
	}
	return &Service{
		store:    st,
		defaults: defaults,
		feeRate:  feeRate,
		limiter:  limiter,
		wsHub:    hub,
	}, nil
}

// --- Request/Response types ---

// CreateSessionRequest is the JSON body for session creation. Config and
// Setup are mutually exclusive and are merged over the service defaults, so
// a partial document only overrides the fields it names. With neither, the
// default allocation is used.
type CreateSessionRequest struct {
	Config  json.RawMessage  `json:"config,omitempty"`
	Setup   json.RawMessage  `json:"setup,omitempty"`
	FeeRate *decimal.Decimal `json:"fee_rate,omitempty"`
}

// AllocationResponse is returned by the allocation preview.
type AllocationResponse struct {
	Config       model.Config               `json:"config"`
	Breakdown    *model.AllocationBreakdown `json:"breakdown"`
	Participants []model.Participant        `json:"participants"`
}

// SessionView is a session together with its current pool state.
type SessionView struct {
	*model.Session
	Pool amm.PoolState `json:"pool"`
}

// OperationResponse is returned by previews and executions. For a preview
// Pool and Participant are the unchanged current state.
type OperationResponse struct {
	SessionID   string            `json:"session_id"`
	Result      model.Result      `json:"result"`
	Pool        amm.PoolState     `json:"pool"`
	Participant model.Participant `json:"participant"`
}

// --- Core operations ---

// Allocate computes an allocation and its participant rows without storing
// anything.
func (s *Service) Allocate(raw json.RawMessage) (*AllocationResponse, error) {
	cfg, err := mergeConfig(s.defaults, raw)
	if err != nil {
		return nil, err
	}
	b, err := allocation.Compute(cfg)
	if err != nil {
		return nil, err
	}
	return &AllocationResponse{
		Config:       cfg,
		Breakdown:    b,
		Participants: allocation.BuildLedger(cfg, b),
	}, nil
}

// CreateSession builds a ledger from the request and stores it under a new
// session id.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionView, error) {
	fee := s.feeRate
	if req.FeeRate != nil {
		fee = *req.FeeRate
	}
	engine, err := amm.NewEngine(fee, s.limiter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &model.Session{
		ID:        uuid.New().String(),
		FeeRate:   fee,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch {
	case len(req.Config) > 0 && len(req.Setup) > 0:
		return nil, fmt.Errorf("%w: config and setup are mutually exclusive", validation.ErrConfig)
	case len(req.Setup) > 0:
		setup, err := mergeSetup(allocation.DefaultSetup(), req.Setup)
		if err != nil {
			return nil, err
		}
		rows, err := allocation.BuildSetupLedger(setup)
		if err != nil {
			return nil, err
		}
		sess.Setup = &setup
		sess.Participants = rows
	default:
		cfg, err := mergeConfig(s.defaults, req.Config)
		if err != nil {
			return nil, err
		}
		b, err := allocation.Compute(cfg)
		if err != nil {
			return nil, err
		}
		sess.Config = &cfg
		sess.Breakdown = b
		sess.Participants = allocation.BuildLedger(cfg, b)
	}

	l, err := ledger.New(sess.Participants)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	metrics.ActiveSessions.Inc()

	state := engine.State(l)
	slog.Info("session created",
		"session_id", sess.ID,
		"participants", l.Len(),
		"fee_rate", fee.String(),
		"spot_price", state.SpotPrice.String(),
		"from_setup", sess.Setup != nil,
	)
	s.broadcast(WSMessage{Type: "session_created", SessionID: sess.ID, Pool: &state})

	return &SessionView{Session: sess, Pool: state}, nil
}

// GetSession loads a session and summarises its pool.
func (s *Service) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sess, l, engine, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SessionView{Session: sess, Pool: engine.State(l)}, nil
}

// ListSessions returns all stored sessions.
func (s *Service) ListSessions(ctx context.Context) ([]model.Session, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.Session{}
	}
	return sessions, nil
}

// Reconfigure recomputes the allocation of a session and rebuilds its
// ledger from scratch. Prior trades are discarded. The new configuration is
// merged over the session's current one (or the defaults for a session
// seeded from a setup preset).
func (s *Service) Reconfigure(ctx context.Context, id string, raw json.RawMessage) (*SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _, engine, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	base := s.defaults
	if sess.Config != nil {
		base = *sess.Config
	}
	cfg, err := mergeConfig(base, raw)
	if err != nil {
		return nil, err
	}
	b, err := allocation.Compute(cfg)
	if err != nil {
		return nil, err
	}
	rows := allocation.BuildLedger(cfg, b)
	l, err := ledger.New(rows)
	if err != nil {
		return nil, err
	}

	sess.Config = &cfg
	sess.Setup = nil
	sess.Breakdown = b
	sess.Participants = rows
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	state := engine.State(l)
	slog.Info("session reconfigured",
		"session_id", sess.ID,
		"participants", l.Len(),
		"spot_price", state.SpotPrice.String(),
	)
	s.broadcast(WSMessage{Type: "session_reconfigured", SessionID: sess.ID, Pool: &state})

	return &SessionView{Session: sess, Pool: state}, nil
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	metrics.ActiveSessions.Dec()
	slog.Info("session deleted", "session_id", id)
	s.broadcast(WSMessage{Type: "session_deleted", SessionID: id})
	return nil
}

// Pool returns the pool state of a session.
func (s *Service) Pool(ctx context.Context, id string) (amm.PoolState, error) {
	_, l, engine, err := s.load(ctx, id)
	if err != nil {
		return amm.PoolState{}, err
	}
	return engine.State(l), nil
}

// Portfolio values one participant of a session at the current spot price.
func (s *Service) Portfolio(ctx context.Context, id string, participantID int) (amm.Portfolio, error) {
	_, l, _, err := s.load(ctx, id)
	if err != nil {
		return amm.Portfolio{}, err
	}
	return amm.ValuePortfolio(l, participantID)
}

// Preview quotes op against the session without changing it.
func (s *Service) Preview(ctx context.Context, id string, op model.Operation) (*OperationResponse, error) {
	_, l, engine, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := engine.Simulate(l, op)
	if err != nil {
		return nil, err
	}
	p, _ := l.Participant(op.ParticipantID)
	return &OperationResponse{SessionID: id, Result: res, Pool: engine.State(l), Participant: p}, nil
}

// Execute quotes op, applies it to the session ledger and saves the
// snapshot as one step. On any error the stored session is unchanged.
func (s *Service) Execute(ctx context.Context, id string, op model.Operation) (*OperationResponse, error) {
	start := time.Now()

	// Serialise execution.
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, l, engine, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := engine.Execute(l, op)
	if err != nil {
		s.recordRejection(id, op, err)
		return nil, err
	}

	sess.Participants = l.Participants()
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session %s: %w", id, err)
	}

	state := engine.State(l)
	p, _ := l.Participant(op.ParticipantID)

	opType := string(op.Type)
	metrics.OperationsTotal.WithLabelValues(opType).Inc()
	metrics.OperationLatency.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	if op.Type == model.OpSwap {
		metrics.SwapVolume.WithLabelValues(string(res.InputToken)).Add(res.InputAmount.InexactFloat64())
		if res.HighImpact {
			metrics.HighImpactSwaps.Inc()
		}
	}

	slog.Info("operation executed",
		"session_id", id,
		"participant_id", op.ParticipantID,
		"type", opType,
		"pool_ddp_delta", res.PoolDelta.DDP.String(),
		"pool_usdc_delta", res.PoolDelta.USDC.String(),
		"lp_delta", res.ParticipantDelta.LPTokens.String(),
		"price_impact_pct", res.PriceImpactPct.StringFixed(4),
		"new_spot_price", state.SpotPrice.String(),
	)
	if res.HighImpact {
		slog.Warn("high price impact swap",
			"session_id", id,
			"participant_id", op.ParticipantID,
			"price_impact_pct", res.PriceImpactPct.StringFixed(2),
		)
	}

	s.broadcast(WSMessage{
		Type:          "operation_executed",
		SessionID:     id,
		Operation:     op.Type,
		ParticipantID: op.ParticipantID,
		Result:        &res,
		Pool:          &state,
	})

	return &OperationResponse{SessionID: id, Result: res, Pool: state, Participant: p}, nil
}

// RefreshSessionGauge sets the active-session gauge from the store, for
// stores that outlive the process.
func (s *Service) RefreshSessionGauge(ctx context.Context) error {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return err
	}
	metrics.ActiveSessions.Set(float64(len(sessions)))
	return nil
}

// load reads a session and rebuilds its ledger and engine.
func (s *Service) load(ctx context.Context, id string) (*model.Session, *ledger.Ledger, *amm.Engine, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	l, err := ledger.New(sess.Participants)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("session %s: %w", id, err)
	}
	engine, err := amm.NewEngine(sess.FeeRate, s.limiter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("session %s: %w", id, err)
	}
	return sess, l, engine, nil
}

func (s *Service) recordRejection(id string, op model.Operation, err error) {
	kind := errorKind(err)
	metrics.OperationErrors.WithLabelValues(string(op.Type), kind).Inc()
	if errors.Is(err, validation.ErrPriceImpactExceeded) {
		metrics.PriceImpactRejections.Inc()
	}
	slog.Warn("operation rejected",
		"session_id", id,
		"participant_id", op.ParticipantID,
		"type", string(op.Type),
		"kind", kind,
		"err", err,
	)
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// mergeConfig decodes a partial JSON configuration over base.
func mergeConfig(base model.Config, raw json.RawMessage) (model.Config, error) {
	cfg := base
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.Config{}, fmt.Errorf("%w: %v", validation.ErrConfig, err)
	}
	return cfg, nil
}

// mergeSetup decodes a partial JSON setup preset over base.
func mergeSetup(base model.SetupConfig, raw json.RawMessage) (model.SetupConfig, error) {
	setup := base
	if err := json.Unmarshal(raw, &setup); err != nil {
		return model.SetupConfig{}, fmt.Errorf("%w: %v", validation.ErrConfig, err)
	}
	return setup, nil
}

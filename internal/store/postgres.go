package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atmx/ddp-sim/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// configuration and breakdown documents are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// ConnectPostgres opens a pool and pings it, retrying with backoff while the
// database comes up.
func ConnectPostgres(ctx context.Context, url string, attempts uint) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := retry.Do(func() error {
		p, err := pgxpool.New(ctx, url)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("database not ready, retrying", "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	config     JSONB,
	setup      JSONB,
	breakdown  JSONB,
	fee_rate   NUMERIC NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
	session_id   TEXT NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	id           INTEGER NOT NULL,
	position     INTEGER NOT NULL,
	name         TEXT NOT NULL,
	role         TEXT NOT NULL,
	ddp_balance  NUMERIC NOT NULL,
	usdc_balance NUMERIC NOT NULL,
	lp_tokens    NUMERIC NOT NULL,
	PRIMARY KEY (session_id, id)
);`

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.Session) error {
	cfg, setup, breakdown, err := marshalDocs(sess)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, config, setup, breakdown, fee_rate, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7)`,
		sess.ID, cfg, setup, breakdown, sess.FeeRate.String(), sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	if err := insertParticipants(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	var sess model.Session
	var cfg, setup, breakdown []byte
	var fee string

	err := s.pool.QueryRow(ctx,
		`SELECT id, config, setup, breakdown, fee_rate::TEXT, created_at, updated_at
		 FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &cfg, &setup, &breakdown, &fee, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if err := unmarshalDocs(&sess, cfg, setup, breakdown); err != nil {
		return nil, err
	}
	sess.FeeRate, _ = decimal.NewFromString(fee)

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, ddp_balance::TEXT, usdc_balance::TEXT, lp_tokens::TEXT
		 FROM participants WHERE session_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Participants, err = scanParticipants(rows)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions returns session headers only; participant rows are loaded
// by GetSession.
func (s *PostgresStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, config, setup, breakdown, fee_rate::TEXT, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		var sess model.Session
		var cfg, setup, breakdown []byte
		var fee string
		if err := rows.Scan(&sess.ID, &cfg, &setup, &breakdown, &fee,
			&sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		if err := unmarshalDocs(&sess, cfg, setup, breakdown); err != nil {
			return nil, err
		}
		sess.FeeRate, _ = decimal.NewFromString(fee)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) SaveSession(ctx context.Context, sess *model.Session) error {
	cfg, setup, breakdown, err := marshalDocs(sess)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sessions
		 SET config = $2, setup = $3, breakdown = $4, fee_rate = $5::NUMERIC, updated_at = $6
		 WHERE id = $1`,
		sess.ID, cfg, setup, breakdown, sess.FeeRate.String(), sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sess.ID)
	}

	// Rows are replaced wholesale: a reconfigure may change their count.
	if _, err := tx.Exec(ctx, `DELETE FROM participants WHERE session_id = $1`, sess.ID); err != nil {
		return err
	}
	if err := insertParticipants(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func insertParticipants(ctx context.Context, tx pgx.Tx, sess *model.Session) error {
	batch := &pgx.Batch{}
	for i, p := range sess.Participants {
		batch.Queue(
			`INSERT INTO participants (session_id, id, position, name, role, ddp_balance, usdc_balance, lp_tokens)
			 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC)`,
			sess.ID, p.ID, i, p.Name, string(p.Role),
			p.DDPBalance.String(), p.USDCBalance.String(), p.LPTokens.String(),
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert participants for %s: %w", sess.ID, err)
	}
	return nil
}

// pgxRows is the subset of pgx.Rows used by the scanner.
type pgxRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanParticipants(rows pgxRows) ([]model.Participant, error) {
	var participants []model.Participant
	for rows.Next() {
		var p model.Participant
		var role, ddpS, usdcS, lpS string

		if err := rows.Scan(&p.ID, &p.Name, &role, &ddpS, &usdcS, &lpS); err != nil {
			return nil, err
		}

		p.Role = model.Role(role)
		p.DDPBalance, _ = decimal.NewFromString(ddpS)
		p.USDCBalance, _ = decimal.NewFromString(usdcS)
		p.LPTokens, _ = decimal.NewFromString(lpS)

		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// marshalDocs encodes the optional JSONB columns. A nil document is stored
// as SQL NULL.
func marshalDocs(sess *model.Session) (cfg, setup, breakdown []byte, err error) {
	if sess.Config != nil {
		if cfg, err = json.Marshal(sess.Config); err != nil {
			return nil, nil, nil, fmt.Errorf("encode config: %w", err)
		}
	}
	if sess.Setup != nil {
		if setup, err = json.Marshal(sess.Setup); err != nil {
			return nil, nil, nil, fmt.Errorf("encode setup: %w", err)
		}
	}
	if sess.Breakdown != nil {
		if breakdown, err = json.Marshal(sess.Breakdown); err != nil {
			return nil, nil, nil, fmt.Errorf("encode breakdown: %w", err)
		}
	}
	return cfg, setup, breakdown, nil
}

func unmarshalDocs(sess *model.Session, cfg, setup, breakdown []byte) error {
	if cfg != nil {
		sess.Config = &model.Config{}
		if err := json.Unmarshal(cfg, sess.Config); err != nil {
			return fmt.Errorf("decode config of %s: %w", sess.ID, err)
		}
	}
	if setup != nil {
		sess.Setup = &model.SetupConfig{}
		if err := json.Unmarshal(setup, sess.Setup); err != nil {
			return fmt.Errorf("decode setup of %s: %w", sess.ID, err)
		}
	}
	if breakdown != nil {
		sess.Breakdown = &model.AllocationBreakdown{}
		if err := json.Unmarshal(breakdown, sess.Breakdown); err != nil {
			return fmt.Errorf("decode breakdown of %s: %w", sess.ID, err)
		}
	}
	return nil
}

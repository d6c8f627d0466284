// Package store defines the persistence interface for simulation sessions.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and the default server mode).
package store

import (
	"context"
	"errors"

	"github.com/atmx/ddp-sim/internal/model"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Store persists the current snapshot of each session. Operation history is
// not kept: SaveSession replaces the participant rows wholesale.
type Store interface {
	// CreateSession persists a new session. The id must be unused.
	CreateSession(ctx context.Context, s *model.Session) error

	// GetSession retrieves a session by its ID.
	GetSession(ctx context.Context, id string) (*model.Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]model.Session, error)

	// SaveSession overwrites the configuration, breakdown and participant
	// rows of an existing session.
	SaveSession(ctx context.Context, s *model.Session) error

	// DeleteSession removes a session and its participants.
	DeleteSession(ctx context.Context, id string) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*CachedStore)(nil)
)

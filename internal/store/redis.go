package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atmx/ddp-sim/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and refresh or invalidate the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if err := s.primary.CreateSession(ctx, sess); err != nil {
		return err
	}
	s.cacheSession(ctx, sess)
	return nil
}

func (s *CachedStore) SaveSession(ctx context.Context, sess *model.Session) error {
	if err := s.primary.SaveSession(ctx, sess); err != nil {
		// The primary may have partially failed; drop the cached copy so the
		// next read goes to the source of truth.
		s.rdb.Del(ctx, sessionKey(sess.ID))
		return err
	}
	s.cacheSession(ctx, sess)
	return nil
}

func (s *CachedStore) DeleteSession(ctx context.Context, id string) error {
	if err := s.primary.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.rdb.Del(ctx, sessionKey(id))
	return nil
}

// --- Read-through ---

func (s *CachedStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err == nil {
		var sess model.Session
		if json.Unmarshal(data, &sess) == nil {
			return &sess, nil
		}
	}

	// Cache miss: read from primary.
	sess, err := s.primary.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSession(ctx, sess)
	return sess, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.primary.ListSessions(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSession(ctx context.Context, sess *model.Session) {
	if data, err := json.Marshal(sess); err == nil {
		s.rdb.Set(ctx, sessionKey(sess.ID), data, s.ttl)
	}
}

func sessionKey(id string) string { return fmt.Sprintf("ddpsim:session:%s", id) }

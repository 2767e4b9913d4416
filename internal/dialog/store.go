package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkarpekin/mebelbot/internal/config"
	"github.com/vkarpekin/mebelbot/internal/domain"
)

// SessionStore persists dialog sessions between messages. Get returns
// nil (no error) when the user has no session yet.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*domain.DialogSession, error)
	Put(ctx context.Context, s *domain.DialogSession) error
	Delete(ctx context.Context, userID int64) error
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}

// MapSessionStore is the in-memory single-instance backend.
type MapSessionStore struct {
	mu sync.RWMutex
	m  map[int64]*domain.DialogSession
}

func NewMapSessionStore() *MapSessionStore {
	return &MapSessionStore{m: make(map[int64]*domain.DialogSession)}
}

func (s *MapSessionStore) Get(_ context.Context, userID int64) (*domain.DialogSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[userID], nil
}

func (s *MapSessionStore) Put(_ context.Context, sess *domain.DialogSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sess.UserID] = sess
	return nil
}

func (s *MapSessionStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

// EvictExpired drops sessions idle beyond SessionIdleTTL so abandoned
// dialogs do not accumulate forever.
func (s *MapSessionStore) EvictExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.m {
		if now.Sub(sess.UpdatedAt) > config.SessionIdleTTL {
			delete(s.m, id)
			evicted++
		}
	}
	return evicted, nil
}

// RedisSessionStore keys sessions under dialog:<userID> for
// multi-instance deployments.
type RedisSessionStore struct {
	rdb *redis.Client
}

func NewRedisSessionStore(rdb *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("dialog:%d", userID)
}

func (s *RedisSessionStore) Get(ctx context.Context, userID int64) (*domain.DialogSession, error) {
	data, err := s.rdb.Get(ctx, sessionKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess domain.DialogSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Put(ctx context.Context, sess *domain.DialogSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.UserID), data, config.SessionIdleTTL).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// EvictExpired is a no-op for Redis: key TTLs already bound memory.
func (s *RedisSessionStore) EvictExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkarpekin/mebelbot/internal/config"
)

// Store persists per-user context memories. Get returns nil (no error)
// when the user has no context yet.
type Store interface {
	Get(ctx context.Context, userID int64) (*Memory, error)
	Put(ctx context.Context, m *Memory) error
	Delete(ctx context.Context, userID int64) error
	EvictExpired(ctx context.Context, now time.Time) (int, error)
}

// Touch loads the user's context, replacing it with a fresh empty one
// when it has expired, and stamps the activity time.
func Touch(ctx context.Context, s Store, userID int64, now time.Time) (*Memory, error) {
	m, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Expired(now) {
		m = New(userID, now)
	}
	m.LastActivityAt = now
	return m, nil
}

// MapStore is the in-memory single-instance backend.
type MapStore struct {
	mu sync.RWMutex
	m  map[int64]*Memory
}

func NewMapStore() *MapStore {
	return &MapStore{m: make(map[int64]*Memory)}
}

func (s *MapStore) Get(_ context.Context, userID int64) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.m[userID], nil
}

func (s *MapStore) Put(_ context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[m.UserID] = m
	return nil
}

func (s *MapStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
	return nil
}

func (s *MapStore) EvictExpired(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, m := range s.m {
		if m.Expired(now) {
			delete(s.m, id)
			evicted++
		}
	}
	return evicted, nil
}

// RedisStore keys contexts under ctx:<userID> with the context TTL, so
// Redis itself handles expiry for multi-instance deployments.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(userID int64) string {
	return fmt.Sprintf("ctx:%d", userID)
}

func (s *RedisStore) Get(ctx context.Context, userID int64) (*Memory, error) {
	data, err := s.rdb.Get(ctx, redisKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get context: %w", err)
	}
	var m Memory
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal context: %w", err)
	}
	return &m, nil
}

func (s *RedisStore) Put(ctx context.Context, m *Memory) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(m.UserID), data, config.ContextTTL).Err(); err != nil {
		return fmt.Errorf("put context: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID int64) error {
	if err := s.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete context: %w", err)
	}
	return nil
}

// EvictExpired is a no-op for Redis: key TTLs already bound memory.
func (s *RedisStore) EvictExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

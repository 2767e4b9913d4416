package service

import (
	"sync"
	"time"

	"github.com/vkarpekin/mebelbot/internal/domain"
)

// StagesCache holds the configured stage list for a while; the pipeline
// changes rarely but is read on almost every dialog turn.
type StagesCache struct {
	mu       sync.RWMutex
	stages   []domain.Stage
	cachedAt time.Time
	ttl      time.Duration
}

func NewStagesCache(ttl time.Duration) *StagesCache {
	return &StagesCache{ttl: ttl}
}

func (c *StagesCache) Get() []domain.Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.stages == nil || time.Since(c.cachedAt) > c.ttl {
		return nil
	}
	return c.stages
}

func (c *StagesCache) Set(stages []domain.Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = stages
	c.cachedAt = time.Now()
}

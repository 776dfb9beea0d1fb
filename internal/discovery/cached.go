package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ttlworker "github.com/FloatTech/ttl"

	"octogrowl/internal/growl"
	logx "octogrowl/pkg/logx"
)

const (
	DefaultCacheTTL = 10 * time.Minute
	RefreshTaskName = "discovery.refresh"

	cacheKey = "instances"
)

// Scheduler registers recurring jobs. *scheduler.Service satisfies it.
type Scheduler interface {
	AddSchedule(name, schedule string, timeout time.Duration, job func(ctx context.Context) error) error
}

// Cached serves the last successful browse of src until it expires. A
// failed browse is logged and leaves the previous result in place.
//
// Close releases the cache's expiry goroutine. A closed Cached keeps
// answering Browse straight from src.
type Cached struct {
	src growl.DiscoveryBridge
	log logx.Logger

	mu     sync.RWMutex
	cache  *ttlworker.Cache[string, []growl.DiscoveryRecord]
	closed bool

	refreshes atomic.Uint64
	failures  atomic.Uint64
}

func NewCached(src growl.DiscoveryBridge, ttl time.Duration, log logx.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		src:   src,
		log:   log.With(logx.String("comp", "discovery")),
		cache: ttlworker.NewCache[string, []growl.DiscoveryRecord](ttl),
	}
}

// Browse returns the cached result, browsing src on a miss.
func (c *Cached) Browse(ctx context.Context) ([]growl.DiscoveryRecord, error) {
	if recs, ok := c.cached(); ok {
		return recs, nil
	}
	return c.refresh(ctx)
}

// Refresh browses src and stores the result.
func (c *Cached) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

func (c *Cached) refresh(ctx context.Context) ([]growl.DiscoveryRecord, error) {
	c.refreshes.Add(1)
	recs, err := c.src.Browse(ctx)
	if err != nil {
		c.failures.Add(1)
		c.log.Warn("receiver browse failed; keeping last result", logx.Err(err))
		return nil, err
	}
	if recs == nil {
		recs = []growl.DiscoveryRecord{}
	}
	c.mu.RLock()
	if !c.closed {
		c.cache.Set(cacheKey, recs)
	}
	c.mu.RUnlock()
	c.log.Debug("receiver browse refreshed", logx.Int("instances", len(recs)))
	return recs, nil
}

func (c *Cached) cached() ([]growl.DiscoveryRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false
	}
	recs := c.cache.Get(cacheKey)
	return recs, recs != nil
}

// Invalidate drops the cached result.
func (c *Cached) Invalidate() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.closed {
		c.cache.Delete(cacheKey)
	}
}

// Close stops the cache. It is safe to call more than once and concurrently
// with Browse.
func (c *Cached) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cache.Destroy()
}

// Stats reports refresh attempts and failures.
func (c *Cached) Stats() (refreshes, failures uint64) {
	return c.refreshes.Load(), c.failures.Load()
}

// Schedule registers a recurring Refresh on s.
func (c *Cached) Schedule(s Scheduler, schedule string, timeout time.Duration) error {
	return s.AddSchedule(RefreshTaskName, schedule, timeout, c.Refresh)
}

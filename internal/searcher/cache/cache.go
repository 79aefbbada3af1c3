// Package cache stores ranked search results in Redis, keyed by the
// process epoch, the normalized query, the limit and the index generation
// they were computed against.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/portal-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/portal-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/portal-search/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of *pkgredis.Client the cache uses. Get reports a
// missing key with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	epoch     string
	store     Store
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	group     singleflight.Group
	logger    *slog.Logger
	hits      atomic.Int64
	misses    atomic.Int64
}

type Option func(*QueryCache)

// WithBreaker routes every store call through cb. An open circuit turns
// reads into misses and skips writes.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *QueryCache) { c.breaker = cb }
}

// WithMetrics counts hits and misses in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// WithOpTimeout bounds each store round trip.
func WithOpTimeout(d time.Duration) Option {
	return func(c *QueryCache) { c.opTimeout = d }
}

func New(store Store, ttl time.Duration, opts ...Option) *QueryCache {
	c := &QueryCache{
		epoch:     uuid.NewString(),
		store:     store,
		ttl:       ttl,
		opTimeout: 100 * time.Millisecond,
		logger:    slog.Default().With("component", "query-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached results for query at generation. Store failures
// are logged and reported as a miss.
func (c *QueryCache) Get(ctx context.Context, query string, limit int, generation uint64) ([]ranker.Result, bool) {
	key := BuildKey(c.epoch, query, limit, generation)
	var data string
	found := false
	err := c.call(ctx, "cache-get", func(ctx context.Context) error {
		v, err := c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		if err != nil {
			return err
		}
		data, found = v, true
		return nil
	})
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
	}
	if !found {
		c.recordMiss()
		return nil, false
	}
	var results []ranker.Result
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return results, true
}

// Set stores results for query at generation. Failures are logged only.
func (c *QueryCache) Set(ctx context.Context, query string, limit int, generation uint64, results []ranker.Result) {
	key := BuildKey(c.epoch, query, limit, generation)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.call(ctx, "cache-set", func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves from the cache or runs compute once per key across
// concurrent callers and stores its answer. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(ctx context.Context, query string, limit int, generation uint64, compute func() []ranker.Result) ([]ranker.Result, bool) {
	if results, ok := c.Get(ctx, query, limit, generation); ok {
		return results, true
	}
	key := BuildKey(c.epoch, query, limit, generation)
	val, _, _ := c.group.Do(key, func() (interface{}, error) {
		results := compute()
		c.Set(context.WithoutCancel(ctx), query, limit, generation, results)
		return results, nil
	})
	return val.([]ranker.Result), false
}

// Invalidate removes every cached search entry.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.call(ctx, "cache-invalidate", func(ctx context.Context) error {
		n, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
		deleted = n
		return err
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the hit and miss counts since start.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BreakerState reports the circuit state, or "none" without a breaker.
func (c *QueryCache) BreakerState() string {
	if c.breaker == nil {
		return "none"
	}
	return c.breaker.GetState().String()
}

func (c *QueryCache) call(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	run := func() error {
		return resilience.WithTimeout(ctx, c.opTimeout, name, fn)
	}
	if c.breaker == nil {
		return run()
	}
	err := c.breaker.Execute(run)
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Debug("cache bypassed", "op", name, "error", err)
	}
	return err
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// BuildKey derives the Redis key. Queries that tokenize alike after case
// and whitespace folding share a key; the generation separates answers
// computed before and after a catalog change. Generations restart with the
// process, so epoch must be unique per QueryCache.
func BuildKey(epoch, query string, limit int, generation uint64) string {
	raw := fmt.Sprintf("%s|%s|limit=%d|gen=%d", epoch, normalizeQuery(query), limit, generation)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeQuery folds case and whitespace only. Token order and repeats
// affect relevance, so they are kept.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

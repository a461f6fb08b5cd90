// Package cache holds the last successful scrape result in memory and
// serializes refreshes so concurrent readers never trigger duplicate scrapes.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/metrics"
	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// State is the cache lifecycle state.
type State string

// Cache states.
const (
	StateEmpty      State = "empty"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
)

// Runner executes one full scrape. The orchestrator satisfies this.
type Runner interface {
	Run(ctx context.Context) (scrape.ScrapeResult, error)
}

// Config controls refresh execution.
type Config struct {
	// RefreshTimeout bounds one refresh run; 0 means no bound.
	RefreshTimeout time.Duration
}

// Cache is an injectable service with its own lifecycle, not ambient global
// state. A refresh in flight is shared: callers that request one while it is
// running wait for it and observe its outcome instead of starting a second.
type Cache struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	current   *scrape.ScrapeResult
	fetchedAt time.Time
	inflight  *refreshCall
}

// refreshCall is one shared refresh execution.
type refreshCall struct {
	done   chan struct{}
	result scrape.ScrapeResult
	err    error
}

// New builds a Cache in the EMPTY state.
func New(runner Runner, cfg Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{runner: runner, cfg: cfg, logger: logger}
}

// State reports the current lifecycle state.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.inflight != nil:
		return StateRefreshing
	case c.current != nil:
		return StateReady
	default:
		return StateEmpty
	}
}

// FetchedAt returns the completion time of the cached result, zero when empty.
func (c *Cache) FetchedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchedAt
}

// Get returns the cached result, refreshing first when forceRefresh is set or
// no result exists yet. On refresh failure the stale prior result is returned
// when available; the error surfaces only when there is nothing to serve.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (scrape.ScrapeResult, error) {
	c.mu.Lock()
	if !forceRefresh && c.current != nil {
		result := *c.current
		c.mu.Unlock()
		return result, nil
	}

	// Join a refresh already in flight rather than starting a second one.
	if call := c.inflight; call != nil {
		c.mu.Unlock()
		return c.await(ctx, call)
	}

	call := &refreshCall{done: make(chan struct{})}
	c.inflight = call
	c.mu.Unlock()

	go c.refresh(call)
	return c.await(ctx, call)
}

// await blocks until the shared refresh finishes, then resolves its outcome
// for this caller.
func (c *Cache) await(ctx context.Context, call *refreshCall) (scrape.ScrapeResult, error) {
	select {
	case <-call.done:
	case <-ctx.Done():
		return scrape.ScrapeResult{}, fmt.Errorf("wait for refresh: %w", ctx.Err())
	}

	if call.err == nil {
		return call.result, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		c.logger.Warn("refresh failed, serving stale result",
			zap.Error(call.err),
			zap.Time("fetched_at", c.fetchedAt),
		)
		return *c.current, nil
	}
	return scrape.ScrapeResult{}, fmt.Errorf("refresh scrape: %w", call.err)
}

// refresh runs the scrape detached from any single caller's context, so an
// aborted HTTP request cannot cancel a refresh other callers are waiting on.
// A started refresh runs to completion or failure; there is no mid-run abort.
func (c *Cache) refresh(call *refreshCall) {
	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if c.cfg.RefreshTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RefreshTimeout)
	}
	defer cancel()

	result, err := c.runner.Run(ctx)
	if err == nil && len(result.Records) == 0 {
		err = fmt.Errorf("scrape produced no records")
	}

	c.mu.Lock()
	call.result = result
	call.err = err
	if err == nil {
		c.current = &result
		c.fetchedAt = result.FinishedAt
		metrics.SetCachedProducts(len(result.Records))
		metrics.ObserveCacheRefresh("ok")
	} else {
		metrics.ObserveCacheRefresh("error")
	}
	c.inflight = nil
	c.mu.Unlock()
	close(call.done)
}

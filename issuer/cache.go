package issuer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/metrics"
)

// GenerateFunc produces the outcome for one identity. It runs on a pool worker.
type GenerateFunc func(identity interfaces.Identity) interfaces.Outcome

// Submitter schedules a task without blocking.
type Submitter interface {
	Submit(task func()) error
}

// Cache maps identities to their single in-flight or finished generation.
type Cache struct {
	log      *slog.Logger
	pool     Submitter
	generate GenerateFunc
	metrics  *metrics.Metrics

	mu      sync.Mutex
	entries map[interfaces.Identity]*Pending
}

// NewCache builds the cache. A nil m records into collectors nobody exports.
func NewCache(pool Submitter, generate GenerateFunc, log *slog.Logger, m *metrics.Metrics) *Cache {
	if m == nil {
		m = metrics.NewMetrics("")
	}
	return &Cache{
		log:      log,
		pool:     pool,
		generate: generate,
		metrics:  m,
		entries:  make(map[interfaces.Identity]*Pending),
	}
}

// Obtain returns the generation handle for identity, scheduling a generation
// if none is cached. Concurrent callers for the same identity share a handle.
func (c *Cache) Obtain(identity interfaces.Identity) *Pending {
	c.mu.Lock()
	if pending, ok := c.entries[identity]; ok {
		c.mu.Unlock()
		return pending
	}
	pending := newPending(identity)
	c.entries[identity] = pending
	c.metrics.CacheEntries.Set(float64(len(c.entries)))
	c.mu.Unlock()

	if err := c.pool.Submit(func() { c.run(pending) }); err != nil {
		c.log.Error("Failed to schedule key generation", "identity", identity, "err", err)
		c.evict(pending)
		pending.complete(interfaces.Failed(fmt.Errorf("scheduling generation: %w", err)))
	}
	return pending
}

// Len returns the number of cached identities, in-flight included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) run(pending *Pending) {
	identity := pending.Identity()
	c.metrics.Generations.Inc()
	c.log.Debug("Generating key material", "identity", identity)

	start := time.Now()
	outcome := c.safeGenerate(identity)
	elapsed := time.Since(start)
	c.metrics.GenerationDuration.Observe(elapsed.Seconds())

	if outcome.IsFailure() {
		c.metrics.GenerationFailures.Inc()
		c.log.Error("Key generation failed", "identity", identity, "duration", elapsed, "err", outcome.Err)
		c.evict(pending)
	} else {
		c.log.Info("Issued key material", "identity", identity, "duration", elapsed)
	}

	pending.complete(outcome)
}

func (c *Cache) safeGenerate(identity interfaces.Identity) (outcome interfaces.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = interfaces.Failed(fmt.Errorf("key generation panicked: %v", r))
		}
	}()

	outcome = c.generate(identity)
	if outcome.IsFailure() && outcome.Err == nil {
		outcome.Err = errors.New("no key material produced")
	}
	return outcome
}

// evict drops pending unless it has already been replaced.
func (c *Cache) evict(pending *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if current, ok := c.entries[pending.Identity()]; ok && current == pending {
		delete(c.entries, pending.Identity())
		c.metrics.CacheEntries.Set(float64(len(c.entries)))
	}
}

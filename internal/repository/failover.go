package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bookinggate/internal/domain"

	"github.com/rs/zerolog"
)

// recoveryInterval is how long the primary stays bypassed after a failure.
const recoveryInterval = time.Minute

// FailoverCache uses primary until it errors, then serves from fallback and retries the
// primary once recoveryInterval has passed. Deletes that miss the primary are kept and
// replayed before the primary serves anything again.
type FailoverCache struct {
	primary  domain.Cache
	fallback domain.Cache
	logger   *zerolog.Logger
	isDown   atomic.Bool

	mu              sync.Mutex
	lastCheck       time.Time
	pendingKeys     []string
	pendingPrefixes []string
}

func NewFailoverCache(primary, fallback domain.Cache, logger *zerolog.Logger) *FailoverCache {
	return &FailoverCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to the primary.
func (c *FailoverCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.lastCheck) > recoveryInterval {
		c.lastCheck = time.Now()
		return true
	}
	return false
}

func (c *FailoverCache) markResult(err error) {
	if err == nil {
		if c.isDown.Swap(false) {
			c.logger.Info().Msg("Primary cache recovered")
		}
		return
	}
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("Primary cache failed, falling back to memory")
	}
	c.mu.Lock()
	c.lastCheck = time.Now()
	c.mu.Unlock()
}

// primaryReady reports whether the primary may be used, replaying pending deletes first.
func (c *FailoverCache) primaryReady(ctx context.Context) bool {
	if !c.usePrimary() {
		return false
	}
	if err := c.replayDeletes(ctx); err != nil {
		c.markResult(err)
		return false
	}
	return true
}

func (c *FailoverCache) queueDeletes(keys, prefixes []string) {
	c.mu.Lock()
	c.pendingKeys = append(c.pendingKeys, keys...)
	c.pendingPrefixes = append(c.pendingPrefixes, prefixes...)
	c.mu.Unlock()
}

func (c *FailoverCache) replayDeletes(ctx context.Context) error {
	c.mu.Lock()
	keys, prefixes := c.pendingKeys, c.pendingPrefixes
	c.pendingKeys, c.pendingPrefixes = nil, nil
	c.mu.Unlock()

	if len(keys) == 0 && len(prefixes) == 0 {
		return nil
	}
	if len(keys) > 0 {
		if err := c.primary.Delete(ctx, keys...); err != nil {
			c.queueDeletes(keys, prefixes)
			return err
		}
	}
	for i, prefix := range prefixes {
		if err := c.primary.DeletePrefix(ctx, prefix); err != nil {
			c.queueDeletes(nil, prefixes[i:])
			return err
		}
	}
	c.logger.Info().Int("keys", len(keys)).Int("prefixes", len(prefixes)).Msg("Replayed cache deletes on primary")
	return nil
}

func (c *FailoverCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.primaryReady(ctx) {
		val, ok, err := c.primary.Get(ctx, key)
		c.markResult(err)
		if err == nil {
			return val, ok, nil
		}
	}
	return c.fallback.Get(ctx, key)
}

func (c *FailoverCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.primaryReady(ctx) {
		err := c.primary.Set(ctx, key, value, ttl)
		c.markResult(err)
		if err == nil {
			return nil
		}
	}
	return c.fallback.Set(ctx, key, value, ttl)
}

// Delete clears the fallback as well as the primary. A delete the primary missed is
// replayed once it is back.
func (c *FailoverCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !c.primaryReady(ctx) {
		c.queueDeletes(keys, nil)
	} else {
		err := c.primary.Delete(ctx, keys...)
		c.markResult(err)
		if err != nil {
			c.queueDeletes(keys, nil)
		}
	}
	return c.fallback.Delete(ctx, keys...)
}

func (c *FailoverCache) DeletePrefix(ctx context.Context, prefix string) error {
	if !c.primaryReady(ctx) {
		c.queueDeletes(nil, []string{prefix})
	} else {
		err := c.primary.DeletePrefix(ctx, prefix)
		c.markResult(err)
		if err != nil {
			c.queueDeletes(nil, []string{prefix})
		}
	}
	return c.fallback.DeletePrefix(ctx, prefix)
}

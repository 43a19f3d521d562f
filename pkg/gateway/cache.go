package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/statestore"
)

const (
	// DefaultPositiveTTL is how long a populated context stays cached.
	DefaultPositiveTTL = 30 * time.Second

	// DefaultNegativeTTL is how long a confirmed-empty context stays
	// cached. Much shorter on purpose: "no memory yet" is likely to change
	// within seconds because a write is usually in flight.
	DefaultNegativeTTL = 3 * time.Second
)

// ContextCache is a read-through cache for fetched contexts, keyed by
// (conversation, fetch mode). Entries live in the shared state store so
// write-through invalidation holds across gateway instances, not just the
// one that served the write.
type ContextCache struct {
	store       statestore.Driver
	positiveTTL time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
}

// NewContextCache creates a context cache. Non-positive TTLs select the
// defaults.
func NewContextCache(store statestore.Driver, positiveTTL, negativeTTL time.Duration, logger *zap.Logger) *ContextCache {
	if positiveTTL <= 0 {
		positiveTTL = DefaultPositiveTTL
	}
	if negativeTTL <= 0 {
		negativeTTL = DefaultNegativeTTL
	}
	return &ContextCache{
		store:       store,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		logger:      logger,
	}
}

func cacheKey(conversationID, fetchMode string) string {
	return fmt.Sprintf("mnemo:ctx:%s:%s", conversationID, fetchMode)
}

// Get returns the cached context and whether it was a hit. Expired and
// absent entries both read as misses; a state store fault is a miss too,
// the read path just falls through to the store.
func (c *ContextCache) Get(ctx context.Context, conversationID, fetchMode string) (*memstore.Context, bool) {
	raw, found, err := c.store.Get(ctx, cacheKey(conversationID, fetchMode))
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var payload memstore.Context
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.logger.Warn("corrupt cache entry, treating as miss",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil, false
	}

	return &payload, true
}

// Put caches a fetch result. Empty payloads get the negative TTL.
func (c *ContextCache) Put(ctx context.Context, conversationID, fetchMode string, payload *memstore.Context) {
	ttl := c.positiveTTL
	if payload.Empty() {
		ttl = c.negativeTTL
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("cache entry encoding failed", zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, cacheKey(conversationID, fetchMode), raw, ttl); err != nil {
		c.logger.Warn("cache write failed", zap.Error(err))
	}
}

// Invalidate removes every cached entry for the conversation, across all
// fetch modes. Called after each successful write so the next read is
// never stale relative to that write.
func (c *ContextCache) Invalidate(ctx context.Context, conversationID string) error {
	var firstErr error
	for _, mode := range memstore.FetchModes {
		if err := c.store.Delete(ctx, cacheKey(conversationID, mode)); err != nil {
			c.logger.Warn("cache invalidation failed",
				zap.String("conversation_id", conversationID),
				zap.String("fetch_mode", mode),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

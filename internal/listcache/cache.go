// Package listcache memoizes paginated listing responses in the shared kv
// store, keyed by session, bucket, prefix, pagination cursor and page size.
//
// The cache is an optimization layer, never a correctness dependency: every
// read degrades to a bypass when the backend misbehaves, and writes swallow
// backend errors. The only observable cost of a broken cache backend is that
// listings go upstream again.
package listcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/kv"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
)

// Outcome reports how a listing request interacted with the cache. Surfaced
// to the API layer as the X-Cache response header.
type Outcome string

const (
	// OutcomeHit means the page was served from the cache.
	OutcomeHit Outcome = "HIT"
	// OutcomeMiss means the cache was consulted but held no valid entry;
	// the caller should fetch upstream and write the result back.
	OutcomeMiss Outcome = "MISS"
	// OutcomeBypass means the cache was skipped entirely — disabled, no
	// session token, or an unhealthy backend. The caller must fetch
	// upstream and must NOT write the result back.
	OutcomeBypass Outcome = "BYPASS"
)

// Config holds listing-cache settings.
type Config struct {
	// Enabled turns the cache on. When false every operation is a no-op
	// and reads report OutcomeBypass.
	Enabled bool

	// TTL bounds how long a cached page may be served.
	TTL time.Duration

	// WholeBucketInvalidation replaces targeted invalidation with clearing
	// the session's entire bucket namespace on every mutation. Simpler,
	// costlier to rebuild.
	WholeBucketInvalidation bool
}

// DefaultConfig returns production defaults: enabled, 300s TTL, targeted
// invalidation.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		TTL:     300 * time.Second,
	}
}

// Cache is the listing-page cache.
type Cache struct {
	kv  kv.Store
	cfg *Config
	log *logger.Logger
}

// New returns a listing cache on top of the given kv backend.
func New(store kv.Store, cfg *Config, log *logger.Logger) *Cache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Cache{
		kv:  store,
		cfg: cfg,
		log: log.With().Str("component", "listcache").Logger(),
	}
}

// WholeBucketInvalidation reports whether the coarse invalidation mode is on.
func (c *Cache) WholeBucketInvalidation() bool {
	return c.cfg.WholeBucketInvalidation
}

// Get returns the cached page for the exact key tuple, along with the
// outcome. No partial-prefix matching happens on read: either the precise
// (session, bucket, prefix, cursor, pageSize) entry exists or this is a
// miss. Backend failures degrade to OutcomeBypass so the caller skips the
// follow-up Put against a backend presumed unhealthy.
func (c *Cache) Get(ctx context.Context, token, bucket, prefix, cursor string, pageSize int) (*objstore.Page, Outcome) {
	if !c.cfg.Enabled || token == "" {
		return nil, OutcomeBypass
	}

	key := entryKey(token, bucket, prefix, cursor, pageSize)
	val, err := c.kv.Get(ctx, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, OutcomeMiss
		}
		c.log.Warnf("cache read failed, bypassing: %v", err)
		return nil, OutcomeBypass
	}

	var page objstore.Page
	if err := json.Unmarshal(val, &page); err != nil {
		// Corrupt entry: evict eagerly and treat as a miss.
		if _, derr := c.kv.Delete(ctx, key); derr != nil {
			c.log.Warnf("failed to evict corrupt cache entry: %v", derr)
		}
		return nil, OutcomeMiss
	}
	return &page, OutcomeHit
}

// Put stores page under the exact key tuple with the configured TTL,
// overwriting any previous entry. Backend errors are swallowed: a failed
// write is a missed optimization, never a request failure.
func (c *Cache) Put(ctx context.Context, token, bucket, prefix, cursor string, pageSize int, page *objstore.Page) {
	if !c.cfg.Enabled || token == "" || page == nil {
		return
	}

	val, err := json.Marshal(page)
	if err != nil {
		c.log.Warnf("failed to encode listing page: %v", err)
		return
	}

	if err := c.kv.Set(ctx, entryKey(token, bucket, prefix, cursor, pageSize), val, c.cfg.TTL); err != nil {
		c.log.Warnf("cache write failed: %v", err)
	}
}

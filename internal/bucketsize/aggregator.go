// Package bucketsize computes whole-bucket object counts and byte totals by
// exhaustively paging the upstream listing API.
//
// Full enumeration is expensive in both time and money, so three mechanisms
// bound the work: results are cached with adaptive freshness tiers, a
// distributed lock prevents two workers from enumerating the same bucket
// concurrently, and duration/object caps cut very large runs short with an
// approximate result. Everything coordinates through the shared kv store —
// aggregators on different hosts see the same results and locks.
package bucketsize

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/kv"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
)

// Status is the outcome of one ComputeWithLock call.
type Status string

const (
	// StatusCalculated means this worker ran the enumeration and stored a
	// result (success, approximate, or inaccessible).
	StatusCalculated Status = "calculated"
	// StatusSkippedFresh means a cached result still satisfied its
	// freshness window and the caller did not force recomputation. The
	// upstream store was never contacted.
	StatusSkippedFresh Status = "skipped-fresh"
	// StatusLockDenied means another worker holds the computation lock for
	// this (bucket, credential-scope) pair.
	StatusLockDenied Status = "lock-denied"
)

// Config holds aggregation limits.
type Config struct {
	// MaxDuration cuts the enumeration short once this much wall time has
	// elapsed; the stored result is then approximate.
	MaxDuration time.Duration

	// MaxObjects cuts the enumeration short once this many objects have
	// been counted; the stored result is then approximate.
	MaxObjects int64

	// PageSize is the upstream listing page size.
	PageSize int
}

// DefaultConfig returns production defaults: 10 minute / 1M object caps.
func DefaultConfig() *Config {
	return &Config{
		MaxDuration: 10 * time.Minute,
		MaxObjects:  1_000_000,
		PageSize:    objstore.DefaultPageSize,
	}
}

// minLockTTL is the floor for the computation lock's TTL.
const minLockTTL = 5 * time.Minute

// lockSlack pads the lock TTL beyond the maximum computation duration so a
// crashed worker cannot wedge the bucket forever while a healthy one never
// loses its lock mid-run.
const lockSlack = 60 * time.Second

// Aggregator computes and caches bucket-size results.
type Aggregator struct {
	kv        kv.Store
	connector objstore.Connector
	cfg       *Config
	workerID  string
	now       func() time.Time
	log       *logger.Logger
}

// New returns an aggregator with a unique worker identity for lock
// ownership.
func New(store kv.Store, connector objstore.Connector, cfg *Config, log *logger.Logger) *Aggregator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	workerID := uuid.NewString()
	return &Aggregator{
		kv:        store,
		connector: connector,
		cfg:       cfg,
		workerID:  workerID,
		now:       time.Now,
		log:       log.With().Str("component", "bucketsize").Str("worker_id", workerID).Logger(),
	}
}

// GetCached returns the stored result for (bucket, credential-scope)
// regardless of freshness, or nil when none exists. Callers decide
// staleness with Result.FreshAt.
func (a *Aggregator) GetCached(ctx context.Context, bucket, accessKeyID string) (*Result, error) {
	key := resultKey(bucket, accessKeyID)
	val, err := a.kv.Get(ctx, key)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to read bucket-size result", err)
	}

	var r Result
	if err := json.Unmarshal(val, &r); err != nil {
		a.kv.Delete(ctx, key)
		return nil, nil
	}
	return &r, nil
}

// ComputeWithLock enumerates bucket under the computation lock and stores
// the result. Unless force is set, a still-fresh cached result short
// circuits the whole call. Enumeration failures are recorded in the stored
// result, not returned: the error return covers only kv-level failures
// around the lock and result themselves.
func (a *Aggregator) ComputeWithLock(ctx context.Context, bucket string, creds objstore.Credentials, force bool) (Status, error) {
	if !force {
		r, err := a.GetCached(ctx, bucket, creds.AccessKeyID)
		if err != nil {
			return "", err
		}
		if r != nil && r.FreshAt(a.now()) {
			return StatusSkippedFresh, nil
		}
	}

	lock := lockKey(bucket, creds.AccessKeyID)
	acquired, err := a.kv.SetNX(ctx, lock, []byte(a.workerID), a.lockTTL())
	if err != nil {
		return "", errs.Wrap(errs.ErrKindUnavailable, "failed to acquire computation lock", err)
	}
	if !acquired {
		return StatusLockDenied, nil
	}
	defer a.release(ctx, lock)

	result := a.enumerate(ctx, bucket, creds)
	result.TotalSizeHuman = FormatSize(result.TotalSize)

	val, err := json.Marshal(result)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindStoreFailed, "failed to encode bucket-size result", err)
	}
	if err := a.kv.Set(ctx, resultKey(bucket, creds.AccessKeyID), val, freshnessFor(result.ObjectCount)); err != nil {
		return "", errs.Wrap(errs.ErrKindUnavailable, "failed to store bucket-size result", err)
	}

	a.log.With().
		Str("bucket", bucket).
		Int64("objects", result.ObjectCount).
		Int64("bytes", result.TotalSize).
		Dur("took", time.Duration(result.DurationMs)*time.Millisecond).
		Logger().
		Debug("bucket size calculated")
	return StatusCalculated, nil
}

// enumerate pages through the entire bucket, accumulating counts and sizes.
// All failure modes become fields on the returned Result.
func (a *Aggregator) enumerate(ctx context.Context, bucket string, creds objstore.Credentials) *Result {
	start := a.now()
	result := &Result{}

	finish := func() *Result {
		result.CalculatedAt = a.now()
		result.DurationMs = result.CalculatedAt.Sub(start).Milliseconds()
		return result
	}

	fail := func(err error) *Result {
		result.TotalSize = 0
		result.ObjectCount = 0
		result.Error = err.Error()
		if errs.IsPermissionDenied(err) {
			// Terminal: these credentials cannot read the bucket, so
			// retrying on a schedule would only burn list calls.
			result.IsInaccessible = true
			result.IsApproximate = false
		} else {
			// Retryable once the result's freshness window lapses.
			result.IsApproximate = true
		}
		return finish()
	}

	store, err := a.connector.Connect(ctx, creds)
	if err != nil {
		return fail(err)
	}
	defer store.Close()

	cursor := ""
	for {
		page, err := store.ListPage(ctx, bucket, objstore.PageQuery{
			Recursive: true,
			Cursor:    cursor,
			MaxKeys:   a.cfg.PageSize,
		})
		if err != nil {
			return fail(err)
		}

		for _, obj := range page.Entries {
			result.ObjectCount++
			result.TotalSize += obj.Size
		}

		if !page.IsTruncated {
			break
		}
		if a.now().Sub(start) > a.cfg.MaxDuration || result.ObjectCount >= a.cfg.MaxObjects {
			result.IsApproximate = true
			break
		}
		cursor = page.NextCursor
	}

	return finish()
}

// lockTTL bounds how long a crashed worker can hold the computation lock.
func (a *Aggregator) lockTTL() time.Duration {
	ttl := a.cfg.MaxDuration + lockSlack
	if ttl < minLockTTL {
		ttl = minLockTTL
	}
	return ttl
}

// release deletes the lock only while this worker still owns it. If the
// lock's TTL already expired and another worker reacquired it, the stored
// worker id differs and the lock is left alone.
func (a *Aggregator) release(ctx context.Context, lock string) {
	val, err := a.kv.Get(ctx, lock)
	if err != nil {
		if !errs.IsNotFound(err) {
			a.log.Warnf("failed to verify lock ownership: %v", err)
		}
		return
	}
	if string(val) != a.workerID {
		a.log.Warn("lock reacquired by another worker, skipping release")
		return
	}
	if _, err := a.kv.Delete(ctx, lock); err != nil {
		a.log.Warnf("failed to release lock: %v", err)
	}
}

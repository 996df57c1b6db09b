package bucketsize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/kv/memory"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
	"github.com/vantor/bucketscope/internal/objstore/objstoretest"
)

var testCreds = objstore.Credentials{
	AccessKeyID:     "AKIAEXAMPLE",
	SecretAccessKey: "secret",
}

func newTestAggregator(t *testing.T, fake *objstoretest.Fake, cfg *Config) (*Aggregator, *memory.Store) {
	t.Helper()
	backend := memory.New()
	return New(backend, fake, cfg, logger.Nop()), backend
}

func TestFreshnessFor(t *testing.T) {
	tests := []struct {
		name  string
		count int64
		want  time.Duration
	}{
		{name: "small bucket", count: 9_999, want: time.Hour},
		{name: "medium bucket lower bound", count: 10_000, want: 24 * time.Hour},
		{name: "medium bucket", count: 50_000, want: 24 * time.Hour},
		{name: "large bucket lower bound", count: 100_000, want: 7 * 24 * time.Hour},
		{name: "large bucket", count: 250_000, want: 7 * 24 * time.Hour},
		{name: "empty bucket", count: 0, want: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, freshnessFor(tt.count))
		})
	}
}

func TestResult_FreshAt(t *testing.T) {
	calculatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		count int64
		after time.Duration
		want  bool
	}{
		{name: "small bucket fresh within the hour", count: 9_999, after: 30 * time.Minute, want: true},
		{name: "small bucket stale at two hours", count: 9_999, after: 2 * time.Hour, want: false},
		{name: "medium bucket still fresh at two hours", count: 50_000, after: 2 * time.Hour, want: true},
		{name: "medium bucket stale past a day", count: 50_000, after: 25 * time.Hour, want: false},
		{name: "large bucket fresh at six days", count: 250_000, after: 6 * 24 * time.Hour, want: true},
		{name: "large bucket stale past a week", count: 250_000, after: 8 * 24 * time.Hour, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Result{ObjectCount: tt.count, CalculatedAt: calculatedAt}
			assert.Equal(t, tt.want, r.FreshAt(calculatedAt.Add(tt.after)))
		})
	}
}

func TestAggregator_ComputeWithLock(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.Seed("photos", "a.jpg", make([]byte, 100))
	fake.Seed("photos", "b.jpg", make([]byte, 200))
	fake.Seed("photos", "raw/c.dng", make([]byte, 300))

	agg, backend := newTestAggregator(t, fake, nil)

	status, err := agg.ComputeWithLock(ctx, "photos", testCreds, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCalculated, status)

	result, err := agg.GetCached(ctx, "photos", testCreds.AccessKeyID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, int64(600), result.TotalSize)
	assert.Equal(t, "600.00 B", result.TotalSizeHuman)
	assert.Equal(t, int64(3), result.ObjectCount)
	assert.False(t, result.IsApproximate)
	assert.False(t, result.IsInaccessible)
	assert.Empty(t, result.Error)
	assert.True(t, result.FreshAt(time.Now()))

	// The lock is gone once the run finishes.
	_, err = backend.Get(ctx, lockKey("photos", testCreds.AccessKeyID))
	assert.True(t, errs.IsNotFound(err))
}

func TestAggregator_SkipsFreshResult(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.Seed("photos", "a.jpg", make([]byte, 100))

	agg, _ := newTestAggregator(t, fake, nil)

	status, err := agg.ComputeWithLock(ctx, "photos", testCreds, false)
	require.NoError(t, err)
	require.Equal(t, StatusCalculated, status)
	callsAfterFirst := fake.ListCalls()

	// A fresh result short-circuits the whole call: no lock, no listing.
	status, err = agg.ComputeWithLock(ctx, "photos", testCreds, false)
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedFresh, status)
	assert.Equal(t, callsAfterFirst, fake.ListCalls(), "fresh skip must not contact the upstream store")

	// force bypasses the freshness check.
	status, err = agg.ComputeWithLock(ctx, "photos", testCreds, true)
	require.NoError(t, err)
	assert.Equal(t, StatusCalculated, status)
	assert.Greater(t, fake.ListCalls(), callsAfterFirst)
}

func TestAggregator_ObjectCapMakesApproximate(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.SeedN("photos", "obj-", 25)

	agg, _ := newTestAggregator(t, fake, &Config{
		MaxDuration: time.Minute,
		MaxObjects:  10,
		PageSize:    10,
	})

	status, err := agg.ComputeWithLock(ctx, "photos", testCreds, false)
	require.NoError(t, err)
	require.Equal(t, StatusCalculated, status)

	result, err := agg.GetCached(ctx, "photos", testCreds.AccessKeyID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.IsApproximate, "capped enumeration stores an approximate result")
	assert.False(t, result.IsInaccessible)
	assert.Equal(t, int64(10), result.ObjectCount, "counting stops at the page where the cap was hit")
}

func TestAggregator_InaccessibleBucket(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.Seed("private", "a", []byte("x"))
	fake.Deny("private")

	agg, _ := newTestAggregator(t, fake, nil)

	status, err := agg.ComputeWithLock(ctx, "private", testCreds, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCalculated, status, "a denied bucket still stores a result")

	result, err := agg.GetCached(ctx, "private", testCreds.AccessKeyID)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.IsInaccessible)
	assert.False(t, result.IsApproximate, "inaccessible is terminal, not approximate")
	assert.Zero(t, result.TotalSize)
	assert.Zero(t, result.ObjectCount)
	assert.NotEmpty(t, result.Error)
}

func TestAggregator_LockExcludesConcurrentWorker(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.Seed("photos", "a.jpg", []byte("x"))

	backend := memory.New()
	worker1 := New(backend, fake, nil, logger.Nop())
	worker2 := New(backend, fake, nil, logger.Nop())

	entered := make(chan struct{})
	release := make(chan struct{})
	first := true
	fake.OnList(func() {
		if first {
			first = false
			close(entered)
			<-release
		}
	})

	done := make(chan Status, 1)
	go func() {
		status, err := worker1.ComputeWithLock(ctx, "photos", testCreds, false)
		assert.NoError(t, err)
		done <- status
	}()

	// Wait until worker1 holds the lock and is mid-enumeration, then race
	// worker2 against it. force=true so the freshness check cannot hide
	// the lock conflict.
	<-entered
	status, err := worker2.ComputeWithLock(ctx, "photos", testCreds, true)
	require.NoError(t, err)
	assert.Equal(t, StatusLockDenied, status)

	close(release)
	assert.Equal(t, StatusCalculated, <-done)
}

func TestAggregator_ReleaseRespectsOwnership(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	fake.Seed("photos", "a.jpg", []byte("x"))

	backend := memory.New()
	agg := New(backend, fake, nil, logger.Nop())
	lock := lockKey("photos", testCreds.AccessKeyID)

	// Simulate the lock TTL lapsing mid-run and another worker taking over:
	// by the time this worker releases, the stored id is no longer its own.
	fake.OnList(func() {
		backend.Set(ctx, lock, []byte("other-worker"), time.Minute)
	})

	status, err := agg.ComputeWithLock(ctx, "photos", testCreds, false)
	require.NoError(t, err)
	require.Equal(t, StatusCalculated, status)

	val, err := backend.Get(ctx, lock)
	require.NoError(t, err)
	assert.Equal(t, []byte("other-worker"), val, "a lock owned by someone else is left alone")
}

func TestAggregator_GetCached(t *testing.T) {
	ctx := context.Background()
	fake := objstoretest.New()
	agg, backend := newTestAggregator(t, fake, nil)

	result, err := agg.GetCached(ctx, "photos", testCreds.AccessKeyID)
	require.NoError(t, err)
	assert.Nil(t, result, "no stored result means nil, not an error")

	// A corrupt stored result is dropped and reported as absent.
	key := resultKey("photos", testCreds.AccessKeyID)
	require.NoError(t, backend.Set(ctx, key, []byte("{broken"), 0))

	result, err = agg.GetCached(ctx, "photos", testCreds.AccessKeyID)
	require.NoError(t, err)
	assert.Nil(t, result)

	_, err = backend.Get(ctx, key)
	assert.True(t, errs.IsNotFound(err))
}

func TestAggregator_ResultSharedAcrossSessions(t *testing.T) {
	// Results are keyed by credential, not by session: the key must be
	// stable for one access key and distinct across access keys.
	assert.Equal(t,
		resultKey("photos", "AKIA1"),
		resultKey("photos", "AKIA1"))
	assert.NotEqual(t,
		resultKey("photos", "AKIA1"),
		resultKey("photos", "AKIA2"))
	assert.NotContains(t, resultKey("photos", "AKIA1"), "AKIA1",
		"access keys must not appear in store keys")
}

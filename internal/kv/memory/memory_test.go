package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantor/bucketscope/internal/errs"
)

// clock is a manually advanced time source for TTL tests.
type clock struct {
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errs.IsNotFound(err))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)
}

func TestStore_GetCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Set(ctx, "k", []byte("abc"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	val[0] = 'x'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewWithClock(clk.Now)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	clk.Advance(59 * time.Second)
	_, err := store.Get(ctx, "k")
	assert.NoError(t, err, "entry should still be live inside its TTL")

	clk.Advance(2 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.True(t, errs.IsNotFound(err), "entry should be gone after its TTL")
}

func TestStore_SetNX(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewWithClock(clk.Now)

	ok, err := store.SetNX(ctx, "lock", []byte("worker-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetNX(ctx, "lock", []byte("worker-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second SetNX on a live key must fail")

	val, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("worker-a"), val, "losing SetNX must not overwrite")

	// After expiry the key is free again.
	clk.Advance(2 * time.Minute)
	ok, err = store.SetNX(ctx, "lock", []byte("worker-b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := New()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))

	count, err := store.Delete(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = store.Get(ctx, "a")
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_Expire(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewWithClock(clk.Now)

	ok, err := store.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))

	// Renew just before expiry, then confirm the new window holds.
	clk.Advance(50 * time.Second)
	ok, err = store.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Advance(50 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.NoError(t, err, "renewed entry should outlive its original TTL")

	clk.Advance(20 * time.Second)
	_, err = store.Get(ctx, "k")
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_KeysAndDeletePrefix(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := NewWithClock(clk.Now)

	require.NoError(t, store.Set(ctx, "sess:cred:a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "sess:cred:b", []byte("2"), time.Minute))
	require.NoError(t, store.Set(ctx, "lc:entry", []byte("3"), 0))

	keys, err := store.Keys(ctx, "sess:cred:")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess:cred:a", "sess:cred:b"}, keys)

	// Expired entries never show up in scans.
	clk.Advance(2 * time.Minute)
	keys, err = store.Keys(ctx, "sess:cred:")
	require.NoError(t, err)
	assert.Equal(t, []string{"sess:cred:a"}, keys)

	count, err := store.DeletePrefix(ctx, "sess:cred:")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	keys, err = store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"lc:entry"}, keys)
}

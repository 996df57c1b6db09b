package listcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantor/bucketscope/internal/kv/memory"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
)

func newInvalidationCache(t *testing.T) *Cache {
	t.Helper()
	return New(memory.New(), &Config{Enabled: true, TTL: 300 * time.Second}, logger.Nop())
}

// seed stores an empty page under each (prefix, cursor) pair.
func seed(ctx context.Context, c *Cache, token, bucket string, prefixes ...string) {
	for _, p := range prefixes {
		c.Put(ctx, token, bucket, p, "", 100, &objstore.Page{})
		c.Put(ctx, token, bucket, p, "some-cursor", 100, &objstore.Page{})
	}
}

func outcomeOf(ctx context.Context, c *Cache, token, bucket, prefix string) Outcome {
	_, outcome := c.Get(ctx, token, bucket, prefix, "", 100)
	return outcome
}

func TestCache_InvalidateBucket(t *testing.T) {
	ctx := context.Background()
	cache := newInvalidationCache(t)

	seed(ctx, cache, "tok", "photos", "", "a/", "a/b/")
	seed(ctx, cache, "tok", "backups", "")
	seed(ctx, cache, "other", "photos", "")

	count, err := cache.InvalidateBucket(ctx, "tok", "photos")
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", ""))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/"))

	// Other buckets and other sessions are untouched.
	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "tok", "backups", ""))
	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "other", "photos", ""))
}

func TestCache_InvalidateByPrefix_Exact(t *testing.T) {
	ctx := context.Background()
	cache := newInvalidationCache(t)

	// An upload of a/b/c.txt must clear the listings that display the new
	// object or its folder chain, and nothing else.
	seed(ctx, cache, "tok", "photos", "", "a/", "a/b/", "a/other/", "x/")

	_, err := cache.InvalidateByPrefix(ctx, "tok", "photos", AncestorPrefixes("a/b/c.txt"), nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", ""))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/"))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/b/"))

	// Sibling directories keep their entries.
	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "tok", "photos", "a/other/"))
	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "tok", "photos", "x/"))
}

func TestCache_InvalidateByPrefix_ExactCoversAllCursors(t *testing.T) {
	ctx := context.Background()
	cache := newInvalidationCache(t)

	cache.Put(ctx, "tok", "photos", "a/", "", 100, &objstore.Page{})
	cache.Put(ctx, "tok", "photos", "a/", "cursor-1", 100, &objstore.Page{})
	cache.Put(ctx, "tok", "photos", "a/", "cursor-1", 25, &objstore.Page{})

	count, err := cache.InvalidateByPrefix(ctx, "tok", "photos", []string{"a/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one exact prefix removes every cursor and page size")
}

func TestCache_InvalidateByPrefix_Subtree(t *testing.T) {
	ctx := context.Background()
	cache := newInvalidationCache(t)

	// Recursive removal of a/ clears every listing at or below it. The
	// sibling "a-sibling/" shares the string prefix "a" but is not inside
	// a/, so it must survive.
	seed(ctx, cache, "tok", "photos", "a/", "a/b/", "a/b/c/", "a-sibling/", "x/")

	_, err := cache.InvalidateByPrefix(ctx, "tok", "photos", AncestorPrefixes("a/"), []string{"a/"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", ""))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/"))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/b/"))
	assert.Equal(t, OutcomeMiss, outcomeOf(ctx, cache, "tok", "photos", "a/b/c/"))

	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "tok", "photos", "a-sibling/"))
	assert.Equal(t, OutcomeHit, outcomeOf(ctx, cache, "tok", "photos", "x/"))
}

func TestCache_InvalidateDisabled(t *testing.T) {
	ctx := context.Background()
	cache := New(memory.New(), &Config{Enabled: false}, logger.Nop())

	count, err := cache.InvalidateBucket(ctx, "tok", "photos")
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = cache.InvalidateByPrefix(ctx, "tok", "photos", []string{""}, []string{"a/"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestAncestorPrefixes(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{
			name: "root-level object",
			path: "file.txt",
			want: []string{""},
		},
		{
			name: "nested object",
			path: "a/b/c.txt",
			want: []string{"", "a/", "a/b/"},
		},
		{
			name: "directory prefix includes itself",
			path: "a/b/",
			want: []string{"", "a/", "a/b/"},
		},
		{
			name: "empty path",
			path: "",
			want: []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AncestorPrefixes(tt.path))
		})
	}
}

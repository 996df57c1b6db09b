package listcache

import (
	"context"
	"strings"

	"github.com/vantor/bucketscope/internal/errs"
)

// InvalidateBucket deletes every cache entry in the session+bucket
// namespace, regardless of listing prefix or cursor. Returns how many
// entries were removed.
func (c *Cache) InvalidateBucket(ctx context.Context, token, bucket string) (int, error) {
	if !c.cfg.Enabled || token == "" {
		return 0, nil
	}

	count, err := c.kv.DeletePrefix(ctx, bucketKeyspace(token, bucket))
	if err != nil {
		return 0, errs.Wrap(errs.ErrKindUnavailable, "bucket invalidation failed", err)
	}
	return count, nil
}

// InvalidateByPrefix deletes entries whose cached listing prefix exactly
// matches one of exactPrefixes, or starts with one of prefixesWithChildren.
//
// The exact case is a fast path: the key layout groups all cursors and page
// sizes of one listing prefix under a shared key prefix, so each exact
// prefix is one namespace delete with no decoding. The children case scans
// the session+bucket namespace and tests each entry's decoded prefix — O(n)
// in the session's cached entries for this bucket, which stays small in
// practice.
func (c *Cache) InvalidateByPrefix(ctx context.Context, token, bucket string, exactPrefixes, prefixesWithChildren []string) (int, error) {
	if !c.cfg.Enabled || token == "" {
		return 0, nil
	}

	total := 0
	for _, p := range exactPrefixes {
		count, err := c.kv.DeletePrefix(ctx, prefixKeyspace(token, bucket, p))
		if err != nil {
			return total, errs.Wrap(errs.ErrKindUnavailable, "prefix invalidation failed", err)
		}
		total += count
	}

	if len(prefixesWithChildren) == 0 {
		return total, nil
	}

	keys, err := c.kv.Keys(ctx, bucketKeyspace(token, bucket))
	if err != nil {
		return total, errs.Wrap(errs.ErrKindUnavailable, "prefix scan failed", err)
	}

	var doomed []string
	for _, key := range keys {
		cached, ok := decodeEntryPrefix(key)
		if !ok {
			continue
		}
		for _, p := range prefixesWithChildren {
			if strings.HasPrefix(cached, p) {
				doomed = append(doomed, key)
				break
			}
		}
	}

	count, err := c.kv.Delete(ctx, doomed...)
	if err != nil {
		return total, errs.Wrap(errs.ErrKindUnavailable, "prefix invalidation failed", err)
	}
	return total + count, nil
}

// AncestorPrefixes returns the directory-prefix chain that contains p: the
// root listing "" and every ancestor directory, ending with p's own parent.
// A listing of each of those directories shows or hides the folder entry
// leading toward p, so all of them must be invalidated after a mutation
// at p.
//
//	AncestorPrefixes("a/b/c.txt") = ["", "a/", "a/b/"]
//	AncestorPrefixes("a/b/")      = ["", "a/", "a/b/"]
func AncestorPrefixes(p string) []string {
	prefixes := []string{""}
	for i, r := range p {
		if r == '/' {
			prefixes = append(prefixes, p[:i+1])
		}
	}
	return prefixes
}

package listcache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
)

// Cache keys are built from ':'-joined segments:
//
//	lc:<sha256(token)>:<b64(bucket)>:<b64(prefix)>:<b64(cursor)>:<pageSize>
//
// The session token is hashed so it never appears in the store. Bucket,
// prefix and cursor are base64url-encoded, which cannot produce ':', so the
// joined key is unambiguous across segment boundaries. Segment order puts
// prefix before cursor and page size: deleting by the key prefix up through
// <b64(prefix)>: removes the entries for every cursor and page size of that
// listing prefix in one namespace operation.

const keyspace = "lc:"

var segEnc = base64.RawURLEncoding

// entryKey derives the full cache key for one listing page.
func entryKey(token, bucket, prefix, cursor string, pageSize int) string {
	return prefixKeyspace(token, bucket, prefix) + segEnc.EncodeToString([]byte(cursor)) + ":" + strconv.Itoa(pageSize)
}

// bucketKeyspace is the key prefix covering every entry the session has
// cached for bucket, regardless of listing prefix or cursor.
func bucketKeyspace(token, bucket string) string {
	return keyspace + hashToken(token) + ":" + segEnc.EncodeToString([]byte(bucket)) + ":"
}

// prefixKeyspace is the key prefix covering every entry for one exact
// listing prefix (all cursors, all page sizes).
func prefixKeyspace(token, bucket, prefix string) string {
	return bucketKeyspace(token, bucket) + segEnc.EncodeToString([]byte(prefix)) + ":"
}

// decodeEntryPrefix extracts the listing prefix encoded in a cache key.
// Returns false for keys that do not parse as entry keys.
func decodeEntryPrefix(key string) (string, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 6 {
		return "", false
	}
	raw, err := segEnc.DecodeString(parts[3])
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// hashToken derives the non-reversible session segment of cache keys.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

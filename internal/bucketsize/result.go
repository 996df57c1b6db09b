package bucketsize

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// Result is the stored outcome of one whole-bucket aggregation. Exactly one
// result exists per (bucket, credential-scope); each recomputation
// overwrites it wholesale.
type Result struct {
	// TotalSize is the summed byte size of every object seen.
	TotalSize int64 `json:"total_size"`

	// TotalSizeHuman is TotalSize rendered in binary units ("1.27 GiB").
	TotalSizeHuman string `json:"total_size_human"`

	// ObjectCount is the number of objects seen.
	ObjectCount int64 `json:"object_count"`

	// IsApproximate is true when the enumeration was cut short by the
	// duration or object-count cap, or failed partway: the true totals are
	// at least as large.
	IsApproximate bool `json:"is_approximate"`

	// IsInaccessible is true when the credentials cannot list the bucket.
	// Terminal: cached so scheduled passes stop hammering the bucket.
	IsInaccessible bool `json:"is_inaccessible"`

	// Error carries the failure message for inaccessible or failed runs.
	Error string `json:"error,omitempty"`

	// CalculatedAt is when the aggregation finished.
	CalculatedAt time.Time `json:"calculated_at"`

	// DurationMs is how long the aggregation ran.
	DurationMs int64 `json:"duration_ms"`
}

// Freshness tiers: the bigger the bucket, the longer a result stays good,
// because recomputation cost scales with object count (pricing is per list
// call, roughly one call per 1000 objects).
const (
	tierSmallMax  = 10_000
	tierMediumMax = 100_000

	freshSmall  = time.Hour
	freshMedium = 24 * time.Hour
	freshLarge  = 7 * 24 * time.Hour
)

// freshnessFor returns the freshness window for a result covering count
// objects. The stored result's TTL mirrors the same value.
func freshnessFor(count int64) time.Duration {
	switch {
	case count < tierSmallMax:
		return freshSmall
	case count < tierMediumMax:
		return freshMedium
	default:
		return freshLarge
	}
}

// FreshAt reports whether the result still satisfies its freshness window
// at the given instant.
func (r *Result) FreshAt(now time.Time) bool {
	return now.Sub(r.CalculatedAt) < freshnessFor(r.ObjectCount)
}

// --- key derivation ---

const (
	resultPrefix = "bs:res:"
	lockPrefix   = "bs:lock:"
)

// credScope derives the stable, non-reversible credential identifier results
// are keyed by. It hashes the access key id — not the session token — so the
// same long-lived credential shares one cached result across sessions.
func credScope(accessKeyID string) string {
	sum := sha256.Sum256([]byte(accessKeyID))
	return hex.EncodeToString(sum[:16])
}

func resultKey(bucket, accessKeyID string) string {
	return resultPrefix + credScope(accessKeyID) + ":" + base64.RawURLEncoding.EncodeToString([]byte(bucket))
}

func lockKey(bucket, accessKeyID string) string {
	return lockPrefix + credScope(accessKeyID) + ":" + base64.RawURLEncoding.EncodeToString([]byte(bucket))
}

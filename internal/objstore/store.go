// Package objstore defines the unified interface for the upstream
// S3-compatible object store that bucketscope browses.
//
// All providers (MinIO, S3, …) implement the Store interface. Callers depend
// only on this package — never on a specific provider package. Because every
// browsing session carries its own credential pair, stores are obtained
// through a Connector rather than constructed once at startup.
//
// Usage:
//
//	conn := minio.NewConnector(objstore.DefaultConfig("localhost:9000"))
//	store, err := conn.Connect(ctx, creds)
//	if err != nil { ... }
//	defer store.Close()
//
//	page, err := store.ListPage(ctx, "photos", objstore.PageQuery{MaxKeys: 100})
package objstore

import (
	"context"
	"io"
	"time"
)

// Credentials is an access-key pair for the upstream store. Opaque to the
// session layer: it stores and returns the pair without interpreting it.
type Credentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// Connector opens a Store authenticated with the given credentials.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Store, error)
}

// Store is the single interface all object-storage providers must implement.
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// Ping verifies the backend is reachable with these credentials.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListBuckets returns all buckets accessible with the store's credentials.
	ListBuckets(ctx context.Context) ([]BucketInfo, error)

	// ListPage returns one page of objects in bucket matching q.
	// Virtual directory entries are reported in Page.CommonPrefixes when
	// q.Recursive is false.
	ListPage(ctx context.Context, bucket string, q PageQuery) (*Page, error)

	// PutObject uploads size bytes from r to key inside bucket.
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// RemoveObject deletes the object at key inside bucket.
	RemoveObject(ctx context.Context, bucket, key string) error

	// RemovePrefix deletes every object whose key starts with prefix and
	// returns how many were removed.
	RemovePrefix(ctx context.Context, bucket, prefix string) (int, error)

	// StatObject returns metadata for the object at key inside bucket
	// without downloading its content.
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// PresignGetURL returns a time-limited URL that allows anyone to download
	// the object at key inside bucket without credentials.
	PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

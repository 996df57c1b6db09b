package objstore

import (
	"io"
	"time"
)

// BucketInfo describes a storage bucket.
type BucketInfo struct {
	// Name is the bucket name.
	Name string `json:"name"`

	// CreatedAt is when the bucket was created.
	// May be zero if the backend does not expose creation time.
	CreatedAt time.Time `json:"created_at"`
}

// ObjectInfo describes a single object stored in a bucket.
// It carries JSON tags because listing pages are serialized into the cache.
type ObjectInfo struct {
	// Key is the full object path within the bucket (e.g. "images/photo.jpg").
	Key string `json:"key"`

	// Size is the byte size of the object. -1 if unknown.
	Size int64 `json:"size"`

	// ContentType is the MIME type (e.g. "image/jpeg").
	ContentType string `json:"content_type,omitempty"`

	// ETag is the object's entity tag / hash, as returned by the backend.
	ETag string `json:"etag,omitempty"`

	// LastModified is when the object was last written.
	LastModified time.Time `json:"last_modified"`
}

// PageQuery controls how ListPage filters and paginates results.
type PageQuery struct {
	// Prefix restricts results to objects whose key starts with this string.
	// Use "" to list everything in the bucket.
	Prefix string

	// Recursive, when true, lists all objects under the prefix without
	// grouping by virtual directories. When false (default), common prefixes
	// (virtual "folders") are returned in Page.CommonPrefixes.
	Recursive bool

	// Cursor is the pagination cursor — the last key seen in a previous
	// page. Pass "" to start from the beginning.
	Cursor string

	// MaxKeys caps the number of entries per page. 0 means DefaultPageSize.
	MaxKeys int
}

// DefaultPageSize is the page size used when PageQuery.MaxKeys is 0.
const DefaultPageSize = 1000

// Page is one page of listing results.
type Page struct {
	// Entries are the objects on this page, in key order.
	Entries []ObjectInfo `json:"entries"`

	// CommonPrefixes are the virtual directories directly under the queried
	// prefix. Empty for recursive listings.
	CommonPrefixes []string `json:"common_prefixes,omitempty"`

	// NextCursor is the cursor for the next page. Empty when IsTruncated
	// is false.
	NextCursor string `json:"next_cursor,omitempty"`

	// IsTruncated reports whether more results exist beyond this page.
	IsTruncated bool `json:"is_truncated"`
}

// Object is a streaming handle to an object's content.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

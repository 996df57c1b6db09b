// Package minio provides a MinIO implementation of objstore.Store.
//
// Usage:
//
//	conn := minio.NewConnector(objstore.DefaultConfig("localhost:9000"))
//	store, err := conn.Connect(ctx, creds)
//	if err != nil { ... }
//	defer store.Close()
package minio

import (
	"context"
	"io"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/objstore"
)

// Connector builds per-session Drivers against one configured endpoint.
type Connector struct {
	cfg *objstore.Config
}

// NewConnector returns a Connector for the given endpoint config.
func NewConnector(cfg *objstore.Config) *Connector {
	return &Connector{cfg: cfg}
}

// Connect returns a Driver authenticated with creds. No round trip is made:
// credential validation happens on first use (login handlers call Ping
// explicitly). Sessions connect on every request, so an eager ping here
// would double the upstream call volume.
func (c *Connector) Connect(_ context.Context, creds objstore.Credentials) (objstore.Store, error) {
	client, err := miniogo.New(c.cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKeyID, creds.SecretAccessKey, ""),
		Secure: c.cfg.UseSSL,
		Region: c.cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to create minio client", err)
	}
	return &Driver{client: client}, nil
}

// Driver is a MinIO implementation of objstore.Store.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
}

// --- objstore.Store implementation ---

// Ping verifies the MinIO server is reachable and the credentials are
// accepted, by listing buckets.
func (d *Driver) Ping(ctx context.Context) error {
	_, err := d.client.ListBuckets(ctx)
	if err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op for MinIO — the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// ListBuckets returns all buckets accessible with the driver's credentials.
func (d *Driver) ListBuckets(ctx context.Context) ([]objstore.BucketInfo, error) {
	raw, err := d.client.ListBuckets(ctx)
	if err != nil {
		return nil, mapError(err, "failed to list buckets")
	}

	buckets := make([]objstore.BucketInfo, len(raw))
	for i, b := range raw {
		buckets[i] = objstore.BucketInfo{
			Name:      b.Name,
			CreatedAt: b.CreationDate,
		}
	}
	return buckets, nil
}

// ListPage returns one page of objects in bucket matching q.
// The SDK streams the listing over a channel; collectPage cuts the page and
// the deferred cancel stops the stream.
func (d *Driver) ListPage(ctx context.Context, bucket string, q objstore.PageQuery) (*objstore.Page, error) {
	maxKeys := q.MaxKeys
	if maxKeys <= 0 {
		maxKeys = objstore.DefaultPageSize
	}

	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := miniogo.ListObjectsOptions{
		Prefix:     q.Prefix,
		Recursive:  q.Recursive,
		StartAfter: q.Cursor,
		MaxKeys:    maxKeys,
	}

	return collectPage(d.client.ListObjects(listCtx, bucket, opts), q, maxKeys)
}

// collectPage assembles one page from the listing stream, enforcing the page
// boundary once one extra entry has confirmed truncation.
//
// StartAfter is exclusive for object keys but not for folder groups: when
// the previous page ended on a common prefix, the server re-lists that group
// because its member keys sort after the prefix. The entry equal to the
// cursor is therefore skipped, otherwise clients would see the same folder
// on two consecutive pages.
func collectPage(stream <-chan miniogo.ObjectInfo, q objstore.PageQuery, maxKeys int) (*objstore.Page, error) {
	page := &objstore.Page{}
	count := 0
	lastKey := ""

	for obj := range stream {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		if !q.Recursive && obj.Key == q.Cursor {
			continue
		}
		if count == maxKeys {
			page.IsTruncated = true
			page.NextCursor = lastKey
			break
		}
		if !q.Recursive && strings.HasSuffix(obj.Key, "/") {
			page.CommonPrefixes = append(page.CommonPrefixes, obj.Key)
		} else {
			page.Entries = append(page.Entries, objstore.ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ContentType:  obj.ContentType,
				ETag:         obj.ETag,
				LastModified: obj.LastModified,
			})
		}
		lastKey = obj.Key
		count++
	}

	return page, nil
}

// PutObject uploads size bytes from r to key inside bucket.
func (d *Driver) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := d.client.PutObject(ctx, bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// RemoveObject deletes the object at key inside bucket.
func (d *Driver) RemoveObject(ctx context.Context, bucket, key string) error {
	if err := d.client.RemoveObject(ctx, bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

// RemovePrefix deletes every object whose key starts with prefix.
// The listing goroutine feeds the SDK's batched multi-delete.
func (d *Driver) RemovePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectsCh := make(chan miniogo.ObjectInfo)
	listErrCh := make(chan error, 1)
	listedCh := make(chan int, 1)

	go func() {
		defer close(objectsCh)
		listed := 0
		for obj := range d.client.ListObjects(listCtx, bucket, miniogo.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if obj.Err != nil {
				listErrCh <- mapError(obj.Err, "failed to list objects for removal")
				listedCh <- listed
				return
			}
			objectsCh <- obj
			listed++
		}
		listedCh <- listed
	}()

	err := drainRemoveErrors(d.client.RemoveObjects(ctx, bucket, objectsCh, miniogo.RemoveObjectsOptions{}))
	removed := <-listedCh
	if err != nil {
		return removed, err
	}

	select {
	case lerr := <-listErrCh:
		return removed, lerr
	default:
	}
	return removed, nil
}

// drainRemoveErrors consumes the bulk-delete error channel to completion
// and returns the first failure. The channel MUST be read until it closes:
// the SDK pushes one error per failed object through a single-slot buffer,
// and a reader that returns early blocks that pipeline, which in turn
// blocks the goroutine feeding objectsCh — a send that context
// cancellation cannot unblock.
func drainRemoveErrors(errCh <-chan miniogo.RemoveObjectError) error {
	var first error
	for rerr := range errCh {
		if rerr.Err != nil && first == nil {
			first = mapError(rerr.Err, "failed to remove object "+rerr.ObjectName)
		}
	}
	return first
}

// StatObject returns metadata for the object at key inside bucket
// without downloading its content.
func (d *Driver) StatObject(ctx context.Context, bucket, key string) (*objstore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}

	return &objstore.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
	}, nil
}

// GetObject opens a streaming handle to the object at key inside bucket.
// The caller MUST call Object.Close() after reading.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (objstore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{
		ReadCloser: obj,
		info: &objstore.ObjectInfo{
			Key:          key,
			Size:         stat.Size,
			ContentType:  stat.ContentType,
			ETag:         stat.ETag,
			LastModified: stat.LastModified,
		},
	}, nil
}

// PresignGetURL returns a time-limited public download URL for the object.
func (d *Driver) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal types ---

// object wraps a MinIO GetObject response and exposes objstore.Object.
type object struct {
	io.ReadCloser
	info *objstore.ObjectInfo
}

func (o *object) Info() *objstore.ObjectInfo {
	return o.info
}

// Package objstoretest provides an in-memory objstore.Connector/Store fake
// for tests. It supports seeded objects, paginated listings, per-bucket
// permission denial and a list-call counter, which is what the cache and
// aggregator tests need to observe.
package objstoretest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/objstore"
)

// Fake is an in-memory upstream store. The zero value is not usable; call
// New. Connect returns views sharing the same data, mirroring how every
// session talks to the same upstream service.
type Fake struct {
	mu       sync.Mutex
	objects  map[string]map[string][]byte // bucket → key → content
	denied   map[string]bool              // buckets that reject listing
	creds    *objstore.Credentials        // expected credentials, nil accepts all
	listens  int                          // ListPage calls served
	pingErr  error
	listHook func() // runs at the start of every ListPage, for lock tests
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		objects: make(map[string]map[string][]byte),
		denied:  make(map[string]bool),
	}
}

// Seed stores content at bucket/key, creating the bucket as needed.
func (f *Fake) Seed(bucket, key string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects[bucket] == nil {
		f.objects[bucket] = make(map[string][]byte)
	}
	f.objects[bucket][key] = content
}

// SeedN stores n one-byte objects under bucket with the given key prefix.
func (f *Fake) SeedN(bucket, keyPrefix string, n int) {
	for i := 0; i < n; i++ {
		f.Seed(bucket, keyPrefix+padded(i), []byte{0})
	}
}

// Deny makes every listing of bucket fail with permission denied.
func (f *Fake) Deny(bucket string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[bucket] = true
}

// RequireCreds makes Ping reject any other credential pair.
func (f *Fake) RequireCreds(creds objstore.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds = &creds
}

// ListCalls reports how many ListPage calls the fake has served.
func (f *Fake) ListCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listens
}

// OnList registers a hook that runs at the start of every ListPage call.
func (f *Fake) OnList(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listHook = hook
}

// Connect implements objstore.Connector.
func (f *Fake) Connect(_ context.Context, creds objstore.Credentials) (objstore.Store, error) {
	return &view{fake: f, creds: creds}, nil
}

// view is one connection's window onto the fake.
type view struct {
	fake  *Fake
	creds objstore.Credentials
}

func (v *view) Ping(_ context.Context) error {
	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()
	if v.fake.creds != nil && *v.fake.creds != v.creds {
		return errs.New(errs.ErrKindPermissionDenied, "invalid credentials")
	}
	return v.fake.pingErr
}

func (v *view) Close() error { return nil }

func (v *view) ListBuckets(_ context.Context) ([]objstore.BucketInfo, error) {
	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()

	var buckets []objstore.BucketInfo
	for name := range v.fake.objects {
		buckets = append(buckets, objstore.BucketInfo{Name: name})
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })
	return buckets, nil
}

func (v *view) ListPage(ctx context.Context, bucket string, q objstore.PageQuery) (*objstore.Page, error) {
	v.fake.mu.Lock()
	hook := v.fake.listHook
	v.fake.listens++
	v.fake.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindTimeout, "listing cancelled", err)
	}

	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()

	if v.fake.denied[bucket] {
		return nil, errs.New(errs.ErrKindPermissionDenied, "access denied to bucket "+bucket)
	}

	maxKeys := q.MaxKeys
	if maxKeys <= 0 {
		maxKeys = objstore.DefaultPageSize
	}

	keys := v.sortedKeys(bucket, q.Prefix)
	page := &objstore.Page{}
	seenPrefixes := map[string]bool{}
	count := 0

	for _, key := range keys {
		if q.Cursor != "" && key <= q.Cursor {
			continue
		}
		if count == maxKeys {
			page.IsTruncated = true
			break
		}

		if !q.Recursive {
			rest := key[len(q.Prefix):]
			if i := strings.Index(rest, "/"); i >= 0 {
				dir := q.Prefix + rest[:i+1]
				if seenPrefixes[dir] {
					continue
				}
				seenPrefixes[dir] = true
				page.CommonPrefixes = append(page.CommonPrefixes, dir)
				page.NextCursor = key
				count++
				continue
			}
		}

		page.Entries = append(page.Entries, objstore.ObjectInfo{
			Key:  key,
			Size: int64(len(v.fake.objects[bucket][key])),
		})
		page.NextCursor = key
		count++
	}

	if !page.IsTruncated {
		page.NextCursor = ""
	}
	return page, nil
}

func (v *view) PutObject(_ context.Context, bucket, key string, r io.Reader, _ int64, _ string) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return errs.Wrap(errs.ErrKindStoreFailed, "failed to read upload", err)
	}

	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()
	if v.fake.objects[bucket] == nil {
		v.fake.objects[bucket] = make(map[string][]byte)
	}
	v.fake.objects[bucket][key] = content
	return nil
}

func (v *view) RemoveObject(_ context.Context, bucket, key string) error {
	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()
	delete(v.fake.objects[bucket], key)
	return nil
}

func (v *view) RemovePrefix(_ context.Context, bucket, prefix string) (int, error) {
	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()

	removed := 0
	for key := range v.fake.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			delete(v.fake.objects[bucket], key)
			removed++
		}
	}
	return removed, nil
}

func (v *view) StatObject(_ context.Context, bucket, key string) (*objstore.ObjectInfo, error) {
	v.fake.mu.Lock()
	defer v.fake.mu.Unlock()

	content, ok := v.fake.objects[bucket][key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "no such object: "+key)
	}
	return &objstore.ObjectInfo{Key: key, Size: int64(len(content))}, nil
}

func (v *view) GetObject(ctx context.Context, bucket, key string) (objstore.Object, error) {
	info, err := v.StatObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	v.fake.mu.Lock()
	content := v.fake.objects[bucket][key]
	v.fake.mu.Unlock()

	return &fakeObject{
		ReadCloser: io.NopCloser(bytes.NewReader(content)),
		info:       info,
	}, nil
}

func (v *view) PresignGetURL(_ context.Context, bucket, key string, _ time.Duration) (string, error) {
	return "https://fake.invalid/" + bucket + "/" + key, nil
}

func (v *view) sortedKeys(bucket, prefix string) []string {
	var keys []string
	for key := range v.fake.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

type fakeObject struct {
	io.ReadCloser
	info *objstore.ObjectInfo
}

func (o *fakeObject) Info() *objstore.ObjectInfo { return o.info }

func padded(i int) string {
	const digits = "0123456789"
	buf := make([]byte, 8)
	for pos := 7; pos >= 0; pos-- {
		buf[pos] = digits[i%10]
		i /= 10
	}
	return string(buf)
}

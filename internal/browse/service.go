// Package browse orchestrates the user-facing flows: session-authenticated
// listings through the cache, mutations with targeted invalidation, and
// fire-and-forget bucket-size computation.
//
// The package owns the glue policy — what gets invalidated after which
// mutation, when the cache is consulted versus bypassed — while the heavy
// lifting lives in listcache, bucketsize, session and objstore.
package browse

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/vantor/bucketscope/internal/bucketsize"
	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/listcache"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
	"github.com/vantor/bucketscope/internal/session"
	"golang.org/x/sync/singleflight"
)

// Service ties the session store, listing cache, aggregator and upstream
// store together behind the operations the API layer exposes.
type Service struct {
	sessions  *session.Store
	cache     *listcache.Cache
	agg       *bucketsize.Aggregator
	connector objstore.Connector
	log       *logger.Logger

	// listGroup collapses concurrent identical upstream list calls from
	// this process into one round trip.
	listGroup singleflight.Group

	// inFlight counts uploads and downloads currently streaming. Owned by
	// this service; read through InFlightTransfers.
	inFlight atomic.Int64
}

// New returns a browse service over the given collaborators.
func New(sessions *session.Store, cache *listcache.Cache, agg *bucketsize.Aggregator, connector objstore.Connector, log *logger.Logger) *Service {
	return &Service{
		sessions:  sessions,
		cache:     cache,
		agg:       agg,
		connector: connector,
		log:       log.With().Str("component", "browse").Logger(),
	}
}

// Login validates creds against the upstream store and creates a session.
func (s *Service) Login(ctx context.Context, creds objstore.Credentials) (string, error) {
	store, err := s.connector.Connect(ctx, creds)
	if err != nil {
		return "", err
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return "", err
	}
	return s.sessions.Create(ctx, creds)
}

// Logout deletes the session. Idempotent.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Buckets lists the buckets the session's credentials can see.
func (s *Service) Buckets(ctx context.Context, token string) ([]objstore.BucketInfo, error) {
	store, err := s.connect(ctx, token)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.ListBuckets(ctx)
}

// List returns one page of bucket's listing, served from the cache when a
// valid entry exists. The outcome reports HIT, MISS or BYPASS for the
// X-Cache response header. On a MISS the upstream page is written back; on
// a BYPASS (cache disabled or unhealthy) it deliberately is not.
func (s *Service) List(ctx context.Context, token, bucket, prefix, cursor string, pageSize int) (*objstore.Page, listcache.Outcome, error) {
	creds, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, listcache.OutcomeBypass, err
	}

	if err := s.sessions.TrackBucket(ctx, token, bucket); err != nil {
		s.log.Debugf("bucket tracking failed: %v", err)
	}

	page, outcome := s.cache.Get(ctx, token, bucket, prefix, cursor, pageSize)
	if outcome == listcache.OutcomeHit {
		return page, outcome, nil
	}

	page, err = s.fetchPage(ctx, creds, token, bucket, prefix, cursor, pageSize)
	if err != nil {
		return nil, outcome, err
	}
	if outcome == listcache.OutcomeMiss {
		s.cache.Put(ctx, token, bucket, prefix, cursor, pageSize, page)
	}
	return page, outcome, nil
}

// fetchPage goes upstream, collapsing concurrent identical requests.
func (s *Service) fetchPage(ctx context.Context, creds objstore.Credentials, token, bucket, prefix, cursor string, pageSize int) (*objstore.Page, error) {
	key := fmt.Sprintf("%s|%s|%s|%s|%d", token, bucket, prefix, cursor, pageSize)
	v, err, _ := s.listGroup.Do(key, func() (interface{}, error) {
		store, err := s.connector.Connect(ctx, creds)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		return store.ListPage(ctx, bucket, objstore.PageQuery{
			Prefix:  prefix,
			Cursor:  cursor,
			MaxKeys: pageSize,
		})
	})
	if err != nil {
		return nil, err
	}
	return v.(*objstore.Page), nil
}

// Upload stores size bytes from r at key and invalidates the listings the
// new object is visible in.
func (s *Service) Upload(ctx context.Context, token, bucket, key string, r io.Reader, size int64, contentType string) error {
	store, err := s.connect(ctx, token)
	if err != nil {
		return err
	}
	defer store.Close()

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	if err := store.PutObject(ctx, bucket, key, r, size, contentType); err != nil {
		return err
	}

	s.invalidateAfterMutation(ctx, token, bucket, listcache.AncestorPrefixes(key), nil)
	return nil
}

// Remove deletes a single object and invalidates the listings it was
// visible in.
func (s *Service) Remove(ctx context.Context, token, bucket, key string) error {
	store, err := s.connect(ctx, token)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RemoveObject(ctx, bucket, key); err != nil {
		return err
	}

	s.invalidateAfterMutation(ctx, token, bucket, listcache.AncestorPrefixes(key), nil)
	return nil
}

// RemovePrefix recursively deletes every object under prefix. An unbounded
// subtree disappeared, so beyond the ancestor chain every cached listing
// under prefix is invalidated too.
func (s *Service) RemovePrefix(ctx context.Context, token, bucket, prefix string) (int, error) {
	store, err := s.connect(ctx, token)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	removed, err := store.RemovePrefix(ctx, bucket, prefix)
	if err != nil {
		return removed, err
	}

	s.invalidateAfterMutation(ctx, token, bucket, listcache.AncestorPrefixes(prefix), []string{prefix})
	return removed, nil
}

// Download opens a streaming read of the object. The in-flight gauge stays
// raised until the caller closes the returned handle.
func (s *Service) Download(ctx context.Context, token, bucket, key string) (objstore.Object, error) {
	store, err := s.connect(ctx, token)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	obj, err := store.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	s.inFlight.Add(1)
	return &gaugedObject{Object: obj, gauge: &s.inFlight}, nil
}

// PresignDownload returns a time-limited URL for key, letting large
// downloads go straight to the upstream store instead of streaming through
// this process.
func (s *Service) PresignDownload(ctx context.Context, token, bucket, key string, ttl time.Duration) (string, error) {
	store, err := s.connect(ctx, token)
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.PresignGetURL(ctx, bucket, key, ttl)
}

// InFlightTransfers returns how many uploads/downloads are streaming now.
func (s *Service) InFlightTransfers() int64 {
	return s.inFlight.Load()
}

// BucketSize returns the cached aggregate for bucket, or nil when nothing
// has been calculated yet. Never blocks on a computation.
func (s *Service) BucketSize(ctx context.Context, token, bucket string) (*bucketsize.Result, error) {
	creds, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.agg.GetCached(ctx, bucket, creds.AccessKeyID)
}

// StartBucketSize kicks off a bucket-size computation and returns
// immediately. The computation proceeds on a detached context so the
// triggering request's cancellation cannot abort it.
func (s *Service) StartBucketSize(ctx context.Context, token, bucket string, force bool) error {
	creds, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.agg.ComputeWithLock(bg, bucket, creds, force); err != nil {
			s.log.Warnf("bucket-size computation failed for %q: %v", bucket, err)
		}
	}()
	return nil
}

// invalidateAfterMutation applies the configured invalidation policy.
func (s *Service) invalidateAfterMutation(ctx context.Context, token, bucket string, exact, withChildren []string) {
	var err error
	if s.cache.WholeBucketInvalidation() {
		_, err = s.cache.InvalidateBucket(ctx, token, bucket)
	} else {
		_, err = s.cache.InvalidateByPrefix(ctx, token, bucket, exact, withChildren)
	}
	if err != nil {
		s.log.Warnf("cache invalidation failed: %v", err)
	}
}

// connect resolves the session and opens an upstream store with its
// credentials.
func (s *Service) connect(ctx context.Context, token string) (objstore.Store, error) {
	creds, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	store, err := s.connector.Connect(ctx, creds)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnavailable, "upstream store unreachable", err)
	}
	return store, nil
}

// gaugedObject decrements the in-flight gauge when the download closes.
type gaugedObject struct {
	objstore.Object
	gauge  *atomic.Int64
	closed atomic.Bool
}

func (g *gaugedObject) Close() error {
	if g.closed.CompareAndSwap(false, true) {
		g.gauge.Add(-1)
	}
	return g.Object.Close()
}

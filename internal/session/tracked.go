package session

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/vantor/bucketscope/internal/errs"
)

// TrackBucket records that the session has listed bucket at least once.
// The set is advisory — it only scopes background aggregation work — so
// write failures are reported but never block the listing that triggered
// them.
func (s *Store) TrackBucket(ctx context.Context, token, bucket string) error {
	if token == "" || bucket == "" {
		return nil
	}

	buckets, err := s.readTracked(ctx, token)
	if err != nil {
		return err
	}
	if slices.Contains(buckets, bucket) {
		// Membership unchanged; still refresh the set's TTL.
		_, err := s.kv.Expire(ctx, bucketsPrefix+token, s.cfg.TrackedBucketTTL)
		return err
	}

	buckets = append(buckets, bucket)
	slices.Sort(buckets)

	val, err := json.Marshal(buckets)
	if err != nil {
		return errs.Wrap(errs.ErrKindStoreFailed, "failed to encode tracked buckets", err)
	}
	return s.kv.Set(ctx, bucketsPrefix+token, val, s.cfg.TrackedBucketTTL)
}

// TrackedBuckets returns the buckets the session has listed, refreshing the
// set's TTL as an access.
func (s *Store) TrackedBuckets(ctx context.Context, token string) ([]string, error) {
	buckets, err := s.readTracked(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(buckets) > 0 {
		if _, err := s.kv.Expire(ctx, bucketsPrefix+token, s.cfg.TrackedBucketTTL); err != nil {
			s.log.Debugf("tracked bucket ttl renewal failed: %v", err)
		}
	}
	return buckets, nil
}

func (s *Store) readTracked(ctx context.Context, token string) ([]string, error) {
	val, err := s.kv.Get(ctx, bucketsPrefix+token)
	if err != nil {
		if errs.IsNotFound(err) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to read tracked buckets", err)
	}

	var buckets []string
	if err := json.Unmarshal(val, &buckets); err != nil {
		s.kv.Delete(ctx, bucketsPrefix+token)
		return nil, nil
	}
	return buckets, nil
}

// Package session maps opaque browser tokens to upstream credential pairs.
//
// Tokens are high-entropy random values with sliding expiration: every
// successful lookup pushes the expiry back to the full configured lifetime.
// The store keeps no local state — everything lives in the shared kv store,
// so any process in the deployment can resolve any token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/vantor/bucketscope/internal/errs"
	"github.com/vantor/bucketscope/internal/kv"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
)

const (
	// tokenBytes is the entropy of a session token before encoding. At 48
	// random bytes no uniqueness retry is needed on Create.
	tokenBytes = 48

	credPrefix    = "sess:cred:"
	bucketsPrefix = "sess:bkt:"
)

// Config holds session store settings.
type Config struct {
	// TTL is the session lifetime, refreshed on every successful lookup.
	TTL time.Duration

	// TrackedBucketTTL bounds how long a session's tracked-bucket set
	// survives without being touched.
	TrackedBucketTTL time.Duration
}

// DefaultConfig returns production defaults: 24h sessions, 7d tracked sets.
func DefaultConfig() *Config {
	return &Config{
		TTL:              24 * time.Hour,
		TrackedBucketTTL: 7 * 24 * time.Hour,
	}
}

// Store creates, resolves and deletes sessions.
type Store struct {
	kv  kv.Store
	cfg *Config
	log *logger.Logger
}

// New returns a session store on top of the given kv backend.
func New(store kv.Store, cfg *Config, log *logger.Logger) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Store{
		kv:  store,
		cfg: cfg,
		log: log.With().Str("component", "session").Logger(),
	}
}

// Create generates a fresh token and stores creds under it with the
// configured lifetime.
func (s *Store) Create(ctx context.Context, creds objstore.Credentials) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	val, err := json.Marshal(creds)
	if err != nil {
		return "", errs.Wrap(errs.ErrKindInvalidInput, "failed to encode credentials", err)
	}

	if err := s.kv.Set(ctx, credPrefix+token, val, s.cfg.TTL); err != nil {
		return "", errs.Wrap(errs.ErrKindUnavailable, "failed to store session", err)
	}
	return token, nil
}

// Lookup resolves token to its credential pair. A hit slides the expiry
// forward to the full TTL before returning; the renewal is best-effort and
// never fails the lookup itself. Absent or expired tokens surface as
// not-authenticated.
func (s *Store) Lookup(ctx context.Context, token string) (objstore.Credentials, error) {
	creds, err := s.get(ctx, token)
	if err != nil {
		return objstore.Credentials{}, err
	}

	if _, err := s.kv.Expire(ctx, credPrefix+token, s.cfg.TTL); err != nil {
		s.log.Debugf("session ttl renewal failed: %v", err)
	}
	return creds, nil
}

// Peek resolves token without renewing its TTL. The background scheduler
// uses it so that enumeration cycles do not keep idle sessions alive
// indefinitely.
func (s *Store) Peek(ctx context.Context, token string) (objstore.Credentials, error) {
	return s.get(ctx, token)
}

// Delete removes the session and its tracked-bucket set. Idempotent: a
// missing token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if _, err := s.kv.Delete(ctx, credPrefix+token, bucketsPrefix+token); err != nil {
		return errs.Wrap(errs.ErrKindUnavailable, "failed to delete session", err)
	}
	return nil
}

// Tokens returns every live session token. Used by the scheduler to
// enumerate the sessions whose tracked buckets need background aggregation.
func (s *Store) Tokens(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, credPrefix)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindUnavailable, "failed to enumerate sessions", err)
	}

	tokens := make([]string, len(keys))
	for i, k := range keys {
		tokens[i] = k[len(credPrefix):]
	}
	return tokens, nil
}

func (s *Store) get(ctx context.Context, token string) (objstore.Credentials, error) {
	if token == "" {
		return objstore.Credentials{}, errs.New(errs.ErrKindNotAuthenticated, "no session token")
	}

	val, err := s.kv.Get(ctx, credPrefix+token)
	if err != nil {
		if errs.IsNotFound(err) {
			return objstore.Credentials{}, errs.Wrap(errs.ErrKindNotAuthenticated, "session absent or expired", err)
		}
		// A broken session backend also surfaces as not-authenticated:
		// that is the safe direction, and the cause is preserved for logs.
		return objstore.Credentials{}, errs.Wrap(errs.ErrKindNotAuthenticated, "session store unreachable", err)
	}

	var creds objstore.Credentials
	if err := json.Unmarshal(val, &creds); err != nil {
		// Corrupt record: drop it and treat as absent.
		s.kv.Delete(ctx, credPrefix+token)
		return objstore.Credentials{}, errs.Wrap(errs.ErrKindNotAuthenticated, "corrupt session record", err)
	}
	return creds, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errs.Wrap(errs.ErrKindStoreFailed, "failed to generate session token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

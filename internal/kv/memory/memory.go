// Package memory provides an in-process implementation of kv.Store.
//
// It exists for tests and single-process development runs; production
// deployments use the redis driver so TTLs and locks are shared across
// processes. Expiry is lazy: an expired entry is removed when an operation
// touches it, matching the "absence on lookup equals deletion" semantics
// the session store relies on.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vantor/bucketscope/internal/errs"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is an in-memory kv.Store. Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New returns an empty in-memory store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns a store that reads time from now. Tests use this to
// simulate TTL expiry without sleeping.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// Close drops all entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

// Get returns the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		delete(s.entries, key)
		return nil, errs.New(errs.ErrKindNotFound, "key not found: "+key)
	}

	// Copy so callers cannot mutate the stored value.
	val := make([]byte, len(e.value))
	copy(val, e.value)
	return val, nil
}

// Set stores value under key with the given TTL.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.newEntry(value, ttl)
	return nil
}

// SetNX stores value under key only if the key does not already exist.
func (s *Store) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !e.expired(s.now()) {
		return false, nil
	}
	s.entries[key] = s.newEntry(value, ttl)
	return true, nil
}

// Delete removes the given keys and returns how many existed.
func (s *Store) Delete(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for _, key := range keys {
		if e, ok := s.entries[key]; ok {
			if !e.expired(now) {
				count++
			}
			delete(s.entries, key)
		}
	}
	return count, nil
}

// Expire resets key's TTL. Returns false when the key is absent.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.expired(s.now()) {
		delete(s.entries, key)
		return false, nil
	}
	e.expiresAt = s.now().Add(ttl)
	s.entries[key] = e
	return true, nil
}

// Keys returns every live key starting with prefix, sorted for determinism.
func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			continue
		}
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// DeletePrefix removes every key starting with prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.Keys(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return s.Delete(ctx, keys...)
}

func (s *Store) newEntry(value []byte, ttl time.Duration) entry {
	val := make([]byte, len(value))
	copy(val, value)
	e := entry{value: val}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	return e
}

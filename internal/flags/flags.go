// Package flags provides the feature-flag capability the scheduler gates
// itself on.
//
// Two variants exist: Remote polls a flag service over HTTP, Static reads a
// fixed map plus environment overrides. They compose through Chain with
// first-match precedence, so a deployment typically runs
// Chain{remote, static}: the flag service wins when reachable, the static
// value is the fallback. Consumers depend only on the Provider interface.
package flags

import (
	"context"
	"os"
	"strconv"
	"strings"
)

// FlagBackgroundBucketSize gates the background aggregation scheduler.
const FlagBackgroundBucketSize = "background-bucket-size"

// Provider answers feature-flag queries. A provider that has no opinion on
// a flag reports found=false so the next provider in a Chain is consulted.
type Provider interface {
	Enabled(ctx context.Context, name string) (enabled, found bool)
}

// Chain consults providers in order and returns the first definite answer.
// A flag no provider knows is disabled.
type Chain []Provider

// Enabled implements Provider.
func (c Chain) Enabled(ctx context.Context, name string) (bool, bool) {
	for _, p := range c {
		if enabled, found := p.Enabled(ctx, name); found {
			return enabled, true
		}
	}
	return false, false
}

// envPrefix converts flag names to environment overrides:
// "background-bucket-size" → BUCKETSCOPE_FLAG_BACKGROUND_BUCKET_SIZE.
const envPrefix = "BUCKETSCOPE_FLAG_"

// Static answers from a fixed map, with environment variables taking
// precedence over the map.
type Static struct {
	flags map[string]bool
}

// NewStatic returns a Static provider over the given flag values.
func NewStatic(flags map[string]bool) *Static {
	return &Static{flags: flags}
}

// Enabled implements Provider.
func (s *Static) Enabled(_ context.Context, name string) (bool, bool) {
	if raw, ok := os.LookupEnv(envKey(name)); ok {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			return enabled, true
		}
	}
	enabled, ok := s.flags[name]
	return enabled, ok
}

func envKey(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

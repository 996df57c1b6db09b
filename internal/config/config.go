// Package config loads the process configuration from YAML and hands each
// subsystem its own typed Config. Durations appear in the file as Go
// duration strings ("300s", "1h") and are parsed here, so the subsystem
// configs carry real time.Duration values.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/vantor/bucketscope/internal/bucketsize"
	"github.com/vantor/bucketscope/internal/kv"
	"github.com/vantor/bucketscope/internal/listcache"
	"github.com/vantor/bucketscope/internal/logger"
	"github.com/vantor/bucketscope/internal/objstore"
	"github.com/vantor/bucketscope/internal/scheduler"
	"github.com/vantor/bucketscope/internal/session"
)

// Config is the fully-typed process configuration.
type Config struct {
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen string

	Log        *logger.Config
	KV         *kv.Config
	ObjStore   *objstore.Config
	Session    *session.Config
	Cache      *listcache.Config
	BucketSize *bucketsize.Config
	Scheduler  *scheduler.Config
	Flags      Flags
}

// Flags configures the feature-flag providers.
type Flags struct {
	// RemoteURL is the base URL of the flag service. Empty disables the
	// remote provider; the static map is then authoritative.
	RemoteURL string

	// Static are the fallback flag values.
	Static map[string]bool
}

// Default returns the configuration used when no file is given: local
// MinIO and Redis, cache enabled, background aggregation off.
func Default() *Config {
	return &Config{
		Listen:     ":8080",
		Log:        logger.DefaultConfig(),
		KV:         kv.DefaultConfig("localhost:6379"),
		ObjStore:   objstore.DefaultConfig("localhost:9000"),
		Session:    session.DefaultConfig(),
		Cache:      listcache.DefaultConfig(),
		BucketSize: bucketsize.DefaultConfig(),
		Scheduler:  scheduler.DefaultConfig(),
		Flags: Flags{
			Static: map[string]bool{},
		},
	}
}

// file is the raw YAML shape. Durations are strings here and parsed into
// the typed configs by Load.
type file struct {
	Listen string `yaml:"listen"`

	Log struct {
		Level      string `yaml:"level"`
		Format     string `yaml:"format"`
		TimeFormat string `yaml:"time_format"`
	} `yaml:"log"`

	KV struct {
		Provider    string `yaml:"provider"`
		Addr        string `yaml:"addr"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		DialTimeout string `yaml:"dial_timeout"`
		OpTimeout   string `yaml:"op_timeout"`
	} `yaml:"kv"`

	ObjStore struct {
		Endpoint string `yaml:"endpoint"`
		UseSSL   bool   `yaml:"use_ssl"`
		Region   string `yaml:"region"`
	} `yaml:"objstore"`

	Session struct {
		TTL              string `yaml:"ttl"`
		TrackedBucketTTL string `yaml:"tracked_bucket_ttl"`
	} `yaml:"session"`

	Cache struct {
		Enabled                 *bool  `yaml:"enabled"`
		TTL                     string `yaml:"ttl"`
		WholeBucketInvalidation bool   `yaml:"whole_bucket_invalidation"`
	} `yaml:"cache"`

	BucketSize struct {
		MaxDuration string `yaml:"max_duration"`
		MaxObjects  int64  `yaml:"max_objects"`
		PageSize    int    `yaml:"page_size"`
	} `yaml:"bucket_size"`

	Scheduler struct {
		Interval string `yaml:"interval"`
	} `yaml:"scheduler"`

	Flags struct {
		RemoteURL string          `yaml:"remote_url"`
		Static    map[string]bool `yaml:"static"`
	} `yaml:"flags"`
}

// Load reads path and overlays its values on Default. An empty path
// returns Default unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if f.Listen != "" {
		cfg.Listen = f.Listen
	}

	if f.Log.Level != "" {
		cfg.Log.Level = f.Log.Level
	}
	if f.Log.Format != "" {
		cfg.Log.Format = f.Log.Format
	}
	if f.Log.TimeFormat != "" {
		cfg.Log.TimeFormat = f.Log.TimeFormat
	}

	if f.KV.Provider != "" {
		cfg.KV.Provider = kv.Provider(f.KV.Provider)
	}
	if f.KV.Addr != "" {
		cfg.KV.Addr = f.KV.Addr
	}
	cfg.KV.Password = f.KV.Password
	cfg.KV.DB = f.KV.DB
	if err := overlayDuration(&cfg.KV.DialTimeout, f.KV.DialTimeout, "kv.dial_timeout"); err != nil {
		return nil, err
	}
	if err := overlayDuration(&cfg.KV.OpTimeout, f.KV.OpTimeout, "kv.op_timeout"); err != nil {
		return nil, err
	}

	if f.ObjStore.Endpoint != "" {
		cfg.ObjStore.Endpoint = f.ObjStore.Endpoint
	}
	cfg.ObjStore.UseSSL = f.ObjStore.UseSSL
	cfg.ObjStore.Region = f.ObjStore.Region

	if err := overlayDuration(&cfg.Session.TTL, f.Session.TTL, "session.ttl"); err != nil {
		return nil, err
	}
	if err := overlayDuration(&cfg.Session.TrackedBucketTTL, f.Session.TrackedBucketTTL, "session.tracked_bucket_ttl"); err != nil {
		return nil, err
	}

	if f.Cache.Enabled != nil {
		cfg.Cache.Enabled = *f.Cache.Enabled
	}
	if err := overlayDuration(&cfg.Cache.TTL, f.Cache.TTL, "cache.ttl"); err != nil {
		return nil, err
	}
	cfg.Cache.WholeBucketInvalidation = f.Cache.WholeBucketInvalidation

	if err := overlayDuration(&cfg.BucketSize.MaxDuration, f.BucketSize.MaxDuration, "bucket_size.max_duration"); err != nil {
		return nil, err
	}
	if f.BucketSize.MaxObjects > 0 {
		cfg.BucketSize.MaxObjects = f.BucketSize.MaxObjects
	}
	if f.BucketSize.PageSize > 0 {
		cfg.BucketSize.PageSize = f.BucketSize.PageSize
	}

	if err := overlayDuration(&cfg.Scheduler.Interval, f.Scheduler.Interval, "scheduler.interval"); err != nil {
		return nil, err
	}

	cfg.Flags.RemoteURL = f.Flags.RemoteURL
	if f.Flags.Static != nil {
		cfg.Flags.Static = f.Flags.Static
	}

	return cfg, nil
}

// overlayDuration parses raw into dst when raw is non-empty.
func overlayDuration(dst *time.Duration, raw, field string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", field, err)
	}
	*dst = d
	return nil
}

package shardcache

import (
	"log/slog"
	"time"

	"github.com/datapipe/shardcache/transport"
)

type cacheConfig struct {
	dir       string
	size      int64
	interval  time.Duration
	namer     Namer
	validator Validator
	opener    transport.Opener
	logger    *slog.Logger
	keyFn     RecencyKey
}

// Option configures a FileCache.
type Option func(*cacheConfig)

// WithCacheDir sets the cache root directory (default "./_cache").
func WithCacheDir(dir string) Option {
	return func(cfg *cacheConfig) {
		if dir != "" {
			cfg.dir = dir
		}
	}
}

// WithCacheSize enables eviction with the given byte budget. Sizes <= 0
// leave the cache unbounded.
func WithCacheSize(bytes int64) Option {
	return func(cfg *cacheConfig) {
		cfg.size = bytes
	}
}

// WithSweepInterval sets the minimum time between eviction scans
// (default 30s). Zero or negative makes every miss eligible to sweep.
func WithSweepInterval(d time.Duration) Option {
	return func(cfg *cacheConfig) {
		cfg.interval = d
	}
}

// WithNamer replaces the URL-to-name mapping (default BaseName).
func WithNamer(namer Namer) Option {
	return func(cfg *cacheConfig) {
		cfg.namer = namer
	}
}

// WithValidator replaces the post-download archive check (default
// IsArchive). A nil validator disables validation entirely.
func WithValidator(v Validator) Option {
	return func(cfg *cacheConfig) {
		cfg.validator = v
	}
}

// WithOpener sets the transport used to fetch URLs (default
// transport.Default, covering local files and HTTP(S)).
func WithOpener(opener transport.Opener) Option {
	return func(cfg *cacheConfig) {
		cfg.opener = opener
	}
}

// WithLogger sets the logger. Defaults to discarding logs.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *cacheConfig) {
		cfg.logger = logger
	}
}

// WithRecencyKey sets the eviction ordering key (default ModTimeKey).
func WithRecencyKey(fn RecencyKey) Option {
	return func(cfg *cacheConfig) {
		cfg.keyFn = fn
	}
}

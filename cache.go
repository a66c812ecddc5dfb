package shardcache

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/datapipe/shardcache/transport"
)

const cacheDirPerm = 0o700

// Defaults mirror the environment data loaders historically ran with.
const (
	// DefaultCacheDir is the cache root used when none is configured.
	DefaultCacheDir = "./_cache"

	// DefaultCacheSize is effectively unbounded.
	DefaultCacheSize = int64(1e18)
)

// FileCache guarantees that a validated local copy exists for every
// requested URL, reusing previous downloads and evicting old entries
// when a size budget is configured.
//
// The filesystem is the only source of truth: hits are detected by file
// presence, eviction re-derives sizes by directory traversal, and no
// in-memory index is kept. Multiple processes may share one cache
// directory; racing fills download redundantly but publish atomically,
// so a partial file is never observed at a canonical path.
//
// Eviction runs before a download, never after, so the cache can
// transiently exceed its budget by up to one shard until the next miss
// triggers a sweep.
type FileCache struct {
	dir       string
	namer     Namer
	validator Validator
	opener    transport.Opener
	sweeper   *Sweeper // nil when eviction is disabled
	logger    *slog.Logger

	fillGroup singleflight.Group
}

// New creates a FileCache with the given options.
func New(opts ...Option) (*FileCache, error) {
	cfg := cacheConfig{
		dir:       DefaultCacheDir,
		namer:     BaseName,
		validator: IsArchive,
		interval:  DefaultSweepInterval,
		keyFn:     ModTimeKey,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &FileCache{
		dir:       cfg.dir,
		namer:     cfg.namer,
		validator: cfg.validator,
		opener:    cfg.opener,
		logger:    cfg.logger,
	}
	if c.namer == nil {
		c.namer = BaseName
	}
	if c.opener == nil {
		c.opener = transport.Default()
	}
	if cfg.size > 0 {
		c.sweeper = NewSweeper(cfg.dir, cfg.size,
			SweepInterval(cfg.interval),
			SweepRecencyKey(cfg.keyFn),
			SweepLogger(cfg.logger),
		)
	}
	return c, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (c *FileCache) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Dir returns the cache root.
func (c *FileCache) Dir() string { return c.dir }

// GetFile returns the local path holding a copy of rawurl, downloading
// and validating on a miss. Presence is sufficient for a hit: cached
// files are never freshness-checked or re-validated. Concurrent
// in-process requests for the same entry share a single download.
//
// Returns a *FetchError for transport failures and a *ValidationError
// when the downloaded content is not an archive; in both cases nothing
// is left at the canonical path.
func (c *FileCache) GetFile(ctx context.Context, rawurl string) (string, error) {
	name, err := c.namer(rawurl)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(c.dir, filepath.FromSlash(name))

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	_, err, _ = c.fillGroup.Do(dest, func() (any, error) {
		return nil, c.fill(ctx, rawurl, dest)
	})
	if err != nil {
		return "", err
	}
	return dest, nil
}

func (c *FileCache) fill(ctx context.Context, rawurl, dest string) error {
	// A concurrent fill may have landed the file while this one queued.
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), cacheDirPerm); err != nil {
		return &FetchError{URL: rawurl, Err: err}
	}

	// Bound the cache before growing it, not after, so the new shard is
	// counted against a freshly-pruned directory.
	if c.sweeper != nil {
		c.sweeper.Sweep()
	}

	c.log().Debug("downloading shard", "url", rawurl, "dest", dest)
	if err := download(ctx, c.opener, rawurl, dest); err != nil {
		return err
	}

	if c.validator != nil && !c.validator(dest) {
		kind := DetectKind(dest)
		preview := readPreview(dest)
		if err := os.Remove(dest); err != nil {
			c.log().Debug("removing rejected download", "path", dest, "err", err)
		}
		return &ValidationError{URL: rawurl, Path: dest, Kind: kind, Preview: preview}
	}
	return nil
}

// OpenFile opens rawurl for reading. URLs with an empty or "file"
// scheme are opened directly, bypassing cache and validation; anything
// else goes through GetFile first. The caller owns the returned stream.
func (c *FileCache) OpenFile(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	stream, _, err := c.open(ctx, rawurl)
	return stream, err
}

// open resolves rawurl to an open stream plus the local path backing it.
func (c *FileCache) open(ctx context.Context, rawurl string) (io.ReadCloser, string, error) {
	if u, err := url.Parse(rawurl); err == nil && (u.Scheme == "" || u.Scheme == "file") {
		p := rawurl
		if u.Scheme == "file" {
			p = u.Path
		}
		f, err := os.Open(p)
		if err != nil {
			return nil, "", &FetchError{URL: rawurl, Err: err}
		}
		return f, p, nil
	}

	dest, err := c.GetFile(ctx, rawurl)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(dest)
	if err != nil {
		// Evicted between publish and open; surfacing a FetchError lets
		// the retry loop re-download.
		return nil, "", &FetchError{URL: rawurl, Err: err}
	}
	return f, dest, nil
}

// Package shardcache provides a local disk cache for remotely-fetched
// archive shards, built for data-loading pipelines that repeatedly
// request large files by URL.
//
// Given a URL, [FileCache.GetFile] guarantees a validated local copy
// exists: previous downloads are reused by presence alone, fresh
// downloads are published atomically via rename, their content is
// checked to actually be an archive, and a size-bounded LRU sweep keeps
// the cache directory under budget.
//
// # Quick start
//
// Cache shards under /var/cache/shards with a 50 GiB budget:
//
//	cache, err := shardcache.New(
//	    shardcache.WithCacheDir("/var/cache/shards"),
//	    shardcache.WithCacheSize(50<<30),
//	)
//	if err != nil {
//	    return err
//	}
//	path, err := cache.GetFile(ctx, "https://example.com/data/train-0001.tar")
//
// Open a whole sequence of shards lazily, skipping ones that keep
// failing:
//
//	results := cache.OpenAll(ctx,
//	    shardcache.Requests(urls...),
//	    shardcache.Skip,
//	)
//	for res := range results {
//	    consume(res.Stream)
//	    res.Stream.Close()
//	}
//
// # Filesystem as index
//
// The cache keeps no resident index. Hits are detected by stat, the
// sweeper re-derives sizes by walking the directory, and the only
// recency signal is the file timestamp. This keeps the cache correct
// under external mutation: several processes can share one directory,
// coordinated only by atomic renames and tolerated deletion races.
//
// # Transports
//
// Remote bytes arrive through [transport.Opener]. Local files and
// HTTP(S) are handled out of the box; gs:// URLs are available via the
// transport/gcs subpackage, and any other scheme can be registered on a
// [transport.Registry].
package shardcache

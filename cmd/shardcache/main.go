package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Luzifer/rconfig/v2"

	"github.com/datapipe/shardcache"
)

var (
	cfg = struct {
		CacheDir      string        `flag:"cache-dir" default:"./_cache" description:"Directory holding cached shards"`
		CacheSize     int64         `flag:"cache-size" default:"1000000000000000000" description:"Cache size budget in bytes"`
		LogLevel      string        `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
		SkipFailed    bool          `flag:"skip-failed" default:"false" description:"Skip shards that keep failing instead of aborting"`
		SweepInterval time.Duration `flag:"sweep-interval" default:"30s" description:"Minimum time between eviction scans"`

		VersionAndExit bool `flag:"version" default:"false" description:"Prints current version and exits"`
	}{}

	version = "dev"
)

func init() {
	rconfig.AutoEnv(true)
	if err := rconfig.ParseAndValidate(&cfg); err != nil {
		log.Fatalf("Unable to parse commandline options: %s", err)
	}

	if cfg.VersionAndExit {
		fmt.Printf("shardcache %s\n", version)
		os.Exit(0)
	}

	if l, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("Unable to parse log level")
	} else {
		log.SetLevel(l)
	}
}

func main() {
	urls := rconfig.Args()
	if len(urls) > 0 {
		urls = urls[1:] // first arg is the binary name
	}
	if len(urls) == 0 {
		log.Fatal("No shard URLs given")
	}

	level := slog.LevelInfo
	if log.GetLevel() >= log.DebugLevel {
		level = slog.LevelDebug
	}

	cache, err := shardcache.New(
		shardcache.WithCacheDir(cfg.CacheDir),
		shardcache.WithCacheSize(cfg.CacheSize),
		shardcache.WithSweepInterval(cfg.SweepInterval),
		shardcache.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))),
	)
	if err != nil {
		log.WithError(err).Fatal("Unable to create cache")
	}

	var handler shardcache.Handler = shardcache.Abort
	if cfg.SkipFailed {
		handler = func(err error) bool {
			log.WithError(err).Warn("Shard attempt failed")
			return true
		}
	}

	var cached int
	for res := range cache.OpenAll(context.Background(), shardcache.Requests(urls...), handler) {
		if err := res.Stream.Close(); err != nil {
			log.WithError(err).Error("closing shard stream (leaked fd)")
		}
		log.WithFields(log.Fields{
			"url":  res.URL,
			"path": res.LocalPath,
		}).Info("Cached shard")
		cached++
	}

	if cached < len(urls) {
		log.Warnf("Cached %d of %d shards", cached, len(urls))
		os.Exit(1)
	}
}

package shardcache

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultSweepInterval is the minimum time between eviction scans.
const DefaultSweepInterval = 30 * time.Second

// RecencyKey extracts the timestamp used to order cache entries for
// eviction; entries with older keys are evicted first.
type RecencyKey func(info fs.FileInfo) time.Time

// ModTimeKey is the default RecencyKey.
func ModTimeKey(info fs.FileInfo) time.Time { return info.ModTime() }

type sweepEntry struct {
	path string
	size int64
	key  time.Time
}

// Sweeper bounds the total size of files under a directory by deleting
// the least recently used ones. Sweeps are advisory: concurrent readers
// and writers are tolerated, vanished files are skipped, and Sweep
// never reports an error to its caller. Deletion is whole-file only: a
// file exceeding the budget by itself is removed entirely rather than
// truncated, even when it is the newest entry.
type Sweeper struct {
	dir      string
	budget   int64
	interval time.Duration
	keyFn    RecencyKey
	logger   *slog.Logger

	mu      sync.Mutex
	now     func() time.Time
	lastRun time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// SweepInterval sets the minimum time between scans (default 30s).
// Zero or negative makes every call eligible to scan.
func SweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = d
	}
}

// SweepRecencyKey sets the eviction ordering key (default ModTimeKey).
func SweepRecencyKey(fn RecencyKey) SweeperOption {
	return func(s *Sweeper) {
		if fn != nil {
			s.keyFn = fn
		}
	}
}

// SweepLogger sets the logger. Defaults to discarding logs.
func SweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

// NewSweeper creates a Sweeper enforcing budget bytes under dir.
func NewSweeper(dir string, budget int64, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		dir:      dir,
		budget:   budget,
		interval: DefaultSweepInterval,
		keyFn:    ModTimeKey,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sweeper) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

// Sweep runs one scan-and-delete cycle. It is a no-op when the minimum
// interval since the last completed scan has not elapsed, when the
// directory does not exist, or when the directory is already within
// budget. The last-run stamp advances after every cycle that actually
// scanned, including scans that deleted nothing.
func (s *Sweeper) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval > 0 && s.now().Sub(s.lastRun) < s.interval {
		return
	}
	if _, err := os.Stat(s.dir); err != nil {
		return
	}

	entries, total := s.scan()
	s.lastRun = s.now()
	if total <= s.budget {
		return
	}

	// Newest first; the tail is the eviction cursor.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key.Equal(entries[j].key) {
			return entries[i].path > entries[j].path
		}
		return entries[i].key.After(entries[j].key)
	})

	for len(entries) > 0 && total > s.budget {
		victim := entries[len(entries)-1]
		entries = entries[:len(entries)-1]
		if err := os.Remove(victim.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.log().Debug("eviction skipped", "path", victim.path, "err", err)
			continue
		}
		total -= victim.size
		s.log().Debug("evicted", "path", victim.path, "size", victim.size)
	}
}

func (s *Sweeper) scan() ([]sweepEntry, int64) {
	var entries []sweepEntry
	var total int64
	_ = filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Entries racing with concurrent deletion are simply absent
			// from this scan.
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		entries = append(entries, sweepEntry{
			path: path,
			size: info.Size(),
			key:  s.keyFn(info),
		})
		return nil
	})
	return entries, total
}

package shardcache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSized writes a file of n bytes and stamps it with mtime.
func writeSized(tb testing.TB, dir, name string, n int, mtime time.Time) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(tb, os.WriteFile(path, make([]byte, n), 0o600))
	require.NoError(tb, os.Chtimes(path, mtime, mtime))
	return path
}

func dirTotal(tb testing.TB, dir string) int64 {
	tb.Helper()

	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	require.NoError(tb, err)
	return total
}

func TestSweepEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	oldest := writeSized(t, dir, "a.tar", 40, base)
	middle := writeSized(t, dir, "sub/b.tar", 40, base.Add(time.Minute))
	newest := writeSized(t, dir, "c.tar", 40, base.Add(2*time.Minute))

	s := NewSweeper(dir, 50, SweepInterval(0))
	s.Sweep()

	assert.NoFileExists(t, oldest)
	assert.NoFileExists(t, middle)
	assert.FileExists(t, newest)
	assert.LessOrEqual(t, dirTotal(t, dir), int64(50))
}

func TestSweepUnderBudgetIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	a := writeSized(t, dir, "a.tar", 30, base)
	b := writeSized(t, dir, "b.tar", 30, base.Add(time.Minute))

	s := NewSweeper(dir, 100, SweepInterval(0))
	s.Sweep()

	assert.FileExists(t, a)
	assert.FileExists(t, b)
}

func TestSweepStopsAtBudget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	oldest := writeSized(t, dir, "a.tar", 60, base)
	newer := writeSized(t, dir, "b.tar", 60, base.Add(time.Minute))
	newest := writeSized(t, dir, "c.tar", 60, base.Add(2*time.Minute))

	s := NewSweeper(dir, 120, SweepInterval(0))
	s.Sweep()

	// Deleting the single oldest file is enough; newer files survive.
	assert.NoFileExists(t, oldest)
	assert.FileExists(t, newer)
	assert.FileExists(t, newest)
}

func TestSweepRemovesSingleOversizedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	huge := writeSized(t, dir, "huge.tar", 200, time.Now())

	s := NewSweeper(dir, 50, SweepInterval(0))
	s.Sweep()

	assert.NoFileExists(t, huge)
}

func TestSweepIntervalGate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	clock := now
	s := NewSweeper(dir, 50, SweepInterval(time.Minute))
	s.now = func() time.Time { return clock }

	// First sweep scans an empty, under-budget dir and stamps last-run.
	s.Sweep()

	over := writeSized(t, dir, "a.tar", 100, now.Add(-time.Hour))

	// Within the interval the sweep must be a no-op regardless of size.
	clock = clock.Add(30 * time.Second)
	s.Sweep()
	assert.FileExists(t, over)

	clock = clock.Add(time.Minute)
	s.Sweep()
	assert.NoFileExists(t, over)
}

func TestSweepMissingDir(t *testing.T) {
	t.Parallel()

	s := NewSweeper(filepath.Join(t.TempDir(), "absent"), 50, SweepInterval(0))
	s.Sweep()
}

func TestSweepCustomRecencyKey(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	// Reverse the ordering: mtime says "a" is oldest, the custom key
	// says it is newest.
	a := writeSized(t, dir, "a.tar", 40, base)
	b := writeSized(t, dir, "b.tar", 40, base.Add(time.Minute))

	reversed := func(info os.FileInfo) time.Time {
		if filepath.Base(info.Name()) == "a.tar" {
			return base.Add(time.Hour)
		}
		return info.ModTime()
	}

	s := NewSweeper(dir, 50, SweepInterval(0), SweepRecencyKey(reversed))
	s.Sweep()

	assert.FileExists(t, a)
	assert.NoFileExists(t, b)
}

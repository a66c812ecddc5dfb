package shardcache

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tarBytes builds a one-file tar archive in memory.
func tarBytes(tb testing.TB, name string, content []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(tb, tw.WriteHeader(&tar.Header{
		Name: name,
		Mode: 0o600,
		Size: int64(len(content)),
	}))
	_, err := tw.Write(content)
	require.NoError(tb, err)
	require.NoError(tb, tw.Close())
	return buf.Bytes()
}

// tarGzBytes builds a gzip-compressed tar archive in memory.
func tarGzBytes(tb testing.TB, name string, content []byte) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(tarBytes(tb, name, content))
	require.NoError(tb, err)
	require.NoError(tb, zw.Close())
	return buf.Bytes()
}

func writeFile(tb testing.TB, dir, name string, data []byte) string {
	tb.Helper()

	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, data, 0o600))
	return path
}

func TestIsArchiveTar(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "shard.tar", tarBytes(t, "a.txt", []byte("hello")))
	assert.True(t, IsArchive(path))
}

func TestIsArchiveTarGz(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "shard.tar.gz", tarGzBytes(t, "a.txt", []byte("hello")))
	assert.True(t, IsArchive(path))
}

func TestIsArchiveZstd(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(tarBytes(t, "a.txt", []byte("hello")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeFile(t, t.TempDir(), "shard.tar.zst", buf.Bytes())
	assert.True(t, IsArchive(path))
}

func TestIsArchiveRejectsGarbage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	text := writeFile(t, dir, "note.txt", []byte("this is clearly not an archive"))
	assert.False(t, IsArchive(text))

	empty := writeFile(t, dir, "empty", nil)
	assert.False(t, IsArchive(empty))

	html := writeFile(t, dir, "error.html", []byte("<html><body>404 Not Found</body></html>"))
	assert.False(t, IsArchive(html))
}

func TestIsArchiveRejectsForgedGzipMagic(t *testing.T) {
	t.Parallel()

	forged := append([]byte{0x1f, 0x8b, 0x08}, bytes.Repeat([]byte{0xff}, 64)...)
	path := writeFile(t, t.TempDir(), "forged.gz", forged)
	assert.False(t, IsArchive(path))
}

func TestIsArchiveMissingFile(t *testing.T) {
	t.Parallel()

	assert.False(t, IsArchive(filepath.Join(t.TempDir(), "absent")))
}

func TestDetectKind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	gz := writeFile(t, dir, "shard.tar.gz", tarGzBytes(t, "a.txt", []byte("hello")))
	assert.Equal(t, "gz", DetectKind(gz))

	text := writeFile(t, dir, "note.txt", []byte("plain text"))
	assert.Equal(t, "unknown", DetectKind(text))
}

func TestReadPreview(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	short := writeFile(t, dir, "short", []byte("abc"))
	assert.Equal(t, []byte("abc"), readPreview(short))

	long := writeFile(t, dir, "long", bytes.Repeat([]byte("x"), 500))
	assert.Len(t, readPreview(long), previewLen)
}

package shardcache

import (
	"errors"
	"io"
	"os"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Validator reports whether the file at path is an acceptable archive.
// It runs once after a fresh download; cache hits are never re-checked.
type Validator func(path string) bool

// archiveKinds are container and compression formats accepted as shard
// archives.
var archiveKinds = map[string]bool{
	"tar": true,
	"gz":  true,
	"zst": true,
	"xz":  true,
	"bz2": true,
	"zip": true,
}

// probeLen covers the deepest magic offset we care about (the ustar
// magic sits at byte 257).
const probeLen = 1024

// IsArchive is the default Validator. It probes the file's magic bytes
// and accepts archive containers (tar, zip) and compressed archives
// (gzip, zstd, xz, bzip2). Gzip and zstd members additionally have
// their stream header decoded, so a file carrying a forged magic is
// still rejected.
func IsArchive(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head := make([]byte, probeLen)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	head = head[:n]

	t, err := filetype.Match(head)
	if err != nil || !archiveKinds[t.Extension] {
		return false
	}

	switch t.Extension {
	case "gz":
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return false
		}
		zr, err := gzip.NewReader(f)
		if err != nil {
			return false
		}
		_ = zr.Close()
	case "zst":
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return false
		}
		zr, err := zstd.NewReader(f)
		if err != nil {
			return false
		}
		zr.Close()
	}
	return true
}

// DetectKind returns a short name for the file type at path, "unknown"
// when nothing matches. Used for ValidationError diagnostics.
func DetectKind(path string) string {
	t, err := filetype.MatchFile(path)
	if err != nil || t == types.Unknown {
		return "unknown"
	}
	return t.Extension
}

// previewLen bounds the content excerpt carried by ValidationError.
const previewLen = 200

func readPreview(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	buf := make([]byte, previewLen)
	n, _ := io.ReadFull(f, buf)
	return buf[:n]
}

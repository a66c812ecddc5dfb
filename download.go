package shardcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/datapipe/shardcache/transport"
)

// downloadChunkSize is the read granularity for shard downloads.
const downloadChunkSize = 1 << 20

// download streams rawurl into dest. Bytes land in a temporary file
// next to dest, suffixed with the PID so fills running in forked worker
// processes cannot collide, and are published with an atomic rename.
// A partially-written file is therefore never visible at dest; on any
// failure the temp file is removed and dest is not created.
func download(ctx context.Context, opener transport.Opener, rawurl, dest string) error {
	stream, err := opener.Open(ctx, rawurl)
	if err != nil {
		return &FetchError{URL: rawurl, Err: err}
	}
	defer stream.Close()

	tmp := fmt.Sprintf("%s.temp%d", dest, os.Getpid())
	f, err := os.Create(tmp)
	if err != nil {
		return &FetchError{URL: rawurl, Err: err}
	}

	_, err = copyChunks(ctx, f, stream, downloadChunkSize)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, dest)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return &FetchError{URL: rawurl, Err: err}
	}
	return nil
}

// copyChunks copies src to dst in fixed-size reads, honoring ctx
// between chunks.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, chunk int) (int64, error) {
	buf := make([]byte, chunk)
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			copied += int64(w)
			if werr != nil {
				return copied, werr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}

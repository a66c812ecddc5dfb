package shardcache

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/url"
	"os"

	"github.com/datapipe/shardcache/transport"
)

// DefaultAttempts bounds how often a single URL is retried before the
// opener moves on without yielding a result for it.
const DefaultAttempts = 10

// Handler decides how a stream opener reacts to a per-URL error: true
// keeps the sequence going, false terminates it entirely.
type Handler func(error) bool

// Abort is the default Handler; it stops the sequence on the first
// error.
func Abort(error) bool { return false }

// Skip ignores the error and keeps the sequence going.
func Skip(error) bool { return true }

// Request identifies one shard to open. Meta is pass-through metadata
// preserved on the matching Result.
type Request struct {
	URL  string
	Meta map[string]string
}

// Result is one successfully opened shard. Ownership of Stream passes
// to the consumer, who must close it. LocalPath is empty when the
// stream was opened without a local copy.
type Result struct {
	URL       string
	LocalPath string
	Stream    io.ReadCloser
	Meta      map[string]string
}

// Requests adapts bare URLs to a Request sequence.
func Requests(urls ...string) iter.Seq[Request] {
	return func(yield func(Request) bool) {
		for _, u := range urls {
			if !yield(Request{URL: u}) {
				return
			}
		}
	}
}

// OpenAll lazily opens one stream per request, caching on the way.
// Each URL is attempted up to DefaultAttempts times; every failure is
// routed to handler, whose return decides between carrying on and
// terminating the whole sequence. URLs whose attempts are exhausted are
// logged and skipped, so the output preserves input order but may be
// shorter than the input. The sequence is single-pass and pull-driven;
// a consumer that stops ranging terminates it.
func (c *FileCache) OpenAll(ctx context.Context, reqs iter.Seq[Request], handler Handler) iter.Seq[Result] {
	if handler == nil {
		handler = Abort
	}
	return func(yield func(Result) bool) {
		for req := range reqs {
			var lastErr error
			opened := false
			for attempt := 0; attempt < DefaultAttempts; attempt++ {
				stream, localPath, err := c.open(ctx, req.URL)
				if err == nil {
					opened = true
					if !yield(Result{URL: req.URL, LocalPath: localPath, Stream: stream, Meta: req.Meta}) {
						return
					}
					break
				}
				lastErr = err
				if !handler(err) {
					return
				}
			}
			if !opened {
				c.log().Warn("giving up on shard",
					"url", req.URL, "attempts", DefaultAttempts, "err", lastErr)
			}
		}
	}
}

// StreamOpener opens shard streams directly, with no caching, retry
// ceiling, or validation. It serves pipelines that read every shard
// exactly once and have no use for a local copy.
type StreamOpener struct {
	// Opener fetches remote URLs. Defaults to transport.Default().
	Opener transport.Opener

	// Handler decides continue-vs-abort on errors. Defaults to Abort.
	Handler Handler

	// Logger defaults to discarding logs.
	Logger *slog.Logger
}

func (s *StreamOpener) log() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

// OpenAll lazily opens one stream per request. Local files (empty or
// "file" scheme) are opened from disk and carry a LocalPath; everything
// else streams straight from the transport.
func (s *StreamOpener) OpenAll(ctx context.Context, reqs iter.Seq[Request]) iter.Seq[Result] {
	opener := s.Opener
	if opener == nil {
		opener = transport.Default()
	}
	handler := s.Handler
	if handler == nil {
		handler = Abort
	}
	return func(yield func(Result) bool) {
		for req := range reqs {
			stream, localPath, err := openDirect(ctx, opener, req.URL)
			if err != nil {
				if handler(err) {
					s.log().Debug("skipping shard", "url", req.URL, "err", err)
					continue
				}
				return
			}
			if !yield(Result{URL: req.URL, LocalPath: localPath, Stream: stream, Meta: req.Meta}) {
				return
			}
		}
	}
}

func openDirect(ctx context.Context, opener transport.Opener, rawurl string) (io.ReadCloser, string, error) {
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

	stream, err := opener.Open(ctx, rawurl)
	if err != nil {
		return nil, "", &FetchError{URL: rawurl, Err: err}
	}
	return stream, "", nil
}

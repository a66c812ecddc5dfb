// Package transport opens readable byte streams for URLs.
//
// The cache only needs the chunked-read contract: given a URL, produce
// an io.ReadCloser. Openers for local files and HTTP(S) are built in;
// other schemes plug into a Registry.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Opener opens a readable byte stream for a URL. The caller owns the
// returned stream and must close it.
type Opener interface {
	Open(ctx context.Context, rawurl string) (io.ReadCloser, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, rawurl string) (io.ReadCloser, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	return f(ctx, rawurl)
}

// HTTP opens http:// and https:// URLs with plain GET requests.
type HTTP struct {
	client  *http.Client
	headers http.Header
}

// HTTPOption configures an HTTP opener.
type HTTPOption func(*HTTP)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = client
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		if h.headers == nil {
			h.headers = make(http.Header)
		}
		h.headers.Set(key, value)
	}
}

// NewHTTP creates an HTTP opener.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{client: http.DefaultClient}
	for _, opt := range opts {
		opt(h)
	}
	if h.client == nil {
		h.client = http.DefaultClient
	}
	return h
}

// Open implements Opener.
func (h *HTTP) Open(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range h.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return resp.Body, nil
}

// File opens bare paths and file:// URLs from the local filesystem.
type File struct{}

// Open implements Opener.
func (File) Open(_ context.Context, rawurl string) (io.ReadCloser, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawurl, err)
	}
	p := rawurl
	if u.Scheme == "file" {
		p = u.Path
	}
	return os.Open(p)
}

// Registry dispatches Open calls to per-scheme openers.
type Registry struct {
	openers map[string]Opener
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{openers: make(map[string]Opener)}
}

// Register routes the given scheme to opener. The empty scheme covers
// bare local paths.
func (r *Registry) Register(scheme string, opener Opener) {
	r.openers[scheme] = opener
}

// Open implements Opener by dispatching on the URL scheme.
func (r *Registry) Open(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawurl, err)
	}
	opener, ok := r.openers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("no opener registered for scheme %q", u.Scheme)
	}
	return opener.Open(ctx, rawurl)
}

// Default returns a Registry covering local files and HTTP(S).
func Default() *Registry {
	r := NewRegistry()
	f := File{}
	r.Register("", f)
	r.Register("file", f)
	h := NewHTTP()
	r.Register("http", h)
	r.Register("https", h)
	return r
}

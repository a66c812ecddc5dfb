package shardcache

import (
	"errors"
	"fmt"
)

// ErrNotArchive is the sentinel wrapped by ValidationError. Use
// errors.Is(err, ErrNotArchive) to detect rejected downloads without
// caring about the details.
var ErrNotArchive = errors.New("not an archive")

// FetchError reports a transport or I/O failure while fetching a URL.
// The canonical cache path is never created when a fetch fails.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError reports a downloaded file that failed the archive
// check. The offending file has already been deleted by the time the
// error is returned; Kind and Preview describe what was found instead.
type ValidationError struct {
	URL     string
	Path    string
	Kind    string // detected file kind, "unknown" if no match
	Preview []byte // up to 200 bytes of the rejected content
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (%s) is not an archive but %q, starts with %q",
		e.Path, e.URL, e.Kind, e.Preview)
}

func (e *ValidationError) Unwrap() error { return ErrNotArchive }

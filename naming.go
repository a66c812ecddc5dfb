package shardcache

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Namer derives a cache-relative path from a URL. Implementations must
// be deterministic: the same URL maps to the same path across runs.
type Namer func(rawurl string) (string, error)

// directSchemes are URL schemes whose path component already carries a
// usable file name.
var directSchemes = map[string]bool{
	"":      true,
	"file":  true,
	"http":  true,
	"https": true,
	"ftp":   true,
	"ftps":  true,
	"gs":    true,
	"s3":    true,
	"ais":   true,
}

// nameSafe are the characters kept verbatim, beyond letters, digits and
// "_.-~", when encoding URLs with unrecognized schemes.
const nameSafe = "_+{}*,-"

// maxEncodedName bounds encoded fallback names; only the trailing
// characters are kept so names stay filesystem-friendly yet
// deterministic for a given URL.
const maxEncodedName = 128

// URLName maps a URL to a cache-relative name. For recognized schemes
// the name is the last ndir+1 segments of the URL path joined with "/".
// Any other scheme falls back to percent-encoding the whole URL and
// keeping its last 128 characters.
func URLName(rawurl string, ndir int) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawurl, err)
	}
	if !directSchemes[u.Scheme] {
		return encodeName(rawurl), nil
	}

	if ndir < 0 {
		ndir = 0
	}
	segs := strings.Split(u.Path, "/")
	if n := len(segs); n > ndir+1 {
		segs = segs[n-ndir-1:]
	}
	name := path.Join(segs...)
	if name == "" || name == "." {
		return "", errors.New("url has no usable path component")
	}
	return name, nil
}

// BaseName is the default Namer: URLName with ndir=0, keeping only the
// basename of the URL path.
func BaseName(rawurl string) (string, error) {
	return URLName(rawurl, 0)
}

func encodeName(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == '.' || c == '~' || strings.IndexByte(nameSafe, c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	out := b.String()
	if len(out) > maxEncodedName {
		out = out[len(out)-maxEncodedName:]
	}
	return out
}

var pipeURLRe = regexp.MustCompile(`^(https?|hdfs|gs|ais|s3):`)

// PipeURL extracts the first URL-looking token from a "pipe:" command
// specification, recognized by scheme prefix. Sources described as shell
// pipelines still need stable cache names and the embedded URL is the
// best available key. Specs without a recognizable URL are returned
// unchanged, which yields a coarse but legitimate name.
func PipeURL(spec string) string {
	rest, ok := strings.CutPrefix(spec, "pipe:")
	if !ok {
		return spec
	}
	for _, word := range strings.Fields(rest) {
		if pipeURLRe.MatchString(word) {
			return word
		}
	}
	return spec
}

// PipeName is a Namer for pipe: sources: the embedded URL is extracted
// with PipeURL and named with BaseName.
func PipeName(spec string) (string, error) {
	return BaseName(PipeURL(spec))
}

// DigestNamer names entries by the sha256 of the full URL, sharded by
// the first two hex characters. Collision-resistant even when basenames
// repeat across directories, at the cost of unreadable cache listings.
func DigestNamer(rawurl string) (string, error) {
	enc := digest.FromString(rawurl).Encoded()
	return path.Join("sha256", enc[:2], enc), nil
}

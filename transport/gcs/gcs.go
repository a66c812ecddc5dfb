// Package gcs implements a transport.Opener for gs:// URLs backed by
// the Cloud Storage SDK.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// Opener opens gs://bucket/key URLs.
type Opener struct {
	client *gcs.Client
}

// New creates an Opener with its own storage client, authenticated from
// the environment.
func New(ctx context.Context) (*Opener, error) {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Opener{client: client}, nil
}

// NewWithClient wraps an existing storage client. The caller keeps
// ownership of the client; Close becomes a no-op coordination point.
func NewWithClient(client *gcs.Client) *Opener {
	return &Opener{client: client}
}

// Open implements transport.Opener. Missing objects map to
// os.ErrNotExist so callers can treat them like absent local files.
func (o *Opener) Open(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	bucket, key, err := splitObjectURL(rawurl)
	if err != nil {
		return nil, err
	}

	r, err := o.client.Bucket(bucket).Object(key).NewReader(ctx)
	switch {
	case err == nil:
	case errors.Is(err, gcs.ErrObjectNotExist):
		return nil, os.ErrNotExist
	default:
		return nil, fmt.Errorf("open object reader: %w", err)
	}
	return r, nil
}

// Close releases the underlying storage client.
func (o *Opener) Close() error {
	return o.client.Close()
}

func splitObjectURL(rawurl string) (bucket, key string, err error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", "", fmt.Errorf("parse object URL: %w", err)
	}
	if u.Scheme != "gs" || u.Host == "" {
		return "", "", fmt.Errorf("invalid gs URL %q", rawurl)
	}
	key = strings.TrimLeft(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("gs URL %q names no object", rawurl)
	}
	return u.Host, key, nil
}

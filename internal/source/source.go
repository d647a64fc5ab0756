// Package source downloads ANCINE source bundles from object storage into the
// local data directory.
package source

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Object is one listed blob.
type Object struct {
	Key  string
	Size int64
}

// Bucket is the read surface the syncer needs from an object store.
type Bucket interface {
	List(ctx context.Context, prefix string) ([]Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Close() error
}

// Scheme names a supported object store.
type Scheme string

// Supported schemes.
const (
	SchemeS3    Scheme = "s3"
	SchemeAzure Scheme = "az"
	SchemeGCS   Scheme = "gs"
)

// Location is a parsed s3://, az:// or gs:// URI.
type Location struct {
	Scheme Scheme
	Bucket string // bucket or container
	Prefix string
}

func (l Location) String() string {
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Prefix)
}

// ParseURI parses "scheme://bucket/prefix". The prefix may be empty.
func ParseURI(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse source uri %q: %w", raw, err)
	}
	loc := Location{
		Scheme: Scheme(strings.ToLower(u.Scheme)),
		Bucket: u.Host,
		Prefix: strings.TrimPrefix(u.Path, "/"),
	}
	switch loc.Scheme {
	case SchemeS3, SchemeAzure, SchemeGCS:
	default:
		return Location{}, fmt.Errorf("unsupported source scheme %q in %q: expected s3, az or gs", u.Scheme, raw)
	}
	if loc.Bucket == "" {
		return Location{}, fmt.Errorf("empty bucket in source uri %q", raw)
	}
	return loc, nil
}

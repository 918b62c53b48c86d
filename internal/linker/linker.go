// Package linker brokers short-lived signed links to course documents.
//
// It is a separate authorization entry point: the caller's credential is
// re-verified and the single-course access rule re-applied before any link
// is minted. Links are generated fresh per request, never cached.
package linker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrUnsupportedSource is returned when an object reference does not match
// any recognized shape (or needs a default bucket that is not configured).
var ErrUnsupportedSource = errors.New("linker: unsupported source reference")

// Signer mints a signed, read-intent, inline-disposition URL for one stored
// object. Implementations must be safe for concurrent use.
type Signer interface {
	SignedURL(ctx context.Context, bucket, objectPath string, expiry time.Time) (string, error)
}

var (
	gsPattern      = regexp.MustCompile(`(?i)^gs://([^/]+)/(.+)$`)
	storagePattern = regexp.MustCompile(`(?i)^storage://(.+)$`)
)

// Broker resolves raw source references into shareable links.
type Broker struct {
	signer        Signer
	defaultBucket string // bucket for storage:// references; empty = unsupported
	ttl           time.Duration
}

// NewBroker creates a Broker. ttl is the fixed expiry for minted links.
func NewBroker(signer Signer, defaultBucket string, ttl time.Duration) *Broker {
	return &Broker{signer: signer, defaultBucket: defaultBucket, ttl: ttl}
}

// Link is a resolved document link.
type Link struct {
	URL       string
	ExpiresAt time.Time // zero for passthrough URLs (no imposed expiry)
}

// Resolve dispatches on the shape of source:
//
//   - http(s):// URLs pass through unchanged — already stable links.
//   - demo:// is a known seed-content stub: resolvable to nothing, but not
//     an error. Returns (nil, nil).
//   - gs://bucket/path and storage://path (default bucket) are signed.
//   - anything else is ErrUnsupportedSource.
func (b *Broker) Resolve(ctx context.Context, source string) (*Link, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrUnsupportedSource
	}

	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return &Link{URL: source}, nil
	}
	if strings.HasPrefix(source, "demo://") {
		return nil, nil
	}

	bucket, objectPath, err := b.parseObjectRef(source)
	if err != nil {
		return nil, err
	}
	if b.signer == nil {
		return nil, fmt.Errorf("%w: no object store configured", ErrUnsupportedSource)
	}

	expiry := time.Now().Add(b.ttl)
	url, err := b.signer.SignedURL(ctx, bucket, objectPath, expiry)
	if err != nil {
		return nil, fmt.Errorf("linker: sign %s/%s: %w", bucket, objectPath, err)
	}
	return &Link{URL: url, ExpiresAt: expiry}, nil
}

// parseObjectRef extracts (bucket, objectPath) from a gs:// or storage://
// reference.
func (b *Broker) parseObjectRef(source string) (string, string, error) {
	if m := gsPattern.FindStringSubmatch(source); m != nil {
		return m[1], m[2], nil
	}
	if m := storagePattern.FindStringSubmatch(source); m != nil {
		if b.defaultBucket == "" {
			return "", "", fmt.Errorf("%w: storage:// requires a configured default bucket", ErrUnsupportedSource)
		}
		return b.defaultBucket, m[1], nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedSource, source)
}

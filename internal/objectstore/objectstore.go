// Package objectstore issues time-limited URLs for image objects and deletes
// them. Listing and metadata are deliberately absent: the document store is
// the only index of which keys exist.
package objectstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrObjectNotFound is returned by the local store when a key is absent.
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidObjectToken rejects an expired, forged or mismatched local URL token.
	ErrInvalidObjectToken = errors.New("invalid object token")
)

// Store is one provider's object storage.
type Store interface {
	// Name identifies the backing service in logs and metrics.
	Name() string
	// SignPut returns a URL that accepts a single PUT of contentType to key until ttl elapses.
	SignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// SignGet returns a read URL for key valid for ttl.
	SignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

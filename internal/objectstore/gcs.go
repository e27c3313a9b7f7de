package objectstore

import (
	"context"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
)

// GCSStore signs V4 URLs for one bucket.
type GCSStore struct {
	bucket *storage.BucketHandle
	// Optional signer identity. When empty the client's credentials sign,
	// falling back to the IAM signBlob API on metadata-server credentials.
	accessID   string
	privateKey []byte
}

// GCSOption configures a GCSStore.
type GCSOption func(*GCSStore)

// WithSigner signs URLs as serviceAccount, with privateKey when given.
func WithSigner(serviceAccount string, privateKey []byte) GCSOption {
	return func(s *GCSStore) {
		s.accessID = serviceAccount
		s.privateKey = privateKey
	}
}

// NewGCSStore wraps bucket on client.
func NewGCSStore(client *storage.Client, bucket string, opts ...GCSOption) *GCSStore {
	s := &GCSStore{bucket: client.Bucket(bucket)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GCSStore) Name() string { return "gcs" }

func (s *GCSStore) options(method, contentType string, ttl time.Duration) *storage.SignedURLOptions {
	return &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		ContentType:    contentType,
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.accessID,
		PrivateKey:     s.privateKey,
	}
}

func (s *GCSStore) SignPut(_ context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return s.bucket.SignedURL(key, s.options(http.MethodPut, contentType, ttl))
}

func (s *GCSStore) SignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.bucket.SignedURL(key, s.options(http.MethodGet, "", ttl))
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}

// Package backend is the facade between the HTTP layer and the cloud stores.
//
// A single Service implements Backend for every provider. Validation,
// authorization, pagination tokens, tag filtering, URL derivation and error
// mapping all happen here; the repository and objectstore adapters only talk
// to their native store.
package backend

import (
	"context"
	"sync"

	"simplesns/internal/config"
	"simplesns/internal/models"
)

// Backend is the set of operations the API exposes.
type Backend interface {
	Provider() string
	ListPosts(ctx context.Context, in models.ListPostsInput) (*models.PostPage, error)
	GetPost(ctx context.Context, postID string) (*models.Post, error)
	CreatePost(ctx context.Context, caller models.Caller, in models.CreatePostInput) (*models.Post, error)
	UpdatePost(ctx context.Context, caller models.Caller, postID string, in models.UpdatePostInput) (*models.Post, error)
	DeletePost(ctx context.Context, caller models.Caller, postID string) error
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, caller models.Caller, in models.UpdateProfileInput) (*models.Profile, error)
	CreateUploadURLs(ctx context.Context, caller models.Caller, in models.UploadURLsInput) ([]models.UploadURL, error)
	Ping(ctx context.Context) error
	Close() error
}

var _ Backend = (*Service)(nil)

var (
	defaultOnce    sync.Once
	defaultService *Service
	defaultErr     error
)

// Default builds the process-wide backend on the first call and returns that
// same result, error included, on every later call.
func Default(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	defaultOnce.Do(func() {
		defaultService, defaultErr = New(ctx, cfg, opts...)
	})
	return defaultService, defaultErr
}

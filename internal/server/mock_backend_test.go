package server

import (
	"context"

	"simplesns/internal/models"
	"simplesns/internal/objectstore"

	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock of the backend.Backend interface
type MockBackend struct {
	mock.Mock
	store objectstore.Store
}

func (m *MockBackend) Provider() string { return "local" }

func (m *MockBackend) ObjectStore() objectstore.Store { return m.store }

func (m *MockBackend) ListPosts(ctx context.Context, in models.ListPostsInput) (*models.PostPage, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PostPage), args.Error(1)
}

func (m *MockBackend) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockBackend) CreatePost(ctx context.Context, caller models.Caller, in models.CreatePostInput) (*models.Post, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockBackend) UpdatePost(ctx context.Context, caller models.Caller, postID string, in models.UpdatePostInput) (*models.Post, error) {
	args := m.Called(ctx, caller, postID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockBackend) DeletePost(ctx context.Context, caller models.Caller, postID string) error {
	args := m.Called(ctx, caller, postID)
	return args.Error(0)
}

func (m *MockBackend) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockBackend) UpdateProfile(ctx context.Context, caller models.Caller, in models.UpdateProfileInput) (*models.Profile, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockBackend) CreateUploadURLs(ctx context.Context, caller models.Caller, in models.UploadURLsInput) ([]models.UploadURL, error) {
	args := m.Called(ctx, caller, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UploadURL), args.Error(1)
}

func (m *MockBackend) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockBackend) Close() error { return nil }

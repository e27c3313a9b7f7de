package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"simplesns/internal/config"
	"simplesns/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "server-test-secret-0123456789abcdef0123456789"

func testConfig() *config.Config {
	return &config.Config{
		CloudProvider:             config.ProviderLocal,
		AuthSecret:                testSecret,
		AdminGroup:                "Admins",
		AllowedOrigins:            "http://localhost:5173",
		Version:                   "1.2.3",
		PresignedURLExpirySeconds: 300,
		StoreTimeoutSeconds:       10,
	}
}

func newTestServer(t *testing.T, b *MockBackend) *Server {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	return NewServerWithDeps(testConfig(), b, nil)
}

func bearer(t *testing.T, sub string, groups ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix(), "nickname": sub + "-nick"}
	if len(groups) > 0 {
		claims["groups"] = groups
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func doRequest(t *testing.T, s *Server, method, target, auth string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestListPostsHandler(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)

	page := &models.PostPage{Items: []*models.Post{{PostID: "p1", Content: "hi"}}, Limit: 20, NextToken: "tok2"}
	b.On("ListPosts", mock.Anything, models.ListPostsInput{Limit: 20, Cursor: "tok1", Tag: "go"}).Return(page, nil).Once()

	resp := doRequest(t, s, http.MethodGet, "/posts?nextToken=tok1&tag=go", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "tok2", body["nextToken"])
	assert.EqualValues(t, 20, body["limit"])
	assert.Len(t, body["items"], 1)
	b.AssertExpectations(t)
}

func TestListPostsHandler_Errors(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)

	resp := doRequest(t, s, http.MethodGet, "/posts?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.On("ListPosts", mock.Anything, models.ListPostsInput{Limit: 51}).
		Return(nil, models.NewValidationError("limit must be between 1 and 50")).Once()
	resp = doRequest(t, s, http.MethodGet, "/posts?limit=51", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.On("ListPosts", mock.Anything, models.ListPostsInput{Limit: 5}).
		Return(nil, models.NewUpstreamError("list_posts", errors.New("dial tcp: refused"))).Once()
	resp = doRequest(t, s, http.MethodGet, "/posts?limit=5", "", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var errBody models.ErrorResponse
	decode(t, resp, &errBody)
	assert.Equal(t, models.CodeUpstream, errBody.Code)
	assert.NotContains(t, errBody.Details, "refused")
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{models.NewValidationError("bad"), http.StatusBadRequest},
		{models.NewUnauthorizedError("who"), http.StatusUnauthorized},
		{models.NewForbiddenError("no"), http.StatusForbidden},
		{models.NewNotFoundError("Post", "x"), http.StatusNotFound},
		{models.NewConfigurationError("no bucket"), http.StatusInternalServerError},
		{models.NewUpstreamError("get_post", errors.New("timeout")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		b := new(MockBackend)
		s := newTestServer(t, b)
		b.On("GetPost", mock.Anything, "p1").Return(nil, tt.err).Once()

		resp := doRequest(t, s, http.MethodGet, "/posts/p1", "", nil)
		assert.Equal(t, tt.status, resp.StatusCode, tt.err.Error())
	}
}

func TestCreatePostHandler(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)

	resp := doRequest(t, s, http.MethodPost, "/posts", "", map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	in := models.CreatePostInput{Content: "hi", Tags: []string{"go"}, ImageKeys: []string{"images/u1/a.jpg"}, IsMarkdown: true}
	caller := models.Caller{UserID: "u1", Nickname: "u1-nick"}
	b.On("CreatePost", mock.Anything, caller, in).Return(&models.Post{PostID: "p9", UserID: "u1"}, nil).Once()

	resp = doRequest(t, s, http.MethodPost, "/posts", bearer(t, "u1"), in)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var post models.Post
	decode(t, resp, &post)
	assert.Equal(t, "p9", post.PostID)

	req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer(t, "u1"))
	raw, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	b.AssertExpectations(t)
}

func TestUpdateAndDeletePostHandlers(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)
	admin := models.Caller{UserID: "boss", IsAdmin: true, Nickname: "boss-nick"}

	content := "edited"
	b.On("UpdatePost", mock.Anything, admin, "p1", mock.MatchedBy(func(in models.UpdatePostInput) bool {
		return in.Content != nil && *in.Content == content && in.Tags == nil
	})).Return(&models.Post{PostID: "p1", Content: content}, nil).Once()

	resp := doRequest(t, s, http.MethodPut, "/posts/p1", bearer(t, "boss", "Admins"), map[string]string{"content": content})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	b.On("DeletePost", mock.Anything, models.Caller{UserID: "u2", Nickname: "u2-nick"}, "p1").
		Return(models.NewForbiddenError("You can only delete your own posts")).Once()
	resp = doRequest(t, s, http.MethodDelete, "/posts/p1", bearer(t, "u2"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	b.On("DeletePost", mock.Anything, admin, "p1").Return(nil).Once()
	resp = doRequest(t, s, http.MethodDelete, "/posts/p1", bearer(t, "boss", "Admins"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, map[string]string{"status": "deleted", "postId": "p1"}, body)

	b.AssertExpectations(t)
}

func TestProfileHandlers(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)
	caller := models.Caller{UserID: "u1", Nickname: "u1-nick"}

	b.On("GetProfile", mock.Anything, "u1").Return(&models.Profile{UserID: "u1"}, nil).Once()
	resp := doRequest(t, s, http.MethodGet, "/profile", bearer(t, "u1"), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var p models.Profile
	decode(t, resp, &p)
	assert.Equal(t, "u1", p.UserID)

	nick := "new"
	b.On("UpdateProfile", mock.Anything, caller, models.UpdateProfileInput{Nickname: &nick}).
		Return(&models.Profile{UserID: "u1", Nickname: nick}, nil).Twice()
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		resp = doRequest(t, s, method, "/profile", bearer(t, "u1"), map[string]string{"nickname": nick})
		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
	}

	resp = doRequest(t, s, http.MethodGet, "/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	b.AssertExpectations(t)
}

func TestUploadHandlers(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)
	caller := models.Caller{UserID: "u1", Nickname: "u1-nick"}

	in := models.UploadURLsInput{Count: 1, ContentTypes: []string{"image/png"}}
	urls := []models.UploadURL{{URL: "https://signed", Key: "images/u1/x.png", ContentType: "image/png"}}
	b.On("CreateUploadURLs", mock.Anything, caller, in).Return(urls, nil).Twice()

	for _, path := range []string{"/uploads", "/uploads/presigned-urls"} {
		resp := doRequest(t, s, http.MethodPost, path, bearer(t, "u1"), in)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		var body struct {
			URLs []models.UploadURL `json:"urls"`
		}
		decode(t, resp, &body)
		assert.Equal(t, urls, body.URLs)
	}

	b.On("CreateUploadURLs", mock.Anything, caller, models.UploadURLsInput{Count: 1}).
		Return(nil, models.NewConfigurationError("image storage is not configured")).Once()
	resp := doRequest(t, s, http.MethodPost, "/uploads", bearer(t, "u1"), map[string]int{"count": 1})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	b.AssertExpectations(t)
}

func TestHealthHandlers(t *testing.T) {
	b := new(MockBackend)
	s := newTestServer(t, b)

	resp := doRequest(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	decode(t, resp, &body)
	assert.Equal(t, "local", body["provider"])
	assert.Equal(t, "1.2.3", body["version"])

	b.On("Ping", mock.Anything).Return(nil).Once()
	resp = doRequest(t, s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	b.On("Ping", mock.Anything).Return(errors.New("down")).Once()
	resp = doRequest(t, s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = doRequest(t, s, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLimitsHandler(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg := testConfig()
	cfg.FeatureFlags = "post_updates=off,new_composer=50%"
	s := NewServerWithDeps(cfg, new(MockBackend), nil)

	resp := doRequest(t, s, http.MethodGet, "/limits", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var anon LimitsResponse
	decode(t, resp, &anon)
	assert.Equal(t, 16, anon.MaxImagesPerPost)
	assert.Equal(t, 16, anon.MaxUploadCount)
	assert.Equal(t, 10000, anon.MaxContentLength)
	assert.Equal(t, 50, anon.MaxListLimit)
	assert.False(t, anon.Features["post_updates"])
	assert.True(t, anon.Features["nickname_backfill"])
	assert.False(t, anon.Features["new_composer"], "percentage rollouts need a user id")

	resp = doRequest(t, s, http.MethodGet, "/limits", bearer(t, "alice"), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var signedIn LimitsResponse
	decode(t, resp, &signedIn)
	assert.Contains(t, signedIn.Features, "new_composer")
	assert.Equal(t, anon.MaxImagesPerPost, signedIn.MaxImagesPerPost)
}

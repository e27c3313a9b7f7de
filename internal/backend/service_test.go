package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"simplesns/internal/featureflags"
	"simplesns/internal/models"
	"simplesns/internal/objectstore"
	"simplesns/internal/observability"
	"simplesns/internal/pagination"
	"simplesns/internal/repository"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	alice = models.Caller{UserID: "alice", Nickname: "Alice IdP"}
	bob   = models.Caller{UserID: "bob"}
	admin = models.Caller{UserID: "root", IsAdmin: true}
)

type stepClock struct {
	mu   sync.Mutex
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

func (c *stepClock) setStep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}

// recordingStore wraps a Store and records deletions, optionally failing them.
type recordingStore struct {
	objectstore.Store
	mu         sync.Mutex
	deleted    []string
	failDelete bool
}

func (s *recordingStore) Name() string { return "recording" }

func (s *recordingStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if s.failDelete {
		return errors.New("object store unavailable")
	}
	return nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(repository.SQLModels()...))
	return db
}

func newTestService(t *testing.T, opts ...Option) (*Service, *stepClock) {
	t.Helper()
	db := setupDB(t)
	store, err := objectstore.NewLocalStore(t.TempDir(), "http://api.test", "test-signing-secret")
	require.NoError(t, err)
	clock := &stepClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), step: time.Second}
	base := []Option{WithObjectStore(store), WithClock(clock.Now)}
	svc := NewService("local",
		repository.NewSQLPostRepository(db),
		repository.NewSQLProfileRepository(db),
		append(base, opts...)...,
	)
	return svc, clock
}

func createPost(t *testing.T, svc *Service, caller models.Caller, content string, tags ...string) *models.Post {
	t.Helper()
	p, err := svc.CreatePost(context.Background(), caller, models.CreatePostInput{Content: content, Tags: tags})
	require.NoError(t, err)
	return p
}

func listAll(t *testing.T, svc *Service, limit int, tag string) []*models.Post {
	t.Helper()
	var out []*models.Post
	token := ""
	for i := 0; i < 1000; i++ {
		page, err := svc.ListPosts(context.Background(), models.ListPostsInput{Limit: limit, Cursor: token, Tag: tag})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), limit)
		out = append(out, page.Items...)
		if page.NextToken == "" {
			return out
		}
		token = page.NextToken
	}
	t.Fatal("pagination did not terminate")
	return nil
}

func TestListPosts_PaginationIsComplete(t *testing.T) {
	svc, clock := newTestService(t)

	for i := 0; i < 12; i++ {
		createPost(t, svc, alice, fmt.Sprintf("post %d", i))
	}
	// Same-microsecond posts must still paginate without loss.
	clock.setStep(0)
	for i := 12; i < 23; i++ {
		createPost(t, svc, bob, fmt.Sprintf("post %d", i))
	}

	for _, limit := range []int{1, 2, 5, 7, 20, 50} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			all := listAll(t, svc, limit, "")
			require.Len(t, all, 23)

			seen := map[string]bool{}
			for i, p := range all {
				assert.False(t, seen[p.PostID], "duplicate %s", p.PostID)
				seen[p.PostID] = true
				if i == 0 {
					continue
				}
				prev := all[i-1]
				ordered := prev.CreatedAt.After(p.CreatedAt) ||
					(prev.CreatedAt.Equal(p.CreatedAt) && prev.PostID > p.PostID)
				assert.True(t, ordered, "posts %d and %d out of order", i-1, i)
			}
		})
	}
}

func TestListPosts_TiesOrderByPostIDDescending(t *testing.T) {
	ids := []string{"post-b", "post-d", "post-a", "post-c"}
	next := 0
	svc, clock := newTestService(t, WithIDGenerator(func() string {
		id := ids[next]
		next++
		return id
	}))
	clock.setStep(0)
	for range ids {
		createPost(t, svc, alice, "same instant")
	}

	all := listAll(t, svc, 3, "")
	got := make([]string, 0, len(all))
	for _, p := range all {
		got = append(got, p.PostID)
	}
	assert.Equal(t, []string{"post-d", "post-c", "post-b", "post-a"}, got)
}

func TestListPosts_LimitValidation(t *testing.T) {
	svc, _ := newTestService(t)
	for _, limit := range []int{0, -1, 51} {
		_, err := svc.ListPosts(context.Background(), models.ListPostsInput{Limit: limit})
		assert.True(t, models.HasCode(err, models.CodeValidation), "limit %d", limit)
	}
}

func TestListPosts_UnusableTokenRestarts(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 3; i++ {
		createPost(t, svc, alice, fmt.Sprintf("post %d", i))
	}
	first, err := svc.ListPosts(context.Background(), models.ListPostsInput{Limit: 2})
	require.NoError(t, err)
	require.NotEmpty(t, first.NextToken)

	foreign, err := pagination.Encode(pagination.Keyset("aws", "2026-05-01T09:00:01.000000Z", "x"))
	require.NoError(t, err)

	for _, token := range []string{"not-a-token", "%%%", foreign, first.NextToken + "x"} {
		page, err := svc.ListPosts(context.Background(), models.ListPostsInput{Limit: 2, Cursor: token})
		require.NoError(t, err, token)
		require.Len(t, page.Items, 2)
		assert.Equal(t, first.Items[0].PostID, page.Items[0].PostID, token)
	}
}

func TestListPosts_TagFilter(t *testing.T) {
	svc, _ := newTestService(t)
	a := createPost(t, svc, alice, "A", "x")
	createPost(t, svc, alice, "B")
	c := createPost(t, svc, alice, "C", "x", "y")

	page, err := svc.ListPosts(context.Background(), models.ListPostsInput{Limit: 20, Tag: "x"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, c.PostID, page.Items[0].PostID)
	assert.Equal(t, a.PostID, page.Items[1].PostID)
	assert.Empty(t, page.NextToken)

	// Filtering after the fetch may leave a short page with a next token.
	page, err = svc.ListPosts(context.Background(), models.ListPostsInput{Limit: 2, Tag: "x"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, c.PostID, page.Items[0].PostID)
	assert.NotEmpty(t, page.NextToken)

	assert.Len(t, listAll(t, svc, 1, "x"), 2)
}

func TestCreatePost(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePost(ctx, models.Caller{}, models.CreatePostInput{Content: "hi"})
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	_, err = svc.CreatePost(ctx, alice, models.CreatePostInput{Content: "  "})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = svc.CreatePost(ctx, alice, models.CreatePostInput{Content: "hi", Tags: []string{"a", "a"}})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	_, err = svc.CreatePost(ctx, alice, models.CreatePostInput{Content: "hi", ImageKeys: []string{"images/bob/x.jpg"}})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	p, err := svc.CreatePost(ctx, alice, models.CreatePostInput{
		Content:    "**hello**",
		IsMarkdown: true,
		Tags:       []string{" go "},
		ImageKeys:  []string{"images/alice/a.jpg"},
	})
	require.NoError(t, err)
	assert.Len(t, p.PostID, 36)
	assert.Equal(t, "alice", p.UserID)
	assert.Equal(t, "Alice IdP", p.Nickname)
	assert.Equal(t, []string{"go"}, p.Tags)
	require.Len(t, p.ImageURLs, 1)
	assert.True(t, strings.HasPrefix(p.ImageURLs[0], "http://api.test/objects/images/alice/a.jpg?token="))
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
	assert.Equal(t, time.UTC, p.CreatedAt.Location())

	got, err := svc.GetPost(ctx, p.PostID)
	require.NoError(t, err)
	assert.Equal(t, p.Content, got.Content)
	assert.True(t, got.IsMarkdown)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	_, err = svc.GetPost(ctx, "missing")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestCreatePost_NicknameFromProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	nick := "alice-profile"
	_, err := svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{Nickname: &nick})
	require.NoError(t, err)

	p := createPost(t, svc, alice, "hello")
	assert.Equal(t, nick, p.Nickname)

	// Resolved once: renaming later does not rewrite the post.
	renamed := "alice-renamed"
	_, err = svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{Nickname: &renamed})
	require.NoError(t, err)
	got, err := svc.GetPost(ctx, p.PostID)
	require.NoError(t, err)
	assert.Equal(t, nick, got.Nickname)
}

func TestListPosts_NicknameBackfill(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	createPost(t, svc, bob, "anonymous at write time")
	createPost(t, svc, models.Caller{UserID: "ghost"}, "no profile at all")

	nick := "Bobby"
	_, err := svc.UpdateProfile(ctx, bob, models.UpdateProfileInput{Nickname: &nick})
	require.NoError(t, err)

	page, err := svc.ListPosts(ctx, models.ListPostsInput{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "", page.Items[0].Nickname)
	assert.Equal(t, "Bobby", page.Items[1].Nickname)

	off, _ := newTestService(t, WithFeatureFlags(featureflags.NewManager("nickname_backfill=off")))
	createPost(t, off, bob, "x")
	_, err = off.UpdateProfile(ctx, bob, models.UpdateProfileInput{Nickname: &nick})
	require.NoError(t, err)
	page, err = off.ListPosts(ctx, models.ListPostsInput{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, "", page.Items[0].Nickname)
}

func TestDeletePost_Ownership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createPost(t, svc, alice, "mine")

	err := svc.DeletePost(ctx, models.Caller{}, p.PostID)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	err = svc.DeletePost(ctx, bob, p.PostID)
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	err = svc.DeletePost(ctx, bob, "nope")
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	require.NoError(t, svc.DeletePost(ctx, admin, p.PostID))
	_, err = svc.GetPost(ctx, p.PostID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	own := createPost(t, svc, alice, "also mine")
	require.NoError(t, svc.DeletePost(ctx, alice, own.PostID))
}

func TestDeletePost_ImageFailuresAreNotFatal(t *testing.T) {
	store := &recordingStore{failDelete: true}
	svc, _ := newTestService(t, WithObjectStore(store), WithCDNURL("https://cdn.test"))
	ctx := context.Background()

	p, err := svc.CreatePost(ctx, alice, models.CreatePostInput{
		Content:   "with images",
		ImageKeys: []string{"images/alice/1.jpg", "images/alice/2.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.test/images/alice/1.jpg", "https://cdn.test/images/alice/2.png"}, p.ImageURLs)

	before := testutil.ToFloat64(observability.ImageDeleteFailures.WithLabelValues("recording"))
	require.NoError(t, svc.DeletePost(ctx, alice, p.PostID))
	after := testutil.ToFloat64(observability.ImageDeleteFailures.WithLabelValues("recording"))

	assert.Equal(t, 2.0, after-before)
	assert.ElementsMatch(t, p.ImageKeys, store.deleted)
	_, err = svc.GetPost(ctx, p.PostID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUpdatePost(t *testing.T) {
	store := &recordingStore{}
	svc, _ := newTestService(t, WithObjectStore(store), WithCDNURL("https://cdn.test"))
	ctx := context.Background()

	p, err := svc.CreatePost(ctx, alice, models.CreatePostInput{
		Content:   "v1",
		Tags:      []string{"a"},
		ImageKeys: []string{"images/alice/1.jpg", "images/alice/2.jpg"},
	})
	require.NoError(t, err)

	content := "v2"
	_, err = svc.UpdatePost(ctx, bob, p.PostID, models.UpdatePostInput{Content: &content})
	assert.True(t, models.HasCode(err, models.CodeForbidden))

	bad := "<script>alert(1)</script>"
	_, err = svc.UpdatePost(ctx, alice, p.PostID, models.UpdatePostInput{Content: &bad})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	keys := []string{"images/alice/2.jpg"}
	tags := []string{"b", "c"}
	updated, err := svc.UpdatePost(ctx, alice, p.PostID, models.UpdatePostInput{Content: &content, ImageKeys: &keys, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "v2", updated.Content)
	assert.Equal(t, []string{"b", "c"}, updated.Tags)
	assert.Equal(t, keys, updated.ImageKeys)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.Equal(t, []string{"images/alice/1.jpg"}, store.deleted)

	got, err := svc.GetPost(ctx, p.PostID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.True(t, p.CreatedAt.Equal(got.CreatedAt))

	// Admin edits keep image keys under the author's prefix.
	adminKeys := []string{"images/root/x.jpg"}
	_, err = svc.UpdatePost(ctx, admin, p.PostID, models.UpdatePostInput{ImageKeys: &adminKeys})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	disabled, _ := newTestService(t, WithFeatureFlags(featureflags.NewManager("post_updates=off")))
	q := createPost(t, disabled, alice, "frozen")
	_, err = disabled.UpdatePost(ctx, alice, q.PostID, models.UpdatePostInput{Content: &content})
	assert.True(t, models.HasCode(err, models.CodeForbidden))
}

// vanishingPosts deletes a post right after handing it out, so the caller's
// next write races a concurrent delete.
type vanishingPosts struct {
	repository.PostRepository
}

func (v vanishingPosts) Get(ctx context.Context, postID string) (*models.Post, error) {
	p, err := v.PostRepository.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	return p, v.PostRepository.Delete(ctx, p)
}

func TestUpdatePost_DeletedConcurrently(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	p := createPost(t, svc, alice, "soon gone")

	racing := NewService("local", vanishingPosts{svc.posts}, svc.profiles)
	content := "edited"
	_, err := racing.UpdatePost(ctx, alice, p.PostID, models.UpdatePostInput{Content: &content})
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	_, err = svc.GetPost(ctx, p.PostID)
	assert.True(t, models.HasCode(err, models.CodeNotFound), "update must not recreate the post")
}

func TestProfiles(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	empty, err := svc.GetProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, &models.Profile{UserID: "nobody"}, empty)

	first := "first"
	p1, err := svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{Nickname: &first})
	require.NoError(t, err)
	require.NotNil(t, p1.CreatedAt)

	clock.setStep(time.Minute)
	second := "second"
	bio := "hello there"
	p2, err := svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{Nickname: &second, Bio: &bio})
	require.NoError(t, err)
	assert.True(t, p1.CreatedAt.Equal(*p2.CreatedAt))
	assert.True(t, p2.UpdatedAt.After(*p1.UpdatedAt))

	got, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Nickname)
	assert.Equal(t, "hello there", got.Bio)
	assert.True(t, p1.CreatedAt.Equal(*got.CreatedAt))

	// Nil fields keep stored values.
	avatar := "images/alice/me.png"
	p3, err := svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{AvatarKey: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "second", p3.Nickname)
	assert.Equal(t, "hello there", p3.Bio)
	assert.Contains(t, p3.AvatarURL, "/objects/images/alice/me.png?token=")

	foreign := "images/bob/me.png"
	_, err = svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{AvatarKey: &foreign})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	// Falls back to the identity provider nickname, then fails without one.
	fromIdP, err := svc.UpdateProfile(ctx, models.Caller{UserID: "carol", Nickname: "Carol"}, models.UpdateProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "Carol", fromIdP.Nickname)

	_, err = svc.UpdateProfile(ctx, bob, models.UpdateProfileInput{Bio: &bio})
	assert.True(t, models.HasCode(err, models.CodeValidation))

	long := strings.Repeat("n", 101)
	_, err = svc.UpdateProfile(ctx, alice, models.UpdateProfileInput{Nickname: &long})
	assert.True(t, models.HasCode(err, models.CodeValidation))
}

func TestCreateUploadURLs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	urls, err := svc.CreateUploadURLs(ctx, alice, models.UploadURLsInput{Count: 2})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	for _, u := range urls {
		assert.True(t, strings.HasPrefix(u.Key, "images/alice/"))
		assert.True(t, strings.HasSuffix(u.Key, ".jpg"))
		assert.Equal(t, "image/jpeg", u.ContentType)
		assert.Contains(t, u.URL, "?token=")
	}
	assert.NotEqual(t, urls[0].Key, urls[1].Key)

	urls, err = svc.CreateUploadURLs(ctx, alice, models.UploadURLsInput{Count: 2, ContentTypes: []string{"image/png", "IMAGE/HEIC"}})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(urls[0].Key, ".png"))
	assert.True(t, strings.HasSuffix(urls[1].Key, ".heic"))
	assert.Equal(t, "image/heic", urls[1].ContentType)

	for _, in := range []models.UploadURLsInput{
		{Count: 0},
		{Count: 17},
		{Count: 2, ContentTypes: []string{"image/png"}},
		{Count: 1, ContentTypes: []string{"image/gif"}},
	} {
		_, err := svc.CreateUploadURLs(ctx, alice, in)
		assert.True(t, models.HasCode(err, models.CodeValidation), "%+v", in)
	}

	_, err = svc.CreateUploadURLs(ctx, models.Caller{}, models.UploadURLsInput{Count: 1})
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))

	noStore := NewService("local", svc.posts, svc.profiles)
	_, err = noStore.CreateUploadURLs(ctx, alice, models.UploadURLsInput{Count: 1})
	assert.True(t, models.HasCode(err, models.CodeConfiguration))
	_, err = noStore.CreatePost(ctx, alice, models.CreatePostInput{Content: "x", ImageKeys: []string{"images/alice/a.jpg"}})
	assert.True(t, models.HasCode(err, models.CodeConfiguration))
}

// slowPosts blocks every call until the context ends.
type slowPosts struct {
	repository.PostRepository
}

func (slowPosts) List(ctx context.Context, _ int, _ *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	<-ctx.Done()
	return nil, nil, ctx.Err()
}

func (slowPosts) Get(_ context.Context, _ string) (*models.Post, error) {
	return nil, errors.New("connection reset")
}

func TestStoreFailuresAreUpstream(t *testing.T) {
	svc := NewService("local", slowPosts{}, nil, WithStoreTimeout(20*time.Millisecond))
	ctx := context.Background()

	_, err := svc.ListPosts(ctx, models.ListPostsInput{Limit: 5})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUpstream))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = svc.GetPost(ctx, "p1")
	assert.True(t, models.HasCode(err, models.CodeUpstream))

	before := testutil.ToFloat64(observability.BackendCallErrors.WithLabelValues("local", "get_post", models.CodeUpstream))
	_, _ = svc.GetPost(ctx, "p1")
	after := testutil.ToFloat64(observability.BackendCallErrors.WithLabelValues("local", "get_post", models.CodeUpstream))
	assert.Equal(t, 1.0, after-before)
}

// continuationPosts serves two native pages and rejects any continuation
// token it did not issue, the way Cosmos DB answers 400.
type continuationPosts struct {
	repository.PostRepository
	pages [][]*models.Post
	calls int
}

func (f *continuationPosts) List(_ context.Context, _ int, c *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	f.calls++
	switch {
	case c == nil:
		return f.pages[0], pagination.Continuation("", "issued-1"), nil
	case c.Continuation == "issued-1":
		return f.pages[1], nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: bad continuation", repository.ErrInvalidCursor)
	}
}

func TestListPosts_RejectedContinuationRestarts(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	posts := &continuationPosts{pages: [][]*models.Post{
		{{PostID: "p2", UserID: "alice", Nickname: "A", CreatedAt: at.Add(time.Second)}},
		{{PostID: "p1", UserID: "alice", Nickname: "A", CreatedAt: at}},
	}}
	svc := NewService("azure", posts, nil)
	ctx := context.Background()

	first, err := svc.ListPosts(ctx, models.ListPostsInput{Limit: 1})
	require.NoError(t, err)
	require.NotEmpty(t, first.NextToken)
	second, err := svc.ListPosts(ctx, models.ListPostsInput{Limit: 1, Cursor: first.NextToken})
	require.NoError(t, err)
	assert.Equal(t, "p1", second.Items[0].PostID)
	assert.Empty(t, second.NextToken)

	tampered, err := pagination.Encode(pagination.Continuation("azure", "forged-continuation"))
	require.NoError(t, err)
	posts.calls = 0
	page, err := svc.ListPosts(ctx, models.ListPostsInput{Limit: 1, Cursor: tampered})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "p2", page.Items[0].PostID, "restarts from the first page")
	assert.NotEmpty(t, page.NextToken)
	assert.Equal(t, 2, posts.calls)
}

func TestCloseRunsClosersInReverse(t *testing.T) {
	var order []int
	svc := NewService("local", nil, nil,
		withCloser(func() error { order = append(order, 1); return nil }),
		withCloser(func() error { order = append(order, 2); return errors.New("boom") }),
	)
	err := svc.Close()
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []int{2, 1}, order)
	assert.NoError(t, svc.Close())
}

package backend

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"simplesns/internal/authz"
	"simplesns/internal/featureflags"
	"simplesns/internal/models"
	"simplesns/internal/pagination"
	"simplesns/internal/repository"
	"simplesns/internal/validation"
)

// ListPosts returns one page of posts, newest first. With a tag the page is
// filtered after the fetch, so it can hold fewer than Limit items while a
// next token is still returned.
func (s *Service) ListPosts(ctx context.Context, in models.ListPostsInput) (page *models.PostPage, err error) {
	ctx, done := s.observe(ctx, "list_posts")
	defer done(&err)

	if err := validation.ValidateListLimit(in.Limit); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tag := strings.TrimSpace(in.Tag)
	cursor := s.decodeCursor(ctx, in.Cursor)

	var (
		posts []*models.Post
		next  *pagination.Cursor
	)
	list := func(c *pagination.Cursor) error {
		return s.call(ctx, func(ctx context.Context) error {
			var err error
			posts, next, err = s.posts.List(ctx, in.Limit, c)
			return err
		})
	}
	err = list(cursor)
	if cursor != nil && errors.Is(err, repository.ErrInvalidCursor) {
		s.log().WarnContext(ctx, "store rejected pagination token, restarting from first page",
			slog.String("provider", s.provider),
			slog.String("error", err.Error()),
		)
		err = list(nil)
	}
	if err != nil {
		return nil, upstream("list_posts", err)
	}

	items := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if tag != "" && !p.HasTag(tag) {
			continue
		}
		items = append(items, p)
	}

	s.backfillNicknames(ctx, items)
	for _, p := range items {
		s.attachImageURLs(ctx, p)
	}

	token, err := s.encodeCursor(next)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.PostPage{Items: items, Limit: in.Limit, NextToken: token}, nil
}

// GetPost returns a single post.
func (s *Service) GetPost(ctx context.Context, postID string) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "get_post")
	defer done(&err)

	post, err = s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	s.backfillNicknames(ctx, []*models.Post{post})
	s.attachImageURLs(ctx, post)
	return post, nil
}

// CreatePost stores a new post authored by caller. The author's nickname is
// captured once, here.
func (s *Service) CreatePost(ctx context.Context, caller models.Caller, in models.CreatePostInput) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "create_post")
	defer done(&err)

	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if err := validation.ValidatePostContent(in.Content); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	tags, err := validation.NormalizeTags(in.Tags)
	if err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateImageKeys(in.ImageKeys, caller.UserID); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if len(in.ImageKeys) > 0 && s.objects == nil {
		return nil, models.NewConfigurationError("image storage is not configured")
	}

	now := s.timestamp()
	post = &models.Post{
		PostID:     s.newID(),
		UserID:     caller.UserID,
		Nickname:   s.resolveNickname(ctx, caller),
		Content:    in.Content,
		IsMarkdown: in.IsMarkdown,
		ImageKeys:  append([]string{}, in.ImageKeys...),
		Tags:       tags,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.call(ctx, func(ctx context.Context) error {
		return s.posts.Create(ctx, post)
	})
	if err != nil {
		return nil, upstream("create_post", err)
	}

	s.log().InfoContext(ctx, "post created",
		slog.String("post_id", post.PostID),
		slog.Int("images", len(post.ImageKeys)),
		slog.Int("tags", len(post.Tags)),
	)
	s.attachImageURLs(ctx, post)
	return post, nil
}

// UpdatePost patches content, tags, image keys or the markdown flag. Images
// dropped from the post are deleted best-effort after the update is stored.
func (s *Service) UpdatePost(ctx context.Context, caller models.Caller, postID string, in models.UpdatePostInput) (post *models.Post, err error) {
	ctx, done := s.observe(ctx, "update_post")
	defer done(&err)

	if !caller.Authenticated() {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	if !s.flags.Enabled(featureflags.PostUpdates, caller.UserID) {
		return nil, models.NewForbiddenError("Post updates are disabled")
	}
	if in.Content != nil {
		if err := validation.ValidatePostContent(*in.Content); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}
	var tags []string
	if in.Tags != nil {
		if tags, err = validation.NormalizeTags(*in.Tags); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
	}

	post, err = s.loadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !authz.CanMutate(post, caller) {
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}

	var removed []string
	if in.ImageKeys != nil {
		keys := *in.ImageKeys
		// Keys stay under the author's prefix even when an admin edits.
		if err := validation.ValidateImageKeys(keys, post.UserID); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if len(keys) > 0 && s.objects == nil {
			return nil, models.NewConfigurationError("image storage is not configured")
		}
		removed = missingKeys(post.ImageKeys, keys)
		post.ImageKeys = append([]string{}, keys...)
	}
	if in.Content != nil {
		post.Content = *in.Content
	}
	if in.Tags != nil {
		post.Tags = tags
	}
	if in.IsMarkdown != nil {
		post.IsMarkdown = *in.IsMarkdown
	}
	post.UpdatedAt = s.timestamp()

	err = s.call(ctx, func(ctx context.Context) error {
		return s.posts.Update(ctx, post)
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if err != nil {
		return nil, upstream("update_post", err)
	}

	s.deleteImages(ctx, post.PostID, removed)
	s.attachImageURLs(ctx, post)
	return post, nil
}

// DeletePost removes a post and, best-effort, its images. Image cleanup runs
// first; only a failure to delete the record itself is returned.
func (s *Service) DeletePost(ctx context.Context, caller models.Caller, postID string) (err error) {
	ctx, done := s.observe(ctx, "delete_post")
	defer done(&err)

	if !caller.Authenticated() {
		return models.NewUnauthorizedError("Authentication required")
	}
	post, err := s.loadPost(ctx, postID)
	if err != nil {
		return err
	}
	if !authz.CanMutate(post, caller) {
		return models.NewForbiddenError("You can only delete your own posts")
	}

	s.deleteImages(ctx, post.PostID, post.ImageKeys)

	err = s.call(ctx, func(ctx context.Context) error {
		return s.posts.Delete(ctx, post)
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return upstream("delete_post", err)
	}

	s.log().InfoContext(ctx, "post deleted",
		slog.String("post_id", post.PostID),
		slog.Bool("by_admin", caller.UserID != post.UserID),
	)
	return nil
}

func (s *Service) loadPost(ctx context.Context, postID string) (*models.Post, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, models.NewValidationError("post id is required")
	}
	var post *models.Post
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		post, err = s.posts.Get(ctx, postID)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, models.NewNotFoundError("Post", postID)
	}
	if err != nil {
		return nil, upstream("get_post", err)
	}
	return post, nil
}

// resolveNickname prefers the stored profile nickname, then the identity
// provider's display name. A failed profile read falls through.
func (s *Service) resolveNickname(ctx context.Context, caller models.Caller) string {
	profile, err := s.loadProfile(ctx, caller.UserID)
	if err != nil {
		s.log().WarnContext(ctx, "profile lookup failed while resolving nickname",
			slog.String("error", err.Error()),
		)
	}
	if profile != nil && profile.Nickname != "" {
		return profile.Nickname
	}
	return strings.TrimSpace(caller.Nickname)
}

// backfillNicknames fills nicknames missing on stored posts from the authors'
// profiles. It never fails: missing profiles and lookup errors leave the
// nickname empty.
func (s *Service) backfillNicknames(ctx context.Context, posts []*models.Post) {
	if !s.flags.Enabled(featureflags.NicknameBackfill, "") {
		return
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, p := range posts {
		if p.Nickname != "" {
			continue
		}
		if _, ok := seen[p.UserID]; ok {
			continue
		}
		seen[p.UserID] = struct{}{}
		ids = append(ids, p.UserID)
	}
	if len(ids) == 0 {
		return
	}

	nicknames := make(map[string]string, len(ids))
	var misses []string
	for _, id := range ids {
		if cached, ok := s.profileCache.Get(ctx, id); ok {
			nicknames[id] = cached.Nickname
			continue
		}
		misses = append(misses, id)
	}

	if len(misses) > 0 {
		var found map[string]*models.Profile
		err := s.call(ctx, func(ctx context.Context) error {
			var err error
			found, err = s.profiles.GetMany(ctx, misses)
			return err
		})
		if err != nil {
			s.log().WarnContext(ctx, "nickname backfill lookup failed",
				slog.Int("users", len(misses)),
				slog.String("error", err.Error()),
			)
		}
		for id, p := range found {
			nicknames[id] = p.Nickname
			s.profileCache.Set(ctx, p)
		}
	}

	for _, p := range posts {
		if p.Nickname == "" {
			p.Nickname = nicknames[p.UserID]
		}
	}
}

// timestamp is now in UTC at the microsecond precision stores keep.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// missingKeys returns the entries of before that are absent from after.
func missingKeys(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, k := range after {
		keep[k] = struct{}{}
	}
	var out []string
	for _, k := range before {
		if _, ok := keep[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

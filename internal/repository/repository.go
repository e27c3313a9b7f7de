// Package repository provides the document-store adapters behind the backend
// facade: GORM for the local provider, DynamoDB, Cosmos DB and Firestore.
//
// Adapters translate records to and from the native store and nothing else.
// Validation, authorization and token encoding belong to the caller.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"simplesns/internal/models"
	"simplesns/internal/pagination"
)

// ErrNotFound is returned by Get when the record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidCursor is returned by List when the store rejects the cursor it
// was handed, e.g. a continuation token it never issued.
var ErrInvalidCursor = errors.New("cursor rejected by store")

// PostRepository stores posts ordered by (created_at DESC, post_id DESC).
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, postID string) (*models.Post, error)
	// List returns at most limit posts strictly after cursor, and a cursor
	// for the next page when more posts may follow. Returned cursors carry
	// no provider; the caller stamps it before encoding.
	List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, post *models.Post) error
}

// ProfileRepository stores one profile per user id.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	// GetMany silently omits ids with no stored profile.
	GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error)
	Put(ctx context.Context, profile *models.Profile) error
}

// Pinger is implemented by repositories that can check store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SortKey is the composite key used by stores that order on a single string.
func SortKey(createdAt, postID string) string {
	return createdAt + "#" + postID
}

// SplitSortKey reverses SortKey.
func SplitSortKey(sk string) (createdAt, postID string, ok bool) {
	idx := strings.LastIndex(sk, "#")
	if idx <= 0 || idx == len(sk)-1 {
		return "", "", false
	}
	return sk[:idx], sk[idx+1:], true
}

func nextKeyset(last *models.Post) *pagination.Cursor {
	return pagination.Keyset("", models.FormatTimestamp(last.CreatedAt), last.PostID)
}

func parseTime(s string) time.Time {
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseOptionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := models.ParseTimestamp(s)
	if err != nil {
		return nil
	}
	return &t
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return models.FormatTimestamp(*t)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// trimPage drops the look-ahead row fetched to detect a following page.
func trimPage(posts []*models.Post, limit int) ([]*models.Post, *pagination.Cursor) {
	if len(posts) <= limit {
		return posts, nil
	}
	posts = posts[:limit]
	return posts, nextKeyset(posts[len(posts)-1])
}

// uniqueIDs drops blanks and duplicates, preserving order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post represents a post as returned by the API. ImageKeys are the durable
// object-storage keys; ImageURLs are derived from them on every read.
type Post struct {
	PostID     string    `json:"postId"`
	UserID     string    `json:"userId"`
	Nickname   string    `json:"nickname,omitempty"`
	Content    string    `json:"content"`
	IsMarkdown bool      `json:"isMarkdown"`
	ImageKeys  []string  `json:"imageKeys"`
	ImageURLs  []string  `json:"imageUrls"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// HasTag reports whether the post carries tag.
func (p *Post) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// PostPage is one page of ListPosts output. NextToken is empty on the last page.
type PostPage struct {
	Items     []*Post `json:"items"`
	Limit     int     `json:"limit"`
	NextToken string  `json:"nextToken,omitempty"`
}

// ListPostsInput carries list_posts arguments. Cursor is the opaque token a
// previous call returned.
type ListPostsInput struct {
	Limit  int
	Cursor string
	Tag    string
}

type CreatePostInput struct {
	Content    string   `json:"content"`
	ImageKeys  []string `json:"imageKeys"`
	Tags       []string `json:"tags"`
	IsMarkdown bool     `json:"isMarkdown"`
}

// UpdatePostInput patches a post; nil fields are left untouched.
type UpdatePostInput struct {
	Content    *string   `json:"content"`
	ImageKeys  *[]string `json:"imageKeys"`
	Tags       *[]string `json:"tags"`
	IsMarkdown *bool     `json:"isMarkdown"`
}

// TimestampLayout is the fixed-width UTC layout used for stored timestamps so
// that lexical order equals chronological order in every store.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. RFC3339 values written by older
// clients are accepted too.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

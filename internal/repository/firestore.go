package repository

import (
	"context"
	"fmt"

	"simplesns/internal/models"
	"simplesns/internal/pagination"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// firestorePostDoc is a post document keyed by post id.
type firestorePostDoc struct {
	PostID     string   `firestore:"postId"`
	UserID     string   `firestore:"userId"`
	Nickname   string   `firestore:"nickname,omitempty"`
	Content    string   `firestore:"content"`
	IsMarkdown bool     `firestore:"isMarkdown"`
	ImageKeys  []string `firestore:"imageKeys"`
	Tags       []string `firestore:"tags"`
	CreatedAt  string   `firestore:"createdAt"`
	UpdatedAt  string   `firestore:"updatedAt"`
}

type firestoreProfileDoc struct {
	UserID    string `firestore:"userId"`
	Nickname  string `firestore:"nickname"`
	Bio       string `firestore:"bio,omitempty"`
	AvatarKey string `firestore:"avatarKey,omitempty"`
	CreatedAt string `firestore:"createdAt,omitempty"`
	UpdatedAt string `firestore:"updatedAt,omitempty"`
}

func toFirestorePost(p *models.Post) firestorePostDoc {
	return firestorePostDoc{
		PostID:     p.PostID,
		UserID:     p.UserID,
		Nickname:   p.Nickname,
		Content:    p.Content,
		IsMarkdown: p.IsMarkdown,
		ImageKeys:  nonNil(p.ImageKeys),
		Tags:       nonNil(p.Tags),
		CreatedAt:  models.FormatTimestamp(p.CreatedAt),
		UpdatedAt:  models.FormatTimestamp(p.UpdatedAt),
	}
}

func (d *firestorePostDoc) toModel(docID string) *models.Post {
	id := d.PostID
	if id == "" {
		id = docID
	}
	return &models.Post{
		PostID:     id,
		UserID:     d.UserID,
		Nickname:   d.Nickname,
		Content:    d.Content,
		IsMarkdown: d.IsMarkdown,
		ImageKeys:  nonNil(d.ImageKeys),
		Tags:       nonNil(d.Tags),
		CreatedAt:  parseTime(d.CreatedAt),
		UpdatedAt:  parseTime(d.UpdatedAt),
	}
}

func (d *firestoreProfileDoc) toModel(docID string) *models.Profile {
	id := d.UserID
	if id == "" {
		id = docID
	}
	return &models.Profile{
		UserID:    id,
		Nickname:  d.Nickname,
		Bio:       d.Bio,
		AvatarKey: d.AvatarKey,
		CreatedAt: parseOptionalTime(d.CreatedAt),
		UpdatedAt: parseOptionalTime(d.UpdatedAt),
	}
}

func isFirestoreNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// firestorePostRepository implements PostRepository on Firestore.
type firestorePostRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestorePostRepository creates a Firestore-backed post repository.
func NewFirestorePostRepository(client *firestore.Client, collection string) PostRepository {
	return &firestorePostRepository{client: client, collection: collection}
}

func (r *firestorePostRepository) posts() *firestore.CollectionRef {
	return r.client.Collection(r.collection)
}

func (r *firestorePostRepository) Create(ctx context.Context, post *models.Post) error {
	_, err := r.posts().Doc(post.PostID).Create(ctx, toFirestorePost(post))
	return err
}

func (r *firestorePostRepository) Get(ctx context.Context, postID string) (*models.Post, error) {
	snap, err := r.posts().Doc(postID).Get(ctx)
	if isFirestoreNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc firestorePostDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode post: %w", err)
	}
	return doc.toModel(snap.Ref.ID), nil
}

// List needs a composite index on (createdAt DESC, postId DESC).
func (r *firestorePostRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	q := r.posts().
		OrderBy("createdAt", firestore.Desc).
		OrderBy("postId", firestore.Desc)
	if cursor.IsKeyset() {
		q = q.StartAfter(cursor.CreatedAt, cursor.PostID)
	}

	snaps, err := q.Limit(limit + 1).Documents(ctx).GetAll()
	if err != nil {
		return nil, nil, err
	}
	posts := make([]*models.Post, 0, len(snaps))
	for _, snap := range snaps {
		var doc firestorePostDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, fmt.Errorf("failed to decode post %s: %w", snap.Ref.ID, err)
		}
		posts = append(posts, doc.toModel(snap.Ref.ID))
	}
	page, next := trimPage(posts, limit)
	return page, next, nil
}

// firestorePostUpdates lists the mutable fields of post. Identity and
// creation time are never rewritten.
func firestorePostUpdates(post *models.Post) []firestore.Update {
	doc := toFirestorePost(post)
	return []firestore.Update{
		{Path: "nickname", Value: doc.Nickname},
		{Path: "content", Value: doc.Content},
		{Path: "isMarkdown", Value: doc.IsMarkdown},
		{Path: "imageKeys", Value: doc.ImageKeys},
		{Path: "tags", Value: doc.Tags},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
}

func (r *firestorePostRepository) Update(ctx context.Context, post *models.Post) error {
	_, err := r.posts().Doc(post.PostID).Update(ctx, firestorePostUpdates(post), firestore.Exists)
	if isFirestoreNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *firestorePostRepository) Delete(ctx context.Context, post *models.Post) error {
	_, err := r.posts().Doc(post.PostID).Delete(ctx)
	return err
}

func (r *firestorePostRepository) Ping(ctx context.Context) error {
	_, err := r.posts().Limit(1).Documents(ctx).GetAll()
	return err
}

// firestoreProfileRepository stores profiles keyed by user id.
type firestoreProfileRepository struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreProfileRepository creates a Firestore-backed profile repository.
func NewFirestoreProfileRepository(client *firestore.Client, collection string) ProfileRepository {
	return &firestoreProfileRepository{client: client, collection: collection}
}

func (r *firestoreProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	snap, err := r.client.Collection(r.collection).Doc(userID).Get(ctx)
	if isFirestoreNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc firestoreProfileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return doc.toModel(snap.Ref.ID), nil
}

func (r *firestoreProfileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error) {
	ids := uniqueIDs(userIDs)
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(r.collection).Doc(id))
	}
	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var doc firestoreProfileDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode profile %s: %w", snap.Ref.ID, err)
		}
		p := doc.toModel(snap.Ref.ID)
		out[p.UserID] = p
	}
	return out, nil
}

func (r *firestoreProfileRepository) Put(ctx context.Context, profile *models.Profile) error {
	_, err := r.client.Collection(r.collection).Doc(profile.UserID).Set(ctx, firestoreProfileDoc{
		UserID:    profile.UserID,
		Nickname:  profile.Nickname,
		Bio:       profile.Bio,
		AvatarKey: profile.AvatarKey,
		CreatedAt: formatOptionalTime(profile.CreatedAt),
		UpdatedAt: formatOptionalTime(profile.UpdatedAt),
	})
	return err
}

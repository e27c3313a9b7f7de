package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"simplesns/internal/models"
	"simplesns/internal/pagination"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

const (
	cosmosPostsPK    = "POSTS"
	cosmosProfilesPK = "PROFILES"
)

// CosmosContainer is the subset of *azcosmos.ContainerClient the adapter uses.
type CosmosContainer interface {
	CreateItem(ctx context.Context, pk azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	ReadItem(ctx context.Context, pk azcosmos.PartitionKey, itemID string, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	ReplaceItem(ctx context.Context, pk azcosmos.PartitionKey, itemID string, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	UpsertItem(ctx context.Context, pk azcosmos.PartitionKey, item []byte, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	DeleteItem(ctx context.Context, pk azcosmos.PartitionKey, itemID string, o *azcosmos.ItemOptions) (azcosmos.ItemResponse, error)
	NewQueryItemsPager(query string, pk azcosmos.PartitionKey, o *azcosmos.QueryOptions) *runtime.Pager[azcosmos.QueryItemsResponse]
	Read(ctx context.Context, o *azcosmos.ReadContainerOptions) (azcosmos.ContainerResponse, error)
}

// cosmosPostDoc is a post in a container partitioned on /pk.
type cosmosPostDoc struct {
	ID         string   `json:"id"`
	PK         string   `json:"pk"`
	DocType    string   `json:"docType"`
	SortKey    string   `json:"sortKey"`
	PostID     string   `json:"postId"`
	UserID     string   `json:"userId"`
	Nickname   string   `json:"nickname,omitempty"`
	Content    string   `json:"content"`
	IsMarkdown bool     `json:"isMarkdown"`
	ImageKeys  []string `json:"imageKeys"`
	Tags       []string `json:"tags"`
	CreatedAt  string   `json:"createdAt"`
	UpdatedAt  string   `json:"updatedAt"`
}

type cosmosProfileDoc struct {
	ID        string `json:"id"`
	PK        string `json:"pk"`
	DocType   string `json:"docType"`
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Bio       string `json:"bio,omitempty"`
	AvatarKey string `json:"avatarKey,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

func toCosmosPost(p *models.Post) cosmosPostDoc {
	created := models.FormatTimestamp(p.CreatedAt)
	return cosmosPostDoc{
		ID:         p.PostID,
		PK:         cosmosPostsPK,
		DocType:    "post",
		SortKey:    SortKey(created, p.PostID),
		PostID:     p.PostID,
		UserID:     p.UserID,
		Nickname:   p.Nickname,
		Content:    p.Content,
		IsMarkdown: p.IsMarkdown,
		ImageKeys:  nonNil(p.ImageKeys),
		Tags:       nonNil(p.Tags),
		CreatedAt:  created,
		UpdatedAt:  models.FormatTimestamp(p.UpdatedAt),
	}
}

func (d *cosmosPostDoc) toModel() *models.Post {
	id := d.PostID
	if id == "" {
		id = d.ID
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

func (d *cosmosProfileDoc) toModel() *models.Profile {
	id := d.UserID
	if id == "" {
		id = d.ID
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

func isCosmosNotFound(err error) bool {
	return cosmosStatus(err) == http.StatusNotFound
}

func cosmosStatus(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// cosmosListQuery builds the newest-first post query. A keyset cursor is
// honored when no continuation token is available.
func cosmosListQuery(limit int, cursor *pagination.Cursor) (string, *azcosmos.QueryOptions) {
	query := "SELECT * FROM c WHERE c.docType = 'post'"
	opts := &azcosmos.QueryOptions{PageSizeHint: int32(limit)}
	switch {
	case cursor != nil && cursor.Continuation != "":
		token := cursor.Continuation
		opts.ContinuationToken = &token
	case cursor.IsKeyset():
		query += " AND c.sortKey < @after"
		opts.QueryParameters = []azcosmos.QueryParameter{
			{Name: "@after", Value: SortKey(cursor.CreatedAt, cursor.PostID)},
		}
	}
	return query + " ORDER BY c.sortKey DESC", opts
}

// cosmosPostRepository implements PostRepository on Cosmos DB.
type cosmosPostRepository struct {
	container CosmosContainer
}

// NewCosmosPostRepository creates a Cosmos DB-backed post repository.
func NewCosmosPostRepository(container CosmosContainer) PostRepository {
	return &cosmosPostRepository{container: container}
}

func (r *cosmosPostRepository) Create(ctx context.Context, post *models.Post) error {
	body, err := json.Marshal(toCosmosPost(post))
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	_, err = r.container.CreateItem(ctx, azcosmos.NewPartitionKeyString(cosmosPostsPK), body, nil)
	return err
}

func (r *cosmosPostRepository) Get(ctx context.Context, postID string) (*models.Post, error) {
	resp, err := r.container.ReadItem(ctx, azcosmos.NewPartitionKeyString(cosmosPostsPK), postID, nil)
	if isCosmosNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc cosmosPostDoc
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}
	return doc.toModel(), nil
}

// List fetches a single native page. Cosmos may return fewer than limit
// items alongside a continuation token; the token is passed through as is.
func (r *cosmosPostRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	query, opts := cosmosListQuery(limit, cursor)
	pager := r.container.NewQueryItemsPager(query, azcosmos.NewPartitionKeyString(cosmosPostsPK), opts)

	posts := make([]*models.Post, 0, limit)
	if !pager.More() {
		return posts, nil, nil
	}
	page, err := pager.NextPage(ctx)
	if err != nil {
		if opts.ContinuationToken != nil && cosmosStatus(err) == http.StatusBadRequest {
			return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		return nil, nil, err
	}
	for _, raw := range page.Items {
		var doc cosmosPostDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("failed to unmarshal post: %w", err)
		}
		posts = append(posts, doc.toModel())
	}

	var next *pagination.Cursor
	if page.ContinuationToken != nil && *page.ContinuationToken != "" {
		next = pagination.Continuation("", *page.ContinuationToken)
	}
	return posts, next, nil
}

func (r *cosmosPostRepository) Update(ctx context.Context, post *models.Post) error {
	body, err := json.Marshal(toCosmosPost(post))
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	_, err = r.container.ReplaceItem(ctx, azcosmos.NewPartitionKeyString(cosmosPostsPK), post.PostID, body, nil)
	if isCosmosNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *cosmosPostRepository) Delete(ctx context.Context, post *models.Post) error {
	_, err := r.container.DeleteItem(ctx, azcosmos.NewPartitionKeyString(cosmosPostsPK), post.PostID, nil)
	if isCosmosNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (r *cosmosPostRepository) Ping(ctx context.Context) error {
	_, err := r.container.Read(ctx, nil)
	return err
}

// cosmosProfileRepository stores profiles as pk=PROFILES, id=<user_id>.
type cosmosProfileRepository struct {
	container CosmosContainer
}

// NewCosmosProfileRepository creates a Cosmos DB-backed profile repository.
func NewCosmosProfileRepository(container CosmosContainer) ProfileRepository {
	return &cosmosProfileRepository{container: container}
}

func (r *cosmosProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	resp, err := r.container.ReadItem(ctx, azcosmos.NewPartitionKeyString(cosmosProfilesPK), userID, nil)
	if isCosmosNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc cosmosProfileDoc
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	return doc.toModel(), nil
}

func (r *cosmosProfileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error) {
	ids := uniqueIDs(userIDs)
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pager := r.container.NewQueryItemsPager(
		"SELECT * FROM c WHERE ARRAY_CONTAINS(@ids, c.id)",
		azcosmos.NewPartitionKeyString(cosmosProfilesPK),
		&azcosmos.QueryOptions{
			QueryParameters: []azcosmos.QueryParameter{{Name: "@ids", Value: ids}},
		},
	)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			var doc cosmosProfileDoc
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
			}
			p := doc.toModel()
			out[p.UserID] = p
		}
	}
	return out, nil
}

func (r *cosmosProfileRepository) Put(ctx context.Context, profile *models.Profile) error {
	body, err := json.Marshal(cosmosProfileDoc{
		ID:        profile.UserID,
		PK:        cosmosProfilesPK,
		DocType:   "profile",
		UserID:    profile.UserID,
		Nickname:  profile.Nickname,
		Bio:       profile.Bio,
		AvatarKey: profile.AvatarKey,
		CreatedAt: formatOptionalTime(profile.CreatedAt),
		UpdatedAt: formatOptionalTime(profile.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = r.container.UpsertItem(ctx, azcosmos.NewPartitionKeyString(cosmosProfilesPK), body, nil)
	return err
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"simplesns/internal/middleware"
	"simplesns/internal/models"
	"simplesns/internal/pagination"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	dynamoPostsPK    = "POSTS"
	dynamoProfilesPK = "PROFILES"
	dynamoBatchSize  = 100
	dynamoMaxRetries = 5
	// dynamoRetryBase is the first backoff before re-sending unprocessed keys;
	// it doubles on every attempt.
	dynamoRetryBase = 50 * time.Millisecond
)

// DynamoAPI is the subset of the DynamoDB client the adapter uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// dynamoPostItem is a post in the single-table layout:
// PK=POSTS, SK=<created_at>#<post_id>, with a GSI on postId.
type dynamoPostItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	DocType    string   `dynamodbav:"docType"`
	PostID     string   `dynamodbav:"postId"`
	UserID     string   `dynamodbav:"userId"`
	Nickname   string   `dynamodbav:"nickname,omitempty"`
	Content    string   `dynamodbav:"content"`
	IsMarkdown bool     `dynamodbav:"isMarkdown"`
	ImageKeys  []string `dynamodbav:"imageKeys"`
	Tags       []string `dynamodbav:"tags"`
	CreatedAt  string   `dynamodbav:"createdAt"`
	UpdatedAt  string   `dynamodbav:"updatedAt"`
}

type dynamoProfileItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	DocType   string `dynamodbav:"docType"`
	UserID    string `dynamodbav:"userId"`
	Nickname  string `dynamodbav:"nickname"`
	Bio       string `dynamodbav:"bio,omitempty"`
	AvatarKey string `dynamodbav:"avatarKey,omitempty"`
	CreatedAt string `dynamodbav:"createdAt,omitempty"`
	UpdatedAt string `dynamodbav:"updatedAt,omitempty"`
}

func toDynamoPost(p *models.Post) dynamoPostItem {
	created := models.FormatTimestamp(p.CreatedAt)
	return dynamoPostItem{
		PK:         dynamoPostsPK,
		SK:         SortKey(created, p.PostID),
		DocType:    "post",
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

func (it *dynamoPostItem) toModel() *models.Post {
	return &models.Post{
		PostID:     it.PostID,
		UserID:     it.UserID,
		Nickname:   it.Nickname,
		Content:    it.Content,
		IsMarkdown: it.IsMarkdown,
		ImageKeys:  nonNil(it.ImageKeys),
		Tags:       nonNil(it.Tags),
		CreatedAt:  parseTime(it.CreatedAt),
		UpdatedAt:  parseTime(it.UpdatedAt),
	}
}

func stringKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// dynamoPostRepository implements PostRepository on a DynamoDB single table.
type dynamoPostRepository struct {
	client      DynamoAPI
	table       string
	postIDIndex string
}

// NewDynamoPostRepository creates a DynamoDB-backed post repository.
func NewDynamoPostRepository(client DynamoAPI, table, postIDIndex string) PostRepository {
	return &dynamoPostRepository{client: client, table: table, postIDIndex: postIDIndex}
}

func (r *dynamoPostRepository) Create(ctx context.Context, post *models.Post) error {
	item, err := attributevalue.MarshalMap(toDynamoPost(post))
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	return err
}

func (r *dynamoPostRepository) Get(ctx context.Context, postID string) (*models.Post, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.table),
		IndexName:              aws.String(r.postIDIndex),
		KeyConditionExpression: aws.String("postId = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: postID},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	var it dynamoPostItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal post: %w", err)
	}
	return it.toModel(), nil
}

// List pages newest-first over the POSTS partition. DynamoDB may stop a
// query short of Limit (1 MB page cap), so it keeps querying until it has
// one row beyond the page or the partition is exhausted.
func (r *dynamoPostRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	var startKey map[string]types.AttributeValue
	if cursor.IsKeyset() {
		startKey = stringKey(dynamoPostsPK, SortKey(cursor.CreatedAt, cursor.PostID))
	}

	want := limit + 1
	posts := make([]*models.Post, 0, want)
	for len(posts) < want {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.table),
			KeyConditionExpression: aws.String("PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: dynamoPostsPK},
			},
			ScanIndexForward:  aws.Bool(false),
			Limit:             aws.Int32(int32(want - len(posts))),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, nil, err
		}
		for _, raw := range out.Items {
			var it dynamoPostItem
			if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
				return nil, nil, fmt.Errorf("failed to unmarshal post: %w", err)
			}
			posts = append(posts, it.toModel())
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	page, next := trimPage(posts, limit)
	return page, next, nil
}

func (r *dynamoPostRepository) Update(ctx context.Context, post *models.Post) error {
	item, err := attributevalue.MarshalMap(toDynamoPost(post))
	if err != nil {
		return fmt.Errorf("failed to marshal post: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

func (r *dynamoPostRepository) Delete(ctx context.Context, post *models.Post) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       stringKey(dynamoPostsPK, SortKey(models.FormatTimestamp(post.CreatedAt), post.PostID)),
	})
	return err
}

func (r *dynamoPostRepository) Ping(ctx context.Context) error {
	_, err := r.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.table)})
	return err
}

// dynamoProfileRepository stores profiles as PK=PROFILES, SK=<user_id>.
type dynamoProfileRepository struct {
	client    DynamoAPI
	table     string
	retryBase time.Duration
}

// NewDynamoProfileRepository creates a DynamoDB-backed profile repository.
func NewDynamoProfileRepository(client DynamoAPI, table string) ProfileRepository {
	return &dynamoProfileRepository{client: client, table: table, retryBase: dynamoRetryBase}
}

func (r *dynamoProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       stringKey(dynamoProfilesPK, userID),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return unmarshalDynamoProfile(out.Item)
}

func (r *dynamoProfileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error) {
	ids := uniqueIDs(userIDs)
	result := make(map[string]*models.Profile, len(ids))

	for start := 0; start < len(ids); start += dynamoBatchSize {
		end := start + dynamoBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, stringKey(dynamoProfilesPK, id))
		}

		request := map[string]types.KeysAndAttributes{r.table: {Keys: keys}}
		wait := r.retryBase
		for attempt := 0; len(request) > 0 && attempt < dynamoMaxRetries; attempt++ {
			if attempt > 0 {
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				wait *= 2
			}
			out, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			for _, raw := range out.Responses[r.table] {
				p, err := unmarshalDynamoProfile(raw)
				if err != nil {
					return nil, err
				}
				result[p.UserID] = p
			}
			request = out.UnprocessedKeys
		}
		if dropped := unprocessedIDs(request[r.table]); len(dropped) > 0 {
			middleware.Logger.WarnContext(ctx, "dynamodb left profile keys unprocessed, omitting them",
				slog.String("table", r.table),
				slog.Int("attempts", dynamoMaxRetries),
				slog.Any("user_ids", dropped),
			)
		}
	}
	return result, nil
}

func unprocessedIDs(ka types.KeysAndAttributes) []string {
	ids := make([]string, 0, len(ka.Keys))
	for _, key := range ka.Keys {
		if sk, ok := key["SK"].(*types.AttributeValueMemberS); ok {
			ids = append(ids, sk.Value)
		}
	}
	return ids
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *dynamoProfileRepository) Put(ctx context.Context, profile *models.Profile) error {
	item, err := attributevalue.MarshalMap(dynamoProfileItem{
		PK:        dynamoProfilesPK,
		SK:        profile.UserID,
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
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	return err
}

func unmarshalDynamoProfile(raw map[string]types.AttributeValue) (*models.Profile, error) {
	var it dynamoProfileItem
	if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
		return nil, fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if it.UserID == "" {
		it.UserID = it.SK
	}
	return &models.Profile{
		UserID:    it.UserID,
		Nickname:  it.Nickname,
		Bio:       it.Bio,
		AvatarKey: it.AvatarKey,
		CreatedAt: parseOptionalTime(it.CreatedAt),
		UpdatedAt: parseOptionalTime(it.UpdatedAt),
	}, nil
}

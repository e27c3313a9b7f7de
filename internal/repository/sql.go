package repository

import (
	"context"
	"errors"
	"fmt"

	"simplesns/internal/models"
	"simplesns/internal/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postRecord is the GORM row for a post. Timestamps are fixed-width strings
// so ordering matches the other stores byte for byte.
type postRecord struct {
	PostID     string   `gorm:"column:post_id;primaryKey;size:64;index:idx_posts_order,priority:2"`
	UserID     string   `gorm:"column:user_id;size:128;not null;index"`
	Nickname   string   `gorm:"column:nickname;size:100"`
	Content    string   `gorm:"column:content;type:text;not null"`
	IsMarkdown bool     `gorm:"column:is_markdown;not null;default:false"`
	ImageKeys  []string `gorm:"column:image_keys;serializer:json"`
	Tags       []string `gorm:"column:tags;serializer:json"`
	Created    string   `gorm:"column:created_at;size:32;not null;index:idx_posts_order,priority:1"`
	Updated    string   `gorm:"column:updated_at;size:32"`
}

func (postRecord) TableName() string { return "posts" }

type profileRecord struct {
	UserID    string `gorm:"column:user_id;primaryKey;size:128"`
	Nickname  string `gorm:"column:nickname;size:100"`
	Bio       string `gorm:"column:bio;size:500"`
	AvatarKey string `gorm:"column:avatar_key;size:512"`
	Created   string `gorm:"column:created_at;size:32"`
	Updated   string `gorm:"column:updated_at;size:32"`
}

func (profileRecord) TableName() string { return "profiles" }

// SQLModels returns the GORM models backing the local provider.
func SQLModels() []interface{} {
	return []interface{}{&postRecord{}, &profileRecord{}}
}

func toPostRecord(p *models.Post) *postRecord {
	return &postRecord{
		PostID:     p.PostID,
		UserID:     p.UserID,
		Nickname:   p.Nickname,
		Content:    p.Content,
		IsMarkdown: p.IsMarkdown,
		ImageKeys:  nonNil(p.ImageKeys),
		Tags:       nonNil(p.Tags),
		Created:    models.FormatTimestamp(p.CreatedAt),
		Updated:    models.FormatTimestamp(p.UpdatedAt),
	}
}

func (r *postRecord) toModel() *models.Post {
	return &models.Post{
		PostID:     r.PostID,
		UserID:     r.UserID,
		Nickname:   r.Nickname,
		Content:    r.Content,
		IsMarkdown: r.IsMarkdown,
		ImageKeys:  nonNil(r.ImageKeys),
		Tags:       nonNil(r.Tags),
		CreatedAt:  parseTime(r.Created),
		UpdatedAt:  parseTime(r.Updated),
	}
}

func toProfileRecord(p *models.Profile) *profileRecord {
	return &profileRecord{
		UserID:    p.UserID,
		Nickname:  p.Nickname,
		Bio:       p.Bio,
		AvatarKey: p.AvatarKey,
		Created:   formatOptionalTime(p.CreatedAt),
		Updated:   formatOptionalTime(p.UpdatedAt),
	}
}

func (r *profileRecord) toModel() *models.Profile {
	return &models.Profile{
		UserID:    r.UserID,
		Nickname:  r.Nickname,
		Bio:       r.Bio,
		AvatarKey: r.AvatarKey,
		CreatedAt: parseOptionalTime(r.Created),
		UpdatedAt: parseOptionalTime(r.Updated),
	}
}

// sqlPostRepository implements PostRepository on GORM.
type sqlPostRepository struct {
	db *gorm.DB
}

// NewSQLPostRepository creates a GORM-backed post repository.
func NewSQLPostRepository(db *gorm.DB) PostRepository {
	return &sqlPostRepository{db: db}
}

func (r *sqlPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(toPostRecord(post)).Error
}

func (r *sqlPostRepository) Get(ctx context.Context, postID string) (*models.Post, error) {
	var rec postRecord
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (r *sqlPostRepository) List(ctx context.Context, limit int, cursor *pagination.Cursor) ([]*models.Post, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&postRecord{})
	if cursor.IsKeyset() {
		q = q.Where("created_at < ? OR (created_at = ? AND post_id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.PostID)
	}

	var recs []postRecord
	err := q.Order("created_at DESC").
		Order("post_id DESC").
		Limit(limit + 1).
		Find(&recs).Error
	if err != nil {
		return nil, nil, err
	}

	posts := make([]*models.Post, 0, len(recs))
	for i := range recs {
		posts = append(posts, recs[i].toModel())
	}
	page, next := trimPage(posts, limit)
	return page, next, nil
}

// Update rewrites the mutable columns of an existing post. A post deleted in
// the meantime yields ErrNotFound rather than being inserted again.
func (r *sqlPostRepository) Update(ctx context.Context, post *models.Post) error {
	rec := toPostRecord(post)
	res := r.db.WithContext(ctx).
		Model(&postRecord{}).
		Where("post_id = ?", rec.PostID).
		Select("*").
		Omit("post_id", "user_id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlPostRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Where("post_id = ?", post.PostID).Delete(&postRecord{}).Error
}

func (r *sqlPostRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// sqlProfileRepository implements ProfileRepository on GORM.
type sqlProfileRepository struct {
	db *gorm.DB
}

// NewSQLProfileRepository creates a GORM-backed profile repository.
func NewSQLProfileRepository(db *gorm.DB) ProfileRepository {
	return &sqlProfileRepository{db: db}
}

func (r *sqlProfileRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var rec profileRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (r *sqlProfileRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*models.Profile, error) {
	ids := uniqueIDs(userIDs)
	out := make(map[string]*models.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var recs []profileRecord
	if err := r.db.WithContext(ctx).Where("user_id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, err
	}
	for i := range recs {
		out[recs[i].UserID] = recs[i].toModel()
	}
	return out, nil
}

func (r *sqlProfileRepository) Put(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(toProfileRecord(profile)).Error
}

package repository

import (
	"github.com/agnosto/autoposter/core"
	"github.com/agnosto/autoposter/db/models"
	"gorm.io/gorm"
)

// PostFilter narrows List. Zero values mean "any"; Limit <= 0 means no limit.
type PostFilter struct {
	Status      core.PostStatus
	ContentType core.ContentType
	Limit       int
}

// PostRepository defines the interface for post operations
type PostRepository interface {
	Create(post *core.Post) error
	Get(id string) (*core.Post, error)
	Update(post *core.Post) error
	Delete(id string) (bool, error)
	List(filter PostFilter) ([]core.Post, error)
}

// GormPostRepository implements PostRepository using GORM
type GormPostRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &GormPostRepository{db: db}
}

// Create stores a new post at version 1.
func (r *GormPostRepository) Create(post *core.Post) error {
	post.Version = 1
	row := models.PostFromDomain(post)
	return dbError(r.db.Create(&row).Error, "create post")
}

func (r *GormPostRepository) Get(id string) (*core.Post, error) {
	var row models.Post
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		return nil, dbError(err, "get post "+id)
	}
	return row.ToDomain()
}

// Update writes every field of post if the stored version still matches
// post.Version, then advances post.Version.
func (r *GormPostRepository) Update(post *core.Post) error {
	row := models.PostFromDomain(post)
	row.Version = post.Version + 1
	res := r.db.Model(&models.Post{}).
		Where("id = ? AND version = ?", post.ID, post.Version).
		Select("*").
		Updates(&row)
	if res.Error != nil {
		return dbError(res.Error, "update post")
	}
	if res.RowsAffected == 0 {
		return versionMiss(r.db, &models.Post{}, post.ID, "update post")
	}
	post.Version = row.Version
	return nil
}

// Delete removes the post and reports whether it existed.
func (r *GormPostRepository) Delete(id string) (bool, error) {
	res := r.db.Where("id = ?", id).Delete(&models.Post{})
	if res.Error != nil {
		return false, dbError(res.Error, "delete post")
	}
	return res.RowsAffected > 0, nil
}

// List returns posts newest first.
func (r *GormPostRepository) List(filter PostFilter) ([]core.Post, error) {
	q := r.db.Model(&models.Post{})
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.ContentType != "" {
		q = q.Where("content_type = ?", string(filter.ContentType))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []models.Post
	if err := q.Order("created_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, dbError(err, "list posts")
	}

	posts := make([]core.Post, 0, len(rows))
	for i := range rows {
		p, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, nil
}

package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
	"gorm.io/gorm"
)

// VersionRepo stores post version snapshots.
type VersionRepo struct {
	db *gorm.DB
}

func NewVersionRepo(db *gorm.DB) *VersionRepo {
	return &VersionRepo{db}
}

func (r *VersionRepo) forPost(ctx context.Context, postID, authorID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.PostVersion{}).Where("post_id = ? AND author_id = ?", postID, authorID)
}

// Latest returns the version with the highest number, or nil when the post
// has none.
func (r *VersionRepo) Latest(ctx context.Context, postID, authorID uuid.UUID) (*models.PostVersion, error) {
	var versions []models.PostVersion
	err := r.forPost(ctx, postID, authorID).Order("version_number DESC").Limit(1).Find(&versions).Error
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, nil
	}
	return &versions[0], nil
}

// FindByID returns one version of a post.
func (r *VersionRepo) FindByID(ctx context.Context, postID, authorID, versionID uuid.UUID) (*models.PostVersion, error) {
	var version models.PostVersion
	err := r.forPost(ctx, postID, authorID).Where("id = ?", versionID).Take(&version).Error
	if err != nil {
		if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
			return nil, errs.NewNotFoundError("Target version not found")
		}
		return nil, err
	}
	return &version, nil
}

// ListForPost returns up to limit versions, newest first.
func (r *VersionRepo) ListForPost(ctx context.Context, postID, authorID uuid.UUID, limit int) ([]models.PostVersion, error) {
	versions := []models.PostVersion{}
	err := r.forPost(ctx, postID, authorID).Order("version_number DESC").Limit(limit).Find(&versions).Error
	return versions, err
}

// Insert adds a version. A duplicate (post_id, version_number) surfaces as a
// unique violation.
func (r *VersionRepo) Insert(ctx context.Context, version *models.PostVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

// UpdateUnpublished rewrites a version's payload unless it is the post's
// published version. It reports false when the row vanished or was published
// since it was read.
func (r *VersionRepo) UpdateUnpublished(ctx context.Context, version *models.PostVersion, title, content string) (bool, error) {
	published := r.db.Table(postsTable).
		Select("published_version_id").
		Where("id = ? AND published_version_id IS NOT NULL", version.PostID)

	res := r.db.WithContext(ctx).Model(&models.PostVersion{}).
		Where("id = ? AND author_id = ?", version.ID, version.AuthorID).
		Where("id NOT IN (?)", published).
		Updates(map[string]any{"title": title, "content_markdown": content})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
	"gorm.io/gorm"
)

type WorkspaceRepo struct {
	db *gorm.DB
}

func NewWorkspaceRepo(db *gorm.DB) *WorkspaceRepo {
	return &WorkspaceRepo{db}
}

// FindBySlug returns the workspace with the given public slug
func (r *WorkspaceRepo) FindBySlug(ctx context.Context, slug string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).Take(&workspace).Error; err != nil {
		if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
			return nil, errs.NewNotFoundError("Workspace not found")
		}
		return nil, err
	}
	return &workspace, nil
}

// FindByOwner returns the oldest workspace owned by the user
func (r *WorkspaceRepo) FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Workspace, error) {
	var workspace models.Workspace
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at").Take(&workspace).Error
	if err != nil {
		if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
			return nil, errs.NewNotFoundError("No workspace found")
		}
		return nil, err
	}
	return &workspace, nil
}

// Add inserts a new workspace
func (r *WorkspaceRepo) Add(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).Create(workspace).Error
}

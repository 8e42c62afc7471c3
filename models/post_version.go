package models

import (
	"time"

	"github.com/google/uuid"
)

// PostVersion is an immutable snapshot of a post's draft. Only the latest
// version, while it is not the published one, is ever rewritten.
type PostVersion struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	PostID          uuid.UUID `json:"post_id" gorm:"type:uuid;not null;uniqueIndex:idx_post_versions_number;column:post_id"`
	WorkspaceID     uuid.UUID `json:"-" gorm:"type:uuid;not null;column:workspace_id"`
	AuthorID        uuid.UUID `json:"-" gorm:"type:uuid;not null;column:author_id"`
	VersionNumber   int       `json:"version_number" gorm:"not null;uniqueIndex:idx_post_versions_number;column:version_number"`
	Title           string    `json:"title" gorm:"type:text;not null;column:title"`
	ContentMarkdown string    `json:"content_markdown" gorm:"type:text;not null;column:content_markdown"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;column:created_at"`
}

func (PostVersion) TableName() string {
	return "post_versions"
}

// VersionRef identifies a version without its payload.
type VersionRef struct {
	ID            uuid.UUID `json:"id"`
	VersionNumber int       `json:"version_number"`
	CreatedAt     time.Time `json:"created_at"`
}

func (v PostVersion) Ref() VersionRef {
	return VersionRef{ID: v.ID, VersionNumber: v.VersionNumber, CreatedAt: v.CreatedAt}
}

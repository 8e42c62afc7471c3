package models

import (
	"time"

	"github.com/google/uuid"
)

// Post is the authoring unit. Which of the optional fields are backed by real
// columns depends on the schema generation the store was migrated to.
type Post struct {
	ID                     uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	WorkspaceID            uuid.UUID  `json:"workspace_id" gorm:"type:uuid;not null;column:workspace_id"`
	AuthorID               uuid.UUID  `json:"author_id" gorm:"type:uuid;not null;column:author_id"`
	Title                  string     `json:"title" gorm:"type:text;not null;column:title"`
	Slug                   string     `json:"slug" gorm:"type:text;not null;uniqueIndex;column:slug"`
	ContentMarkdown        string     `json:"content_markdown" gorm:"type:text;not null;default:'';column:content_markdown"`
	LiveTitle              *string    `json:"live_title" gorm:"type:text;column:live_title"`
	LiveContentMarkdown    *string    `json:"live_content_markdown" gorm:"type:text;column:live_content_markdown"`
	CoverImageURL          *string    `json:"cover_image_url" gorm:"type:text;column:cover_image_url"`
	Published              bool       `json:"published" gorm:"not null;default:false;column:published"`
	PublishedAt            *time.Time `json:"published_at" gorm:"column:published_at"`
	PublishedVersionID     *uuid.UUID `json:"published_version_id" gorm:"type:uuid;column:published_version_id"`
	HasPendingChanges      bool       `json:"has_pending_changes" gorm:"not null;default:false;column:has_pending_changes"`
	PendingTitle           *string    `json:"pending_title" gorm:"type:text;column:pending_title"`
	PendingContentMarkdown *string    `json:"pending_content_markdown" gorm:"type:text;column:pending_content_markdown"`
	PendingUpdatedAt       *time.Time `json:"pending_updated_at" gorm:"column:pending_updated_at"`
	CreatedAt              time.Time  `json:"created_at" gorm:"not null;column:created_at"`
	UpdatedAt              time.Time  `json:"updated_at" gorm:"not null;column:updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

// PostSummary is a dashboard row.
type PostSummary struct {
	ID                uuid.UUID  `json:"id" gorm:"column:id"`
	Title             string     `json:"title" gorm:"column:title"`
	Slug              string     `json:"slug" gorm:"column:slug"`
	Published         bool       `json:"published" gorm:"column:published"`
	PublishedAt       *time.Time `json:"published_at" gorm:"column:published_at"`
	HasPendingChanges bool       `json:"has_pending_changes" gorm:"column:has_pending_changes"`
	UpdatedAt         time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

// PublicPostCard is what a public index shows for one published post.
type PublicPostCard struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	PublishedAt *time.Time `json:"published_at"`
	Excerpt     string     `json:"excerpt"`
}

// PublicPost is the reader view of a single published post.
type PublicPost struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	CoverImageURL   *string    `json:"cover_image_url,omitempty"`
	PublishedAt     *time.Time `json:"published_at"`
	ContentMarkdown string     `json:"content_markdown"`
}

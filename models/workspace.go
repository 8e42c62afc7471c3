package models

import (
	"time"

	"github.com/google/uuid"
)

// Workspace groups an owner's posts under a public slug.
type Workspace struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;column:id"`
	OwnerID      uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;column:owner_id"`
	Name         string    `json:"name" gorm:"type:text;not null;column:name"`
	Slug         string    `json:"slug" gorm:"type:text;not null;uniqueIndex;column:slug"`
	CustomDomain *string   `json:"custom_domain,omitempty" gorm:"type:text;column:custom_domain"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;column:created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null;column:updated_at"`
}

func (Workspace) TableName() string {
	return "workspaces"
}

package api

import (
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/models"
)

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	postHandler    postHandler
	bulkHandler    bulkHandler
	catalogHandler catalogHandler
	healthHandler  healthHandler
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Status  string `json:"status"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// createPostRequest is the body of POST /posts. Both fields are optional.
type createPostRequest struct {
	Title           string `json:"title" validate:"max=500"`
	ContentMarkdown string `json:"content_markdown"`
}

// saveDraftRequest is the body of PUT /posts/{postID}.
type saveDraftRequest struct {
	Title           *string `json:"title" validate:"required,max=500"`
	ContentMarkdown *string `json:"content_markdown" validate:"required"`
}

// bulkBlockedResponse answers a bulk delete that hit published posts.
type bulkBlockedResponse struct {
	Error       string      `json:"error"`
	Status      string      `json:"status"`
	BlockedIDs  []uuid.UUID `json:"blocked_ids"`
	AffectedIDs []uuid.UUID `json:"affected_ids"`
}

type deleteResponse struct {
	Success bool      `json:"success"`
	ID      uuid.UUID `json:"id"`
}

type dashboardResponse struct {
	Posts []models.PostSummary `json:"posts"`
	Total int                  `json:"total"`
}

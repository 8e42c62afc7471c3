package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type postHandler struct {
	responder Responder
	logger    zerolog.Logger
	posts     *services.PostService
	catalog   *services.CatalogService
	validate  *validator.Validate
}

func newPostHandler(posts *services.PostService, catalog *services.CatalogService, validate *validator.Validate) postHandler {
	logger := log.With().Str("handlerName", "postHandler").Logger()

	return postHandler{
		responder: NewResponder(logger),
		logger:    logger,
		posts:     posts,
		catalog:   catalog,
		validate:  validate,
	}
}

// listPosts returns the author's dashboard, most recently edited first.
// GET /posts
func (h postHandler) listPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		summaries, err := h.catalog.Dashboard(r.Context(), userID)
		if err != nil {
			h.responder.WriteFailure(w, "list posts", uuid.Nil, err)
			return
		}

		h.responder.WriteJSON(w, dashboardResponse{Posts: summaries, Total: len(summaries)})
	}
}

// createPost creates a draft in the author's workspace.
// POST /posts
func (h postHandler) createPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req createPostRequest
		if err := decodeBody(w, r, h.validate, "post", &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post, err := h.posts.CreatePost(r.Context(), userID, req.Title, req.ContentMarkdown)
		if err != nil {
			h.responder.WriteFailure(w, "create post", uuid.Nil, err)
			return
		}

		h.logger.Info().Str("postID", post.ID.String()).Str("slug", post.Slug).Msg("post created")
		h.responder.WriteJSON(w, post)
	}
}

// getPost loads a post for the editor with its newest versions.
// GET /posts/{postID}
func (h postHandler) getPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		postID, err := postIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post, err := h.posts.LoadForOwner(r.Context(), postID, userID)
		if err != nil {
			h.responder.WriteFailure(w, "load post", postID, err)
			return
		}

		h.responder.WriteJSON(w, post)
	}
}

// saveDraft writes the draft and keeps the version history in step. A
// failed history write still answers 200 with a warning.
// PUT /posts/{postID}
func (h postHandler) saveDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		postID, err := postIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req saveDraftRequest
		if err := decodeBody(w, r, h.validate, "draft", &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.posts.SaveDraft(r.Context(), postID, userID, *req.Title, *req.ContentMarkdown)
		if err != nil {
			h.responder.WriteFailure(w, "save draft", postID, err)
			return
		}

		h.responder.WriteJSON(w, result)
	}
}

// applyAction runs a publish state transition.
// PATCH /posts/{postID}
func (h postHandler) applyAction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		postID, err := postIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req services.ActionRequest
		if err := decodeBody(w, r, h.validate, "action", &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.posts.ApplyAction(r.Context(), postID, userID, req)
		if err != nil {
			h.responder.WriteFailure(w, string(req.Action), postID, err)
			return
		}

		h.responder.WriteJSON(w, result)
	}
}

// deletePost removes an unpublished post.
// DELETE /posts/{postID}
func (h postHandler) deletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		postID, err := postIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.posts.DeletePost(r.Context(), postID, userID); err != nil {
			h.responder.WriteFailure(w, "delete post", postID, err)
			return
		}

		h.logger.Info().Str("postID", postID.String()).Msg("post deleted")
		h.responder.WriteJSON(w, deleteResponse{Success: true, ID: postID})
	}
}

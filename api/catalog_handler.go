package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type catalogHandler struct {
	responder Responder
	logger    zerolog.Logger
	catalog   *services.CatalogService
}

func newCatalogHandler(catalog *services.CatalogService) catalogHandler {
	logger := log.With().Str("handlerName", "catalogHandler").Logger()

	return catalogHandler{
		responder: NewResponder(logger),
		logger:    logger,
		catalog:   catalog,
	}
}

// listPublished pages through a workspace's published posts.
// GET /workspaces/{workspaceSlug}/posts?cursor=&q=
func (h catalogHandler) listPublished() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceSlug := chi.URLParam(r, "workspaceSlug")
		query := r.URL.Query()

		page, err := h.catalog.ListPublished(r.Context(), workspaceSlug, query.Get("cursor"), query.Get("q"))
		if err != nil {
			h.responder.WriteFailure(w, "list published posts", uuid.Nil, err)
			return
		}

		h.responder.WriteJSON(w, page)
	}
}

// getPublished serves one published post to readers.
// GET /workspaces/{workspaceSlug}/posts/{postSlug}
func (h catalogHandler) getPublished() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workspaceSlug := chi.URLParam(r, "workspaceSlug")
		postSlug := chi.URLParam(r, "postSlug")

		post, err := h.catalog.PublicPost(r.Context(), workspaceSlug, postSlug)
		if err != nil {
			h.responder.WriteFailure(w, "read published post", uuid.Nil, err)
			return
		}

		h.responder.WriteJSON(w, post)
	}
}

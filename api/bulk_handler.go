package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/services"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const msgBulkBlocked = "Published posts must be unpublished before deletion"

type bulkHandler struct {
	responder Responder
	logger    zerolog.Logger
	posts     *services.PostService
	validate  *validator.Validate
}

func newBulkHandler(posts *services.PostService, validate *validator.Validate) bulkHandler {
	logger := log.With().Str("handlerName", "bulkHandler").Logger()

	return bulkHandler{
		responder: NewResponder(logger),
		logger:    logger,
		posts:     posts,
		validate:  validate,
	}
}

// applyBulk unpublishes or deletes several posts. A delete that includes
// published posts still removes the unpublished ones and answers 400 with
// both id lists.
// POST /posts/bulk
func (h bulkHandler) applyBulk() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authorID(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var req services.BulkRequest
		if err := decodeBody(w, r, h.validate, "bulk", &req); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		result, err := h.posts.ApplyBulk(r.Context(), userID, req)
		if err != nil {
			h.responder.WriteFailure(w, "bulk "+string(req.Action), uuid.Nil, err)
			return
		}

		if result.Blocked() {
			h.logger.Warn().
				Int("blocked", len(result.BlockedIDs)).
				Int("affected", len(result.AffectedIDs)).
				Msg("bulk delete refused published posts")
			h.responder.WriteJSONStatus(w, http.StatusBadRequest, bulkBlockedResponse{
				Error:       msgBulkBlocked,
				Status:      "error",
				BlockedIDs:  result.BlockedIDs,
				AffectedIDs: result.AffectedIDs,
			})
			return
		}

		h.responder.WriteJSON(w, result)
	}
}

package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
)

// BulkAction is a POST /posts/bulk operation.
type BulkAction string

const (
	BulkUnpublish BulkAction = "unpublish"
	BulkDelete    BulkAction = "delete"
)

// BulkRequest is the body of a bulk request.
type BulkRequest struct {
	Action BulkAction  `json:"action" validate:"required,oneof=unpublish delete"`
	IDs    []uuid.UUID `json:"ids" validate:"required,min=1"`
}

// BulkResult lists the posts a bulk action changed and, for delete, the
// published posts it refused to touch.
type BulkResult struct {
	Success     bool        `json:"success"`
	Action      BulkAction  `json:"action"`
	AffectedIDs []uuid.UUID `json:"affected_ids"`
	BlockedIDs  []uuid.UUID `json:"blocked_ids,omitempty"`
}

// Blocked reports whether some ids were refused.
func (r *BulkResult) Blocked() bool {
	return len(r.BlockedIDs) > 0
}

// ApplyBulk runs a bulk action over the author's posts among ids. Ids that
// are unknown or owned by someone else are ignored.
func (s *PostService) ApplyBulk(ctx context.Context, authorID uuid.UUID, req BulkRequest) (*BulkResult, error) {
	ids := dedupe(req.IDs)
	if len(ids) == 0 {
		return nil, errs.NewBadRequestError("No post ids provided")
	}

	switch req.Action {
	case BulkUnpublish:
		return s.bulkUnpublish(ctx, authorID, ids)
	case BulkDelete:
		return s.bulkDelete(ctx, authorID, ids)
	default:
		return nil, errs.NewUnsupportedActionError(string(req.Action))
	}
}

func (s *PostService) bulkUnpublish(ctx context.Context, authorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error) {
	affected, err := s.db.PostRepo().UnpublishMany(ctx, ids, authorID, s.now())
	if err != nil {
		return nil, err
	}
	publishTransitions.WithLabelValues(string(ActionUnpublish)).Add(float64(len(affected)))
	return &BulkResult{Success: true, Action: BulkUnpublish, AffectedIDs: affected}, nil
}

// bulkDelete deletes the unpublished posts among ids. Published posts are
// left untouched and reported as blocked; the result is then not a success.
func (s *PostService) bulkDelete(ctx context.Context, authorID uuid.UUID, ids []uuid.UUID) (*BulkResult, error) {
	states, err := s.db.PostRepo().FindStates(ctx, ids, authorID)
	if err != nil {
		return nil, err
	}

	blocked := []uuid.UUID{}
	deletable := []uuid.UUID{}
	for _, st := range states {
		if st.Published {
			blocked = append(blocked, st.ID)
		} else {
			deletable = append(deletable, st.ID)
		}
	}

	affected := []uuid.UUID{}
	if len(deletable) > 0 {
		affected, err = s.db.PostRepo().DeleteMany(ctx, deletable, authorID)
		if err != nil {
			return nil, err
		}
	}

	if len(blocked) > 0 {
		s.logger.Info().
			Int("blocked", len(blocked)).
			Int("deleted", len(affected)).
			Msg("bulk delete skipped published posts")
	}
	return &BulkResult{
		Success:     len(blocked) == 0,
		Action:      BulkDelete,
		AffectedIDs: affected,
		BlockedIDs:  blocked,
	}, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

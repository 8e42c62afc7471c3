package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
)

// PublishState is where a post stands in the publish lifecycle.
type PublishState string

const (
	StateDraft     PublishState = "draft"
	StatePublished PublishState = "published"
	// StatePublishedWithPendingChanges exists only in the pending-update
	// generation.
	StatePublishedWithPendingChanges PublishState = "published_with_pending_changes"
)

// StateOf derives the lifecycle state from a loaded post. Pending changes
// only count in the pending-update generation; later generations ignore
// leftover pending columns.
func StateOf(post *models.Post, gen database.Generation) PublishState {
	switch {
	case !post.Published:
		return StateDraft
	case post.HasPendingChanges && gen == database.GenerationPending:
		return StatePublishedWithPendingChanges
	default:
		return StatePublished
	}
}

// Action is a PATCH /posts/:id transition.
type Action string

const (
	ActionPublish        Action = "publish"
	ActionUnpublish      Action = "unpublish"
	ActionPublishVersion Action = "publish_version"
	ActionPublishPending Action = "publish_pending"
	ActionDiscardPending Action = "discard_pending"
)

// ActionRequest is the body of a transition request.
type ActionRequest struct {
	Action    Action     `json:"action" validate:"required"`
	VersionID *uuid.UUID `json:"version_id"`
}

// ActionResult reports the outcome of a transition.
type ActionResult struct {
	Success          bool               `json:"success"`
	Action           Action             `json:"action"`
	State            PublishState       `json:"state"`
	PublishedVersion *models.VersionRef `json:"published_version,omitempty"`
}

const (
	featureVersionWorkflow = "Version workflow"
	featurePendingWorkflow = "Pending update workflow"
)

// ApplyAction runs one publish state transition for an owned post.
func (s *PostService) ApplyAction(ctx context.Context, postID, authorID uuid.UUID, req ActionRequest) (*ActionResult, error) {
	var (
		result *ActionResult
		err    error
	)
	switch req.Action {
	case ActionUnpublish:
		result, err = s.unpublish(ctx, postID, authorID)
	case ActionPublish:
		if s.Capabilities().HasVersionLineage {
			result, err = s.publishVersion(ctx, postID, authorID, nil)
		} else {
			result, err = s.publishDraft(ctx, postID, authorID)
		}
	case ActionPublishVersion:
		result, err = s.publishVersion(ctx, postID, authorID, req.VersionID)
	case ActionPublishPending:
		result, err = s.publishPending(ctx, postID, authorID)
	case ActionDiscardPending:
		result, err = s.discardPending(ctx, postID, authorID)
	default:
		return nil, errs.NewUnsupportedActionError(string(req.Action))
	}
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.Action = req.Action
	publishTransitions.WithLabelValues(string(req.Action)).Inc()
	s.logger.Info().
		Str("postID", postID.String()).
		Str("action", string(req.Action)).
		Str("state", string(result.State)).
		Msg("publish transition applied")
	return result, nil
}

// unpublish returns the post to Draft. A pending edit survives.
func (s *PostService) unpublish(ctx context.Context, postID, authorID uuid.UUID) (*ActionResult, error) {
	if err := s.db.PostRepo().Unpublish(ctx, postID, authorID, s.now()); err != nil {
		return nil, err
	}
	return &ActionResult{State: StateDraft}, nil
}

// publishDraft exposes the current draft to readers in the generations
// without version lineage.
func (s *PostService) publishDraft(ctx context.Context, postID, authorID uuid.UUID) (*ActionResult, error) {
	post, err := s.db.PostRepo().FindForOwner(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}
	err = s.db.PostRepo().Publish(ctx, postID, authorID, database.PublishInput{
		Title:   post.Title,
		Content: post.ContentMarkdown,
		At:      s.now(),
	})
	if err != nil {
		return nil, err
	}

	post.Published = true
	return &ActionResult{State: StateOf(post, s.Capabilities().Generation())}, nil
}

// publishVersion points the post at a version and copies it into the live
// fields. Without a version id the draft is published through a version
// that holds it.
func (s *PostService) publishVersion(ctx context.Context, postID, authorID uuid.UUID, versionID *uuid.UUID) (*ActionResult, error) {
	if !s.Capabilities().HasVersionLineage {
		return nil, errs.NewFeatureUnavailableError(featureVersionWorkflow)
	}

	post, err := s.db.PostRepo().FindForOwner(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}

	var version *models.PostVersion
	if versionID != nil {
		version, err = s.db.VersionRepo().FindByID(ctx, postID, authorID, *versionID)
	} else {
		version, err = s.versionForPublish(ctx, post)
	}
	if err != nil {
		if s.refreshOnSchemaError(err) {
			return nil, errs.NewFeatureUnavailableError(featureVersionWorkflow)
		}
		return nil, err
	}

	err = s.db.PostRepo().Publish(ctx, postID, authorID, database.PublishInput{
		Title:     version.Title,
		Content:   version.ContentMarkdown,
		VersionID: &version.ID,
		At:        s.now(),
	})
	if err != nil {
		return nil, err
	}

	ref := version.Ref()
	return &ActionResult{State: StatePublished, PublishedVersion: &ref}, nil
}

// publishPending promotes a stashed edit to the live content.
func (s *PostService) publishPending(ctx context.Context, postID, authorID uuid.UUID) (*ActionResult, error) {
	if s.Capabilities().Generation() != database.GenerationPending {
		return nil, errs.NewFeatureUnavailableError(featurePendingWorkflow)
	}
	applied, err := s.db.PostRepo().ApplyPending(ctx, postID, authorID, s.now())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.noPendingChanges(ctx, postID, authorID, "No pending changes to publish")
	}
	return &ActionResult{State: StatePublished}, nil
}

// discardPending drops a stashed edit and leaves the live content alone.
func (s *PostService) discardPending(ctx context.Context, postID, authorID uuid.UUID) (*ActionResult, error) {
	if s.Capabilities().Generation() != database.GenerationPending {
		return nil, errs.NewFeatureUnavailableError(featurePendingWorkflow)
	}
	cleared, err := s.db.PostRepo().ClearPending(ctx, postID, authorID, s.now())
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, s.noPendingChanges(ctx, postID, authorID, "No pending changes to discard")
	}

	post, err := s.db.PostRepo().FindForOwner(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}
	return &ActionResult{State: StateOf(post, database.GenerationPending)}, nil
}

// noPendingChanges tells a missing post apart from one with nothing pending.
func (s *PostService) noPendingChanges(ctx context.Context, postID, authorID uuid.UUID, message string) error {
	if _, err := s.db.PostRepo().FindForOwner(ctx, postID, authorID); err != nil {
		return err
	}
	return errs.NewConflictError(message)
}

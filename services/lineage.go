package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
)

// LineageDecision records what a save did to a post's version history.
type LineageDecision string

const (
	// LineageCreated: the post had no versions and version 1 was inserted.
	LineageCreated LineageDecision = "created"
	// LineageUnchanged: the latest version already holds the content.
	LineageUnchanged LineageDecision = "unchanged"
	// LineageUpdated: the unpublished latest version was rewritten in place.
	LineageUpdated LineageDecision = "updated"
	// LineageAppended: a new version numbered latest+1 was inserted.
	LineageAppended LineageDecision = "appended"
)

// insertAttempts bounds retries when a concurrent save takes the next
// version number first.
const insertAttempts = 3

// syncVersion reconciles the version history with a saved draft.
//
// The latest version is rewritten in place while it is not the published
// one, so a post that was never published keeps a single version until its
// first publish. Once the latest version is live it stays immutable and the
// edit starts version latest+1.
func (s *PostService) syncVersion(ctx context.Context, post *models.Post, title, content string) (*models.PostVersion, LineageDecision, error) {
	versions := s.db.VersionRepo()

	latest, err := versions.Latest(ctx, post.ID, post.AuthorID)
	if err != nil {
		return nil, "", err
	}
	if latest == nil {
		v, err := s.appendVersion(ctx, post, 0, title, content)
		return v, recordDecision(LineageCreated, err), err
	}
	if latest.Title == title && latest.ContentMarkdown == content {
		return latest, recordDecision(LineageUnchanged, nil), nil
	}

	latestIsPublished := post.PublishedVersionID != nil && *post.PublishedVersionID == latest.ID
	if !latestIsPublished {
		updated, err := versions.UpdateUnpublished(ctx, latest, title, content)
		if err != nil {
			return nil, "", err
		}
		if updated {
			latest.Title = title
			latest.ContentMarkdown = content
			return latest, recordDecision(LineageUpdated, nil), nil
		}
		// The row vanished or went live between read and write.
		s.logger.Debug().
			Str("postID", post.ID.String()).
			Int("versionNumber", latest.VersionNumber).
			Msg("latest version no longer updatable, appending")
	}

	v, err := s.appendVersion(ctx, post, latest.VersionNumber, title, content)
	return v, recordDecision(LineageAppended, err), err
}

// versionForPublish returns a version holding the post's draft: the latest
// one when it matches, otherwise a newly appended one.
func (s *PostService) versionForPublish(ctx context.Context, post *models.Post) (*models.PostVersion, error) {
	latest, err := s.db.VersionRepo().Latest(ctx, post.ID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Title == post.Title && latest.ContentMarkdown == post.ContentMarkdown {
		recordDecision(LineageUnchanged, nil)
		return latest, nil
	}

	after := 0
	decision := LineageCreated
	if latest != nil {
		after = latest.VersionNumber
		decision = LineageAppended
	}
	v, err := s.appendVersion(ctx, post, after, post.Title, post.ContentMarkdown)
	recordDecision(decision, err)
	return v, err
}

// appendVersion inserts the version after number `after`. When a concurrent
// writer took that number, the latest is re-read and the insert retried.
func (s *PostService) appendVersion(ctx context.Context, post *models.Post, after int, title, content string) (*models.PostVersion, error) {
	versions := s.db.VersionRepo()

	var err error
	for attempt := 0; attempt < insertAttempts; attempt++ {
		v := &models.PostVersion{
			ID:              uuid.New(),
			PostID:          post.ID,
			WorkspaceID:     post.WorkspaceID,
			AuthorID:        post.AuthorID,
			VersionNumber:   after + 1,
			Title:           title,
			ContentMarkdown: content,
			CreatedAt:       s.now(),
		}
		err = versions.Insert(ctx, v)
		if err == nil {
			return v, nil
		}
		if errs.ClassifyStoreError(err) != errs.ConditionUniqueViolation {
			return nil, err
		}

		latest, latestErr := versions.Latest(ctx, post.ID, post.AuthorID)
		if latestErr != nil {
			return nil, latestErr
		}
		if latest != nil {
			after = latest.VersionNumber
		}
	}
	return nil, err
}

func recordDecision(decision LineageDecision, err error) LineageDecision {
	if err == nil {
		lineageDecisions.WithLabelValues(string(decision)).Inc()
	}
	return decision
}

package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
	"golang.org/x/sync/errgroup"
)

// editorVersionLimit caps the history returned with an editor load.
const editorVersionLimit = 30

const (
	warnHistoryUnavailable = "Draft is saved, but version history is unavailable. Run DB migration."
	warnHistorySyncFailed  = "Draft is saved, but version history sync failed."
)

// EditorPost is a post as the editor opens it: draft and live fields
// normalized, plus the newest versions.
type EditorPost struct {
	models.Post
	Versions []models.PostVersion `json:"versions"`
	Workflow database.Generation  `json:"workflow"`
}

// SaveResult answers a draft save.
type SaveResult struct {
	Success  bool                `json:"success"`
	Version  *models.PostVersion `json:"version"`
	Workflow database.Generation `json:"workflow"`
	Warning  string              `json:"warning,omitempty"`
}

// LoadForOwner loads a post and, in the version-lineage generation, its
// newest versions.
func (s *PostService) LoadForOwner(ctx context.Context, postID, authorID uuid.UUID) (*EditorPost, error) {
	caps := s.Capabilities()

	var (
		post     *models.Post
		versions = []models.PostVersion{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		post, err = s.db.PostRepo().FindForOwner(gctx, postID, authorID)
		return err
	})
	if caps.HasVersionLineage {
		g.Go(func() error {
			listed, err := s.db.VersionRepo().ListForPost(gctx, postID, authorID, editorVersionLimit)
			if err != nil {
				if s.refreshOnSchemaError(err) {
					return nil
				}
				return err
			}
			versions = listed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return normalizeForEditor(post, versions, s.Capabilities()), nil
}

// normalizeForEditor fills the live fields and falls back to older copies of
// the content when the draft is empty. In the pending-update generation the
// pending edit of a published post is what the editor shows.
func normalizeForEditor(post *models.Post, versions []models.PostVersion, caps database.SchemaCapabilities) *EditorPost {
	normalized := *post

	liveTitle := post.Title
	if post.LiveTitle != nil && strings.TrimSpace(*post.LiveTitle) != "" {
		liveTitle = *post.LiveTitle
	}
	liveContent := post.ContentMarkdown
	if post.LiveContentMarkdown != nil && *post.LiveContentMarkdown != "" {
		liveContent = *post.LiveContentMarkdown
	}
	normalized.LiveTitle = &liveTitle
	normalized.LiveContentMarkdown = &liveContent

	if caps.Generation() != database.GenerationPending {
		normalized.HasPendingChanges = false
	} else if post.Published && post.HasPendingChanges {
		if post.PendingTitle != nil {
			normalized.Title = *post.PendingTitle
		}
		if post.PendingContentMarkdown != nil {
			normalized.ContentMarkdown = *post.PendingContentMarkdown
		}
	}

	if normalized.ContentMarkdown == "" {
		if len(versions) > 0 {
			normalized.ContentMarkdown = versions[0].ContentMarkdown
		} else {
			normalized.ContentMarkdown = liveContent
		}
	}

	return &EditorPost{
		Post:     normalized,
		Versions: versions,
		Workflow: caps.Generation(),
	}
}

// SaveDraft persists the editor's draft. The draft write is the primary
// operation: when the version history write fails afterwards the save still
// succeeds and carries a warning.
func (s *PostService) SaveDraft(ctx context.Context, postID, authorID uuid.UUID, title, content string) (*SaveResult, error) {
	posts := s.db.PostRepo()
	post, err := posts.FindForOwner(ctx, postID, authorID)
	if err != nil {
		return nil, err
	}

	caps := s.Capabilities()
	now := s.now()
	result := &SaveResult{Success: true, Workflow: caps.Generation()}

	switch caps.Generation() {
	case database.GenerationPending:
		if post.Published {
			err = posts.StashPending(ctx, postID, authorID, title, content, now)
		} else {
			err = posts.UpdateDraft(ctx, postID, authorID, title, content, now)
		}
		if err != nil {
			return nil, err
		}
		return result, nil

	case database.GenerationVersioned:
		if err := posts.UpdateDraft(ctx, postID, authorID, title, content, now); err != nil {
			return nil, err
		}
		version, decision, err := s.syncVersion(ctx, post, title, content)
		if err != nil {
			result.Warning = warnHistorySyncFailed
			if s.refreshOnSchemaError(err) {
				result.Warning = warnHistoryUnavailable
			}
			s.logger.Warn().
				Err(errs.NewPartialFailureError("draft save", "version sync", err)).
				Str("postID", postID.String()).
				Str("code", errs.StoreErrorCode(err)).
				Msg("version sync warning after draft save")
			return result, nil
		}
		s.logger.Debug().
			Str("postID", postID.String()).
			Str("decision", string(decision)).
			Int("versionNumber", version.VersionNumber).
			Msg("version lineage synced")
		result.Version = version
		return result, nil

	default:
		if err := posts.UpdateDraft(ctx, postID, authorID, title, content, now); err != nil {
			return nil, err
		}
		return result, nil
	}
}

// CreatePost inserts an empty-history draft in the author's workspace under
// a fresh slug. Slug collisions are retried with a new suffix.
func (s *PostService) CreatePost(ctx context.Context, authorID uuid.UUID, title, content string) (*models.Post, error) {
	workspace, err := s.db.WorkspaceRepo().FindByOwner(ctx, authorID)
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = defaultTitle
	}
	base := Slugify(title)

	for attempt := 0; attempt < slugAttempts; attempt++ {
		now := s.now()
		post := &models.Post{
			ID:              uuid.New(),
			WorkspaceID:     workspace.ID,
			AuthorID:        authorID,
			Title:           title,
			Slug:            base + "-" + s.suffix(),
			ContentMarkdown: content,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err := s.db.PostRepo().Insert(ctx, post)
		if err == nil {
			return post, nil
		}
		if !errs.IsUniqueConstraintViolationError(err) {
			return nil, err
		}
		s.logger.Debug().Str("slug", post.Slug).Int("attempt", attempt+1).Msg("slug taken, retrying")
	}

	return nil, errs.NewInternalError("Failed to create a unique slug")
}

// DeletePost removes an unpublished post together with its versions.
func (s *PostService) DeletePost(ctx context.Context, postID, authorID uuid.UUID) error {
	posts := s.db.PostRepo()

	states, err := posts.FindStates(ctx, []uuid.UUID{postID}, authorID)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return errs.NewNotFound("post")
	}
	if states[0].Published {
		return errs.NewConflictError(msgUnpublishBeforeDelete)
	}

	deleted, err := posts.Delete(ctx, postID, authorID)
	if err != nil {
		return err
	}
	if !deleted {
		// Published or removed by a concurrent request since the check.
		return errs.NewConflictError(msgUnpublishBeforeDelete)
	}
	return nil
}

const msgUnpublishBeforeDelete = "Published posts must be unpublished before deletion"

package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rpupo63/post-studio-backend/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostRepo reads and writes posts with the field set of the detected schema
// generation. Every statement is scoped by author id, and writes report
// "not found" through their affected-row count.
type PostRepo struct {
	db     *gorm.DB
	schema *Schema
}

func NewPostRepo(db *gorm.DB, schema *Schema) *PostRepo {
	return &PostRepo{db: db, schema: schema}
}

// postRow scans any generation of the posts table.
type postRow struct {
	ID                     uuid.UUID      `gorm:"column:id"`
	WorkspaceID            uuid.UUID      `gorm:"column:workspace_id"`
	AuthorID               uuid.UUID      `gorm:"column:author_id"`
	Title                  string         `gorm:"column:title"`
	Slug                   string         `gorm:"column:slug"`
	ContentMarkdown        *string        `gorm:"column:content_markdown"`
	LegacyContent          datatypes.JSON `gorm:"column:content"`
	LiveTitle              *string        `gorm:"column:live_title"`
	LiveContentMarkdown    *string        `gorm:"column:live_content_markdown"`
	CoverImageURL          *string        `gorm:"column:cover_image_url"`
	Published              bool           `gorm:"column:published"`
	PublishedAt            *time.Time     `gorm:"column:published_at"`
	PublishedVersionID     *uuid.UUID     `gorm:"column:published_version_id"`
	HasPendingChanges      *bool          `gorm:"column:has_pending_changes"`
	PendingTitle           *string        `gorm:"column:pending_title"`
	PendingContentMarkdown *string        `gorm:"column:pending_content_markdown"`
	PendingUpdatedAt       *time.Time     `gorm:"column:pending_updated_at"`
	CreatedAt              time.Time      `gorm:"column:created_at"`
	UpdatedAt              time.Time      `gorm:"column:updated_at"`
}

func (r postRow) toModel(caps SchemaCapabilities) *models.Post {
	post := &models.Post{
		ID:                     r.ID,
		WorkspaceID:            r.WorkspaceID,
		AuthorID:               r.AuthorID,
		Title:                  r.Title,
		Slug:                   r.Slug,
		LiveTitle:              r.LiveTitle,
		LiveContentMarkdown:    r.LiveContentMarkdown,
		CoverImageURL:          r.CoverImageURL,
		Published:              r.Published,
		PublishedAt:            r.PublishedAt,
		PublishedVersionID:     r.PublishedVersionID,
		PendingTitle:           r.PendingTitle,
		PendingContentMarkdown: r.PendingContentMarkdown,
		PendingUpdatedAt:       r.PendingUpdatedAt,
		CreatedAt:              r.CreatedAt,
		UpdatedAt:              r.UpdatedAt,
	}
	if caps.HasMarkdownContent {
		if r.ContentMarkdown != nil {
			post.ContentMarkdown = *r.ContentMarkdown
		}
	} else {
		post.ContentMarkdown = LegacyContentToMarkdown(r.LegacyContent)
	}
	if r.HasPendingChanges != nil {
		post.HasPendingChanges = *r.HasPendingChanges
	}
	return post
}

func postColumns(caps SchemaCapabilities) []string {
	cols := []string{"id", "workspace_id", "author_id", "title", "slug", "cover_image_url",
		"published", "published_at", "created_at", "updated_at"}
	if caps.HasMarkdownContent {
		cols = append(cols, "content_markdown")
	} else {
		cols = append(cols, "content")
	}
	if caps.HasLiveFields {
		cols = append(cols, "live_title", "live_content_markdown")
	}
	if caps.HasVersionLineage {
		cols = append(cols, "published_version_id")
	}
	if caps.HasPendingFields {
		cols = append(cols, "has_pending_changes", "pending_title", "pending_content_markdown", "pending_updated_at")
	}
	return cols
}

// contentColumn returns the column and value that hold the draft body.
func contentColumn(caps SchemaCapabilities, markdown string) (string, any) {
	if caps.HasMarkdownContent {
		return "content_markdown", markdown
	}
	return "content", encodeLegacyContent(markdown, caps.LegacyContentIsJSON)
}

func (r *PostRepo) owned(ctx context.Context, postID, authorID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Table(postsTable).Where("id = ? AND author_id = ?", postID, authorID)
}

// FindForOwner loads a post scoped to its author.
func (r *PostRepo) FindForOwner(ctx context.Context, postID, authorID uuid.UUID) (*models.Post, error) {
	var post *models.Post
	err := r.schema.run("load post", func(caps SchemaCapabilities) error {
		var row postRow
		if err := r.owned(ctx, postID, authorID).Select(postColumns(caps)).Take(&row).Error; err != nil {
			return err
		}
		post = row.toModel(caps)
		return nil
	})
	if err != nil {
		if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
			return nil, errs.NewNotFound("post")
		}
		return nil, err
	}
	return post, nil
}

// FindPublishedBySlug loads a published post of a workspace for readers.
func (r *PostRepo) FindPublishedBySlug(ctx context.Context, workspaceID uuid.UUID, slug string) (*models.Post, error) {
	var post *models.Post
	err := r.schema.run("load public post", func(caps SchemaCapabilities) error {
		var row postRow
		err := r.db.WithContext(ctx).Table(postsTable).
			Select(postColumns(caps)).
			Where("workspace_id = ? AND slug = ? AND published = ? AND published_at IS NOT NULL", workspaceID, slug, true).
			Take(&row).Error
		if err != nil {
			return err
		}
		post = row.toModel(caps)
		return nil
	})
	if err != nil {
		if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
			return nil, errs.NewNotFound("post")
		}
		return nil, err
	}
	return post, nil
}

// Insert creates a post row. A slug collision is reported as
// errs.ErrUniqueConstraintViolation so callers can retry with a new slug.
func (r *PostRepo) Insert(ctx context.Context, post *models.Post) error {
	err := r.schema.run("create post", func(caps SchemaCapabilities) error {
		column, value := contentColumn(caps, post.ContentMarkdown)
		values := map[string]any{
			"id":           post.ID,
			"workspace_id": post.WorkspaceID,
			"author_id":    post.AuthorID,
			"title":        post.Title,
			"slug":         post.Slug,
			column:         value,
			"published":    false,
			"created_at":   post.CreatedAt,
			"updated_at":   post.UpdatedAt,
		}
		return r.db.WithContext(ctx).Table(postsTable).Create(values).Error
	})
	if errs.ClassifyStoreError(err) == errs.ConditionUniqueViolation {
		return errs.NewUniqueConstraintViolationError(postsTable, "slug", err)
	}
	return err
}

// update applies values to an owned post and maps zero affected rows to
// "not found". extra narrows the WHERE clause further.
func (r *PostRepo) update(ctx context.Context, operation string, postID, authorID uuid.UUID, build func(SchemaCapabilities) map[string]any, extra ...any) (int64, error) {
	var affected int64
	err := r.schema.run(operation, func(caps SchemaCapabilities) error {
		q := r.owned(ctx, postID, authorID)
		if len(extra) > 0 {
			q = q.Where(extra[0], extra[1:]...)
		}
		res := q.Updates(build(caps))
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func notFoundIfNone(affected int64, err error) error {
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFound("post")
	}
	return nil
}

// UpdateDraft overwrites the editable draft fields.
func (r *PostRepo) UpdateDraft(ctx context.Context, postID, authorID uuid.UUID, title, content string, now time.Time) error {
	return notFoundIfNone(r.update(ctx, "save draft", postID, authorID, func(caps SchemaCapabilities) map[string]any {
		column, value := contentColumn(caps, content)
		return map[string]any{"title": title, column: value, "updated_at": now}
	}))
}

// StashPending keeps an edit of a published post out of the live fields.
func (r *PostRepo) StashPending(ctx context.Context, postID, authorID uuid.UUID, title, content string, now time.Time) error {
	return notFoundIfNone(r.update(ctx, "stash pending update", postID, authorID, func(SchemaCapabilities) map[string]any {
		return map[string]any{
			"has_pending_changes":      true,
			"pending_title":            title,
			"pending_content_markdown": content,
			"pending_updated_at":       now,
			"updated_at":               now,
		}
	}))
}

// ApplyPending promotes pending fields to the draft and live fields. The
// write only lands if the pending edit is still the one that was read. It
// reports false when there was nothing pending.
func (r *PostRepo) ApplyPending(ctx context.Context, postID, authorID uuid.UUID, now time.Time) (bool, error) {
	var affected int64
	err := r.schema.run("publish pending update", func(caps SchemaCapabilities) error {
		affected = 0
		var pending postRow
		err := r.owned(ctx, postID, authorID).
			Select("pending_title", "pending_content_markdown").
			Where("has_pending_changes = ?", true).
			Take(&pending).Error
		if err != nil {
			if errs.ClassifyStoreError(err) == errs.ConditionNoRows {
				return nil
			}
			return err
		}

		title, content := derefString(pending.PendingTitle), derefString(pending.PendingContentMarkdown)
		column, value := contentColumn(caps, content)
		values := map[string]any{
			"title":                    title,
			column:                     value,
			"has_pending_changes":      false,
			"pending_title":            nil,
			"pending_content_markdown": nil,
			"pending_updated_at":       nil,
			"published":                true,
			"published_at":             gorm.Expr("COALESCE(published_at, ?)", now),
			"updated_at":               now,
		}
		if caps.HasLiveFields {
			values["live_title"] = title
			values["live_content_markdown"] = content
		}

		res := r.owned(ctx, postID, authorID).
			Where("has_pending_changes = ? AND pending_title = ? AND pending_content_markdown = ?", true, title, content).
			Updates(values)
		affected = res.RowsAffected
		return res.Error
	})
	return affected > 0, err
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ClearPending drops pending fields without touching live content. It
// reports false when there was nothing pending.
func (r *PostRepo) ClearPending(ctx context.Context, postID, authorID uuid.UUID, now time.Time) (bool, error) {
	affected, err := r.update(ctx, "discard pending update", postID, authorID, func(SchemaCapabilities) map[string]any {
		return map[string]any{
			"has_pending_changes":      false,
			"pending_title":            nil,
			"pending_content_markdown": nil,
			"pending_updated_at":       nil,
			"updated_at":               now,
		}
	}, "has_pending_changes = ?", true)
	return affected > 0, err
}

// PublishInput is the content a publish exposes to readers.
type PublishInput struct {
	Title     string
	Content   string
	VersionID *uuid.UUID
	At        time.Time
}

// Publish flips the post to published and copies the chosen content into
// the reader-visible fields in a single UPDATE. An existing published_at is
// kept.
func (r *PostRepo) Publish(ctx context.Context, postID, authorID uuid.UUID, in PublishInput) error {
	return notFoundIfNone(r.update(ctx, "publish post", postID, authorID, func(caps SchemaCapabilities) map[string]any {
		values := map[string]any{
			"published":    true,
			"published_at": gorm.Expr("COALESCE(published_at, ?)", in.At),
			"updated_at":   in.At,
		}
		if caps.HasLiveFields {
			values["live_title"] = in.Title
			values["live_content_markdown"] = in.Content
		}
		if caps.HasVersionLineage && in.VersionID != nil {
			values["published_version_id"] = *in.VersionID
		}
		return values
	}))
}

// Unpublish returns a post to draft. Pending fields are left alone.
func (r *PostRepo) Unpublish(ctx context.Context, postID, authorID uuid.UUID, now time.Time) error {
	return notFoundIfNone(r.update(ctx, "unpublish post", postID, authorID, func(caps SchemaCapabilities) map[string]any {
		return unpublishValues(caps, now)
	}))
}

func unpublishValues(caps SchemaCapabilities, now time.Time) map[string]any {
	values := map[string]any{
		"published":    false,
		"published_at": nil,
		"updated_at":   now,
	}
	if caps.HasVersionLineage {
		values["published_version_id"] = nil
	}
	return values
}

// Delete removes an unpublished post and its versions. It reports false
// when no unpublished row matched.
func (r *PostRepo) Delete(ctx context.Context, postID, authorID uuid.UUID) (bool, error) {
	deleted, err := r.DeleteMany(ctx, []uuid.UUID{postID}, authorID)
	return len(deleted) > 0, err
}

// PostState is the publish flag of one post.
type PostState struct {
	ID        uuid.UUID `gorm:"column:id"`
	Published bool      `gorm:"column:published"`
}

// FindStates returns the publish flags of the author's posts among ids.
func (r *PostRepo) FindStates(ctx context.Context, ids []uuid.UUID, authorID uuid.UUID) ([]PostState, error) {
	var states []PostState
	err := r.db.WithContext(ctx).Table(postsTable).
		Select("id", "published").
		Where("id IN ? AND author_id = ?", ids, authorID).
		Order("id").
		Scan(&states).Error
	return states, err
}

// UnpublishMany unpublishes the author's posts among ids and returns the ids
// that matched.
func (r *PostRepo) UnpublishMany(ctx context.Context, ids []uuid.UUID, authorID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	var affected []uuid.UUID
	err := r.schema.run("bulk unpublish", func(caps SchemaCapabilities) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var matched []uuid.UUID
			if err := tx.Table(postsTable).
				Where("id IN ? AND author_id = ?", ids, authorID).
				Order("id").
				Pluck("id", &matched).Error; err != nil {
				return err
			}
			if len(matched) == 0 {
				affected = []uuid.UUID{}
				return nil
			}
			if err := tx.Table(postsTable).
				Where("id IN ? AND author_id = ?", matched, authorID).
				Updates(unpublishValues(caps, now)).Error; err != nil {
				return err
			}
			affected = matched
			return nil
		})
	})
	return affected, err
}

// DeleteMany deletes the author's unpublished posts among ids together with
// their versions and returns the deleted ids.
func (r *PostRepo) DeleteMany(ctx context.Context, ids []uuid.UUID, authorID uuid.UUID) ([]uuid.UUID, error) {
	var deleted []uuid.UUID
	err := r.schema.run("bulk delete", func(caps SchemaCapabilities) error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var matched []uuid.UUID
			if err := tx.Table(postsTable).
				Where("id IN ? AND author_id = ? AND published = ?", ids, authorID, false).
				Order("id").
				Pluck("id", &matched).Error; err != nil {
				return err
			}
			deleted = []uuid.UUID{}
			if len(matched) == 0 {
				return nil
			}
			if caps.HasVersionLineage {
				if err := tx.Where("post_id IN ? AND author_id = ?", matched, authorID).
					Delete(&models.PostVersion{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("id IN ? AND author_id = ? AND published = ?", matched, authorID, false).
				Delete(&models.Post{}).Error; err != nil {
				return err
			}
			deleted = matched
			return nil
		})
	})
	return deleted, err
}

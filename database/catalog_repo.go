package database

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/models"
	"gorm.io/gorm"
)

// CatalogRepo lists posts for dashboards and public indexes.
type CatalogRepo struct {
	db     *gorm.DB
	schema *Schema
}

func NewCatalogRepo(db *gorm.DB, schema *Schema) *CatalogRepo {
	return &CatalogRepo{db: db, schema: schema}
}

// Cursor is the position of the last row of a page.
type Cursor struct {
	PublishedAt time.Time
	ID          uuid.UUID
}

// CatalogQuery selects one page of a workspace's published posts.
type CatalogQuery struct {
	WorkspaceID uuid.UUID
	After       *Cursor
	// Search is the trimmed user query, Keyword the same query stripped of
	// pattern characters for substring matching.
	Search          string
	Keyword         string
	PreferSubstring bool
	Limit           int
}

// CatalogRow carries the reader-visible fields of a published post.
type CatalogRow struct {
	ID              uuid.UUID
	Title           string
	Slug            string
	PublishedAt     *time.Time
	ContentMarkdown string
}

// ListPublished returns up to q.Limit published posts ordered by
// published_at desc, id desc, starting after q.After.
func (r *CatalogRepo) ListPublished(ctx context.Context, q CatalogQuery) ([]CatalogRow, error) {
	var rows []CatalogRow
	err := r.schema.run("list published posts", func(caps SchemaCapabilities) error {
		cols := []string{"id", "title", "slug", "published_at"}
		contentCol := "content_markdown"
		if !caps.HasMarkdownContent {
			contentCol = "content"
		}
		cols = append(cols, contentCol)
		if caps.HasLiveFields {
			cols = append(cols, "live_title", "live_content_markdown")
		}

		tx := r.db.WithContext(ctx).Table(postsTable).
			Select(cols).
			Where("workspace_id = ? AND published = ? AND published_at IS NOT NULL", q.WorkspaceID, true)
		tx = applySearch(tx, caps, q, contentCol)
		if q.After != nil {
			tx = tx.Where("(published_at < ? OR (published_at = ? AND id < ?))", q.After.PublishedAt, q.After.PublishedAt, q.After.ID)
		}

		var scanned []postRow
		if err := tx.Order("published_at DESC").Order("id DESC").Limit(q.Limit).Find(&scanned).Error; err != nil {
			return err
		}

		rows = make([]CatalogRow, 0, len(scanned))
		for _, s := range scanned {
			post := s.toModel(caps)
			row := CatalogRow{
				ID:              post.ID,
				Title:           post.Title,
				Slug:            post.Slug,
				PublishedAt:     post.PublishedAt,
				ContentMarkdown: post.ContentMarkdown,
			}
			if post.LiveTitle != nil {
				row.Title = *post.LiveTitle
			}
			if post.LiveContentMarkdown != nil {
				row.ContentMarkdown = *post.LiveContentMarkdown
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

func applySearch(tx *gorm.DB, caps SchemaCapabilities, q CatalogQuery, contentCol string) *gorm.DB {
	if q.Search == "" {
		return tx
	}
	if caps.HasSearchColumns {
		if q.PreferSubstring {
			if q.Keyword == "" {
				return tx
			}
			return tx.Where("search_text ILIKE ?", "%"+q.Keyword+"%")
		}
		return tx.Where("search_tsv @@ websearch_to_tsquery('simple', ?)", q.Search)
	}
	if q.Keyword == "" {
		return tx
	}
	pattern := "%" + strings.ToLower(q.Keyword) + "%"
	return tx.Where("(LOWER(title) LIKE ? OR LOWER(CAST("+contentCol+" AS TEXT)) LIKE ?)", pattern, pattern)
}

// ListForAuthor returns the author's posts for the dashboard, most recently
// updated first.
func (r *CatalogRepo) ListForAuthor(ctx context.Context, authorID uuid.UUID) ([]models.PostSummary, error) {
	summaries := []models.PostSummary{}
	err := r.schema.run("list author posts", func(caps SchemaCapabilities) error {
		cols := []string{"id", "title", "slug", "published", "published_at", "updated_at"}
		if caps.Generation() == GenerationPending {
			cols = append(cols, "has_pending_changes")
		}
		summaries = summaries[:0]
		return r.db.WithContext(ctx).Table(postsTable).
			Select(cols).
			Where("author_id = ?", authorID).
			Order("updated_at DESC").
			Find(&summaries).Error
	})
	return summaries, err
}

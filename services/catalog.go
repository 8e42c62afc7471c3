package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// PageSize is the number of cards on one page of a public index.
const PageSize = 18

const excerptLength = 180

const catalogQueryTimeout = 15 * time.Second

// CatalogPage is one page of a public index.
type CatalogPage struct {
	Posts      []models.PublicPostCard `json:"posts"`
	NextCursor *string                 `json:"nextCursor"`
}

// CatalogService serves dashboards and public indexes.
type CatalogService struct {
	db     database.Database
	logger zerolog.Logger
	group  singleflight.Group
}

func NewCatalogService(db database.Database) *CatalogService {
	return &CatalogService{
		db:     db,
		logger: log.With().Str("serviceName", "catalogService").Logger(),
	}
}

// Dashboard lists every post of the author.
func (s *CatalogService) Dashboard(ctx context.Context, authorID uuid.UUID) ([]models.PostSummary, error) {
	return s.db.CatalogRepo().ListForAuthor(ctx, authorID)
}

// ListPublished returns one page of a workspace's published posts, newest
// first. An undecodable cursor starts from the first page. Identical
// concurrent requests share one query, which outlives any single caller's
// cancellation.
func (s *CatalogService) ListPublished(ctx context.Context, workspaceSlug, cursor, search string) (*CatalogPage, error) {
	key := workspaceSlug + "\x00" + cursor + "\x00" + search
	ch := s.group.DoChan(key, func() (any, error) {
		queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), catalogQueryTimeout)
		defer cancel()
		return s.listPublished(queryCtx, workspaceSlug, cursor, search)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.Debug().Str("workspace", workspaceSlug).Msg("catalog query shared")
		}
		return res.Val.(*CatalogPage), nil
	}
}

func (s *CatalogService) listPublished(ctx context.Context, workspaceSlug, cursor, search string) (*CatalogPage, error) {
	workspace, err := s.db.WorkspaceRepo().FindBySlug(ctx, workspaceSlug)
	if err != nil {
		return nil, err
	}

	search = strings.TrimSpace(search)
	rows, err := s.db.CatalogRepo().ListPublished(ctx, database.CatalogQuery{
		WorkspaceID:     workspace.ID,
		After:           DecodeCursor(cursor),
		Search:          search,
		Keyword:         sanitizeSearchTerm(search),
		PreferSubstring: hasNonLatinLetters(search),
		Limit:           PageSize + 1,
	})
	if err != nil {
		return nil, err
	}

	page := &CatalogPage{Posts: make([]models.PublicPostCard, 0, PageSize)}
	hasNext := len(rows) > PageSize
	if hasNext {
		rows = rows[:PageSize]
	}
	for _, row := range rows {
		page.Posts = append(page.Posts, models.PublicPostCard{
			ID:          row.ID,
			Title:       row.Title,
			Slug:        row.Slug,
			PublishedAt: row.PublishedAt,
			Excerpt:     Excerpt(row.ContentMarkdown),
		})
	}
	if hasNext {
		last := rows[len(rows)-1]
		if last.PublishedAt != nil {
			next, err := EncodeCursor(database.Cursor{PublishedAt: *last.PublishedAt, ID: last.ID})
			if err != nil {
				return nil, err
			}
			page.NextCursor = &next
		}
	}
	return page, nil
}

// PublicPost returns the reader view of one published post. Only the
// reader-visible fields are served.
func (s *CatalogService) PublicPost(ctx context.Context, workspaceSlug, postSlug string) (*models.PublicPost, error) {
	workspace, err := s.db.WorkspaceRepo().FindBySlug(ctx, workspaceSlug)
	if err != nil {
		return nil, err
	}
	post, err := s.db.PostRepo().FindPublishedBySlug(ctx, workspace.ID, postSlug)
	if err != nil {
		return nil, err
	}

	public := &models.PublicPost{
		ID:              post.ID,
		Title:           post.Title,
		Slug:            post.Slug,
		CoverImageURL:   post.CoverImageURL,
		PublishedAt:     post.PublishedAt,
		ContentMarkdown: post.ContentMarkdown,
	}
	if post.LiveTitle != nil {
		public.Title = *post.LiveTitle
	}
	if post.LiveContentMarkdown != nil {
		public.ContentMarkdown = *post.LiveContentMarkdown
	}
	return public, nil
}

type cursorPayload struct {
	PublishedAt string `json:"publishedAt"`
	ID          string `json:"id"`
}

// EncodeCursor renders a cursor as base64url JSON.
func EncodeCursor(c database.Cursor) (string, error) {
	raw, err := json.Marshal(cursorPayload{
		PublishedAt: c.PublishedAt.UTC().Format(time.RFC3339Nano),
		ID:          c.ID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor parses a cursor; anything malformed yields nil.
func DecodeCursor(value string) *database.Cursor {
	if value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
	if err != nil {
		return nil
	}
	var payload cursorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	publishedAt, err := time.Parse(time.RFC3339Nano, payload.PublishedAt)
	if err != nil {
		return nil
	}
	id, err := uuid.Parse(payload.ID)
	if err != nil {
		return nil
	}
	return &database.Cursor{PublishedAt: publishedAt.UTC(), ID: id}
}

var (
	searchPunctuation = regexp.MustCompile(`[,()%_]`)
	whitespaceRun     = regexp.MustCompile(`\s+`)

	codeFence      = regexp.MustCompile("(?s)```.*?```")
	mediaEmbed     = regexp.MustCompile(`@\[(image|video)\]\(([^)]+)\)(\{[^}]*\})?`)
	headingMarker  = regexp.MustCompile(`#+\s`)
	emphasisMarker = regexp.MustCompile(`[*_` + "`" + `~>\-]`)
	inlineLink     = regexp.MustCompile(`\[[^\]]+\]\(([^)]+)\)`)
)

// sanitizeSearchTerm strips characters that carry meaning in filter and
// LIKE syntax.
func sanitizeSearchTerm(value string) string {
	value = searchPunctuation.ReplaceAllString(value, " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(value, " "))
}

// hasNonLatinLetters reports whether the query contains letters the simple
// text search configuration does not tokenize well.
func hasNonLatinLetters(value string) bool {
	for _, r := range value {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}

// Excerpt reduces markdown to plain text for a card.
func Excerpt(markdown string) string {
	text := codeFence.ReplaceAllString(markdown, " ")
	text = mediaEmbed.ReplaceAllString(text, " ")
	text = headingMarker.ReplaceAllString(text, "")
	text = emphasisMarker.ReplaceAllString(text, " ")
	text = inlineLink.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))

	runes := []rune(text)
	if len(runes) > excerptLength {
		return string(runes[:excerptLength])
	}
	return text
}

// Package dbtest opens in-memory SQLite stores shaped like each posts schema
// generation, for tests across packages.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Layout selects the shape of the posts table.
type Layout string

const (
	// LegacyJSON has only a json `content` column holding editor documents.
	LegacyJSON Layout = "legacy-json"
	// Legacy has markdown content but no live, pending or version columns.
	Legacy Layout = "legacy"
	// Pending adds the pending-update fields.
	Pending Layout = "pending"
	// PendingJSON is Pending on top of the json `content` column.
	PendingJSON Layout = "pending-json"
	// Versioned adds live fields, published_version_id and post_versions.
	Versioned Layout = "versioned"
)

const workspacesDDL = `CREATE TABLE workspaces (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	custom_domain TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL)`

const postsBaseColumns = `
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	title TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	cover_image_url TEXT,
	published BOOLEAN NOT NULL DEFAULT 0,
	published_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL`

const pendingColumns = `,
	has_pending_changes BOOLEAN NOT NULL DEFAULT 0,
	pending_title TEXT,
	pending_content_markdown TEXT,
	pending_updated_at DATETIME`

const lineageColumns = `,
	live_title TEXT,
	live_content_markdown TEXT,
	published_version_id TEXT`

const versionsDDL = `CREATE TABLE post_versions (
	id TEXT PRIMARY KEY,
	post_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL,
	author_id TEXT NOT NULL,
	version_number INTEGER NOT NULL,
	title TEXT NOT NULL,
	content_markdown TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (post_id, version_number))`

func statements(layout Layout) []string {
	columns := postsBaseColumns
	switch layout {
	case LegacyJSON, PendingJSON:
		columns += `,
	content JSON`
	default:
		columns += `,
	content_markdown TEXT NOT NULL DEFAULT ''`
	}
	if layout == Pending || layout == PendingJSON || layout == Versioned {
		columns += pendingColumns
	}
	if layout == Versioned {
		columns += lineageColumns
	}

	stmts := []string{workspacesDDL, "CREATE TABLE posts (" + columns + ")"}
	if layout == Versioned {
		stmts = append(stmts, versionsDDL)
	}
	return stmts
}

// Open creates a fresh in-memory database with the given layout.
func Open(t testing.TB, layout Layout) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a separate database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	for _, stmt := range statements(layout) {
		require.NoError(t, db.Exec(stmt).Error, fmt.Sprintf("layout %s", layout))
	}
	return db
}

// Fixture is a store with one author owning one workspace.
type Fixture struct {
	DB        *gorm.DB
	Store     database.Database
	AuthorID  uuid.UUID
	Workspace models.Workspace
}

// New opens a store and seeds a workspace for a fresh author.
func New(t testing.TB, layout Layout) Fixture {
	t.Helper()

	db := Open(t, layout)
	store, err := database.New(db)
	require.NoError(t, err)

	f := Fixture{DB: db, Store: store, AuthorID: uuid.New()}
	f.Workspace = f.AddWorkspace(t, f.AuthorID, "studio")
	return f
}

// AddWorkspace inserts a workspace owned by ownerID.
func (f Fixture) AddWorkspace(t testing.TB, ownerID uuid.UUID, slug string) models.Workspace {
	t.Helper()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ws := models.Workspace{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      slug,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.Store.WorkspaceRepo().Add(context.Background(), &ws))
	return ws
}

// Clock is a deterministic time source that advances one second per call.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

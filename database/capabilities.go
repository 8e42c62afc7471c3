package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Generation names the post schema generation in effect for a deployment.
type Generation string

const (
	GenerationLegacy    Generation = "legacy"
	GenerationPending   Generation = "pending"
	GenerationVersioned Generation = "versioned"
)

// SchemaCapabilities records which optional columns and tables exist. It is
// detected once when the store is built and refreshed only when a query hits
// a missing column or table.
type SchemaCapabilities struct {
	HasMarkdownContent  bool `json:"hasMarkdownContent"`
	LegacyContentIsJSON bool `json:"legacyContentIsJson"`
	HasLiveFields       bool `json:"hasLiveFields"`
	HasPendingFields    bool `json:"hasPendingFields"`
	HasVersionLineage   bool `json:"hasVersionLineage"`
	HasSearchColumns    bool `json:"hasSearchColumns"`
}

// Generation picks the single representation that drives saves and publishes.
// Version lineage wins over pending fields when a schema carries both.
func (c SchemaCapabilities) Generation() Generation {
	switch {
	case c.HasVersionLineage:
		return GenerationVersioned
	case c.HasPendingFields:
		return GenerationPending
	default:
		return GenerationLegacy
	}
}

const (
	postsTable    = "posts"
	versionsTable = "post_versions"
)

// DetectCapabilities introspects the posts table through gorm's migrator.
func DetectCapabilities(db *gorm.DB) (SchemaCapabilities, error) {
	m := db.Migrator()
	if !m.HasTable(postsTable) {
		return SchemaCapabilities{}, fmt.Errorf("detect capabilities: table %q does not exist", postsTable)
	}

	has := func(columns ...string) bool {
		for _, c := range columns {
			if !m.HasColumn(postsTable, c) {
				return false
			}
		}
		return true
	}

	caps := SchemaCapabilities{
		HasMarkdownContent: has("content_markdown"),
		HasLiveFields:      has("live_title", "live_content_markdown"),
		HasPendingFields:   has("has_pending_changes", "pending_title", "pending_content_markdown", "pending_updated_at"),
		HasSearchColumns:   has("search_text", "search_tsv"),
	}
	caps.HasVersionLineage = caps.HasLiveFields &&
		has("published_version_id") &&
		m.HasTable(versionsTable)

	if !caps.HasMarkdownContent {
		columnTypes, err := m.ColumnTypes(postsTable)
		if err != nil {
			return SchemaCapabilities{}, fmt.Errorf("detect capabilities: %w", err)
		}
		for _, ct := range columnTypes {
			if ct.Name() != "content" {
				continue
			}
			switch strings.ToLower(ct.DatabaseTypeName()) {
			case "json", "jsonb":
				caps.LegacyContentIsJSON = true
			}
		}
	}

	return caps, nil
}

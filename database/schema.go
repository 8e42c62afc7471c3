package database

import (
	"sync/atomic"

	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Schema shares the detected capabilities between repositories.
type Schema struct {
	db     *gorm.DB
	caps   atomic.Pointer[SchemaCapabilities]
	logger zerolog.Logger
}

func newSchema(db *gorm.DB) (*Schema, error) {
	s := &Schema{
		db:     db,
		logger: log.With().Str("component", "schema").Logger(),
	}
	if _, err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Capabilities returns the last detected capabilities.
func (s *Schema) Capabilities() SchemaCapabilities {
	return *s.caps.Load()
}

// Refresh re-runs detection, for example after a migration.
func (s *Schema) Refresh() (SchemaCapabilities, error) {
	caps, err := DetectCapabilities(s.db)
	if err != nil {
		return SchemaCapabilities{}, err
	}
	s.caps.Store(&caps)
	s.logger.Info().
		Str("generation", string(caps.Generation())).
		Bool("liveFields", caps.HasLiveFields).
		Bool("pendingFields", caps.HasPendingFields).
		Bool("versionLineage", caps.HasVersionLineage).
		Bool("searchColumns", caps.HasSearchColumns).
		Bool("markdownContent", caps.HasMarkdownContent).
		Msg("schema capabilities detected")
	return caps, nil
}

// run executes fn against the current capabilities. A missing column or
// table means the schema changed under the process: capabilities are
// re-detected and fn runs once more with the narrower field set.
func (s *Schema) run(operation string, fn func(SchemaCapabilities) error) error {
	err := fn(s.Capabilities())
	if err == nil || !errs.ClassifyStoreError(err).IsSchema() {
		return err
	}

	s.logger.Warn().
		Err(err).
		Str("operation", operation).
		Str("code", errs.StoreErrorCode(err)).
		Msg("schema mismatch, re-detecting capabilities")

	caps, refreshErr := s.Refresh()
	if refreshErr != nil {
		return refreshErr
	}
	if err = fn(caps); err != nil && errs.ClassifyStoreError(err).IsSchema() {
		// Still mismatched after re-detection: nothing narrower to fall back to.
		return errs.NewDatabaseError(operation, postsTable, errs.NewSchemaMismatchError(operation, err))
	}
	return err
}

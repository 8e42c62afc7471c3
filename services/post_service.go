package services

import (
	"time"

	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PostService runs the post lifecycle: draft saves, version lineage and
// publish transitions, on top of whichever schema generation is deployed.
type PostService struct {
	db     database.Database
	logger zerolog.Logger
	now    func() time.Time
	suffix func() string
}

type Option func(*PostService)

// WithClock replaces time.Now for timestamps written by the service.
func WithClock(now func() time.Time) Option {
	return func(s *PostService) {
		s.now = now
	}
}

// WithSlugSuffix replaces the random slug suffix generator.
func WithSlugSuffix(suffix func() string) Option {
	return func(s *PostService) {
		s.suffix = suffix
	}
}

func NewPostService(db database.Database, opts ...Option) *PostService {
	s := &PostService{
		db:     db,
		logger: log.With().Str("serviceName", "postService").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		suffix: randomSlugSuffix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Capabilities exposes the detected schema capabilities.
func (s *PostService) Capabilities() database.SchemaCapabilities {
	return s.db.Schema().Capabilities()
}

// refreshOnSchemaError re-detects capabilities after a store error that
// points at a missing column or table outside the adapter's retry path.
func (s *PostService) refreshOnSchemaError(err error) bool {
	if !isSchemaCondition(err) {
		return false
	}
	if _, refreshErr := s.db.Schema().Refresh(); refreshErr != nil {
		s.logger.Error().Err(refreshErr).Msg("failed to refresh schema capabilities")
	}
	return true
}

func isSchemaCondition(err error) bool {
	return errs.ClassifyStoreError(err).IsSchema() || errs.IsSchemaMismatch(err)
}

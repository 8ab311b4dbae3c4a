package pipeline

import (
	"context"

	"github.com/Sternrassler/nft-catalog-etl/pkg/catalog"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Table is the persistence contract the loader writes through.
type Table interface {
	BulkInsert(ctx context.Context, rows []map[string]any) error
}

// LoadOutcome reports what a load did. It is informational only.
type LoadOutcome struct {
	Rows int
	Err  error
}

// Loader persists normalized records. Failures are logged and never
// propagated.
type Loader struct {
	logger zerolog.Logger
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{logger: log.With().Str("component", "loader").Logger()}
}

// WithLogger returns a copy of the loader logging through logger.
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load inserts records into table in one bulk call.
func (l *Loader) Load(ctx context.Context, records []catalog.NormalizedRecord, table Table) LoadOutcome {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row())
	}

	if err := table.BulkInsert(ctx, rows); err != nil {
		l.logger.Warn().Err(err).Int("records", len(rows)).Msg("Error loading data")
		return LoadOutcome{Err: err}
	}

	l.logger.Info().Int("records", len(rows)).Msgf("Successfully loaded %d records", len(rows))
	return LoadOutcome{Rows: len(rows)}
}

// Package store persists completed analysis runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/inspect-cli/internal/config"
	"github.com/sells-group/inspect-cli/internal/model"
)

// Store is the persistence interface for report records.
type Store interface {
	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error
	// SaveReport inserts a completed run. Saving the same run ID twice
	// replaces the earlier record.
	SaveReport(ctx context.Context, rec model.ReportRecord) error
	// GetReport fetches one run by ID.
	GetReport(ctx context.Context, runID string) (*model.ReportRecord, error)
	// ListReports returns runs newest-first, up to limit.
	ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error)
	Close() error
}

// New creates a Store for the configured driver.
func New(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(context.Background(), cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

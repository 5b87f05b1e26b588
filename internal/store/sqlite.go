package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/inspect-cli/internal/model"
)

// SQLiteStore persists report records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at path and runs
// migrations.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}

	// WAL keeps the CLI responsive when the serve command reads while a run
	// writes.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			run_id           TEXT PRIMARY KEY,
			final_report     TEXT NOT NULL,
			property_address TEXT NOT NULL,
			inspection_date  TEXT NOT NULL,
			status           TEXT NOT NULL,
			created_at       TIMESTAMP NOT NULL
		)`)
	if err != nil {
		return eris.Wrap(err, "store: migrate sqlite")
	}
	return nil
}

func (s *SQLiteStore) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (run_id, final_report, property_address, inspection_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			final_report = excluded.final_report,
			property_address = excluded.property_address,
			inspection_date = excluded.inspection_date,
			status = excluded.status,
			created_at = excluded.created_at`,
		rec.RunID, rec.FinalReport, rec.PropertyAddress, rec.InspectionDate, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: save report")
	}
	return nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, runID string) (*model.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, final_report, property_address, inspection_date, status, created_at
		FROM reports WHERE run_id = ?`, runID)

	var rec model.ReportRecord
	var status string
	if err := row.Scan(&rec.RunID, &rec.FinalReport, &rec.PropertyAddress, &rec.InspectionDate, &status, &rec.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, eris.Errorf("store: report %s not found", runID)
		}
		return nil, eris.Wrap(err, "store: get report")
	}
	rec.Status = model.RunStatus(status)
	return &rec, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, final_report, property_address, inspection_date, status, created_at
		FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReportRecord
	for rows.Next() {
		var rec model.ReportRecord
		var status string
		if err := rows.Scan(&rec.RunID, &rec.FinalReport, &rec.PropertyAddress, &rec.InspectionDate, &status, &rec.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan report")
		}
		rec.Status = model.RunStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate reports")
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

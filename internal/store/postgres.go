package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/inspect-cli/internal/model"
)

// pgxQuerier is the slice of pgxpool.Pool the store uses, satisfied by
// pgxmock in tests.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore persists report records in PostgreSQL.
type PostgresStore struct {
	db pgxQuerier
}

// NewPostgres connects to the database at url and runs migrations.
func NewPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "store: connect postgres")
	}

	s := &PostgresStore{db: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			run_id           TEXT PRIMARY KEY,
			final_report     TEXT NOT NULL,
			property_address TEXT NOT NULL,
			inspection_date  TEXT NOT NULL,
			status           TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return eris.Wrap(err, "store: migrate postgres")
	}
	return nil
}

func (s *PostgresStore) SaveReport(ctx context.Context, rec model.ReportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reports (run_id, final_report, property_address, inspection_date, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			final_report = EXCLUDED.final_report,
			property_address = EXCLUDED.property_address,
			inspection_date = EXCLUDED.inspection_date,
			status = EXCLUDED.status,
			created_at = EXCLUDED.created_at`,
		rec.RunID, rec.FinalReport, rec.PropertyAddress, rec.InspectionDate, string(rec.Status), rec.CreatedAt)
	if err != nil {
		return eris.Wrap(err, "store: save report")
	}
	return nil
}

func (s *PostgresStore) GetReport(ctx context.Context, runID string) (*model.ReportRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT run_id, final_report, property_address, inspection_date, status, created_at
		FROM reports WHERE run_id = $1`, runID)

	var rec model.ReportRecord
	var status string
	if err := row.Scan(&rec.RunID, &rec.FinalReport, &rec.PropertyAddress, &rec.InspectionDate, &status, &rec.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, eris.Errorf("store: report %s not found", runID)
		}
		return nil, eris.Wrap(err, "store: get report")
	}
	rec.Status = model.RunStatus(status)
	return &rec, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, limit int) ([]model.ReportRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT run_id, final_report, property_address, inspection_date, status, created_at
		FROM reports ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list reports")
	}
	defer rows.Close()

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

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

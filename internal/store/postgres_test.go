package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspect-cli/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{db: mock}, mock
}

func TestPostgresSaveReport(t *testing.T) {
	s, mock := newMockPostgres(t)

	rec := model.ReportRecord{
		RunID:           "run-1",
		FinalReport:     "report body",
		PropertyAddress: "123 Main St",
		InspectionDate:  "2026-08-01",
		Status:          model.RunStatusComplete,
		CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO reports").
		WithArgs(rec.RunID, rec.FinalReport, rec.PropertyAddress, rec.InspectionDate, string(rec.Status), rec.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveReport(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetReport(t *testing.T) {
	s, mock := newMockPostgres(t)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT run_id, final_report").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "final_report", "property_address", "inspection_date", "status", "created_at",
		}).AddRow("run-1", "report body", "123 Main St", "2026-08-01", "complete", created))

	got, err := s.GetReport(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListReports(t *testing.T) {
	s, mock := newMockPostgres(t)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT run_id, final_report").
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "final_report", "property_address", "inspection_date", "status", "created_at",
		}).
			AddRow("run-2", "", "b", "2026-08-02", "no_report", created.Add(time.Hour)).
			AddRow("run-1", "body", "a", "2026-08-01", "complete", created))

	got, err := s.ListReports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-2", got[0].RunID)
	assert.Equal(t, model.RunStatusNoReport, got[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

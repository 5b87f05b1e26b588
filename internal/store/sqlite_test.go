package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/inspect-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteSaveAndGetReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := model.ReportRecord{
		RunID:           "run-1",
		FinalReport:     "# Inspection Repair Cost Report",
		PropertyAddress: "123 Main St",
		InspectionDate:  "2026-08-01",
		Status:          model.RunStatusComplete,
	}
	require.NoError(t, s.SaveReport(ctx, rec))

	got, err := s.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, rec.FinalReport, got.FinalReport)
	assert.Equal(t, "123 Main St", got.PropertyAddress)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteSaveReportUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := model.ReportRecord{RunID: "run-1", Status: model.RunStatusNoReport}
	require.NoError(t, s.SaveReport(ctx, rec))

	rec.FinalReport = "updated"
	rec.Status = model.RunStatusComplete
	require.NoError(t, s.SaveReport(ctx, rec))

	got, err := s.GetReport(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.FinalReport)
	assert.Equal(t, model.RunStatusComplete, got.Status)
}

func TestSQLiteGetReportNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteListReportsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, s.SaveReport(ctx, model.ReportRecord{
			RunID:     id,
			Status:    model.RunStatusComplete,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	got, err := s.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run-c", got[0].RunID)
	assert.Equal(t, "run-b", got[1].RunID)
}

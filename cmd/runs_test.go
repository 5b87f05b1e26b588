package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/inspect-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	recs := []model.ReportRecord{
		{
			RunID:           "0b8e7c9a-1234-5678-9abc-def012345678",
			PropertyAddress: "123 Main St, Austin, TX 78701 with a very long tail",
			InspectionDate:  "2026-08-01",
			Status:          model.RunStatusComplete,
			CreatedAt:       time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			RunID:          "short",
			InspectionDate: "2026-08-02",
			Status:         model.RunStatusNoReport,
			CreatedAt:      time.Date(2026, 8, 2, 9, 30, 0, 0, time.UTC),
		},
	}

	var sb strings.Builder
	formatRunsList(&sb, recs)
	out := sb.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "0b8e7c9a")
	assert.NotContains(t, out, "def012345678")
	assert.Contains(t, out, "123 Main St, Austin, TX 787...")
	assert.Contains(t, out, "no_report")
	assert.Contains(t, out, "2026-08-01 12:00")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "0b8e7c9a", truncateID("0b8e7c9a-1234"))
	assert.Equal(t, "short", truncateID("short"))
}

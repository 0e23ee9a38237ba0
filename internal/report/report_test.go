package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"certverify/internal/db"
	"certverify/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.Open(db.DriverSQLite, filepath.Join(t.TempDir(), "reports.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return NewStore(gdb)
}

func result(id string, conf float64, verdict models.Verdict, at time.Time) models.VerificationResult {
	return models.VerificationResult{
		ID:           id,
		Confidence:   conf,
		Verdict:      verdict,
		UserFile:     "upload.png",
		OfficialFile: "official.pdf",
		UserFields: models.ExtractedFields{
			Name:  models.Some("Rahul Kumar"),
			Score: models.Some("66%"),
		},
		OfficialFields: models.ExtractedFields{
			Name:          models.Some("RAHUL KUMAR"),
			Course:        models.Some("Programming In Java"),
			CertificateID: models.Some("NPTEL23CS68S123456789"),
			Term:          models.Some("Jul-Oct 2023"),
		},
		CheckedAt: at,
	}
}

func TestSaveOnlyReportableResults(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	_, saved, err := s.Save(ctx, result("mismatch", 0.44, models.VerdictMismatch, at))
	require.NoError(t, err)
	assert.False(t, saved)
	_, err = s.Get(ctx, "mismatch")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, saved, err := s.Save(ctx, result("suspicious", 0.72, models.VerdictSuspicious, at))
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, "RAHUL KUMAR", rec.Name)
	assert.Equal(t, "66%", rec.Score, "falls back to the user document")

	got, err := s.Get(ctx, "suspicious")
	require.NoError(t, err)
	assert.Equal(t, "NPTEL23CS68S123456789", got.CertificateID)
	assert.Equal(t, models.VerdictSuspicious, got.Verdict)
}

func TestListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		_, _, err := s.Save(ctx, result(id, 0.95, models.VerdictVerified, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	recs, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
}

func TestWriteCSV(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := RecordFrom(result("x", 0.915, models.VerdictVerified, at))

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, []models.VerificationRecord{rec}))

	rows, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{
		"upload.png", "official.pdf", "RAHUL KUMAR", "Programming In Java", "Jul-Oct 2023",
		"NPTEL23CS68S123456789", "", "66%", "91.5%", "verified", "2024-03-01 09:30:00",
	}, rows[1])
}

func TestWriteXLSX(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	recs := []models.VerificationRecord{
		RecordFrom(result("x", 0.915, models.VerdictVerified, at)),
		RecordFrom(result("y", 0.6, models.VerdictSuspicious, at)),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, recs))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, Row(recs[0]), rows[1])
	assert.Equal(t, "60.0%", rows[2][8])
	assert.Equal(t, "suspicious", rows[2][9])
}

package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"certverify/internal/models"
)

var ErrNotFound = errors.New("verification record not found")

// SheetName is the worksheet holding the spreadsheet export.
const SheetName = "Verifications"

// Columns of the tabular export, in order.
var Columns = []string{
	"Uploaded_File", "Official_File", "Name", "Course", "Date", "Certificate_ID",
	"Institute", "Score", "Verification_Score", "Verdict", "Uploaded_At",
}

// Store persists verification records. Only verified and suspicious results
// are ever written.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Save writes a record for res and reports whether it did. Mismatches are
// skipped without error.
func (s *Store) Save(ctx context.Context, res models.VerificationResult) (models.VerificationRecord, bool, error) {
	if !res.Reportable() {
		return models.VerificationRecord{}, false, nil
	}
	rec := RecordFrom(res)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return models.VerificationRecord{}, false, fmt.Errorf("save verification record: %w", err)
	}
	return rec, true, nil
}

func (s *Store) Get(ctx context.Context, id string) (models.VerificationRecord, error) {
	var rec models.VerificationRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, fmt.Errorf("load verification record: %w", err)
	}
	return rec, nil
}

// List returns the newest records first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]models.VerificationRecord, error) {
	q := s.db.WithContext(ctx).Order("uploaded_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []models.VerificationRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list verification records: %w", err)
	}
	return recs, nil
}

// RecordFrom builds the report row for res. Field values come from the
// official document, falling back to the user document.
func RecordFrom(res models.VerificationResult) models.VerificationRecord {
	pick := func(key models.FieldKey) string {
		if v, ok := res.OfficialFields.Get(key).Get(); ok {
			return v
		}
		return res.UserFields.Get(key).String()
	}
	return models.VerificationRecord{
		ID:            res.ID,
		UploadedFile:  res.UserFile,
		OfficialFile:  res.OfficialFile,
		Name:          pick(models.FieldName),
		Course:        pick(models.FieldCourse),
		Term:          pick(models.FieldTerm),
		CertificateID: pick(models.FieldCertificateID),
		Institute:     pick(models.FieldInstitute),
		Score:         pick(models.FieldScore),
		Confidence:    res.Confidence,
		Verdict:       res.Verdict,
		FastPath:      res.FastPath,
		UploadedAt:    res.CheckedAt,
	}
}

// Row returns the export cells of r in Columns order.
func Row(r models.VerificationRecord) []string {
	return []string{
		r.UploadedFile,
		r.OfficialFile,
		r.Name,
		r.Course,
		r.Term,
		r.CertificateID,
		r.Institute,
		r.Score,
		fmt.Sprintf("%.1f%%", r.Confidence*100),
		string(r.Verdict),
		r.UploadedAt.Format("2006-01-02 15:04:05"),
	}
}

// WriteCSV writes recs as a table with a header row.
func WriteCSV(w io.Writer, recs []models.VerificationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes recs as a spreadsheet with a header row.
func WriteXLSX(w io.Writer, recs []models.VerificationRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	writeRow := func(n int, cells []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		return f.SetSheetRow(SheetName, cell, &cells)
	}
	header := append([]string(nil), Columns...)
	if err := writeRow(1, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range recs {
		if err := writeRow(i+2, Row(r)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

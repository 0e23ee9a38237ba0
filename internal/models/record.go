package models

import "time"

// VerificationRecord is the persisted report row for a verification that
// was not a mismatch.
type VerificationRecord struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	UploadedFile  string    `json:"uploaded_file"`
	OfficialFile  string    `json:"official_file"`
	Name          string    `json:"name"`
	Course        string    `json:"course"`
	Term          string    `json:"date"`
	CertificateID string    `gorm:"index" json:"certificate_id"`
	Institute     string    `json:"institute"`
	Score         string    `json:"score"`
	Confidence    float64   `json:"confidence"`
	Verdict       Verdict   `gorm:"size:16;index" json:"verdict"`
	FastPath      bool      `json:"fast_path"`
	UploadedAt    time.Time `json:"uploaded_at"`
	CreatedAt     time.Time `json:"created_at"`
}

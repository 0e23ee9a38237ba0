package models

import "time"

// Verdict is the categorical outcome of a verification.
type Verdict string

const (
	VerdictVerified   Verdict = "verified"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMismatch   Verdict = "mismatch"
)

// ComparisonDetail is one line of the scoring audit trail.
type ComparisonDetail struct {
	Field  FieldKey `json:"field"`
	Score  float64  `json:"score"`
	Weight float64  `json:"weight"`

	// Skipped marks a field that was absent on both sides and left out of
	// the weighted sum under the renormalize policy.
	Skipped bool `json:"skipped,omitempty"`
}

// VerificationResult is the output of one verification attempt.
type VerificationResult struct {
	ID         string             `json:"id"`
	Confidence float64            `json:"confidence"`
	Verdict    Verdict            `json:"verdict"`
	Details    []ComparisonDetail `json:"details"`

	// FastPath is set when both files hashed identically and scoring was skipped.
	FastPath       bool    `json:"fast_path"`
	TextSimilarity float64 `json:"text_similarity"`
	UserHash       string  `json:"user_hash,omitempty"`
	OfficialHash   string  `json:"official_hash,omitempty"`

	UserFields     ExtractedFields `json:"user_fields"`
	OfficialFields ExtractedFields `json:"official_fields"`

	UserFile     string    `json:"user_file"`
	OfficialFile string    `json:"official_file"`
	Warnings     []string  `json:"warnings,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Reportable reports whether the result may be persisted as a record.
// Confirmed mismatches never are.
func (r VerificationResult) Reportable() bool {
	return r.Verdict == VerdictVerified || r.Verdict == VerdictSuspicious
}

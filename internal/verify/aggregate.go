package verify

import (
	"errors"
	"fmt"
	"math"

	"certverify/internal/models"
)

// scoreEpsilon absorbs float rounding at weight sums and verdict thresholds.
const scoreEpsilon = 1e-9

// Weights are the contributions of each compared component to confidence.
// They must sum to 1.
type Weights struct {
	CertificateID float64 `yaml:"certificate_id" json:"certificate_id"`
	Name          float64 `yaml:"name" json:"name"`
	Course        float64 `yaml:"course" json:"course"`
	Text          float64 `yaml:"text" json:"text"`
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{CertificateID: 0.35, Name: 0.30, Course: 0.20, Text: 0.15}
}

func (w Weights) Sum() float64 {
	return w.CertificateID + w.Name + w.Course + w.Text
}

func (w Weights) of(field models.FieldKey) float64 {
	switch field {
	case models.FieldCertificateID:
		return w.CertificateID
	case models.FieldName:
		return w.Name
	case models.FieldCourse:
		return w.Course
	case models.FieldText:
		return w.Text
	}
	return 0
}

func (w Weights) Validate() error {
	for _, v := range []float64{w.CertificateID, w.Name, w.Course, w.Text} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weights must be non-negative, got %+v", w)
		}
	}
	if math.Abs(w.Sum()-1) > scoreEpsilon {
		return fmt.Errorf("weights must sum to 1, got %v", w.Sum())
	}
	return nil
}

// Thresholds map confidence to a verdict. Both bounds are inclusive.
type Thresholds struct {
	Verified   float64 `yaml:"verified" json:"verified"`
	Suspicious float64 `yaml:"suspicious" json:"suspicious"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Verified: 0.90, Suspicious: 0.60}
}

func (t Thresholds) Validate() error {
	if t.Suspicious < 0 || t.Suspicious > t.Verified || t.Verified > 1 {
		return fmt.Errorf("thresholds must satisfy 0 <= suspicious <= verified <= 1, got %+v", t)
	}
	return nil
}

// Decide returns the first verdict whose lower bound confidence reaches.
func (t Thresholds) Decide(confidence float64) models.Verdict {
	switch {
	case confidence+scoreEpsilon >= t.Verified:
		return models.VerdictVerified
	case confidence+scoreEpsilon >= t.Suspicious:
		return models.VerdictSuspicious
	default:
		return models.VerdictMismatch
	}
}

// AbsentPolicy controls how a field absent from both documents is scored.
type AbsentPolicy string

const (
	// AbsentFullCredit scores a both-absent field as a full match.
	AbsentFullCredit AbsentPolicy = "full_credit"
	// AbsentRenormalize drops both-absent fields and rescales the
	// remaining weights to sum to 1.
	AbsentRenormalize AbsentPolicy = "renormalize"
)

// Policy is the full scoring configuration.
type Policy struct {
	Weights           Weights      `yaml:"weights" json:"weights"`
	Thresholds        Thresholds   `yaml:"thresholds" json:"thresholds"`
	Absent            AbsentPolicy `yaml:"absent_policy" json:"absent_policy"`
	InstituteFallback string       `yaml:"institute_fallback" json:"institute_fallback"`
}

func DefaultPolicy() Policy {
	return Policy{
		Weights:    DefaultWeights(),
		Thresholds: DefaultThresholds(),
		Absent:     AbsentFullCredit,
	}
}

func (p Policy) Validate() error {
	var errs []error
	if err := p.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := p.Thresholds.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch p.Absent {
	case AbsentFullCredit, AbsentRenormalize:
	default:
		errs = append(errs, fmt.Errorf("unknown absent policy %q", p.Absent))
	}
	return errors.Join(errs...)
}

// Component is one scored input to the weighted sum. Score is in [0,1];
// out-of-range values are clamped.
type Component struct {
	Field      models.FieldKey
	Score      float64
	BothAbsent bool
}

// Aggregator combines field and text scores into a confidence and verdict.
// It holds no mutable state and is safe for concurrent use.
type Aggregator struct {
	policy Policy
}

// NewAggregator validates p and returns an Aggregator using it.
func NewAggregator(p Policy) (*Aggregator, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring policy: %w", err)
	}
	return &Aggregator{policy: p}, nil
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// Aggregate scores the certificate id, name and course of both documents
// and folds in the whole-text similarity given on a 0-100 scale.
func (a *Aggregator) Aggregate(user, official models.ExtractedFields, textPercent float64) (float64, []models.ComparisonDetail) {
	components := []Component{
		{
			Field:      models.FieldCertificateID,
			Score:      MatchCertificateID(user.CertificateID, official.CertificateID),
			BothAbsent: !user.CertificateID.IsSet() && !official.CertificateID.IsSet(),
		},
		fieldComponent(models.FieldName, user.Name, official.Name),
		fieldComponent(models.FieldCourse, user.Course, official.Course),
		{Field: models.FieldText, Score: textPercent / 100},
	}
	return a.Combine(components)
}

// Combine returns the weighted sum of components and the audit trail in
// component order.
func (a *Aggregator) Combine(components []Component) (float64, []models.ComparisonDetail) {
	skip := func(c Component) bool {
		return a.policy.Absent == AbsentRenormalize && c.BothAbsent
	}

	total := 0.0
	for _, c := range components {
		if !skip(c) {
			total += a.policy.Weights.of(c.Field)
		}
	}
	scale := 0.0
	if total > 0 {
		scale = 1 / total
	}

	confidence := 0.0
	details := make([]models.ComparisonDetail, 0, len(components))
	for _, c := range components {
		score := clamp01(c.Score)
		if skip(c) {
			details = append(details, models.ComparisonDetail{Field: c.Field, Score: score, Skipped: true})
			continue
		}
		w := a.policy.Weights.of(c.Field) * scale
		confidence += w * score
		details = append(details, models.ComparisonDetail{Field: c.Field, Score: score, Weight: w})
	}
	return clamp01(confidence), details
}

// Decide maps confidence to a verdict using the policy thresholds.
func (a *Aggregator) Decide(confidence float64) models.Verdict {
	return a.policy.Thresholds.Decide(confidence)
}

func fieldComponent(field models.FieldKey, a, b models.Value) Component {
	return Component{
		Field:      field,
		Score:      MatchField(a, b),
		BothAbsent: !a.IsSet() && !b.IsSet(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

package verify

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"certverify/internal/models"
)

// TextExtractor returns the full text of a document, from its native text
// layer or by OCR. It may be slow; Verify calls it at most once per document.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Hasher returns a hex digest of a whole file.
type Hasher interface {
	FileHash(path string) (string, error)
}

// DocumentResolver turns a QR payload URL into a local official document.
type DocumentResolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// FieldAssist may fill fields the heuristic extractor left absent. It must
// not overwrite present values.
type FieldAssist interface {
	Fill(ctx context.Context, text string, fields models.ExtractedFields) (models.ExtractedFields, error)
}

// Verifier runs the full verification of a user document against an
// official one. Collaborators are injected; a Verifier is safe for
// concurrent use if they are.
type Verifier struct {
	text       TextExtractor
	hasher     Hasher
	resolver   DocumentResolver
	assist     FieldAssist
	extractor  *Extractor
	aggregator *Aggregator

	now   func() time.Time
	newID func() string
}

type Option func(*Verifier)

// WithHasher enables the identical-file fast path.
func WithHasher(h Hasher) Option {
	return func(v *Verifier) { v.hasher = h }
}

func WithResolver(r DocumentResolver) Option {
	return func(v *Verifier) { v.resolver = r }
}

func WithFieldAssist(a FieldAssist) Option {
	return func(v *Verifier) { v.assist = a }
}

// WithClock overrides the time source and id generator, for tests.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(v *Verifier) {
		v.now = now
		v.newID = newID
	}
}

// NewVerifier builds a Verifier with the given text extractor and policy.
func NewVerifier(text TextExtractor, policy Policy, opts ...Option) (*Verifier, error) {
	if text == nil {
		return nil, errors.New("text extractor is required")
	}
	agg, err := NewAggregator(policy)
	if err != nil {
		return nil, err
	}
	v := &Verifier{
		text:       text,
		extractor:  NewExtractor(policy.InstituteFallback),
		aggregator: agg,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ResolveOfficial fetches the official document a QR payload points to.
// Any failure is returned as an ErrFetch Failure.
func (v *Verifier) ResolveOfficial(ctx context.Context, qrPayload string) (string, error) {
	qrPayload = strings.TrimSpace(qrPayload)
	if qrPayload == "" {
		return "", FetchFailure("", errors.New("empty QR payload"))
	}
	if v.resolver == nil {
		return "", FetchFailure(qrPayload, errors.New("no document resolver configured"))
	}
	path, err := v.resolver.Resolve(ctx, qrPayload)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) && errors.Is(f.Kind, ErrFetch) {
			return "", err
		}
		return "", FetchFailure(qrPayload, err)
	}
	return path, nil
}

// Verify compares the user document at userPath with the official document
// at officialPath.
//
// Byte-identical files short-circuit to a verified result with confidence 1
// and no text extraction. Hash failures are recorded as warnings and the
// comparison continues. Text extraction failures are returned as ErrExtraction.
func (v *Verifier) Verify(ctx context.Context, userPath, officialPath string) (models.VerificationResult, error) {
	res := models.VerificationResult{
		ID:           v.newID(),
		UserFile:     filepath.Base(userPath),
		OfficialFile: filepath.Base(officialPath),
		CheckedAt:    v.now().UTC(),
	}
	if officialPath == "" {
		return res, ErrOfficialUnavailable
	}
	log := logrus.WithFields(logrus.Fields{"verification_id": res.ID, "user_file": res.UserFile, "official_file": res.OfficialFile})

	if v.hasher != nil {
		if identical := v.compareHashes(&res, userPath, officialPath, log); identical {
			res.FastPath = true
			res.Confidence = 1
			res.TextSimilarity = 100
			res.Verdict = models.VerdictVerified
			log.Info("verified by identical file hash")
			return res, nil
		}
	}

	userText, err := v.text.ExtractText(ctx, userPath)
	if err != nil {
		return res, extractionFailure(userPath, err)
	}
	officialText, err := v.text.ExtractText(ctx, officialPath)
	if err != nil {
		return res, extractionFailure(officialPath, err)
	}

	res.UserFields = v.fields(ctx, &res, userText, log)
	res.OfficialFields = v.fields(ctx, &res, officialText, log)
	res.TextSimilarity = TextSimilarity(userText, officialText)
	res.Confidence, res.Details = v.aggregator.Aggregate(res.UserFields, res.OfficialFields, res.TextSimilarity)
	res.Verdict = v.aggregator.Decide(res.Confidence)

	log.WithFields(logrus.Fields{
		"confidence":      res.Confidence,
		"verdict":         res.Verdict,
		"text_similarity": res.TextSimilarity,
	}).Info("verification scored")
	return res, nil
}

func (v *Verifier) compareHashes(res *models.VerificationResult, userPath, officialPath string, log *logrus.Entry) bool {
	uh, err := v.hasher.FileHash(userPath)
	if err != nil {
		v.warn(res, log, hashFailure(userPath, err))
		return false
	}
	oh, err := v.hasher.FileHash(officialPath)
	if err != nil {
		v.warn(res, log, hashFailure(officialPath, err))
		return false
	}
	res.UserHash, res.OfficialHash = uh, oh
	return uh != "" && uh == oh
}

func (v *Verifier) fields(ctx context.Context, res *models.VerificationResult, text string, log *logrus.Entry) models.ExtractedFields {
	f := v.extractor.Extract(text)
	if v.assist == nil {
		return f
	}
	filled, err := v.assist.Fill(ctx, text, f)
	if err != nil {
		v.warn(res, log, fmt.Errorf("field assist: %w", err))
		return f
	}
	return keepPresent(f, filled)
}

func (v *Verifier) warn(res *models.VerificationResult, log *logrus.Entry, err error) {
	log.WithError(err).Warn("verification collaborator failed")
	res.Warnings = append(res.Warnings, err.Error())
}

// keepPresent returns base with its absent values taken from extra.
func keepPresent(base, extra models.ExtractedFields) models.ExtractedFields {
	pick := func(a, b models.Value) models.Value {
		if a.IsSet() {
			return a
		}
		return b
	}
	out := base
	out.Name = pick(base.Name, extra.Name)
	out.Course = pick(base.Course, extra.Course)
	out.CertificateID = pick(base.CertificateID, extra.CertificateID)
	out.Score = pick(base.Score, extra.Score)
	out.Term = pick(base.Term, extra.Term)
	out.RollNo = pick(base.RollNo, extra.RollNo)
	if !base.Institute.IsSet() || base.InstituteDefaulted {
		if extra.Institute.IsSet() && !extra.InstituteDefaulted {
			out.Institute = extra.Institute
			out.InstituteDefaulted = false
		}
	}
	return out
}

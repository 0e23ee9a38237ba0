package verify

import (
	"regexp"
	"strings"
	"unicode"

	"certverify/internal/models"
)

const (
	nameScanLines   = 12
	courseScanLines = 20
)

// monthPattern matches a full month name or its common abbreviation, never a
// longer word that merely starts with one.
const monthPattern = `(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\b\.?`

var (
	certIDRe    = regexp.MustCompile(`(?i)\bNPTEL[0-9A-Z-]{4,}`)
	upperWordRe = regexp.MustCompile(`^[A-Z][A-Z.\-]*$`)
	titleWordRe = regexp.MustCompile(`^[A-Z][a-z\-]+$`)
	nameLabelRe = regexp.MustCompile(`(?i)^(.*?)\bname\b\s*[:\-]?\s*(.*)$`)
	fractionRe  = regexp.MustCompile(`\b\d{1,3}(?:\.\d+)?/\d{1,3}(?:\.\d+)?\b`)
	totalRe     = regexp.MustCompile(`(?i)\bTotal[:\s]*(\d{1,3}(?:\.\d+)?)\b`)
	percentRe   = regexp.MustCompile(`\b(\d{1,3})\s*%`)
	bareNumRe   = regexp.MustCompile(`^\d{2,3}$`)
	termRe      = regexp.MustCompile(`(?i)\b` + monthPattern + `(?:\s*[-–]\s*` + monthPattern + `)?\s*,?\s*\d{4}\b`)
	instituteRe = regexp.MustCompile(`\b(?:IIT|NIT)\b|(?i:\b(?:institute|college|university)\b)`)
	rollNoRe    = regexp.MustCompile(`(?i)^roll\s*no\b`)
)

var courseKeywords = []string{"WEEK", "COURSE", "SPEAKING", "PROGRAM", "PUBLIC", "CERTIFICATE", "MODULE"}

// Lines with any of these words are headings, labels or signatures, not names.
var nameStopWords = map[string]struct{}{
	"nptel": {}, "online": {}, "certification": {}, "certificate": {}, "course": {},
	"week": {}, "program": {}, "programme": {}, "module": {}, "institute": {},
	"university": {}, "college": {}, "coordinator": {}, "exam": {}, "total": {},
	"score": {}, "assignments": {}, "india": {},
}

// Fixed certificate phrasing that would otherwise trip the name and course rules.
var boilerplate = []string{"awarded to", "successfully completing", "candidates certified", "consolidated score"}

// Extractor turns raw document text into ExtractedFields.
//
// Each field is filled by the first line, in document order, that satisfies
// its rule; later lines never overwrite a value. Score rules are tried in
// order (fraction, "Total:", "NN%", bare 2-3 digit line) and the first rule
// with any match wins.
type Extractor struct {
	// InstituteFallback is used when no line names an institute. Empty
	// leaves the institute absent.
	InstituteFallback string
}

// NewExtractor returns an Extractor with the given institute fallback.
func NewExtractor(instituteFallback string) *Extractor {
	return &Extractor{InstituteFallback: strings.TrimSpace(instituteFallback)}
}

// Extract never fails; fields with no matching line are absent.
func (e *Extractor) Extract(text string) models.ExtractedFields {
	lines := splitLines(text)

	var f models.ExtractedFields
	f.CertificateID = extractCertificateID(lines)
	f.Name = extractName(lines)
	f.Course = extractCourse(lines, f.Name)
	f.Score = extractScore(lines)
	f.Term = firstMatch(lines, termRe)
	f.RollNo = extractRollNo(lines)

	f.Institute = extractInstitute(lines)
	if !f.Institute.IsSet() && e.InstituteFallback != "" {
		f.Institute = models.Some(e.InstituteFallback)
		f.InstituteDefaulted = true
	}
	return f
}

func splitLines(text string) []string {
	var out []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			out = append(out, ln)
		}
	}
	return out
}

func extractCertificateID(lines []string) models.Value {
	for _, ln := range lines {
		if m := certIDRe.FindString(ln); m != "" {
			return models.Some(strings.ToUpper(m))
		}
	}
	return models.None()
}

func extractName(lines []string) models.Value {
	for _, ln := range head(lines, nameScanLines) {
		if isBoilerplate(ln) {
			continue
		}
		if looksLikeName(ln) {
			return models.Some(collapseSpaces(ln))
		}
	}
	for _, ln := range lines {
		words := strings.Fields(ln)
		if len(words) > 6 || !strings.Contains(strings.ToUpper(ln), "NAME") {
			continue
		}
		m := nameLabelRe.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		// Prefer the text after the label, "Name: X"; fall back to "X Name".
		name := strings.Trim(m[2], " :-")
		if name == "" {
			name = strings.Trim(m[1], " :-")
		}
		if name != "" {
			return models.Some(collapseSpaces(name))
		}
	}
	return models.None()
}

func looksLikeName(ln string) bool {
	words := strings.Fields(ln)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	for _, w := range words {
		if !upperWordRe.MatchString(w) && !titleWordRe.MatchString(w) {
			return false
		}
		if _, stop := nameStopWords[strings.ToLower(strings.Trim(w, ".-"))]; stop {
			return false
		}
	}
	return true
}

func extractCourse(lines []string, name models.Value) models.Value {
	scan := head(lines, courseScanLines)
	for _, ln := range scan {
		if isBoilerplate(ln) || len(strings.Fields(ln)) > 8 {
			continue
		}
		up := strings.ToUpper(ln)
		for _, kw := range courseKeywords {
			if strings.Contains(up, kw) {
				return models.Some(collapseSpaces(ln))
			}
		}
	}
	for _, ln := range scan {
		n := len(strings.Fields(ln))
		if n < 2 || n > 6 || !isUpper(ln) {
			continue
		}
		if v, ok := name.Get(); ok && collapseSpaces(ln) == v {
			continue
		}
		return models.Some(collapseSpaces(ln))
	}
	return models.None()
}

func extractScore(lines []string) models.Value {
	if v := firstMatch(lines, fractionRe); v.IsSet() {
		return v
	}
	for _, ln := range lines {
		if m := totalRe.FindStringSubmatch(ln); m != nil {
			return models.Some(m[1])
		}
	}
	for _, ln := range lines {
		if m := percentRe.FindStringSubmatch(ln); m != nil {
			return models.Some(m[1] + "%")
		}
	}
	for _, ln := range lines {
		if bareNumRe.MatchString(ln) {
			return models.Some(ln + "%")
		}
	}
	return models.None()
}

func extractInstitute(lines []string) models.Value {
	for _, ln := range lines {
		if instituteRe.MatchString(ln) {
			return models.Some(collapseSpaces(ln))
		}
	}
	return models.None()
}

func extractRollNo(lines []string) models.Value {
	for i, ln := range lines {
		if !rollNoRe.MatchString(ln) {
			continue
		}
		// "Roll No: XYZ" on one line, or the label alone with the value below.
		if rest := strings.Trim(rollNoRe.ReplaceAllString(ln, ""), " .:-#"); rest != "" {
			return models.Some(rest)
		}
		if i+1 < len(lines) {
			return models.Some(lines[i+1])
		}
	}
	return models.None()
}

func firstMatch(lines []string, re *regexp.Regexp) models.Value {
	for _, ln := range lines {
		if m := re.FindString(ln); m != "" {
			return models.Some(collapseSpaces(m))
		}
	}
	return models.None()
}

func isBoilerplate(ln string) bool {
	lower := strings.ToLower(ln)
	for _, p := range boilerplate {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// isUpper reports whether s has at least one letter and no lowercase letters.
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

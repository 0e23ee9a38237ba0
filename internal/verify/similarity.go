package verify

import "strings"

// TextSimilarity compares two whole-document texts on a 0-100 scale. It is
// set based, so OCR and native-text extraction that order lines differently
// still score alike. Either text being empty scores 0.
func TextSimilarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	return TokenSetRatio(a, b)
}

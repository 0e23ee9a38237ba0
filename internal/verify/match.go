package verify

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"

	"certverify/internal/models"
)

// indel is a Levenshtein metric where a substitution costs a delete plus an
// insert, so Distance is the insert/delete edit distance. Inputs are already
// lowercased by tokenSet.
var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// MatchField scores one field pair in [0,1].
//
// Two absent values score 1 and one absent value scores 0. Present values are
// compared with TokenSetRatio.
func MatchField(a, b models.Value) float64 {
	sa, okA := a.Get()
	sb, okB := b.Get()
	switch {
	case !okA && !okB:
		return 1
	case !okA || !okB:
		return 0
	}
	return TokenSetRatio(sa, sb) / 100
}

// MatchCertificateID is MatchField with an exact-match short-circuit: two
// non-empty, byte-equal ids score 1 whatever their fuzzy similarity.
func MatchCertificateID(a, b models.Value) float64 {
	sa, okA := a.Get()
	sb, okB := b.Get()
	if okA && okB && sa != "" && sa == sb {
		return 1
	}
	return MatchField(a, b)
}

// TokenSetRatio returns an order- and duplicate-insensitive similarity of a
// and b on a 0-100 scale.
//
// Both strings are reduced to their sets of distinct lowercased tokens. If
// one set contains the other the score is 100. Otherwise the shared tokens
// and the two leftovers are joined in sorted order and the best normalized
// insert/delete ratio among those strings wins.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var sect, onlyA, onlyB []string
	for t := range ta {
		if _, ok := tb[t]; ok {
			sect = append(sect, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}

	sort.Strings(sect)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	diffA := strings.Join(onlyA, " ")
	diffB := strings.Join(onlyB, " ")

	best := ratio(diffA, diffB)
	if len(sect) == 0 {
		return best
	}

	// "sect" against "sect diff": the distance is the diff plus its separator.
	sectLen := utf8.RuneCountInString(strings.Join(sect, " "))
	for _, diffLen := range []int{utf8.RuneCountInString(diffA), utf8.RuneCountInString(diffB)} {
		total := 2*sectLen + 1 + diffLen
		r := 100 * (1 - float64(diffLen+1)/float64(total))
		if r > best {
			best = r
		}
	}
	return best
}

// ratio is the normalized insert/delete similarity of a and b on 0-100.
func ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 100
	}
	return 100 * (1 - float64(indel.Distance(a, b))/float64(total))
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		tok := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

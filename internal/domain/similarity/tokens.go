package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minTokenLen is the shortest token kept; shorter words carry no signal.
const minTokenLen = 3

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"are": {}, "was": {}, "were": {}, "our": {}, "its": {}, "into": {}, "your": {},
	"you": {}, "all": {}, "any": {}, "can": {}, "has": {}, "have": {}, "not": {},
	"but": {}, "per": {}, "out": {}, "over": {}, "than": {}, "then": {}, "they": {},
	"their": {}, "them": {}, "these": {}, "those": {}, "which": {}, "who": {},
	"will": {}, "would": {}, "also": {}, "such": {}, "each": {}, "other": {},
	"more": {}, "most": {}, "very": {}, "made": {}, "using": {}, "use": {},
}

// tokenize lower-cases s, splits it on anything that is not a letter or a
// digit, and drops short words and stop words.
func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenLen {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// tokenOverlap is the number of shared tokens over the size of the larger
// token set. Two texts with no usable tokens overlap fully only when they are
// the same text after normalisation (for example both empty).
func tokenOverlap(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		if normalize(a) == normalize(b) {
			return 1
		}
		return 0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	small, large := ta, tb
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(large))
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

package dedup

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/dronewatch/incident-engine/internal/textproc"
)

// FuzzyThreshold is the Tier-1 match cutoff on blended title similarity.
const FuzzyThreshold = 0.75

// Blend weights: token overlap carries the decision, edit distance breaks
// up coincidental word-set collisions.
const (
	tokenWeight = 0.6
	editWeight  = 0.4
)

// TitleSimilarity scores two titles in [0, 1]. Symmetric, and 1.0 for
// identical inputs. The pipeline runs this over candidate sets of a handful
// of rows; a comparison costs microseconds.
func TitleSimilarity(a, b string) float64 {
	ta := canonicalTokens(a)
	tb := canonicalTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	token := tokenSetRatio(ta, tb)
	edit := editSimilarity(strings.Join(ta, " "), strings.Join(tb, " "))
	return tokenWeight*token + editWeight*edit
}

// TitlesMatch applies the Tier-1 threshold.
func TitlesMatch(a, b string) bool {
	return TitleSimilarity(a, b) >= FuzzyThreshold
}

// canonicalTokens normalizes a title into a sorted, deduplicated token set:
// NFKC fold, lowercase, diacritics stripped, punctuation dropped, every
// token mapped through the synonym table so "dronen over lufthavnen" and
// "drone over the airport" share tokens.
func canonicalTokens(s string) []string {
	folded := textproc.Fold(norm.NFKC.String(s))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		if canon, ok := synonyms[f]; ok {
			f = canon
		}
		set[f] = true
	}

	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// tokenSetRatio is |A ∩ B| / max(|A|, |B|) over canonical token sets.
func tokenSetRatio(a, b []string) float64 {
	inA := make(map[string]bool, len(a))
	for _, t := range a {
		inA[t] = true
	}
	common := 0
	for _, t := range b {
		if inA[t] {
			common++
		}
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(common) / float64(larger)
}

// editSimilarity is 1 − normalized Levenshtein distance over runes.
func editSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longer)
}

// levenshtein is the classic two-row dynamic program.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

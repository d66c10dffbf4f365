package geo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dronewatch/incident-engine/internal/gazetteer"
)

// Confidence model. A report starts at the base and earns or loses
// confidence from text evidence; it stays in scope while the final score
// clears the threshold.
const (
	baseConfidence    = 0.5
	cityBonus         = 0.2 // per distinct in-scope place token
	officialBonus     = 0.1 // official-source vocabulary present
	foreignPenalty    = 0.4 // foreign location with local context
	inScopeThreshold  = 0.5
	maxCityConfidence = 1.0
)

// Assessment is the analyzer verdict. Flags are stable machine-readable
// markers for logs and metrics; Reason is for humans.
type Assessment struct {
	InScope    bool
	Confidence float64
	Category   string // rejection category when InScope is false
	Reason     string
	Flags      []string
}

// Analyzer decides whether a report is geographically in scope. It is
// immutable after construction and safe for concurrent use.
type Analyzer struct {
	scope      Scope
	gaz        *gazetteer.Gazetteer
	foreignRE  *regexp.Regexp
	contextRE  *regexp.Regexp
	officialRE *regexp.Regexp
}

// officialPattern covers police, defense and aviation-authority vocabulary
// across the in-scope languages, in folded form.
const officialPattern = `\b(?:politi(?:et|ets)?|police|polisen?|poliisin?` +
	`|forsvar(?:et|ets)?|forsvarsmakten|puolustusvoimat` +
	`|myndighed(?:er|erne)?|myndighet(?:en|er|erna)?|viranomai[a-z]*` +
	`|authorit(?:y|ies)|luftfartsstyrelsen|trafikstyrelsen|avinor|naviair` +
	`|milit[a-z]*|hjemmevaernet|beredskab[a-z]*)\b`

// NewAnalyzer compiles the keyword sets for one scope.
func NewAnalyzer(scope Scope, gaz *gazetteer.Gazetteer) *Analyzer {
	return &Analyzer{
		scope:      scope,
		gaz:        gaz,
		foreignRE:  wordListRegexp(scope.foreignTokens),
		contextRE:  wordListRegexp(scope.contextTokens),
		officialRE: regexp.MustCompile(officialPattern),
	}
}

// Analyze runs the geographic gate:
//
//  1. Coordinates must exist and fall inside the scope bounds.
//  2. A foreign incident location rejects outright, unless local context
//     markers show this is in-scope commentary. Then it only costs
//     confidence and is flagged for review.
//  3. In-scope place mentions and official-source vocabulary raise
//     confidence.
func (a *Analyzer) Analyze(title, narrative string, lat, lon *float64) Assessment {
	if lat == nil || lon == nil {
		return Assessment{
			Category: "missing_coords",
			Reason:   "no coordinates provided and none resolvable from text",
			Flags:    []string{"missing_coords"},
		}
	}
	if !a.scope.Contains(*lat, *lon) {
		return Assessment{
			Category: "coords_outside_region",
			Reason: fmt.Sprintf("coordinates (%.4f, %.4f) outside %s bounds [%.0f..%.0f]N x [%.0f..%.0f]E",
				*lat, *lon, a.scope.Name, a.scope.MinLat, a.scope.MaxLat, a.scope.MinLon, a.scope.MaxLon),
			Flags: []string{"coords_outside_region"},
		}
	}

	folded := gazetteer.Fold(title + " " + narrative)
	var flags []string

	foreign := a.foreignRE.FindString(folded)
	if foreign != "" && !a.contextRE.MatchString(folded) {
		return Assessment{
			Category: "foreign",
			Reason:   fmt.Sprintf("incident located at foreign place %q", foreign),
			Flags:    []string{"foreign_incident"},
		}
	}

	cities := a.cityMatches(folded)
	confidence := baseConfidence + cityBonus*float64(len(cities))
	if confidence > maxCityConfidence {
		confidence = maxCityConfidence
	}
	if a.officialRE.MatchString(folded) {
		confidence += officialBonus
		flags = append(flags, "official_vocabulary")
	}
	if foreign != "" {
		confidence -= foreignPenalty
		flags = append(flags, "foreign_with_nordic_context")
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	if confidence < inScopeThreshold {
		return Assessment{
			Confidence: confidence,
			Category:   "low_geo_confidence",
			Reason:     fmt.Sprintf("confidence %.2f below threshold (foreign mention %q)", confidence, foreign),
			Flags:      flags,
		}
	}

	reason := "coordinates in scope"
	if len(cities) > 0 {
		reason = fmt.Sprintf("coordinates in scope; place mentions: %s", strings.Join(cities, ", "))
	}
	return Assessment{
		InScope:    true,
		Confidence: confidence,
		Reason:     reason,
		Flags:      flags,
	}
}

// cityMatches returns the distinct in-scope place tokens present in the
// folded text, sorted for stable output.
func (a *Analyzer) cityMatches(folded string) []string {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = true
	}

	var matched []string
	for _, tok := range a.gaz.Snapshot().CityTokens() {
		if words[tok] {
			matched = append(matched, tok)
		}
	}
	sort.Strings(matched)
	return matched
}

func wordListRegexp(tokens []string) *regexp.Regexp {
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
}

package consolidate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dronewatch/incident-engine/internal/textproc"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// officialAttributionRE finds official voices in a narrative: a named
// authority or a statement attributed to one. Runs over folded text.
var officialAttributionRE = regexp.MustCompile(
	`\b(?:politi(?:et|ets)?|forsvar(?:et|ets)?|police|ministry|ministeriet` +
		`|notam|luftfartsstyrelsen|myndighed(?:er|erne)?)\b`)

// Merge collapses a group of incident rows into one record. The first
// element is the surviving row; its identity, coordinates and
// classification are kept while the time range widens, the richest text
// wins and sources are unioned. Pure: no I/O, no clock, ties broken by
// fixed rules so any ordering of the inputs produces the same output.
func Merge(group []models.Incident) models.Incident {
	if len(group) == 0 {
		return models.Incident{}
	}

	merged := group[0]
	for _, in := range group[1:] {
		if in.OccurredAt.Before(merged.OccurredAt) {
			merged.OccurredAt = in.OccurredAt
		}
		if in.FirstSeenAt.Before(merged.FirstSeenAt) {
			merged.FirstSeenAt = in.FirstSeenAt
		}
		if in.LastSeenAt.After(merged.LastSeenAt) {
			merged.LastSeenAt = in.LastSeenAt
		}
		merged.Title = richerTitle(merged.Title, in.Title)
		merged.Narrative = richerNarrative(merged.Narrative, in.Narrative)
	}

	var all []models.IncidentSource
	for _, in := range group {
		all = append(all, in.Sources...)
	}
	merged.Sources = UnionSources(all)
	merged.EvidenceScore = EvidenceScore(merged.Sources, merged.Narrative)
	return merged
}

// UnionSources deduplicates by exact source URL and orders by URL ascending
// so merge output is deterministic.
func UnionSources(sources []models.IncidentSource) []models.IncidentSource {
	seen := make(map[string]bool, len(sources))
	out := make([]models.IncidentSource, 0, len(sources))
	for _, s := range sources {
		if seen[s.SourceURL] {
			continue
		}
		seen[s.SourceURL] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceURL < out[j].SourceURL })
	return out
}

// EvidenceScore grades an incident by its merged source set:
//
//	4 any official source (trust 4, or police/military/NOTAM/aviation type)
//	3 two independent media sources plus an official attribution in the text
//	2 at least one source of reasonable trust
//	1 everything else
func EvidenceScore(sources []models.IncidentSource, narrative string) int {
	maxTrust := 0
	mediaCount := 0
	for _, s := range sources {
		if s.TrustWeight > maxTrust {
			maxTrust = s.TrustWeight
		}
		if s.TrustWeight == 4 || models.OfficialSourceType(s.SourceType) {
			return models.EvidenceOfficial
		}
		if (s.SourceType == models.SourceMedia || s.SourceType == models.SourceVerifiedMedia) && s.TrustWeight >= 2 {
			mediaCount++
		}
	}

	if mediaCount >= 2 && officialAttributionRE.MatchString(textproc.Fold(narrative)) {
		return models.EvidenceVerified
	}
	if maxTrust >= 2 {
		return models.EvidenceReported
	}
	return models.EvidenceUnconfirmed
}

// richerTitle prefers more words; ties fall to more characters, then to the
// lexically smaller string.
func richerTitle(a, b string) string {
	wa, wb := len(strings.Fields(a)), len(strings.Fields(b))
	switch {
	case wb > wa:
		return b
	case wa > wb:
		return a
	}
	return richerNarrative(a, b)
}

// richerNarrative prefers the longer text, ties to the lexically smaller.
func richerNarrative(a, b string) string {
	ra, rb := len([]rune(a)), len([]rune(b))
	switch {
	case rb > ra:
		return b
	case ra > rb:
		return a
	case b < a:
		return b
	}
	return a
}

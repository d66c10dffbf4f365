package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dronewatch/incident-engine/internal/geo"
)

// Hard ceilings for adjudication. Confidence is capped below certainty, and
// a duplicate claim that contradicts physics is overridden. Tier-3 dedup
// sits on the write path and gets a much tighter deadline than the
// borderline-classification second opinion.
const (
	classifyTimeout  = 2 * time.Second
	duplicateTimeout = 600 * time.Millisecond
	confidenceCap    = 0.95

	overrideDistanceMeters = 500
	overrideTimeGap        = 3 * time.Hour
)

// IncidentSummary is the payload one side of a duplicate question carries
// into the prompt.
type IncidentSummary struct {
	Title       string
	OccurredAt  time.Time
	Lat         float64
	Lon         float64
	Location    string
	AssetType   string
	Country     string
	Narrative   string
	SourceCount int
}

// IncidentVerdict is the classification answer (the second opinion on
// borderline classifier calls).
type IncidentVerdict struct {
	IsIncident bool
	Confidence float64
	Category   string
	Reasoning  string
}

// DuplicateVerdict is the Tier-3 answer.
type DuplicateVerdict struct {
	IsDuplicate bool
	Confidence  float64
	Reasoning   string
	MergedTitle string // empty unless the model proposed a usable title
}

// Adjudicator wraps the completion client with prompts, response parsing,
// caching and the anti-hallucination overrides.
type Adjudicator struct {
	client Completer
	cache  Cache
}

func NewAdjudicator(client Completer, cache Cache) *Adjudicator {
	return &Adjudicator{client: client, cache: cache}
}

// Tolerant response readers. Models get the schema in the prompt but drift
// on case, separators and ordering.
var (
	verdictRE     = regexp.MustCompile(`(?im)^\s*\**\s*VERDICT\s*\**\s*[:=]\s*([A-Za-z_ ]+)`)
	confidenceRE  = regexp.MustCompile(`(?im)^\s*\**\s*CONFIDENCE\s*\**\s*[:=]\s*([0-9]*\.?[0-9]+)`)
	categoryRE    = regexp.MustCompile(`(?im)^\s*\**\s*CATEGORY\s*\**\s*[:=]\s*([A-Za-z_]+)`)
	reasoningRE   = regexp.MustCompile(`(?im)^\s*\**\s*REASONING\s*\**\s*[:=]\s*(.+)$`)
	mergedTitleRE = regexp.MustCompile(`(?im)^\s*\**\s*MERGED_TITLE\s*\**\s*[:=]\s*(.+)$`)
)

// hedgingTokens disqualify a proposed merged title. A model hedging about
// its own output is not writing a headline.
var hedgingTokens = []string{
	"probably", "perhaps", "maybe", "possibly", "i think", "i believe",
	"not sure", "unsure", "cannot determine", "unclear", "as an ai",
	"language model",
}

// ClassifyIncident asks for a second opinion on a borderline classifier
// verdict. Errors mean "no opinion": the caller keeps the keyword verdict.
func (a *Adjudicator) ClassifyIncident(ctx context.Context, title, narrative string) (*IncidentVerdict, error) {
	prompt := classifyPrompt(title, narrative)

	raw, err := a.complete(ctx, CacheKey("classify", title, narrative), prompt, classifyTimeout)
	if err != nil {
		return nil, err
	}

	verdict := &IncidentVerdict{
		Confidence: parseConfidence(raw),
		Category:   "discussion",
		Reasoning:  parseReasoning(raw),
	}
	switch parseVerdict(raw) {
	case "incident", "yes", "real_incident":
		verdict.IsIncident = true
		verdict.Category = "incident"
	}
	if m := categoryRE.FindStringSubmatch(raw); m != nil {
		verdict.Category = strings.ToLower(strings.TrimSpace(m[1]))
	}
	return verdict, nil
}

// AdjudicateDuplicate decides a Tier-2 borderline pair. The returned verdict
// is already guarded: confidence capped, physically impossible duplicate
// claims overridden, hedged titles discarded.
func (a *Adjudicator) AdjudicateDuplicate(ctx context.Context, incoming, existing IncidentSummary, tier2Score float64) (*DuplicateVerdict, error) {
	prompt := duplicatePrompt(incoming, existing, tier2Score)
	key := CacheKey("duplicate",
		incoming.Title, incoming.OccurredAt.UTC().Format(time.RFC3339),
		existing.Title, existing.OccurredAt.UTC().Format(time.RFC3339))

	raw, err := a.complete(ctx, key, prompt, duplicateTimeout)
	if err != nil {
		return nil, err
	}

	verdict := &DuplicateVerdict{
		Confidence: parseConfidence(raw),
		Reasoning:  parseReasoning(raw),
	}
	switch parseVerdict(raw) {
	case "duplicate", "dup", "same", "same_event", "merge":
		verdict.IsDuplicate = true
	}

	if verdict.IsDuplicate {
		distance := geo.HaversineMeters(incoming.Lat, incoming.Lon, existing.Lat, existing.Lon)
		gap := incoming.OccurredAt.Sub(existing.OccurredAt)
		if gap < 0 {
			gap = -gap
		}
		if distance > overrideDistanceMeters && gap > overrideTimeGap {
			verdict.IsDuplicate = false
			verdict.Reasoning = fmt.Sprintf(
				"overridden: claimed duplicate but %.0f m and %s apart (%s)",
				distance, gap.Round(time.Minute), verdict.Reasoning)
			return verdict, nil
		}

		if m := mergedTitleRE.FindStringSubmatch(raw); m != nil {
			title := strings.TrimSpace(m[1])
			if !hedged(title) {
				verdict.MergedTitle = title
			}
		}
	}
	return verdict, nil
}

// complete runs one cached completion under the given deadline.
func (a *Adjudicator) complete(ctx context.Context, key, prompt string, timeout time.Duration) (string, error) {
	if raw, ok := a.cache.Get(ctx, key); ok {
		return raw, nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := a.client.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	a.cache.Set(context.WithoutCancel(ctx), key, raw)
	return raw, nil
}

func classifyPrompt(title, narrative string) string {
	return fmt.Sprintf(`You review European drone reports. Decide whether this text describes an ACTUAL drone incident (a real sighting or disruption), as opposed to policy news, defense deployments, exercises, commercial drone use or general discussion.

TITLE: %s
TEXT: %s

Answer in exactly this format:
VERDICT: INCIDENT or NOT_INCIDENT
CONFIDENCE: a number between 0.0 and 1.0
CATEGORY: incident, policy, defense, simulation, discussion or not_drone
REASONING: one short sentence`, title, truncate(narrative, 300))
}

func duplicatePrompt(incoming, existing IncidentSummary, tier2Score float64) string {
	return fmt.Sprintf(`You deduplicate drone incident reports. Two reports are described below. Decide whether they describe the SAME real-world event.

REPORT A (new):
%s
REPORT B (existing):
%s

Vector similarity between them: %.3f

Answer in exactly this format:
VERDICT: DUPLICATE or UNIQUE
CONFIDENCE: a number between 0.0 and 1.0
REASONING: one short sentence
MERGED_TITLE: a single headline covering both, only if DUPLICATE`,
		summaryBlock(incoming), summaryBlock(existing), tier2Score)
}

func summaryBlock(s IncidentSummary) string {
	return fmt.Sprintf(
		"  Title: %s\n  Date: %s\n  Coordinates: %.4f, %.4f\n  Location: %s\n  Asset: %s\n  Country: %s\n  Sources: %d\n  Details: %s",
		s.Title, s.OccurredAt.UTC().Format("2006-01-02 15:04"),
		s.Lat, s.Lon, s.Location, s.AssetType, s.Country, s.SourceCount,
		truncate(s.Narrative, 300))
}

func parseVerdict(raw string) string {
	m := verdictRE.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(m[1], " ", "_")))
}

// parseConfidence defaults to 0.5 when the field is missing or unreadable,
// then clamps into [0, cap].
func parseConfidence(raw string) float64 {
	m := confidenceRE.FindStringSubmatch(raw)
	if m == nil {
		return 0.5
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0.5
	}
	if v < 0 {
		v = 0
	}
	if v > confidenceCap {
		v = confidenceCap
	}
	return v
}

func parseReasoning(raw string) string {
	if m := reasoningRE.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func hedged(title string) bool {
	lower := strings.ToLower(title)
	for _, tok := range hedgingTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/internal/classify"
	"github.com/dronewatch/incident-engine/internal/consolidate"
	"github.com/dronewatch/incident-engine/internal/dedup"
	"github.com/dronewatch/incident-engine/internal/gate"
	"github.com/dronewatch/incident-engine/internal/gazetteer"
	"github.com/dronewatch/incident-engine/internal/geo"
	"github.com/dronewatch/incident-engine/internal/llm"
	"github.com/dronewatch/incident-engine/internal/metrics"
	"github.com/dronewatch/incident-engine/internal/textproc"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// aiReviewThreshold: classifier verdicts below this confidence get a second
// opinion from the language model before they stand.
const aiReviewThreshold = 0.7

// IngestRequest is the POST /ingest body. Date fields arrive as strings and
// are parsed with the tolerant layouts the temporal gate accepts.
type IngestRequest struct {
	Title              string        `json:"title"`
	Narrative          string        `json:"narrative"`
	OccurredAt         string        `json:"occurred_at"`
	FirstSeenAt        string        `json:"first_seen_at"`
	LastSeenAt         string        `json:"last_seen_at"`
	Lat                *float64      `json:"lat"`
	Lon                *float64      `json:"lon"`
	AssetType          string        `json:"asset_type"`
	Status             string        `json:"status"`
	EvidenceScore      int           `json:"evidence_score"`
	Country            string        `json:"country"`
	VerificationStatus string        `json:"verification_status"`
	Sources            []SourceInput `json:"sources"`
}

// SourceInput is one article reference in the ingest body.
type SourceInput struct {
	SourceURL   string `json:"source_url"`
	SourceType  string `json:"source_type"`
	SourceName  string `json:"source_name"`
	SourceTitle string `json:"source_title"`
	SourceQuote string `json:"source_quote"`
	TrustWeight int    `json:"trust_weight"`
	PublishedAt string `json:"published_at"`
	Lang        string `json:"lang"`
}

// Result is the write-path answer: which incident the report landed in and
// how it got there.
type Result struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"` // "created" or "merged"
	EvidenceScore int       `json:"evidence_score"`
	Tier          int       `json:"-"`
}

// TxStore is the transaction-scoped store surface the engine drives while
// holding the fingerprint lock.
type TxStore interface {
	dedup.Tier1Store
	FindBySourceURL(ctx context.Context, sourceURL string) (*models.Incident, error)
	CreateIncident(ctx context.Context, inc models.Incident) (uuid.UUID, error)
	MergeIncident(ctx context.Context, id uuid.UUID, occurred, firstSeen, lastSeen time.Time, newTitle string) error
	AttachSources(ctx context.Context, incidentID uuid.UUID, sources []models.IncidentSource) (int, error)
	EvidenceScore(ctx context.Context, id uuid.UUID) (int, error)
	InsertEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error
}

// Store is the pool-scoped store surface for the optimistic pass.
type Store interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*models.Incident, error)
	WithFingerprintLock(ctx context.Context, lockKey int64, fn func(TxStore) error) error
}

// Matcher resolves merge-or-create across the similarity tiers.
type Matcher interface {
	Resolve(ctx context.Context, cand *dedup.Candidate) (dedup.Decision, error)
}

// Classifier separates real incidents from policy, defense, drill,
// commercial and royal coverage.
type Classifier interface {
	Classify(title, narrative string) classify.Verdict
}

// GeoAnalyzer scores geographic scope.
type GeoAnalyzer interface {
	Analyze(title, narrative string, lat, lon *float64) geo.Assessment
}

// TemporalGate rejects satire outlets and stale or future reports.
type TemporalGate interface {
	CheckSatire(sourceURLs []string) *gate.Rejection
	CheckWindow(occurred time.Time) *gate.Rejection
}

// IncidentAdjudicator gives the second opinion on low-confidence classifier
// verdicts. Optional.
type IncidentAdjudicator interface {
	ClassifyIncident(ctx context.Context, title, narrative string) (*llm.IncidentVerdict, error)
}

// Notifier receives committed write-path outcomes. Optional.
type Notifier interface {
	NotifyIncident(action string, inc models.Incident)
}

// Deps collects the engine's collaborators. Store, Matcher, Gate,
// Classifier, Geo and Gazetteer are required; Adjudicator and Notifier are
// nil when unconfigured.
type Deps struct {
	Store       Store
	Matcher     Matcher
	Gate        TemporalGate
	Classifier  Classifier
	Geo         GeoAnalyzer
	Gazetteer   *gazetteer.Gazetteer
	Adjudicator IncidentAdjudicator
	Notifier    Notifier
	EmbedModel  string
}

// Engine runs the ingest state machine: validate, gate, classify, scope,
// deduplicate, then merge or create under the fingerprint lock.
type Engine struct {
	deps Deps
}

func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps}
}

// Ingest pushes one candidate report through the full pipeline.
//
//  1. Validate and sanitize title and narrative
//  2. Satire and temporal gates
//  3. Keyword classification, with AI review below the confidence bar
//  4. Geographic scope, resolving coordinates from the gazetteer if absent
//  5. Optimistic duplicate resolution (URL, then tiers) outside the lock
//  6. Under the fingerprint lock: re-check, then merge or create
//
// Rejections return *Error with a caller-visible category; store failures
// return errors that map to a generic 5xx.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*Result, error) {
	title, narrative, perr := e.validateText(req)
	if perr != nil {
		return nil, perr
	}

	if strings.TrimSpace(req.OccurredAt) == "" {
		return nil, Reject(KindInvalidInput, "missing_fields", "occurred_at is required")
	}
	occurred, rej := gate.ParseOccurred(req.OccurredAt)
	if rej != nil {
		return nil, Reject(KindInvalidInput, rej.Category, rej.Detail)
	}

	urls := make([]string, 0, len(req.Sources))
	for _, s := range req.Sources {
		urls = append(urls, s.SourceURL)
	}
	if rej := e.deps.Gate.CheckSatire(urls); rej != nil {
		return nil, Reject(KindForbidden, rej.Category, rej.Detail)
	}
	if rej := e.deps.Gate.CheckWindow(occurred); rej != nil {
		return nil, Reject(KindOutOfScope, rej.Category, rej.Detail)
	}

	verdict := e.deps.Classifier.Classify(title, narrative)
	if !verdict.IsIncident && verdict.Confidence >= aiReviewThreshold {
		return nil, Reject(KindRejected, verdict.Category, verdict.Reason)
	}

	// Resolve coordinates and place context from the gazetteer before the
	// geographic analyzer runs.
	lat, lon := req.Lat, req.Lon
	location, entry := "", (*gazetteer.Entry)(nil)
	coarseCoords := false
	if found, ok := e.deps.Gazetteer.Snapshot().FindInText(title + " " + narrative); ok {
		entry = found
		location = found.Name
		if lat == nil || lon == nil {
			entryLat, entryLon := found.Lat, found.Lon
			lat, lon = &entryLat, &entryLon
			coarseCoords = found.LowPrecision
		}
	}

	assessment := e.deps.Geo.Analyze(title, narrative, lat, lon)
	if !assessment.InScope {
		return nil, Reject(KindOutOfScope, assessment.Category, assessment.Reason)
	}

	// Only a confident verdict may turn a report away. Borderline texts
	// proceed to deduplication even when the review model is unreachable.
	if verdict.Confidence < aiReviewThreshold {
		verdict = e.reviewVerdict(ctx, title, narrative, verdict)
		if !verdict.IsIncident && verdict.Confidence >= aiReviewThreshold {
			return nil, Reject(KindRejected, verdict.Category, verdict.Reason)
		}
	}

	inc, perr := e.buildIncident(req, title, narrative, occurred, *lat, *lon, entry)
	if perr != nil {
		return nil, perr
	}

	// Optimistic pass: the source URL is authoritative, then the tiers.
	cand := &dedup.Candidate{Incident: inc, Location: location, Coarse: coarseCoords}
	decision, err := e.optimisticResolve(ctx, cand)
	if err != nil {
		return nil, Fail(KindStoreFailure, "internal", err)
	}
	e.observeDegradations(decision)

	fingerprint := consolidate.Fingerprint(inc.Lat, inc.Lon, inc.OccurredAt, inc.Country, inc.AssetType)
	lockKey := consolidate.LockKey(fingerprint)

	var result *Result
	err = e.deps.Store.WithFingerprintLock(ctx, lockKey, func(tx TxStore) error {
		r, err := e.commit(ctx, tx, cand, decision)
		result = r
		return err
	})
	if err != nil {
		if CallerCaused(err) {
			return nil, err
		}
		return nil, Fail(KindStoreFailure, "internal", err)
	}

	metrics.ObserveDecision(result.Status, result.Tier)
	if e.deps.Notifier != nil {
		final := inc
		final.ID = result.ID
		final.EvidenceScore = result.EvidenceScore
		e.deps.Notifier.NotifyIncident(result.Status, final)
	}
	return result, nil
}

// validateText runs the XSS detector and sanitizer over both text fields.
func (e *Engine) validateText(req IngestRequest) (string, string, *Error) {
	if strings.TrimSpace(req.Title) == "" {
		return "", "", Reject(KindInvalidInput, "missing_fields", "title is required")
	}
	title, err := textproc.ValidateTitle(req.Title)
	if err != nil {
		return "", "", textErrToPipeline("title", err)
	}
	narrative, err := textproc.ValidateNarrative(req.Narrative)
	if err != nil {
		return "", "", textErrToPipeline("narrative", err)
	}
	return title, narrative, nil
}

func textErrToPipeline(field string, err error) *Error {
	switch err {
	case textproc.ErrMalicious:
		return Reject(KindMaliciousContent, "malicious_content", field+" failed content inspection")
	case textproc.ErrTooLong:
		return Reject(KindInvalidInput, field+"_too_long", field+" exceeds the length limit")
	}
	return Reject(KindInvalidInput, "invalid_input", err.Error())
}

// reviewVerdict asks the language model to second-guess a low-confidence
// classifier call. An unavailable model leaves the keyword verdict standing.
func (e *Engine) reviewVerdict(ctx context.Context, title, narrative string, kw classify.Verdict) classify.Verdict {
	if e.deps.Adjudicator == nil {
		return kw
	}
	ai, err := e.deps.Adjudicator.ClassifyIncident(ctx, title, narrative)
	if err != nil {
		log.Printf("[Engine] AI review unavailable, keeping classifier verdict %q: %v", kw.Category, err)
		metrics.ObserveLLM("classify", "unavailable")
		return kw
	}
	metrics.ObserveLLM("classify", "ok")
	out := classify.Verdict{
		IsIncident: ai.IsIncident,
		Confidence: ai.Confidence,
		Category:   ai.Category,
		Reason:     ai.Reasoning,
	}
	if out.Category == "" {
		if kw.Category != "" {
			out.Category = kw.Category
		} else {
			out.Category = "not_incident"
		}
	}
	return out
}

// buildIncident normalizes the request into a storable row. Invalid enum
// values reject; absent ones take defaults, preferring gazetteer context.
func (e *Engine) buildIncident(req IngestRequest, title, narrative string, occurred time.Time, lat, lon float64, entry *gazetteer.Entry) (models.Incident, *Error) {
	inc := models.Incident{
		Title:      title,
		Narrative:  narrative,
		OccurredAt: occurred,
		Lat:        lat,
		Lon:        lon,
	}

	inc.AssetType = req.AssetType
	if inc.AssetType == "" && entry != nil {
		inc.AssetType = entry.AssetType
	}
	if inc.AssetType == "" {
		inc.AssetType = models.AssetOther
	}
	if !models.ValidAssetType(inc.AssetType) {
		return inc, Reject(KindInvalidInput, "invalid_asset_type", fmt.Sprintf("unknown asset_type %q", req.AssetType))
	}

	inc.Status = req.Status
	if inc.Status == "" {
		inc.Status = models.StatusActive
	}
	if !models.ValidStatus(inc.Status) {
		return inc, Reject(KindInvalidInput, "invalid_status", fmt.Sprintf("unknown status %q", req.Status))
	}

	inc.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	if inc.Country == "" && entry != nil {
		inc.Country = entry.Country
	}
	if inc.Country == "" {
		inc.Country = "DK"
	}
	if len(inc.Country) != 2 {
		return inc, Reject(KindInvalidInput, "invalid_country", fmt.Sprintf("country %q is not ISO-2", req.Country))
	}

	inc.FirstSeenAt = occurred
	if req.FirstSeenAt != "" {
		t, rej := gate.ParseOccurred(req.FirstSeenAt)
		if rej != nil {
			return inc, Reject(KindInvalidInput, rej.Category, "first_seen_at: "+rej.Detail)
		}
		inc.FirstSeenAt = t
	}
	inc.LastSeenAt = occurred
	if req.LastSeenAt != "" {
		t, rej := gate.ParseOccurred(req.LastSeenAt)
		if rej != nil {
			return inc, Reject(KindInvalidInput, rej.Category, "last_seen_at: "+rej.Detail)
		}
		inc.LastSeenAt = t
	}
	// Normalize so occurred <= last_seen and first_seen <= last_seen hold.
	if inc.LastSeenAt.Before(inc.OccurredAt) {
		inc.LastSeenAt = inc.OccurredAt
	}
	if inc.FirstSeenAt.After(inc.LastSeenAt) {
		inc.FirstSeenAt = inc.LastSeenAt
	}

	sources, perr := convertSources(req.Sources)
	if perr != nil {
		return inc, perr
	}
	inc.Sources = sources
	inc.EvidenceScore = consolidate.EvidenceScore(inc.Sources, inc.Narrative)

	inc.VerificationStatus = req.VerificationStatus
	if inc.VerificationStatus == "" {
		if inc.EvidenceScore >= models.EvidenceOfficial {
			inc.VerificationStatus = models.VerificationAutoVerified
		} else {
			inc.VerificationStatus = models.VerificationPending
		}
	}
	if !models.ValidVerificationStatus(inc.VerificationStatus) {
		return inc, Reject(KindInvalidInput, "invalid_verification_status",
			fmt.Sprintf("unknown verification_status %q", req.VerificationStatus))
	}
	return inc, nil
}

func convertSources(in []SourceInput) ([]models.IncidentSource, *Error) {
	out := make([]models.IncidentSource, 0, len(in))
	for i, s := range in {
		if strings.TrimSpace(s.SourceURL) == "" {
			return nil, Reject(KindInvalidInput, "invalid_source",
				fmt.Sprintf("sources[%d] has no source_url", i))
		}
		src := models.IncidentSource{
			SourceURL:   s.SourceURL,
			SourceName:  s.SourceName,
			SourceTitle: s.SourceTitle,
			SourceType:  s.SourceType,
			TrustWeight: s.TrustWeight,
			Lang:        s.Lang,
		}
		if src.SourceType == "" {
			src.SourceType = models.SourceMedia
		}
		if !models.ValidSourceType(src.SourceType) {
			return nil, Reject(KindInvalidInput, "invalid_source",
				fmt.Sprintf("sources[%d] has unknown source_type %q", i, s.SourceType))
		}
		if src.TrustWeight == 0 {
			src.TrustWeight = 2
		}
		if src.TrustWeight < 1 || src.TrustWeight > 4 {
			return nil, Reject(KindInvalidInput, "invalid_source",
				fmt.Sprintf("sources[%d] trust_weight %d out of range", i, s.TrustWeight))
		}
		if quote := []rune(textproc.Sanitize(s.SourceQuote)); len(quote) > 500 {
			src.SourceQuote = string(quote[:500])
		} else {
			src.SourceQuote = string(quote)
		}
		if s.PublishedAt != "" {
			if t, rej := gate.ParseOccurred(s.PublishedAt); rej == nil {
				src.PublishedAt = t
			} else {
				log.Printf("[Engine] Ignoring unparseable published_at on %s: %s", s.SourceURL, rej.Detail)
			}
		}
		out = append(out, src)
	}
	return out, nil
}

// optimisticResolve runs the authoritative URL lookup and the similarity
// tiers outside the lock, where the expensive calls are safe to repeat.
func (e *Engine) optimisticResolve(ctx context.Context, cand *dedup.Candidate) (dedup.Decision, error) {
	for _, s := range cand.Incident.Sources {
		existing, err := e.deps.Store.FindBySourceURL(ctx, s.SourceURL)
		if err != nil {
			return dedup.Decision{}, err
		}
		if existing != nil {
			return dedup.Decision{
				Action: dedup.ActionMerge,
				Target: existing,
				Reason: "source url already attached",
			}, nil
		}
	}
	return e.deps.Matcher.Resolve(ctx, cand)
}

// commit re-checks under the lock, then applies the merge or create. The
// URL check wins over everything; a fresh Tier-1 pass catches rows created
// since the optimistic pass.
func (e *Engine) commit(ctx context.Context, tx TxStore, cand *dedup.Candidate, optimistic dedup.Decision) (*Result, error) {
	inc := cand.Incident

	for _, s := range inc.Sources {
		existing, err := tx.FindBySourceURL(ctx, s.SourceURL)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return e.merge(ctx, tx, existing.ID, inc, "", 0)
		}
	}

	target, _, _, err := dedup.Tier1(ctx, tx, inc, cand.Coarse)
	if err != nil {
		return nil, err
	}
	if target != nil {
		return e.merge(ctx, tx, target.ID, inc, "", 1)
	}

	if optimistic.Action == dedup.ActionMerge && optimistic.Target != nil {
		r, err := e.merge(ctx, tx, optimistic.Target.ID, inc, optimistic.MergedTitle, optimistic.Tier)
		if err == nil || !errors.Is(err, models.ErrNotFound) {
			return r, err
		}
		// Target vanished between passes; fall through to create.
		log.Printf("[Engine] Merge target %s disappeared, creating instead", optimistic.Target.ID)
	}

	return e.create(ctx, tx, cand)
}

func (e *Engine) merge(ctx context.Context, tx TxStore, targetID uuid.UUID, inc models.Incident, mergedTitle string, tier int) (*Result, error) {
	if err := tx.MergeIncident(ctx, targetID, inc.OccurredAt, inc.FirstSeenAt, inc.LastSeenAt, mergedTitle); err != nil {
		return nil, err
	}
	attached, err := tx.AttachSources(ctx, targetID, inc.Sources)
	if err != nil {
		return nil, err
	}
	metrics.AddSourcesAttached(attached)

	score, err := tx.EvidenceScore(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &Result{ID: targetID, Status: "merged", EvidenceScore: score, Tier: tier}, nil
}

func (e *Engine) create(ctx context.Context, tx TxStore, cand *dedup.Candidate) (*Result, error) {
	inc := cand.Incident
	id, err := tx.CreateIncident(ctx, inc)
	if err != nil {
		return nil, err
	}
	attached, err := tx.AttachSources(ctx, id, inc.Sources)
	if err != nil {
		return nil, err
	}
	metrics.AddSourcesAttached(attached)

	score, err := tx.EvidenceScore(ctx, id)
	if err != nil {
		return nil, err
	}
	if score != inc.EvidenceScore {
		log.Printf("[Engine] Evidence disagreement on %s: computed %d, trigger %d", id, inc.EvidenceScore, score)
	}

	if cand.Embedding != nil {
		if err := tx.InsertEmbedding(ctx, id, cand.Embedding, e.deps.EmbedModel); err != nil {
			return nil, err
		}
	}
	return &Result{ID: id, Status: "created", EvidenceScore: score, Tier: 0}, nil
}

func (e *Engine) observeDegradations(d dedup.Decision) {
	for _, f := range d.Flags {
		switch f {
		case "embed_unavailable":
			metrics.ObserveEmbedding("error")
		case "llm_unavailable":
			metrics.ObserveLLM("duplicate", "unavailable")
		}
	}
	if d.Tier == 3 {
		metrics.ObserveLLM("duplicate", "ok")
	}
}

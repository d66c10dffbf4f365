package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dronewatch/incident-engine/internal/embed"
	"github.com/dronewatch/incident-engine/internal/llm"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// Tier-2 thresholds on cosine similarity. At or above the high bar the
// match stands on its own; between the bars an adjudicator decides; below
// the low bar the candidate is new.
const (
	TauLow  = 0.80
	TauHigh = 0.92

	NeighborLimit        = 5
	NeighborRadiusMeters = 50_000
	NeighborWindow       = 48 * time.Hour
)

// Action is the final deduplication outcome.
type Action int

const (
	ActionCreate Action = iota
	ActionMerge
)

func (a Action) String() string {
	if a == ActionMerge {
		return "merge"
	}
	return "create"
}

// Candidate is an incoming report that survived validation. The matcher
// fills Embedding as a side effect so the write path can persist it without
// embedding twice. Coarse marks coordinates that came from a city-center
// gazetteer fallback rather than a precise pin; proximity alone is not
// merge evidence for those.
type Candidate struct {
	Incident  models.Incident
	Location  string // resolved place name for embedding text
	Coarse    bool
	Embedding []float32
}

// Decision says what to do with a candidate and why.
type Decision struct {
	Action      Action
	Target      *models.Incident // merge target when Action is ActionMerge
	Tier        int              // 1 fuzzy/spatial, 2 vector, 3 adjudicated; 0 none
	Score       float64          // similarity that decided
	Reason      string
	MergedTitle string   // adjudicator-proposed title, already hedging-checked
	Flags       []string // degradations encountered on the way
}

// Neighbor is one vector-search hit.
type Neighbor struct {
	Incident   models.Incident
	Similarity float64
}

// NeighborFilter bounds a vector search to plausibly-related incidents.
type NeighborFilter struct {
	Lat           float64
	Lon           float64
	RadiusMeters  float64
	Center        time.Time
	Window        time.Duration
	Country       string
	Limit         int
	MinSimilarity float64
}

// Tier1Store is the store surface the text tier needs. The write path
// re-runs Tier-1 under the fingerprint lock with a transaction-scoped
// implementation.
type Tier1Store interface {
	// RecentNearby returns incidents within radiusMeters of the point whose
	// occurred_at lies within ±window of center, ordered by occurred_at.
	RecentNearby(ctx context.Context, lat, lon, radiusMeters float64, center time.Time, window time.Duration) ([]models.Incident, error)
	// OldestSpatialMatch returns the earliest incident of the same asset
	// type within radiusMeters and ±window, or nil.
	OldestSpatialMatch(ctx context.Context, lat, lon, radiusMeters float64, assetType string, center time.Time, window time.Duration) (*models.Incident, error)
}

// CandidateStore is the full store surface the matcher queries.
type CandidateStore interface {
	Tier1Store
	// NearestNeighbors runs the filtered vector search, best first.
	NearestNeighbors(ctx context.Context, vec []float32, f NeighborFilter) ([]Neighbor, error)
}

// Adjudicator is the Tier-3 decision surface.
type Adjudicator interface {
	AdjudicateDuplicate(ctx context.Context, incoming, existing llm.IncidentSummary, tier2Score float64) (*llm.DuplicateVerdict, error)
}

// Matcher runs the three deduplication tiers in cost order. Embedder and
// adjudicator are optional; a missing or failing one degrades the pipeline
// to the cheaper tiers instead of failing the request.
type Matcher struct {
	store       CandidateStore
	embedder    embed.Embedder
	adjudicator Adjudicator
}

func NewMatcher(store CandidateStore, embedder embed.Embedder, adjudicator Adjudicator) *Matcher {
	return &Matcher{store: store, embedder: embedder, adjudicator: adjudicator}
}

// Resolve decides merge-or-create for a candidate. Store errors propagate;
// embedder and adjudicator failures degrade with a flag.
func (m *Matcher) Resolve(ctx context.Context, cand *Candidate) (Decision, error) {
	// Tier 1: cheap text match against recent neighbors, then the
	// asset-radius spatial fallback.
	if target, score, reason, err := Tier1(ctx, m.store, cand.Incident, cand.Coarse); err != nil {
		return Decision{}, err
	} else if target != nil {
		return Decision{
			Action: ActionMerge,
			Target: target,
			Tier:   1,
			Score:  score,
			Reason: reason,
		}, nil
	}

	// Tier 2: semantic neighbor search.
	if m.embedder == nil {
		return Decision{Action: ActionCreate, Reason: "no embedder configured"}, nil
	}

	var flags []string
	if cand.Embedding == nil {
		vec, err := m.embedder.Embed(ctx, embed.BuildText(
			cand.Incident.Title, cand.Location, cand.Incident.AssetType,
			cand.Incident.OccurredAt, cand.Incident.Narrative))
		if err != nil {
			log.Printf("[Dedup] Embedding failed, skipping vector tier: %v", err)
			return Decision{
				Action: ActionCreate,
				Reason: "embedding unavailable",
				Flags:  []string{"embed_unavailable"},
			}, nil
		}
		cand.Embedding = vec
	}

	neighbors, err := m.store.NearestNeighbors(ctx, cand.Embedding, NeighborFilter{
		Lat:           cand.Incident.Lat,
		Lon:           cand.Incident.Lon,
		RadiusMeters:  NeighborRadiusMeters,
		Center:        cand.Incident.OccurredAt,
		Window:        NeighborWindow,
		Country:       cand.Incident.Country,
		Limit:         NeighborLimit,
		MinSimilarity: TauLow,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("vector search: %w", err)
	}
	if len(neighbors) == 0 {
		return Decision{Action: ActionCreate, Reason: "no semantic neighbors", Flags: flags}, nil
	}

	best := neighbors[0]
	if best.Similarity >= TauHigh {
		return Decision{
			Action: ActionMerge,
			Target: &best.Incident,
			Tier:   2,
			Score:  best.Similarity,
			Reason: fmt.Sprintf("cosine %.3f above high threshold", best.Similarity),
			Flags:  flags,
		}, nil
	}

	// Tier 3: borderline, ask the adjudicator. Without one, borderline
	// means not a duplicate.
	if m.adjudicator == nil {
		return Decision{
			Action: ActionCreate,
			Score:  best.Similarity,
			Reason: fmt.Sprintf("cosine %.3f borderline, no adjudicator", best.Similarity),
			Flags:  flags,
		}, nil
	}

	verdict, err := m.adjudicator.AdjudicateDuplicate(ctx,
		summarize(cand.Incident, cand.Location),
		summarize(best.Incident, ""),
		best.Similarity)
	if err != nil {
		log.Printf("[Dedup] llm_unavailable, keeping vector-tier decision: %v", err)
		return Decision{
			Action: ActionCreate,
			Score:  best.Similarity,
			Reason: fmt.Sprintf("cosine %.3f borderline, adjudicator unavailable", best.Similarity),
			Flags:  append(flags, "llm_unavailable"),
		}, nil
	}

	if verdict.IsDuplicate && verdict.Confidence >= 0.80 {
		return Decision{
			Action:      ActionMerge,
			Target:      &best.Incident,
			Tier:        3,
			Score:       best.Similarity,
			Reason:      fmt.Sprintf("adjudicated duplicate (%.2f): %s", verdict.Confidence, verdict.Reasoning),
			MergedTitle: verdict.MergedTitle,
			Flags:       flags,
		}, nil
	}
	return Decision{
		Action: ActionCreate,
		Score:  best.Similarity,
		Reason: fmt.Sprintf("adjudicated unique (%.2f): %s", verdict.Confidence, verdict.Reasoning),
		Flags:  flags,
	}, nil
}

// Tier1 is the fuzzy-title pass over recent nearby incidents plus the
// asset-radius spatial fallback. A package function over the narrow store
// interface because the write path re-runs it under the fingerprint lock.
// Coarse coordinates skip the spatial fallback: every report defaulted to
// the same city-center point would otherwise cluster there.
func Tier1(ctx context.Context, store Tier1Store, inc models.Incident, coarse bool) (*models.Incident, float64, string, error) {
	recent, err := store.RecentNearby(ctx, inc.Lat, inc.Lon, Tier1RadiusMeters,
		inc.OccurredAt, Tier1WindowHours*time.Hour)
	if err != nil {
		return nil, 0, "", fmt.Errorf("recent nearby: %w", err)
	}
	for i := range recent {
		if sim := TitleSimilarity(inc.Title, recent[i].Title); sim >= FuzzyThreshold {
			return &recent[i], sim,
				fmt.Sprintf("title similarity %.3f within %dm/%dh", sim, Tier1RadiusMeters, Tier1WindowHours), nil
		}
	}
	if coarse {
		return nil, 0, "", nil
	}

	fallback, err := store.OldestSpatialMatch(ctx, inc.Lat, inc.Lon,
		MergeRadiusMeters(inc.AssetType), inc.AssetType, inc.OccurredAt, Tier1WindowHours*time.Hour)
	if err != nil {
		return nil, 0, "", fmt.Errorf("spatial fallback: %w", err)
	}
	if fallback != nil {
		return fallback, 0,
			fmt.Sprintf("same %s within %.0fm", inc.AssetType, MergeRadiusMeters(inc.AssetType)), nil
	}
	return nil, 0, "", nil
}

func summarize(inc models.Incident, location string) llm.IncidentSummary {
	return llm.IncidentSummary{
		Title:       inc.Title,
		OccurredAt:  inc.OccurredAt,
		Lat:         inc.Lat,
		Lon:         inc.Lon,
		Location:    location,
		AssetType:   inc.AssetType,
		Country:     inc.Country,
		Narrative:   inc.Narrative,
		SourceCount: len(inc.Sources),
	}
}

package shadow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dronewatch/incident-engine/internal/dedup"
)

// NeighborSearcher is the one store query the evaluator repeats: the
// filtered vector search, run with the candidate floor instead of the
// production one.
type NeighborSearcher interface {
	NearestNeighbors(ctx context.Context, vec []float32, f dedup.NeighborFilter) ([]dedup.Neighbor, error)
}

// Evaluator replays live deduplication decisions under an experimental
// threshold pair. Candidate thresholds never touch production incidents;
// every replay lands in dedup_shadow so a threshold change is argued from
// observed drift, not theory. Observations queue through a bounded channel
// and are processed off the request path.
type Evaluator struct {
	store   NeighborSearcher
	pool    *pgxpool.Pool // nil disables persistence, replays still log
	tauLow  float64
	tauHigh float64
	queue   chan observation
}

type observation struct {
	cand     dedup.Candidate
	decision dedup.Decision
}

// Observation is one production decision rebanded under shadow thresholds.
type Observation struct {
	CandidateHash    string
	MatchedIncident  *uuid.UUID
	Similarity       float64
	ProductionAction string
	ProductionTier   int
	ShadowAction     string
}

// DriftReport summarizes how often the shadow thresholds disagree with
// production over a window.
type DriftReport struct {
	TauLow           float64   `json:"tauLow"`
	TauHigh          float64   `json:"tauHigh"`
	Since            time.Time `json:"since"`
	Total            int       `json:"total"`
	Divergences      int       `json:"divergences"`
	DivergenceRate   float64   `json:"divergenceRate"`
	ShadowBorderline int       `json:"shadowBorderline"`
	AvgSimilarity    float64   `json:"avgSimilarity"`
}

// NewEvaluator validates the candidate pair and sizes the observation
// queue. The pool may be nil in degraded deployments.
func NewEvaluator(store NeighborSearcher, pool *pgxpool.Pool, tauLow, tauHigh float64) (*Evaluator, error) {
	if tauLow <= 0 || tauHigh >= 1 || tauLow >= tauHigh {
		return nil, fmt.Errorf("shadow thresholds must satisfy 0 < low < high < 1, got (%.3f, %.3f)", tauLow, tauHigh)
	}
	return &Evaluator{
		store:   store,
		pool:    pool,
		tauLow:  tauLow,
		tauHigh: tauHigh,
		queue:   make(chan observation, 256),
	}, nil
}

// Run drains the observation queue until the context ends.
func (e *Evaluator) Run(ctx context.Context) {
	log.Printf("[Shadow] Evaluating candidate thresholds (%.2f, %.2f) against production (%.2f, %.2f)",
		e.tauLow, e.tauHigh, dedup.TauLow, dedup.TauHigh)
	for {
		select {
		case <-ctx.Done():
			return
		case obs := <-e.queue:
			e.process(ctx, obs)
		}
	}
}

// Observe enqueues one decision for replay. Decisions without an embedding
// never reached the vector tier, so thresholds cannot reband them. Never
// blocks: when the queue is full the sample is dropped.
func (e *Evaluator) Observe(cand *dedup.Candidate, decision dedup.Decision) {
	if cand == nil || cand.Embedding == nil {
		return
	}
	select {
	case e.queue <- observation{cand: *cand, decision: decision}:
	default:
		log.Println("[Shadow] Observation queue full, dropping sample")
	}
}

func (e *Evaluator) process(ctx context.Context, obs observation) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := e.replay(cctx, obs)
	if err != nil {
		log.Printf("[Shadow] Replay failed: %v", err)
		return
	}
	if result.ShadowAction != result.ProductionAction {
		log.Printf("[Shadow] DIVERGENCE on %s: production=%s (tier %d) shadow=%s similarity=%.3f",
			result.CandidateHash, result.ProductionAction, result.ProductionTier,
			result.ShadowAction, result.Similarity)
	}
	if e.pool != nil {
		if err := e.persist(cctx, result); err != nil {
			log.Printf("[Shadow] Persist failed: %v", err)
		}
	}
}

// replay reruns the neighbor search with the candidate floor and bands the
// best hit under the shadow thresholds.
func (e *Evaluator) replay(ctx context.Context, obs observation) (*Observation, error) {
	inc := obs.cand.Incident
	neighbors, err := e.store.NearestNeighbors(ctx, obs.cand.Embedding, dedup.NeighborFilter{
		Lat:           inc.Lat,
		Lon:           inc.Lon,
		RadiusMeters:  dedup.NeighborRadiusMeters,
		Center:        inc.OccurredAt,
		Window:        dedup.NeighborWindow,
		Country:       inc.Country,
		Limit:         dedup.NeighborLimit,
		MinSimilarity: e.tauLow,
	})
	if err != nil {
		return nil, err
	}

	result := &Observation{
		CandidateHash:    candidateHash(inc.Title, inc.Lat, inc.Lon, inc.OccurredAt),
		ProductionAction: obs.decision.Action.String(),
		ProductionTier:   obs.decision.Tier,
		ShadowAction:     "create",
	}
	if len(neighbors) > 0 {
		result.Similarity = neighbors[0].Similarity
		id := neighbors[0].Incident.ID
		result.MatchedIncident = &id
		result.ShadowAction = e.band(result.Similarity)
	}
	return result, nil
}

// band places a similarity into merge, borderline or create. Borderline is
// reported as-is: the replay never spends LLM calls on experiments.
func (e *Evaluator) band(similarity float64) string {
	switch {
	case similarity >= e.tauHigh:
		return "merge"
	case similarity >= e.tauLow:
		return "borderline"
	default:
		return "create"
	}
}

func (e *Evaluator) persist(ctx context.Context, o *Observation) error {
	sql := `INSERT INTO dedup_shadow
		(candidate_hash, matched_incident, similarity, production_action,
		 shadow_action, production_tier, shadow_tau_low, shadow_tau_high)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := e.pool.Exec(ctx, sql,
		o.CandidateHash,
		o.MatchedIncident,
		o.Similarity,
		o.ProductionAction,
		o.ShadowAction,
		o.ProductionTier,
		e.tauLow,
		e.tauHigh,
	)
	return err
}

// DriftReport aggregates the stored observations for this threshold pair
// since the given instant.
func (e *Evaluator) DriftReport(ctx context.Context, since time.Time) (*DriftReport, error) {
	if e.pool == nil {
		return nil, fmt.Errorf("shadow persistence is disabled")
	}
	sql := `SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE production_action <> shadow_action) AS divergences,
			COUNT(*) FILTER (WHERE shadow_action = 'borderline') AS borderline,
			COALESCE(AVG(similarity), 0) AS avg_similarity
		FROM dedup_shadow
		WHERE shadow_tau_low = $1 AND shadow_tau_high = $2 AND created_at >= $3`

	report := &DriftReport{TauLow: e.tauLow, TauHigh: e.tauHigh, Since: since}
	row := e.pool.QueryRow(ctx, sql, e.tauLow, e.tauHigh, since)
	if err := row.Scan(&report.Total, &report.Divergences, &report.ShadowBorderline, &report.AvgSimilarity); err != nil {
		return nil, fmt.Errorf("drift report: %v", err)
	}
	if report.Total > 0 {
		report.DivergenceRate = float64(report.Divergences) / float64(report.Total)
	}
	return report, nil
}

func candidateHash(title string, lat, lon float64, occurred time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%.4f|%.4f|%s",
		title, lat, lon, occurred.UTC().Format(time.RFC3339))))
	return hex.EncodeToString(sum[:8])
}

package shadow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/internal/dedup"
	"github.com/dronewatch/incident-engine/pkg/models"
)

type fakeSearcher struct {
	mu        sync.Mutex
	neighbors []dedup.Neighbor
	err       error
	filters   []dedup.NeighborFilter
}

func (f *fakeSearcher) NearestNeighbors(_ context.Context, _ []float32, filter dedup.NeighborFilter) ([]dedup.Neighbor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

func (f *fakeSearcher) calls() []dedup.NeighborFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]dedup.NeighborFilter, len(f.filters))
	copy(out, f.filters)
	return out
}

type fakeResolver struct {
	decision dedup.Decision
	err      error
	calls    int
}

func (f *fakeResolver) Resolve(_ context.Context, _ *dedup.Candidate) (dedup.Decision, error) {
	f.calls++
	if f.err != nil {
		return dedup.Decision{}, f.err
	}
	return f.decision, nil
}

func testCandidate() *dedup.Candidate {
	return &dedup.Candidate{
		Incident: models.Incident{
			Title:      "Drone spotted near Copenhagen Airport",
			Lat:        55.6181,
			Lon:        12.6508,
			Country:    "DK",
			OccurredAt: time.Date(2025, 10, 2, 14, 30, 0, 0, time.UTC),
		},
		Location:  "Copenhagen Airport",
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func newTestEvaluator(t *testing.T, store NeighborSearcher) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(store, nil, 0.75, 0.90)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return e
}

func TestNewEvaluatorRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name      string
		low, high float64
	}{
		{"zero low", 0, 0.9},
		{"high at one", 0.8, 1.0},
		{"inverted", 0.9, 0.8},
		{"equal", 0.85, 0.85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEvaluator(&fakeSearcher{}, nil, tc.low, tc.high); err == nil {
				t.Errorf("NewEvaluator(%.2f, %.2f) accepted an invalid pair", tc.low, tc.high)
			}
		})
	}
}

func TestBandPlacesSimilarities(t *testing.T) {
	e := newTestEvaluator(t, &fakeSearcher{})
	cases := []struct {
		similarity float64
		want       string
	}{
		{0.95, "merge"},
		{0.90, "merge"},
		{0.80, "borderline"},
		{0.75, "borderline"},
		{0.60, "create"},
	}
	for _, tc := range cases {
		if got := e.band(tc.similarity); got != tc.want {
			t.Errorf("band(%.2f) = %q, want %q", tc.similarity, got, tc.want)
		}
	}
}

func TestObserveSkipsCandidatesWithoutEmbedding(t *testing.T) {
	e := newTestEvaluator(t, &fakeSearcher{})

	cand := testCandidate()
	cand.Embedding = nil
	e.Observe(cand, dedup.Decision{Action: dedup.ActionCreate})
	if len(e.queue) != 0 {
		t.Fatalf("embedding-less candidate was queued")
	}

	e.Observe(testCandidate(), dedup.Decision{Action: dedup.ActionCreate})
	if len(e.queue) != 1 {
		t.Fatalf("expected one queued observation, got %d", len(e.queue))
	}
}

func TestObserveDropsWhenQueueIsFull(t *testing.T) {
	e := newTestEvaluator(t, &fakeSearcher{})
	for i := 0; i < cap(e.queue)+10; i++ {
		e.Observe(testCandidate(), dedup.Decision{Action: dedup.ActionCreate})
	}
	if len(e.queue) != cap(e.queue) {
		t.Fatalf("queue length %d, want %d", len(e.queue), cap(e.queue))
	}
}

func TestReplayBandsBestNeighbor(t *testing.T) {
	existing := models.Incident{ID: uuid.New(), Title: "Drone closes Copenhagen Airport"}
	store := &fakeSearcher{neighbors: []dedup.Neighbor{
		{Incident: existing, Similarity: 0.85},
		{Incident: models.Incident{Title: "Harbor overflight"}, Similarity: 0.76},
	}}
	e := newTestEvaluator(t, store)

	cand := testCandidate()
	result, err := e.replay(context.Background(), observation{
		cand:     *cand,
		decision: dedup.Decision{Action: dedup.ActionCreate},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if result.ShadowAction != "borderline" {
		t.Errorf("shadow action = %q, want borderline", result.ShadowAction)
	}
	if result.ProductionAction != "create" {
		t.Errorf("production action = %q, want create", result.ProductionAction)
	}
	if result.Similarity != 0.85 {
		t.Errorf("similarity = %.2f, want 0.85", result.Similarity)
	}
	if result.MatchedIncident == nil || *result.MatchedIncident != existing.ID {
		t.Errorf("matched incident = %v, want %s", result.MatchedIncident, existing.ID)
	}
	if result.CandidateHash == "" {
		t.Error("candidate hash is empty")
	}

	filters := store.calls()
	if len(filters) != 1 {
		t.Fatalf("expected one neighbor search, got %d", len(filters))
	}
	f := filters[0]
	if f.MinSimilarity != 0.75 {
		t.Errorf("search floor = %.2f, want the shadow low threshold 0.75", f.MinSimilarity)
	}
	if f.RadiusMeters != dedup.NeighborRadiusMeters || f.Limit != dedup.NeighborLimit || f.Window != dedup.NeighborWindow {
		t.Errorf("search filter %+v does not match production bounds", f)
	}
	if f.Country != "DK" {
		t.Errorf("search country = %q, want DK", f.Country)
	}
}

func TestReplayDefaultsToCreateWithoutNeighbors(t *testing.T) {
	e := newTestEvaluator(t, &fakeSearcher{})

	result, err := e.replay(context.Background(), observation{
		cand:     *testCandidate(),
		decision: dedup.Decision{Action: dedup.ActionMerge, Tier: 2, Score: 0.93},
	})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if result.ShadowAction != "create" {
		t.Errorf("shadow action = %q, want create", result.ShadowAction)
	}
	if result.ProductionAction != "merge" || result.ProductionTier != 2 {
		t.Errorf("production side = %s/%d, want merge/2", result.ProductionAction, result.ProductionTier)
	}
	if result.MatchedIncident != nil {
		t.Errorf("matched incident = %v, want nil", result.MatchedIncident)
	}
}

func TestWrapMatcherMirrorsDecisions(t *testing.T) {
	eval := newTestEvaluator(t, &fakeSearcher{})
	target := models.Incident{Title: "Existing"}
	inner := &fakeResolver{decision: dedup.Decision{Action: dedup.ActionMerge, Target: &target, Tier: 2}}
	m := WrapMatcher(inner, eval)

	decision, err := m.Resolve(context.Background(), testCandidate())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if decision.Action != dedup.ActionMerge || decision.Target != &target {
		t.Errorf("decorator altered the decision: %+v", decision)
	}
	if inner.calls != 1 {
		t.Errorf("inner matcher called %d times, want 1", inner.calls)
	}
	if len(eval.queue) != 1 {
		t.Errorf("expected one queued observation, got %d", len(eval.queue))
	}
}

func TestWrapMatcherPropagatesErrors(t *testing.T) {
	eval := newTestEvaluator(t, &fakeSearcher{})
	inner := &fakeResolver{err: errors.New("store down")}
	m := WrapMatcher(inner, eval)

	if _, err := m.Resolve(context.Background(), testCandidate()); err == nil {
		t.Fatal("expected the inner error to propagate")
	}
	if len(eval.queue) != 0 {
		t.Errorf("failed resolution was observed, queue has %d entries", len(eval.queue))
	}
}

func TestRunReplaysQueuedObservations(t *testing.T) {
	store := &fakeSearcher{}
	e := newTestEvaluator(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	e.Observe(testCandidate(), dedup.Decision{Action: dedup.ActionCreate})

	deadline := time.Now().Add(2 * time.Second)
	for len(store.calls()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("worker never replayed the observation")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDriftReportRequiresPersistence(t *testing.T) {
	e := newTestEvaluator(t, &fakeSearcher{})
	if _, err := e.DriftReport(context.Background(), time.Now().Add(-24*time.Hour)); err == nil {
		t.Fatal("expected an error when persistence is disabled")
	}
}

func TestCandidateHashIsStable(t *testing.T) {
	occurred := time.Date(2025, 10, 2, 14, 30, 0, 0, time.UTC)
	a := candidateHash("Drone at CPH", 55.6181, 12.6508, occurred)
	b := candidateHash("Drone at CPH", 55.6181, 12.6508, occurred)
	if a != b {
		t.Errorf("hash is not deterministic: %s vs %s", a, b)
	}
	if c := candidateHash("Drone at AAL", 57.0928, 9.8492, occurred); c == a {
		t.Error("distinct candidates produced the same hash")
	}
}

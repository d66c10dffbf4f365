package llm

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

var (
	occurredA = time.Date(2025, 10, 2, 14, 30, 0, 0, time.UTC)

	kastrupA = IncidentSummary{
		Title: "Drone at CPH", OccurredAt: occurredA,
		Lat: 55.6181, Lon: 12.6508, Location: "Copenhagen Airport",
		AssetType: "airport", Country: "DK", SourceCount: 1,
	}
	kastrupB = IncidentSummary{
		Title: "Drone closes Copenhagen Airport", OccurredAt: occurredA.Add(time.Hour),
		Lat: 55.6190, Lon: 12.6490, Location: "Copenhagen Airport",
		AssetType: "airport", Country: "DK", SourceCount: 2,
	}
	arlanda = IncidentSummary{
		Title: "Drone over Arlanda", OccurredAt: occurredA.Add(48 * time.Hour),
		Lat: 59.6498, Lon: 17.9238, Location: "Stockholm Arlanda Airport",
		AssetType: "airport", Country: "SE", SourceCount: 1,
	}
)

func newTestAdjudicator(fake *fakeCompleter) *Adjudicator {
	return NewAdjudicator(fake, NewMemoryCache())
}

func TestAdjudicateDuplicateParsesCleanResponse(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: DUPLICATE
CONFIDENCE: 0.99
REASONING: Same airport, same evening.
MERGED_TITLE: Drone closes Copenhagen Airport`}

	got, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDuplicate {
		t.Error("verdict = unique, want duplicate")
	}
	if math.Abs(got.Confidence-0.95) > 1e-9 {
		t.Errorf("confidence = %f, want capped at 0.95", got.Confidence)
	}
	if got.MergedTitle != "Drone closes Copenhagen Airport" {
		t.Errorf("merged title = %q", got.MergedTitle)
	}
	if got.Reasoning != "Same airport, same evening." {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}

func TestAdjudicateDuplicateTolerantParsing(t *testing.T) {
	fake := &fakeCompleter{response: `Here is my analysis:

**verdict**: duplicate
**confidence** = 0.9
**reasoning**: same event reported twice.`}

	got, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDuplicate {
		t.Error("lowercase markdown response not parsed")
	}
	if math.Abs(got.Confidence-0.9) > 1e-9 {
		t.Errorf("confidence = %f, want 0.9", got.Confidence)
	}
}

func TestAdjudicateDuplicateMissingFieldsDefault(t *testing.T) {
	fake := &fakeCompleter{response: "I am not able to follow the requested format."}

	got, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsDuplicate {
		t.Error("missing verdict must default to unique")
	}
	if math.Abs(got.Confidence-0.5) > 1e-9 {
		t.Errorf("confidence = %f, want default 0.5", got.Confidence)
	}
}

func TestAdjudicateDuplicateOverridesImpossibleMatch(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: DUPLICATE
CONFIDENCE: 0.9
REASONING: Both mention airports.`}

	// 500+ km and 48 h apart: the claim contradicts the precomputed rule.
	got, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, arlanda, 0.82)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsDuplicate {
		t.Error("physically impossible duplicate claim not overridden")
	}
	if !strings.HasPrefix(got.Reasoning, "overridden:") {
		t.Errorf("reasoning = %q, want override note", got.Reasoning)
	}
}

func TestAdjudicateDuplicateDiscardsHedgedTitle(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: DUPLICATE
CONFIDENCE: 0.9
REASONING: Same event.
MERGED_TITLE: This is probably the same drone incident, I think`}

	got, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDuplicate {
		t.Fatal("verdict = unique, want duplicate")
	}
	if got.MergedTitle != "" {
		t.Errorf("hedged title kept: %q", got.MergedTitle)
	}
}

func TestAdjudicateDuplicateUsesCache(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: UNIQUE
CONFIDENCE: 0.9
REASONING: Different nights.`}
	a := newTestAdjudicator(fake)

	for i := 0; i < 3; i++ {
		if _, err := a.AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85); err != nil {
			t.Fatal(err)
		}
	}
	if fake.calls != 1 {
		t.Errorf("completer called %d times, want 1 (cache)", fake.calls)
	}
}

func TestAdjudicateDuplicatePropagatesUnavailability(t *testing.T) {
	fake := &fakeCompleter{err: ErrUnavailable}

	_, err := newTestAdjudicator(fake).AdjudicateDuplicate(context.Background(), kastrupA, kastrupB, 0.85)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestClassifyIncident(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: INCIDENT
CONFIDENCE: 0.85
CATEGORY: incident
REASONING: Police confirmed the sighting.`}

	got, err := newTestAdjudicator(fake).ClassifyIncident(context.Background(), "Drone at CPH", "Politiet bekræfter.")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsIncident {
		t.Error("verdict = not incident")
	}
	if got.Category != "incident" {
		t.Errorf("category = %q", got.Category)
	}
	if math.Abs(got.Confidence-0.85) > 1e-9 {
		t.Errorf("confidence = %f, want 0.85", got.Confidence)
	}
}

func TestClassifyIncidentNotIncident(t *testing.T) {
	fake := &fakeCompleter{response: `VERDICT: NOT_INCIDENT
CONFIDENCE: 0.8
CATEGORY: policy
REASONING: Announcement of a drone ban.`}

	got, err := newTestAdjudicator(fake).ClassifyIncident(context.Background(), "Drone ban announced", "")
	if err != nil {
		t.Fatal(err)
	}
	if got.IsIncident {
		t.Error("policy text classified as incident")
	}
	if got.Category != "policy" {
		t.Errorf("category = %q, want policy", got.Category)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate_limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server_error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad_request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"unauthorized", &openai.APIError{HTTPStatusCode: 401}, false},
		{"plain_error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Errorf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

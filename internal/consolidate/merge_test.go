package consolidate

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/pkg/models"
)

var (
	t0 = time.Date(2025, 10, 2, 14, 30, 0, 0, time.UTC)
	t1 = t0.Add(2 * time.Hour)
	t2 = t0.Add(5 * time.Hour)
)

func mediaSource(url string, trust int) models.IncidentSource {
	return models.IncidentSource{
		SourceURL:   url,
		SourceType:  models.SourceMedia,
		TrustWeight: trust,
	}
}

func TestEvidenceScoreLadder(t *testing.T) {
	tests := []struct {
		name      string
		sources   []models.IncidentSource
		narrative string
		want      int
	}{
		{
			name:    "official_by_type",
			sources: []models.IncidentSource{{SourceURL: "https://politi.dk/a1", SourceType: models.SourcePolice, TrustWeight: 4}},
			want:    models.EvidenceOfficial,
		},
		{
			name:    "official_by_trust_weight",
			sources: []models.IncidentSource{mediaSource("https://dr.dk/a", 4)},
			want:    models.EvidenceOfficial,
		},
		{
			name:    "notam_is_official_even_at_low_trust",
			sources: []models.IncidentSource{{SourceURL: "https://notam.example/n1", SourceType: models.SourceNotam, TrustWeight: 2}},
			want:    models.EvidenceOfficial,
		},
		{
			name:      "verified_two_media_with_attribution",
			sources:   []models.IncidentSource{mediaSource("https://dr.dk/a", 3), mediaSource("https://tv2.dk/b", 2)},
			narrative: "Politiet bekræfter dronerne over lufthavnen.",
			want:      models.EvidenceVerified,
		},
		{
			name:      "two_media_without_attribution_stay_reported",
			sources:   []models.IncidentSource{mediaSource("https://dr.dk/a", 3), mediaSource("https://tv2.dk/b", 2)},
			narrative: "Witnesses describe lights over the runway.",
			want:      models.EvidenceReported,
		},
		{
			name:      "one_media_with_attribution_stays_reported",
			sources:   []models.IncidentSource{mediaSource("https://dr.dk/a", 3)},
			narrative: "Politiet bekræfter observationen.",
			want:      models.EvidenceReported,
		},
		{
			name:    "single_low_trust_social",
			sources: []models.IncidentSource{{SourceURL: "https://x.com/p/1", SourceType: models.SourceSocial, TrustWeight: 1}},
			want:    models.EvidenceUnconfirmed,
		},
		{
			name: "no_sources",
			want: models.EvidenceUnconfirmed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvidenceScore(tt.sources, tt.narrative); got != tt.want {
				t.Errorf("EvidenceScore() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMergeWidensTimeRangeAndPicksRichestText(t *testing.T) {
	existing := models.Incident{
		ID:          uuid.New(),
		Title:       "Drone at CPH",
		Narrative:   "Short note.",
		OccurredAt:  t1,
		FirstSeenAt: t1,
		LastSeenAt:  t1,
		Lat:         55.6181,
		Lon:         12.6508,
		Sources:     []models.IncidentSource{mediaSource("https://dr.dk/a", 3)},
	}
	incoming := models.Incident{
		Title:       "Drone closes Copenhagen Airport for two hours",
		Narrative:   "A much longer narrative describing the closure in detail.",
		OccurredAt:  t0,
		FirstSeenAt: t0,
		LastSeenAt:  t2,
		Lat:         55.6190,
		Lon:         12.6490,
		Sources:     []models.IncidentSource{mediaSource("https://tv2.dk/b", 2)},
	}

	got := Merge([]models.Incident{existing, incoming})

	if got.ID != existing.ID {
		t.Error("merge must keep the surviving row's identity")
	}
	if got.Lat != existing.Lat || got.Lon != existing.Lon {
		t.Error("merge must keep the surviving row's coordinates")
	}
	if !got.OccurredAt.Equal(t0) {
		t.Errorf("occurred_at = %v, want %v", got.OccurredAt, t0)
	}
	if !got.FirstSeenAt.Equal(t0) || !got.LastSeenAt.Equal(t2) {
		t.Errorf("seen range = [%v, %v], want [%v, %v]", got.FirstSeenAt, got.LastSeenAt, t0, t2)
	}
	if got.Title != incoming.Title {
		t.Errorf("title = %q, want the longer one", got.Title)
	}
	if got.Narrative != incoming.Narrative {
		t.Errorf("narrative = %q, want the longer one", got.Narrative)
	}
	if len(got.Sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(got.Sources))
	}
	if got.Sources[0].SourceURL != "https://dr.dk/a" {
		t.Errorf("sources not ordered by URL: %q first", got.Sources[0].SourceURL)
	}
}

func TestMergeDeduplicatesSourcesByURL(t *testing.T) {
	a := models.Incident{
		OccurredAt: t0, FirstSeenAt: t0, LastSeenAt: t0,
		Sources: []models.IncidentSource{mediaSource("https://dr.dk/a", 3)},
	}
	b := models.Incident{
		OccurredAt: t1, FirstSeenAt: t1, LastSeenAt: t1,
		Sources: []models.IncidentSource{mediaSource("https://dr.dk/a", 3)},
	}

	got := Merge([]models.Incident{a, b})
	if len(got.Sources) != 1 {
		t.Fatalf("sources = %d, want 1 after URL dedup", len(got.Sources))
	}
}

func TestMergeTextSelectionIsOrderIndependent(t *testing.T) {
	a := models.Incident{
		Title: "Drone over harbor", Narrative: "One.",
		OccurredAt: t0, FirstSeenAt: t0, LastSeenAt: t0,
		Sources: []models.IncidentSource{mediaSource("https://dr.dk/a", 3)},
	}
	b := models.Incident{
		Title: "Drone sighted over Aarhus harbor area", Narrative: "Two, and longer.",
		OccurredAt: t1, FirstSeenAt: t1, LastSeenAt: t1,
		Sources: []models.IncidentSource{mediaSource("https://tv2.dk/b", 2)},
	}

	ab := Merge([]models.Incident{a, b})
	ba := Merge([]models.Incident{b, a})

	if ab.Title != ba.Title || ab.Narrative != ba.Narrative {
		t.Errorf("text selection depends on order: (%q, %q) vs (%q, %q)",
			ab.Title, ab.Narrative, ba.Title, ba.Narrative)
	}
	if !ab.OccurredAt.Equal(ba.OccurredAt) || !ab.LastSeenAt.Equal(ba.LastSeenAt) {
		t.Error("time range depends on order")
	}
	if !reflect.DeepEqual(ab.Sources, ba.Sources) {
		t.Error("source union depends on order")
	}
	if ab.EvidenceScore != ba.EvidenceScore {
		t.Error("evidence score depends on order")
	}
}

func TestFingerprintBuckets(t *testing.T) {
	// Same bucket: a few hundred meters and two hours apart.
	fpA := Fingerprint(55.618, 12.648, t0, "DK", "airport")
	fpB := Fingerprint(55.620, 12.649, t0.Add(2*time.Hour), "dk", "airport")
	if fpA != fpB {
		t.Errorf("nearby sightings landed in different buckets:\n%s\n%s", fpA, fpB)
	}

	// Different asset type means a different identity.
	if fpA == Fingerprint(55.618, 12.648, t0, "DK", "harbor") {
		t.Error("asset type not part of the fingerprint")
	}

	// Far enough apart in time.
	if fpA == Fingerprint(55.618, 12.648, t0.Add(48*time.Hour), "DK", "airport") {
		t.Error("time bucket not part of the fingerprint")
	}
}

func TestLockKeyIsStable(t *testing.T) {
	fp := Fingerprint(55.618, 12.648, t0, "DK", "airport")
	if LockKey(fp) != LockKey(fp) {
		t.Error("lock key not deterministic")
	}
	if LockKey(fp) == LockKey(fp+"x") {
		t.Error("distinct fingerprints collided (astronomically unlikely)")
	}
}

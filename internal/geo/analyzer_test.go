package geo

import (
	"math"
	"testing"

	"github.com/dronewatch/incident-engine/internal/gazetteer"
)

func f64(v float64) *float64 { return &v }

func newTestAnalyzer(t *testing.T, scope Scope) *Analyzer {
	t.Helper()
	return NewAnalyzer(scope, gazetteer.New(""))
}

func TestAnalyzeRejectsForeignIncident(t *testing.T) {
	a := newTestAnalyzer(t, EuropeanScope())

	// In-bounds coordinates do not save a report whose text places the
	// incident abroad.
	got := a.Analyze("Russian drones hit Kyiv", "", f64(55.67), f64(12.57))
	if got.InScope {
		t.Fatal("foreign incident passed the geographic gate")
	}
	if got.Category != "foreign" {
		t.Errorf("category = %q, want foreign", got.Category)
	}
	if len(got.Flags) != 1 || got.Flags[0] != "foreign_incident" {
		t.Errorf("flags = %v, want [foreign_incident]", got.Flags)
	}
}

func TestAnalyzeMissingCoords(t *testing.T) {
	a := newTestAnalyzer(t, EuropeanScope())

	got := a.Analyze("Drone over the fjord", "", nil, nil)
	if got.InScope {
		t.Fatal("report without coordinates passed")
	}
	if got.Category != "missing_coords" {
		t.Errorf("category = %q, want missing_coords", got.Category)
	}
}

func TestAnalyzeCoordsOutsideRegion(t *testing.T) {
	a := newTestAnalyzer(t, EuropeanScope())

	got := a.Analyze("Drone at the airport", "", f64(40.7128), f64(-74.0060))
	if got.InScope {
		t.Fatal("New York coordinates passed the European bounds check")
	}
	if got.Category != "coords_outside_region" {
		t.Errorf("category = %q, want coords_outside_region", got.Category)
	}
}

func TestAnalyzeScoresInScopeReport(t *testing.T) {
	a := newTestAnalyzer(t, EuropeanScope())

	got := a.Analyze(
		"Drone closes Copenhagen Airport",
		"Politiet confirms several drones over the runway.",
		f64(55.6181), f64(12.6508),
	)
	if !got.InScope {
		t.Fatalf("in-scope report rejected: %s", got.Reason)
	}
	// base 0.5 + one place token (copenhagen) + official vocabulary.
	if math.Abs(got.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %.2f, want 0.80", got.Confidence)
	}
}

func TestAnalyzeForeignWithLocalContext(t *testing.T) {
	a := newTestAnalyzer(t, EuropeanScope())

	// Commentary on a foreign event is not hard-rejected, but without
	// strong local anchoring it does not clear the threshold either.
	weak := a.Analyze(
		"Danish minister comments on drone attack on Kyiv",
		"",
		f64(55.67), f64(12.57),
	)
	if weak.InScope {
		t.Fatal("foreign commentary without local anchoring passed")
	}
	if weak.Category != "low_geo_confidence" {
		t.Errorf("category = %q, want low_geo_confidence", weak.Category)
	}
	if !hasFlag(weak.Flags, "foreign_with_nordic_context") {
		t.Errorf("flags = %v, missing foreign_with_nordic_context", weak.Flags)
	}

	// The same foreign mention survives when the report is anchored to
	// in-scope places and official sources.
	strong := a.Analyze(
		"Drones over Copenhagen and Billund, politiet confirms",
		"Minister cites the Kyiv attacks in a statement.",
		f64(55.6181), f64(12.6508),
	)
	if !strong.InScope {
		t.Fatalf("anchored report rejected: %s (confidence %.2f)", strong.Reason, strong.Confidence)
	}
	if !hasFlag(strong.Flags, "foreign_with_nordic_context") {
		t.Errorf("flags = %v, missing foreign_with_nordic_context", strong.Flags)
	}
}

func TestNordicScopeTreatsRestOfEuropeAsForeign(t *testing.T) {
	nordic := newTestAnalyzer(t, NordicScope())
	european := newTestAnalyzer(t, EuropeanScope())

	title := "Drones reported near Berlin"

	if got := nordic.Analyze(title, "", f64(55.6), f64(12.6)); got.InScope {
		t.Error("Berlin incident passed the Nordic scope")
	}
	if got := european.Analyze(title, "", f64(55.6), f64(12.6)); !got.InScope {
		t.Errorf("Berlin mention rejected under European scope: %s", got.Reason)
	}
}

func TestScopeBounds(t *testing.T) {
	tests := []struct {
		scope Scope
		lat   float64
		lon   float64
		want  bool
	}{
		{EuropeanScope(), 55.6181, 12.6508, true},
		{EuropeanScope(), 34.9, 12.0, false},
		{EuropeanScope(), 55.0, 32.0, false},
		{NordicScope(), 55.6181, 12.6508, true},
		{NordicScope(), 52.52, 13.40, false}, // Berlin
	}

	for _, tt := range tests {
		if got := tt.scope.Contains(tt.lat, tt.lon); got != tt.want {
			t.Errorf("%s.Contains(%.4f, %.4f) = %v, want %v",
				tt.scope.Name, tt.lat, tt.lon, got, tt.want)
		}
	}
}

func TestScopeByName(t *testing.T) {
	if s, err := ScopeByName(""); err != nil || s.Name != "european" {
		t.Errorf("ScopeByName(\"\") = %q, %v; want european scope", s.Name, err)
	}
	if s, err := ScopeByName("nordic"); err != nil || s.Name != "nordic" {
		t.Errorf("ScopeByName(nordic) = %q, %v", s.Name, err)
	}
	if _, err := ScopeByName("atlantic"); err == nil {
		t.Error("ScopeByName(atlantic) did not fail")
	}
}

func TestHaversineMeters(t *testing.T) {
	// Copenhagen Airport to the city center is roughly 8.2 km.
	d := HaversineMeters(55.6181, 12.6508, 55.6761, 12.5683)
	if d < 7800 || d > 8800 {
		t.Errorf("Kastrup to Copenhagen center = %.0f m, want ~8200", d)
	}

	if d := HaversineMeters(55.6181, 12.6508, 55.6181, 12.6508); d != 0 {
		t.Errorf("zero distance = %f", d)
	}

	ab := HaversineMeters(55.6181, 12.6508, 59.6498, 17.9238)
	ba := HaversineMeters(59.6498, 17.9238, 55.6181, 12.6508)
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("distance not symmetric: %f vs %f", ab, ba)
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

package embed

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Embedder turns incident text into a semantic vector. Implementations must
// return vectors of exactly Dimensions() length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// assetExpansion pads the asset type with synonyms so semantically close
// phrasings ("airfield", "aerodrome") land near each other in vector space.
var assetExpansion = map[string]string{
	"airport":    "airport aerodrome airfield",
	"military":   "military base airbase installation",
	"harbor":     "harbor port dock",
	"powerplant": "power plant energy facility",
	"bridge":     "bridge crossing",
	"other":      "site area",
}

const narrativeBudget = 200 // code points of narrative in the embedding text

// BuildText assembles the canonical embedding input: labeled fields joined
// with pipes, so the same incident reported twice produces near-identical
// strings regardless of article framing.
func BuildText(title, location, assetType string, occurred time.Time, narrative string) string {
	expanded, ok := assetExpansion[assetType]
	if !ok {
		expanded = assetType
	}

	details := narrative
	if runes := []rune(narrative); len(runes) > narrativeBudget {
		details = string(runes[:narrativeBudget]) + "…"
	}

	parts := []string{
		"Event: " + title,
		"Location: " + location,
		"Type: " + expanded,
		"Date: " + occurred.UTC().Format("2006-01-02"),
	}
	if details != "" {
		parts = append(parts, "Details: "+details)
	}
	return strings.Join(parts, " | ")
}

// CosineSimilarity returns the cosine of the angle between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ValidateDimensions rejects vectors that do not match the store schema.
func ValidateDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), want)
	}
	return nil
}

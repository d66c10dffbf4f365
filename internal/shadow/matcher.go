package shadow

import (
	"context"

	"github.com/dronewatch/incident-engine/internal/dedup"
)

// Resolver is the decision step the decorator wraps. It matches the
// ingestion engine's matcher seam without importing it.
type Resolver interface {
	Resolve(ctx context.Context, cand *dedup.Candidate) (dedup.Decision, error)
}

// Matcher forwards every resolution to the wrapped matcher and mirrors
// successful decisions into the shadow evaluator.
type Matcher struct {
	inner Resolver
	eval  *Evaluator
}

// WrapMatcher layers shadow observation over a production matcher.
func WrapMatcher(inner Resolver, eval *Evaluator) *Matcher {
	return &Matcher{inner: inner, eval: eval}
}

func (m *Matcher) Resolve(ctx context.Context, cand *dedup.Candidate) (dedup.Decision, error) {
	decision, err := m.inner.Resolve(ctx, cand)
	if err != nil {
		return decision, err
	}
	m.eval.Observe(cand, decision)
	return decision, nil
}

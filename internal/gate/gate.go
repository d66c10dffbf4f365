package gate

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// futureGrace absorbs clock skew and timezone sloppiness in upstream feeds.
const futureGrace = 24 * time.Hour

// Rejection names why a report was turned away at the gate.
type Rejection struct {
	Category string
	Detail   string
}

func (r *Rejection) Error() string {
	return r.Category + ": " + r.Detail
}

// Gate is the cheap pre-classifier filter: no database, no network. It
// rejects satire sources and reports outside the temporal window, which
// together account for the majority of discarded candidates.
type Gate struct {
	maxAge time.Duration
	nowFn  func() time.Time
}

// New builds a gate that accepts reports up to maxAgeDays old.
func New(maxAgeDays int) *Gate {
	return &Gate{
		maxAge: time.Duration(maxAgeDays) * 24 * time.Hour,
		nowFn:  time.Now,
	}
}

// WithNow fixes the clock. Tests only.
func (g *Gate) WithNow(now func() time.Time) *Gate {
	g.nowFn = now
	return g
}

// CheckSatire rejects when any source URL belongs to a known satire outlet.
// Subdomains count: satire on a CDN host is still satire.
func (g *Gate) CheckSatire(sourceURLs []string) *Rejection {
	for _, raw := range sourceURLs {
		host := hostOf(raw)
		if host == "" {
			continue
		}
		for _, domain := range satireDomains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return &Rejection{
					Category: "satire_domain",
					Detail:   fmt.Sprintf("source host %s is a known satire outlet", host),
				}
			}
		}
	}
	return nil
}

// occurredLayouts are tried in order. Feeds are inconsistent about
// fractional seconds and zone designators; times without a zone are read
// as UTC.
var occurredLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseOccurred turns the wire timestamp into a UTC instant.
func ParseOccurred(value string) (time.Time, *Rejection) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &Rejection{Category: "invalid_date", Detail: "occurred_at is empty"}
	}
	for _, layout := range occurredLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, &Rejection{
		Category: "invalid_date",
		Detail:   fmt.Sprintf("occurred_at %q is not a recognized timestamp", value),
	}
}

// CheckWindow rejects incidents from the future or older than the retention
// window.
func (g *Gate) CheckWindow(occurred time.Time) *Rejection {
	now := g.nowFn().UTC()
	if occurred.After(now.Add(futureGrace)) {
		return &Rejection{
			Category: "future_date",
			Detail:   fmt.Sprintf("occurred_at %s is in the future", occurred.Format(time.RFC3339)),
		}
	}
	if occurred.Before(now.Add(-g.maxAge)) {
		return &Rejection{
			Category: "too_old",
			Detail: fmt.Sprintf("occurred_at %s is older than %d days",
				occurred.Format(time.RFC3339), int(g.maxAge.Hours()/24)),
		}
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

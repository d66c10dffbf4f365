package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset types: the category of critical infrastructure an incident touches.
const (
	AssetAirport    = "airport"
	AssetMilitary   = "military"
	AssetHarbor     = "harbor"
	AssetPowerplant = "powerplant"
	AssetBridge     = "bridge"
	AssetOther      = "other"
)

// Incident lifecycle states.
const (
	StatusActive      = "active"
	StatusResolved    = "resolved"
	StatusUnconfirmed = "unconfirmed"
)

// Verification states controlling public visibility.
const (
	VerificationAutoVerified = "auto_verified"
	VerificationVerified     = "verified"
	VerificationPending      = "pending"
	VerificationRejected     = "rejected"
)

// Source types, ordered roughly by authority.
const (
	SourcePolice            = "police"
	SourceNotam             = "notam"
	SourceAviationAuthority = "aviation_authority"
	SourceMilitary          = "military"
	SourceMedia             = "media"
	SourceVerifiedMedia     = "verified_media"
	SourceSocial            = "social"
	SourceOther             = "other"
)

// Evidence score levels (see consolidate.EvidenceScore for the scoring law).
const (
	EvidenceUnconfirmed = 1 // single weak source
	EvidenceReported    = 2 // at least one trusted source
	EvidenceVerified    = 3 // multiple media sources with official attribution
	EvidenceOfficial    = 4 // police / military / NOTAM / aviation authority
)

// ValidAssetType reports whether t is one of the known asset types.
func ValidAssetType(t string) bool {
	switch t {
	case AssetAirport, AssetMilitary, AssetHarbor, AssetPowerplant, AssetBridge, AssetOther:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known incident status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusResolved, StatusUnconfirmed:
		return true
	}
	return false
}

// ValidVerificationStatus reports whether v is a known verification state.
func ValidVerificationStatus(v string) bool {
	switch v {
	case VerificationAutoVerified, VerificationVerified, VerificationPending, VerificationRejected:
		return true
	}
	return false
}

// ValidSourceType reports whether t is a known source type.
func ValidSourceType(t string) bool {
	switch t {
	case SourcePolice, SourceNotam, SourceAviationAuthority, SourceMilitary,
		SourceMedia, SourceVerifiedMedia, SourceSocial, SourceOther:
		return true
	}
	return false
}

// OfficialSourceType reports whether t counts as an official authority for
// evidence scoring (score 4).
func OfficialSourceType(t string) bool {
	switch t {
	case SourcePolice, SourceMilitary, SourceNotam, SourceAviationAuthority:
		return true
	}
	return false
}

// Incident is one canonical real-world event, merged from every article that
// reported it.
type Incident struct {
	ID                 uuid.UUID        `json:"id"`
	Title              string           `json:"title"`              // ≤ 500 code points, sanitized
	Narrative          string           `json:"narrative"`          // ≤ 10000 code points, sanitized
	OccurredAt         time.Time        `json:"occurredAt"`         // UTC; earliest across merged reports
	FirstSeenAt        time.Time        `json:"firstSeenAt"`        // first article publication
	LastSeenAt         time.Time        `json:"lastSeenAt"`         // most recent article publication
	Lat                float64          `json:"lat"`                // WGS-84, in [35, 71]
	Lon                float64          `json:"lon"`                // WGS-84, in [-10, 31]
	AssetType          string           `json:"assetType"`          // airport/military/harbor/powerplant/bridge/other
	Status             string           `json:"status"`             // active/resolved/unconfirmed
	EvidenceScore      int              `json:"evidenceScore"`      // 1..4, recomputed on every source attach
	VerificationStatus string           `json:"verificationStatus"` // auto_verified/verified/pending/rejected
	Country            string           `json:"country"`            // ISO-2
	Sources            []IncidentSource `json:"sources,omitempty"`
}

// Source is an outlet identified by (domain, source_type). Shared across
// incidents, never owned by one.
type Source struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	SourceType  string `json:"sourceType"`
	HomepageURL string `json:"homepageUrl,omitempty"`
	TrustWeight int    `json:"trustWeight"` // 1..4, monotonically non-decreasing
}

// IncidentSource links one article URL to one incident. Append-only.
type IncidentSource struct {
	IncidentID  uuid.UUID `json:"incidentId"`
	SourceID    int64     `json:"sourceId,omitempty"`
	SourceName  string    `json:"sourceName"`
	SourceType  string    `json:"sourceType"`
	TrustWeight int       `json:"trustWeight"`
	SourceURL   string    `json:"sourceUrl"` // unique within an incident
	SourceTitle string    `json:"sourceTitle,omitempty"`
	SourceQuote string    `json:"sourceQuote,omitempty"` // ≤ 500 code points
	PublishedAt time.Time `json:"publishedAt,omitempty"`
	Lang        string    `json:"lang,omitempty"`
}

// IncidentEmbedding is the single semantic vector attached to an incident.
// Written on create, replaced only on explicit re-embed.
type IncidentEmbedding struct {
	IncidentID     uuid.UUID `json:"incidentId"`
	Embedding      []float32 `json:"-"` // 768 dimensions, provider-tied
	EmbeddingModel string    `json:"embeddingModel"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

package db

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/dronewatch/incident-engine/pkg/models"
)

// TxStore exposes the write-path queries bound to one open transaction. It
// satisfies the same candidate-store interface as the pool so the Tier-1
// re-check can run under the fingerprint lock.
type TxStore struct {
	tx pgx.Tx
}

// WithFingerprintLock runs fn inside a transaction that holds the advisory
// lock for one deduplication fingerprint. Two requests for the same
// fingerprint serialize here; the lock releases with the transaction.
//
//  1. Begin transaction
//  2. pg_advisory_xact_lock(key)
//  3. fn: re-check, then merge or create
//  4. Commit (rollback on any error or cancellation)
func (s *PostgresStore) WithFingerprintLock(ctx context.Context, lockKey int64, fn func(tx *TxStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey); err != nil {
		return fmt.Errorf("advisory lock: %v", err)
	}
	if err := fn(&TxStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// FindBySourceURL is the under-lock authoritative URL re-check.
func (t *TxStore) FindBySourceURL(ctx context.Context, sourceURL string) (*models.Incident, error) {
	return findBySourceURL(ctx, t.tx, sourceURL)
}

func (t *TxStore) RecentNearby(ctx context.Context, lat, lon, radiusMeters float64, center time.Time, window time.Duration) ([]models.Incident, error) {
	return recentNearby(ctx, t.tx, lat, lon, radiusMeters, center, window)
}

func (t *TxStore) OldestSpatialMatch(ctx context.Context, lat, lon, radiusMeters float64, assetType string, center time.Time, window time.Duration) (*models.Incident, error) {
	return oldestSpatialMatch(ctx, t.tx, lat, lon, radiusMeters, assetType, center, window)
}

// CreateIncident inserts the row. The geographic trigger re-validates bounds
// and the server-side keyword list; its rejection surfaces as an error here.
func (t *TxStore) CreateIncident(ctx context.Context, inc models.Incident) (uuid.UUID, error) {
	sql := `
		INSERT INTO incidents
			(title, narrative, occurred_at, first_seen_at, last_seen_at,
			 lat, lon, asset_type, status, evidence_score, verification_status, country)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, sql,
		inc.Title, inc.Narrative, inc.OccurredAt, inc.FirstSeenAt, inc.LastSeenAt,
		inc.Lat, inc.Lon, inc.AssetType, inc.Status, inc.EvidenceScore,
		inc.VerificationStatus, inc.Country).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert incident: %v", err)
	}
	return id, nil
}

// MergeIncident widens the target's time range around the incoming report.
// Coordinates, classification and identity stay with the existing row.
// newTitle replaces the title only when non-empty (adjudicator proposals).
func (t *TxStore) MergeIncident(ctx context.Context, id uuid.UUID, occurred, firstSeen, lastSeen time.Time, newTitle string) error {
	sql := `
		UPDATE incidents SET
			occurred_at   = LEAST(occurred_at, $2),
			first_seen_at = LEAST(first_seen_at, $3),
			last_seen_at  = GREATEST(last_seen_at, $4),
			title         = CASE WHEN $5 <> '' THEN $5 ELSE title END,
			updated_at    = NOW()
		WHERE id = $1
	`
	tag, err := t.tx.Exec(ctx, sql, id, occurred, firstSeen, lastSeen, newTitle)
	if err != nil {
		return fmt.Errorf("merge incident: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merge target %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// AttachSources links the articles to the incident. Each source runs in its
// own savepoint: a constraint failure on one is logged and skipped, the rest
// still attach, the incident row stays the transactional unit. Duplicate
// URLs inside the incident are silently dropped by ON CONFLICT. Returns how
// many rows actually attached.
func (t *TxStore) AttachSources(ctx context.Context, incidentID uuid.UUID, sources []models.IncidentSource) (int, error) {
	upsertOutlet := `
		INSERT INTO sources (name, domain, source_type, trust_weight)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain, source_type) DO UPDATE
		SET name = EXCLUDED.name,
		    trust_weight = GREATEST(sources.trust_weight, EXCLUDED.trust_weight)
		RETURNING id
	`
	insertLink := `
		INSERT INTO incident_sources
			(incident_id, source_id, source_name, source_type, trust_weight,
			 source_url, source_title, source_quote, published_at, lang)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (incident_id, source_url) DO NOTHING
	`

	attached := 0
	for _, src := range sources {
		sp, err := t.tx.Begin(ctx)
		if err != nil {
			return attached, fmt.Errorf("savepoint: %v", err)
		}

		var sourceID *int64
		if domain := domainOf(src.SourceURL); domain != "" {
			name := src.SourceName
			if name == "" {
				name = domain
			}
			var id int64
			if err := sp.QueryRow(ctx, upsertOutlet, name, domain, src.SourceType, src.TrustWeight).Scan(&id); err != nil {
				_ = sp.Rollback(ctx)
				log.Printf("[Store] Skipping source %s: outlet upsert failed: %v", src.SourceURL, err)
				continue
			}
			sourceID = &id
		}

		var published *time.Time
		if !src.PublishedAt.IsZero() {
			published = &src.PublishedAt
		}
		tag, err := sp.Exec(ctx, insertLink, incidentID, sourceID, src.SourceName,
			src.SourceType, src.TrustWeight, src.SourceURL, src.SourceTitle,
			src.SourceQuote, published, src.Lang)
		if err != nil {
			_ = sp.Rollback(ctx)
			log.Printf("[Store] Skipping source %s: %v", src.SourceURL, err)
			continue
		}
		if err := sp.Commit(ctx); err != nil {
			return attached, fmt.Errorf("release savepoint: %v", err)
		}
		attached += int(tag.RowsAffected())
	}
	return attached, nil
}

// EvidenceScore reads the score after the evidence trigger has recomputed
// it, within the same transaction.
func (t *TxStore) EvidenceScore(ctx context.Context, id uuid.UUID) (int, error) {
	var score int
	err := t.tx.QueryRow(ctx, "SELECT evidence_score FROM incidents WHERE id = $1", id).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("evidence score: %v", err)
	}
	return score, nil
}

// InsertEmbedding writes the incident's vector on create. Create-only: an
// existing vector is never overwritten here (see ReplaceEmbedding).
func (t *TxStore) InsertEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error {
	sql := `
		INSERT INTO incident_embeddings (incident_id, embedding, embedding_model, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (incident_id) DO NOTHING
	`
	_, err := t.tx.Exec(ctx, sql, id, pgvector.NewVector(vec), model)
	if err != nil {
		return fmt.Errorf("insert embedding: %v", err)
	}
	return nil
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

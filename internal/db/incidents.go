package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/dronewatch/incident-engine/internal/dedup"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so the same query
// helpers serve the optimistic pass and the under-lock re-check.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const incidentColumns = `id, title, narrative, occurred_at, first_seen_at, last_seen_at,
	lat, lon, asset_type, status, evidence_score, verification_status, country`

func scanIncident(r rowScanner) (models.Incident, error) {
	var inc models.Incident
	err := r.Scan(&inc.ID, &inc.Title, &inc.Narrative, &inc.OccurredAt, &inc.FirstSeenAt,
		&inc.LastSeenAt, &inc.Lat, &inc.Lon, &inc.AssetType, &inc.Status,
		&inc.EvidenceScore, &inc.VerificationStatus, &inc.Country)
	return inc, err
}

// findBySourceURL returns the incident already holding this article URL.
// This match is authoritative: no similarity tier runs when it hits.
func findBySourceURL(ctx context.Context, q querier, sourceURL string) (*models.Incident, error) {
	sql := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE id = (SELECT incident_id FROM incident_sources WHERE source_url = $1 LIMIT 1)
	`
	inc, err := scanIncident(q.QueryRow(ctx, sql, sourceURL))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source url lookup: %v", err)
	}
	return &inc, nil
}

// recentNearby uses earth_box for the index scan and earth_distance to trim
// the box corners, the standard earthdistance pairing.
func recentNearby(ctx context.Context, q querier, lat, lon, radiusMeters float64, center time.Time, window time.Duration) ([]models.Incident, error) {
	sql := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE earth_box(ll_to_earth($1, $2), $3) @> ll_to_earth(lat, lon)
		  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lon)) <= $3
		  AND occurred_at BETWEEN $4 AND $5
		ORDER BY occurred_at ASC
	`
	rows, err := q.Query(ctx, sql, lat, lon, radiusMeters, center.Add(-window), center.Add(window))
	if err != nil {
		return nil, fmt.Errorf("recent nearby query: %v", err)
	}
	defer rows.Close()

	var out []models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func oldestSpatialMatch(ctx context.Context, q querier, lat, lon, radiusMeters float64, assetType string, center time.Time, window time.Duration) (*models.Incident, error) {
	sql := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE earth_box(ll_to_earth($1, $2), $3) @> ll_to_earth(lat, lon)
		  AND earth_distance(ll_to_earth($1, $2), ll_to_earth(lat, lon)) <= $3
		  AND asset_type = $4
		  AND occurred_at BETWEEN $5 AND $6
		ORDER BY occurred_at ASC
		LIMIT 1
	`
	inc, err := scanIncident(q.QueryRow(ctx, sql, lat, lon, radiusMeters, assetType,
		center.Add(-window), center.Add(window)))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("spatial fallback query: %v", err)
	}
	return &inc, nil
}

// FindBySourceURL looks up the incident already holding this article URL.
func (s *PostgresStore) FindBySourceURL(ctx context.Context, sourceURL string) (*models.Incident, error) {
	return findBySourceURL(ctx, s.pool, sourceURL)
}

// RecentNearby implements the Tier-1 candidate query.
func (s *PostgresStore) RecentNearby(ctx context.Context, lat, lon, radiusMeters float64, center time.Time, window time.Duration) ([]models.Incident, error) {
	return recentNearby(ctx, s.pool, lat, lon, radiusMeters, center, window)
}

// OldestSpatialMatch implements the asset-radius spatial fallback.
func (s *PostgresStore) OldestSpatialMatch(ctx context.Context, lat, lon, radiusMeters float64, assetType string, center time.Time, window time.Duration) (*models.Incident, error) {
	return oldestSpatialMatch(ctx, s.pool, lat, lon, radiusMeters, assetType, center, window)
}

// NearestNeighbors runs the Tier-2 vector search: cosine similarity over the
// ivfflat index, pre-filtered by time window, Haversine radius and country.
func (s *PostgresStore) NearestNeighbors(ctx context.Context, vec []float32, f dedup.NeighborFilter) ([]dedup.Neighbor, error) {
	sql := `
		SELECT ` + prefixedIncidentColumns("i") + `,
		       1 - (e.embedding <=> $1) AS similarity
		FROM incident_embeddings e
		JOIN incidents i ON i.id = e.incident_id
		WHERE i.occurred_at BETWEEN $2 AND $3
		  AND i.country = $4
		  AND earth_box(ll_to_earth($5, $6), $7) @> ll_to_earth(i.lat, i.lon)
		  AND earth_distance(ll_to_earth($5, $6), ll_to_earth(i.lat, i.lon)) <= $7
		  AND 1 - (e.embedding <=> $1) >= $8
		ORDER BY e.embedding <=> $1
		LIMIT $9
	`
	rows, err := s.pool.Query(ctx, sql, pgvector.NewVector(vec),
		f.Center.Add(-f.Window), f.Center.Add(f.Window), f.Country,
		f.Lat, f.Lon, f.RadiusMeters, f.MinSimilarity, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector neighbor query: %v", err)
	}
	defer rows.Close()

	var out []dedup.Neighbor
	for rows.Next() {
		var n dedup.Neighbor
		err := rows.Scan(&n.Incident.ID, &n.Incident.Title, &n.Incident.Narrative,
			&n.Incident.OccurredAt, &n.Incident.FirstSeenAt, &n.Incident.LastSeenAt,
			&n.Incident.Lat, &n.Incident.Lon, &n.Incident.AssetType, &n.Incident.Status,
			&n.Incident.EvidenceScore, &n.Incident.VerificationStatus, &n.Incident.Country,
			&n.Similarity)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// IncidentFilter narrows the public incident listing. Zero values mean
// "no constraint".
type IncidentFilter struct {
	MinEvidence int
	Country     string
	AssetType   string
	Status      string
	Since       time.Time
	Limit       int
	Offset      int
}

// ListIncidents returns filtered incidents newest first, each with its full
// source list attached.
func (s *PostgresStore) ListIncidents(ctx context.Context, f IncidentFilter) ([]models.Incident, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	sql := `SELECT ` + incidentColumns + ` FROM incidents WHERE 1=1`
	var args []any
	if f.MinEvidence > 0 {
		args = append(args, f.MinEvidence)
		sql += fmt.Sprintf(" AND evidence_score >= $%d", len(args))
	}
	if f.Country != "" {
		args = append(args, f.Country)
		sql += fmt.Sprintf(" AND country = $%d", len(args))
	}
	if f.AssetType != "" {
		args = append(args, f.AssetType)
		sql += fmt.Sprintf(" AND asset_type = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		sql += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		sql += fmt.Sprintf(" AND occurred_at >= $%d", len(args))
	}
	args = append(args, f.Limit)
	sql += fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	sql += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %v", err)
	}
	defer rows.Close()

	incidents := make([]models.Incident, 0)
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if err := s.attachSources(ctx, incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// GetIncident loads one incident with sources, or nil when absent.
func (s *PostgresStore) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	sql := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, sql, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get incident: %v", err)
	}
	single := []models.Incident{inc}
	if err := s.attachSources(ctx, single); err != nil {
		return nil, err
	}
	return &single[0], nil
}

// attachSources loads all sources for the given incidents in one round trip
// and distributes them in place.
func (s *PostgresStore) attachSources(ctx context.Context, incidents []models.Incident) error {
	if len(incidents) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(incidents))
	byID := make(map[uuid.UUID]int, len(incidents))
	for i := range incidents {
		ids[i] = incidents[i].ID
		byID[incidents[i].ID] = i
	}

	sql := `
		SELECT incident_id, COALESCE(source_id, 0), source_name, source_type,
		       trust_weight, source_url, source_title, source_quote, published_at, lang
		FROM incident_sources
		WHERE incident_id = ANY($1)
		ORDER BY source_url ASC
	`
	rows, err := s.pool.Query(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("load sources: %v", err)
	}
	defer rows.Close()

	for rows.Next() {
		var src models.IncidentSource
		var published *time.Time
		err := rows.Scan(&src.IncidentID, &src.SourceID, &src.SourceName, &src.SourceType,
			&src.TrustWeight, &src.SourceURL, &src.SourceTitle, &src.SourceQuote,
			&published, &src.Lang)
		if err != nil {
			return err
		}
		if published != nil {
			src.PublishedAt = *published
		}
		if i, ok := byID[src.IncidentID]; ok {
			incidents[i].Sources = append(incidents[i].Sources, src)
		}
	}
	return rows.Err()
}

func prefixedIncidentColumns(alias string) string {
	return alias + `.id, ` + alias + `.title, ` + alias + `.narrative, ` +
		alias + `.occurred_at, ` + alias + `.first_seen_at, ` + alias + `.last_seen_at, ` +
		alias + `.lat, ` + alias + `.lon, ` + alias + `.asset_type, ` + alias + `.status, ` +
		alias + `.evidence_score, ` + alias + `.verification_status, ` + alias + `.country`
}

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/pkg/models"
)

// IncidentsForReconcile loads every incident that occurred since the cutoff,
// sources attached, oldest first so cluster survivors are the earliest rows.
func (s *PostgresStore) IncidentsForReconcile(ctx context.Context, since time.Time) ([]models.Incident, error) {
	sql := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE occurred_at >= $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := s.pool.Query(ctx, sql, since)
	if err != nil {
		return nil, fmt.Errorf("reconcile scan: %v", err)
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
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	if err := s.attachSources(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// AbsorbIncidents applies one consolidation cluster: the survivor takes the
// merged record, the absorbed rows hand over their sources and disappear.
// Source moves fire the evidence trigger; deleting the absorbed rows
// cascades to their source links and embeddings. One transaction, so a
// failure leaves the cluster untouched.
func (s *PostgresStore) AbsorbIncidents(ctx context.Context, survivor models.Incident, absorbed []uuid.UUID) error {
	if len(absorbed) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %v", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	updateSurvivor := `
		UPDATE incidents SET
			title         = $2,
			narrative     = $3,
			occurred_at   = $4,
			first_seen_at = $5,
			last_seen_at  = $6,
			updated_at    = NOW()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, updateSurvivor, survivor.ID, survivor.Title, survivor.Narrative,
		survivor.OccurredAt, survivor.FirstSeenAt, survivor.LastSeenAt)
	if err != nil {
		return fmt.Errorf("update survivor: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("survivor %s not found", survivor.ID)
	}

	moveSources := `
		INSERT INTO incident_sources
			(incident_id, source_id, source_name, source_type, trust_weight,
			 source_url, source_title, source_quote, published_at, lang)
		SELECT $1, source_id, source_name, source_type, trust_weight,
		       source_url, source_title, source_quote, published_at, lang
		FROM incident_sources
		WHERE incident_id = ANY($2)
		ON CONFLICT (incident_id, source_url) DO NOTHING
	`
	if _, err := tx.Exec(ctx, moveSources, survivor.ID, absorbed); err != nil {
		return fmt.Errorf("move sources: %v", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM incidents WHERE id = ANY($1)", absorbed); err != nil {
		return fmt.Errorf("delete absorbed: %v", err)
	}
	return tx.Commit(ctx)
}

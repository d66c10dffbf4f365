package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/dronewatch/incident-engine/pkg/models"
)

// ReplaceEmbedding overwrites the incident's vector. Only the explicit
// re-embed path calls this; the ingest path never replaces an existing
// vector.
func (s *PostgresStore) ReplaceEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error {
	sql := `
		INSERT INTO incident_embeddings (incident_id, embedding, embedding_model, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (incident_id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
		    embedding_model = EXCLUDED.embedding_model,
		    updated_at = NOW()
	`
	_, err := s.pool.Exec(ctx, sql, id, pgvector.NewVector(vec), model)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("re-embed target %s: %w", id, models.ErrNotFound)
		}
		return fmt.Errorf("replace embedding: %v", err)
	}
	return nil
}

// MissingEmbeddings lists incidents that have no vector yet, oldest first.
// Incidents created while the embedder was down end up here.
func (s *PostgresStore) MissingEmbeddings(ctx context.Context, limit int) ([]models.Incident, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	sql := `
		SELECT ` + incidentColumns + `
		FROM incidents i
		WHERE NOT EXISTS (SELECT 1 FROM incident_embeddings e WHERE e.incident_id = i.id)
		ORDER BY occurred_at ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, sql, limit)
	if err != nil {
		return nil, fmt.Errorf("missing embeddings: %v", err)
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

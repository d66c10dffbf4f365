package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dronewatch/incident-engine/internal/metrics"
	"github.com/dronewatch/incident-engine/internal/pipeline"
)

// ingestDeadline bounds one write-path request end to end, LLM and embedding
// calls included. The transaction rolls back when the deadline hits.
const ingestDeadline = 15 * time.Second

// handleIngest accepts one incident report and answers with the incident it
// landed in: 201 when a new incident was created, 200 when the report merged
// into an existing one.
// POST /ingest
func (h *APIHandler) handleIngest(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingestion engine not initialized"})
		return
	}

	var req pipeline.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.ObserveRejection("invalid_json")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "category": "invalid_json"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ingestDeadline)
	defer cancel()

	result, err := h.engine.Ingest(ctx, req)
	if err != nil {
		h.writeIngestError(c, err)
		return
	}

	status := http.StatusOK
	if result.Status == "created" {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

// writeIngestError maps pipeline failures onto HTTP statuses. Rejection
// categories reach the caller; server-side detail never does.
func (h *APIHandler) writeIngestError(c *gin.Context, err error) {
	category := pipeline.CategoryOf(err)
	if pipeline.CallerCaused(err) {
		metrics.ObserveRejection(category)
	}

	switch pipeline.KindOf(err) {
	case pipeline.KindInvalidInput, pipeline.KindMaliciousContent, pipeline.KindOutOfScope, pipeline.KindRejected:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Report rejected", "category": category})
	case pipeline.KindUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case pipeline.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": "Report refused", "category": category})
	case pipeline.KindTimeout:
		log.Printf("Ingest deadline exceeded: %v", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Ingestion timed out", "detail": "deadline exceeded"})
	case pipeline.KindUpstreamUnavailable:
		log.Printf("Ingest upstream failure: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ingestion temporarily unavailable", "detail": "upstream error"})
	default:
		log.Printf("Ingest failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Ingestion failed", "detail": "internal error"})
	}
}

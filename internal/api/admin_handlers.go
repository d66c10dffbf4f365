package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/internal/embed"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// defaultReconcileWindow is how far back an operator-triggered sweep looks
// when the request names no window.
const defaultReconcileWindow = 7 * 24 * time.Hour

// handleStartReconcile launches a batch deduplication sweep in the background.
// POST /admin/reconcile { "window": "72h" } (body optional)
func (h *APIHandler) handleStartReconcile(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reconciliation not initialized"})
		return
	}

	var req struct {
		Window string `json:"window"`
	}
	// The body is optional; an empty request sweeps the default window.
	_ = c.ShouldBindJSON(&req)

	window := defaultReconcileWindow
	if req.Window != "" {
		d, err := time.ParseDuration(req.Window)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window must be a positive duration", "category": "invalid_query"})
			return
		}
		window = d
	}

	// The sweep outlives this request, so it runs on its own context.
	if !h.sweeper.Start(context.Background(), window) {
		c.JSON(http.StatusConflict, gin.H{"error": "Reconciliation already in progress"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "reconcile_started",
		"window": window.String(),
	})
}

// handleReconcileProgress returns the current sweep counters.
// GET /admin/reconcile/progress
func (h *APIHandler) handleReconcileProgress(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Reconciliation not initialized"})
		return
	}
	c.JSON(http.StatusOK, h.sweeper.GetProgress())
}

// handleShadowReport summarizes threshold drift since the given instant,
// defaulting to the last 24 hours.
// GET /admin/shadow/report?since=RFC3339
func (h *APIHandler) handleShadowReport(c *gin.Context) {
	if h.shadow == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Shadow evaluation not enabled"})
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC3339 timestamp", "category": "invalid_query"})
			return
		}
		since = t
	}

	report, err := h.shadow.DriftReport(c.Request.Context(), since)
	if err != nil {
		log.Printf("Shadow drift report failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build drift report", "detail": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// handleReembed recomputes the vector for one incident from its current
// title, location and narrative. Used after gazetteer corrections or an
// embedding model upgrade.
// POST /admin/incidents/:id/reembed
func (h *APIHandler) handleReembed(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	if h.embedder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Embedding provider not configured"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid incident id", "category": "invalid_query"})
		return
	}

	inc, err := h.store.GetIncident(c.Request.Context(), id)
	if err != nil {
		log.Printf("Re-embed lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incident", "detail": "internal error"})
		return
	}
	if inc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
		return
	}

	vec, err := h.embedder.Embed(c.Request.Context(), h.embedTextFor(*inc))
	if err != nil {
		log.Printf("Re-embed of %s failed: %v", id, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Embedding provider unavailable", "detail": "upstream error"})
		return
	}

	if err := h.store.ReplaceEmbedding(c.Request.Context(), id, vec, h.embedder.Name()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Incident not found"})
			return
		}
		log.Printf("Re-embed store write failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store embedding", "detail": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "reembedded",
		"id":              id,
		"embedding_model": h.embedder.Name(),
	})
}

// embedTextFor rebuilds the embedding input for a stored incident the same
// way the write path built it.
func (h *APIHandler) embedTextFor(inc models.Incident) string {
	location := ""
	if h.gaz != nil {
		if entry, ok := h.gaz.Snapshot().FindInText(inc.Title + " " + inc.Narrative); ok {
			location = entry.Name
		}
	}
	return embed.BuildText(inc.Title, location, inc.AssetType, inc.OccurredAt, inc.Narrative)
}

// handleBackfillEmbeddings embeds incidents that have no vector yet, oldest
// first. Incidents created while the embedding provider was down catch up
// here in bounded batches.
// POST /admin/embeddings/backfill?limit=100
func (h *APIHandler) handleBackfillEmbeddings(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}
	if h.embedder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Embedding provider not configured"})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "category": "invalid_query"})
			return
		}
		limit = n
	}

	missing, err := h.store.MissingEmbeddings(c.Request.Context(), limit)
	if err != nil {
		log.Printf("Backfill scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan for missing embeddings", "detail": "internal error"})
		return
	}

	embedded, failed := 0, 0
	for _, inc := range missing {
		vec, err := h.embedder.Embed(c.Request.Context(), h.embedTextFor(inc))
		if err != nil {
			log.Printf("Backfill embed of %s failed: %v", inc.ID, err)
			failed++
			continue
		}
		if err := h.store.ReplaceEmbedding(c.Request.Context(), inc.ID, vec, h.embedder.Name()); err != nil {
			log.Printf("Backfill store write for %s failed: %v", inc.ID, err)
			failed++
			continue
		}
		embedded++
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "backfill_complete",
		"scanned":  len(missing),
		"embedded": embedded,
		"failed":   failed,
	})
}

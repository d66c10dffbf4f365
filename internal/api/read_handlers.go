package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dronewatch/incident-engine/internal/db"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// handleListIncidents returns filtered incidents newest first, each with its
// full source list. The response is a bare JSON array.
// GET /incidents?min_evidence=&country=&asset_type=&status=&since=&limit=&offset=
func (h *APIHandler) handleListIncidents(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Database not connected"})
		return
	}

	f, err := parseIncidentFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "category": "invalid_query"})
		return
	}

	incidents, err := h.store.ListIncidents(c.Request.Context(), f)
	if err != nil {
		log.Printf("List incidents failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch incidents", "detail": "internal error"})
		return
	}
	if incidents == nil {
		incidents = []models.Incident{}
	}
	c.JSON(http.StatusOK, incidents)
}

func parseIncidentFilter(c *gin.Context) (db.IncidentFilter, error) {
	var f db.IncidentFilter
	var err error

	if f.MinEvidence, err = intQuery(c, "min_evidence"); err != nil {
		return f, err
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intQuery(c, "offset"); err != nil {
		return f, err
	}

	f.Country = strings.ToUpper(strings.TrimSpace(c.Query("country")))
	f.AssetType = c.Query("asset_type")
	f.Status = c.Query("status")

	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("since must be an RFC3339 timestamp")
		}
		f.Since = t
	}
	return f, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

// handleHealthz reports liveness and which optional subsystems are wired.
// Degraded deployments answer 503 so orchestrators can route around them.
// GET /healthz
func (h *APIHandler) handleHealthz(c *gin.Context) {
	dbConnected := false
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbConnected = h.store.Ping(ctx) == nil
	}

	status := http.StatusOK
	state := "operational"
	if !dbConnected {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status": state,
		"engine": "DroneWatch Incident Engine",
		"capabilities": gin.H{
			"ingest":         h.engine != nil,
			"vector_dedup":   h.embedder != nil,
			"reconciliation": h.sweeper != nil,
			"shadow_eval":    h.shadow != nil,
			"live_stream":    h.hub != nil,
		},
		"dbConnected": dbConnected,
	})
}

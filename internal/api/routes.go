package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/internal/db"
	"github.com/dronewatch/incident-engine/internal/embed"
	"github.com/dronewatch/incident-engine/internal/gazetteer"
	"github.com/dronewatch/incident-engine/internal/metrics"
	"github.com/dronewatch/incident-engine/internal/pipeline"
	"github.com/dronewatch/incident-engine/internal/reconcile"
	"github.com/dronewatch/incident-engine/internal/shadow"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// Ingestor is the write-path seam: one report in, one decision out.
type Ingestor interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.Result, error)
}

// Store is the read-side surface the HTTP layer needs.
type Store interface {
	ListIncidents(ctx context.Context, f db.IncidentFilter) ([]models.Incident, error)
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	ReplaceEmbedding(ctx context.Context, id uuid.UUID, vec []float32, model string) error
	MissingEmbeddings(ctx context.Context, limit int) ([]models.Incident, error)
	Ping(ctx context.Context) error
}

// Reconciler starts and reports batch deduplication sweeps.
type Reconciler interface {
	Start(ctx context.Context, window time.Duration) bool
	GetProgress() reconcile.Progress
}

// DriftReporter summarizes shadow threshold evaluation.
type DriftReporter interface {
	DriftReport(ctx context.Context, since time.Time) (*shadow.DriftReport, error)
}

// Deps carries every dependency the router serves. Optional entries may be
// nil; their routes answer 503 (or are skipped entirely) so a degraded
// deployment still boots.
type Deps struct {
	Engine    Ingestor
	Store     Store
	Hub       *Hub
	Sweeper   Reconciler
	Shadow    DriftReporter
	Embedder  embed.Embedder
	Gazetteer *gazetteer.Gazetteer

	IngestToken    string
	AllowedOrigins []string
	RateLimiter    *RateLimiter
}

type APIHandler struct {
	engine   Ingestor
	store    Store
	hub      *Hub
	sweeper  Reconciler
	shadow   DriftReporter
	embedder embed.Embedder
	gaz      *gazetteer.Gazetteer
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	r.Use(corsMiddleware(deps.AllowedOrigins))
	r.Use(latencyMiddleware())

	handler := &APIHandler{
		engine:   deps.Engine,
		store:    deps.Store,
		hub:      deps.Hub,
		sweeper:  deps.Sweeper,
		shadow:   deps.Shadow,
		embedder: deps.Embedder,
		gaz:      deps.Gazetteer,
	}

	r.GET("/healthz", handler.handleHealthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/incidents", handler.handleListIncidents)
	if deps.Hub != nil {
		r.GET("/ws/incidents", deps.Hub.Subscribe)
	}

	authed := r.Group("/", AuthMiddleware(deps.IngestToken))
	{
		ingest := authed.Group("/")
		if deps.RateLimiter != nil {
			ingest.Use(deps.RateLimiter.Middleware())
		}
		ingest.POST("/ingest", handler.handleIngest)

		admin := authed.Group("/admin")
		{
			admin.POST("/reconcile", handler.handleStartReconcile)
			admin.GET("/reconcile/progress", handler.handleReconcileProgress)
			admin.GET("/shadow/report", handler.handleShadowReport)
			admin.POST("/incidents/:id/reembed", handler.handleReembed)
			admin.POST("/embeddings/backfill", handler.handleBackfillEmbeddings)
		}
	}

	return r
}

// corsMiddleware enforces the exact-match origin allow list. An empty list
// keeps local development frictionless by answering every origin with *.
// Preflights from unknown origins are refused outright rather than answered
// without CORS headers, so browser consoles show a real status.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case len(allowed) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		case origin != "" && c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// latencyMiddleware feeds the request histogram with the route template, not
// the raw path, so /admin/incidents/:id/reembed stays one series.
func latencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(route, c.Writer.Status(), time.Since(start).Seconds())
	}
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/dronewatch/incident-engine/internal/api"
	"github.com/dronewatch/incident-engine/internal/classify"
	"github.com/dronewatch/incident-engine/internal/config"
	"github.com/dronewatch/incident-engine/internal/db"
	"github.com/dronewatch/incident-engine/internal/dedup"
	"github.com/dronewatch/incident-engine/internal/embed"
	"github.com/dronewatch/incident-engine/internal/gate"
	"github.com/dronewatch/incident-engine/internal/gazetteer"
	"github.com/dronewatch/incident-engine/internal/geo"
	"github.com/dronewatch/incident-engine/internal/ingest"
	"github.com/dronewatch/incident-engine/internal/llm"
	"github.com/dronewatch/incident-engine/internal/pipeline"
	"github.com/dronewatch/incident-engine/internal/reconcile"
	"github.com/dronewatch/incident-engine/internal/shadow"
)

const reconcileWindow = 7 * 24 * time.Hour

// lockedStore adapts the Postgres store's concrete transaction type to the
// engine's interface.
type lockedStore struct {
	*db.PostgresStore
}

func (s lockedStore) WithFingerprintLock(ctx context.Context, lockKey int64, fn func(pipeline.TxStore) error) error {
	return s.PostgresStore.WithFingerprintLock(ctx, lockKey, func(tx *db.TxStore) error {
		return fn(tx)
	})
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	log.Println("Starting DroneWatch Incident Engine...")

	// ─── Configuration ───────────────────────────────────────────────────
	// All credentials come from environment variables; config.Load refuses
	// malformed values outright. For local development:
	// cp .env.example .env && edit .env
	// ─────────────────────────────────────────────────────────────────────

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	store, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: PostgreSQL connection failed: %v", err)
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		log.Fatalf("FATAL: schema init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional Redis. Rate limiting and the LLM verdict cache fall back to
	// in-memory equivalents without it.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Printf("Warning: invalid REDIS_URL, continuing without Redis: %v", err)
		} else {
			rdb = redis.NewClient(opts)
			pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				log.Printf("Warning: Redis unreachable, continuing without it: %v", err)
				rdb.Close()
				rdb = nil
			}
			pingCancel()
		}
	}

	gaz := gazetteer.New(cfg.GazetteerPath)
	if cfg.GazetteerPath != "" {
		go func() {
			if err := gaz.Watch(ctx); err != nil {
				log.Printf("Warning: gazetteer watch stopped: %v", err)
			}
		}()
	}

	scope, err := geo.ScopeByName(cfg.GeoScope)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// LLM surfaces. The adjudicator accepts either provider key; embeddings
	// are an OpenAI-only endpoint, so Tier 2 needs OPENAI_API_KEY itself.
	var cache llm.Cache = llm.NewMemoryCache()
	if rdb != nil {
		cache = llm.NewRedisCache(rdb)
	}

	var adj *llm.Adjudicator
	if key, openRouter := cfg.LLMKey(); key != "" {
		adj = llm.NewAdjudicator(llm.NewClient(key, openRouter), cache)
	} else {
		log.Println("Warning: no LLM key set; borderline reports pass without AI review")
	}

	var embedder embed.Embedder
	embedModel := ""
	if cfg.OpenAIKey != "" {
		oe := embed.NewOpenAI(cfg.OpenAIKey)
		embedder = oe
		embedModel = oe.Name()
	} else {
		log.Println("Warning: OPENAI_API_KEY not set; dedup runs without the embedding tier")
	}

	var tier3 dedup.Adjudicator
	if adj != nil {
		tier3 = adj
	}
	var matcher pipeline.Matcher = dedup.NewMatcher(store, embedder, tier3)

	// Candidate thresholds ride along on live traffic when configured.
	var evaluator *shadow.Evaluator
	if cfg.ShadowEnabled() {
		evaluator, err = shadow.NewEvaluator(store, store.GetPool(), cfg.ShadowTauLow, cfg.ShadowTauHigh)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		go evaluator.Run(ctx)
		matcher = shadow.WrapMatcher(matcher, evaluator)
	}

	hub := api.NewHub(cfg.AllowedOrigins)
	go hub.Run()

	sweeper := reconcile.NewSweeper(store, hub.NotifyIncident)
	if cfg.ReconcileInterval > 0 {
		go sweeper.RunEvery(ctx, cfg.ReconcileInterval, reconcileWindow)
	}

	pipeDeps := pipeline.Deps{
		Store:      lockedStore{store},
		Matcher:    matcher,
		Gate:       gate.New(cfg.MaxAgeDays),
		Classifier: classify.New(),
		Geo:        geo.NewAnalyzer(scope, gaz),
		Gazetteer:  gaz,
		Notifier:   hub,
		EmbedModel: embedModel,
	}
	if adj != nil {
		pipeDeps.Adjudicator = adj
	}
	engine := pipeline.NewEngine(pipeDeps)

	// Feed fetcher, when a roster is configured. It shares the engine with
	// the HTTP write path.
	if cfg.FeedsPath != "" {
		feeds, err := ingest.LoadFeeds(cfg.FeedsPath)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		seen := ingest.NewSeenCache(cfg.SnapshotPath)
		go ingest.NewFetcher(feeds, engine, seen).Run(ctx, cfg.FeedInterval)
	}

	deps := api.Deps{
		Engine:         engine,
		Store:          store,
		Hub:            hub,
		Sweeper:        sweeper,
		Gazetteer:      gaz,
		Embedder:       embedder,
		IngestToken:    cfg.IngestToken,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    api.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, rdb),
	}
	if evaluator != nil {
		deps.Shadow = evaluator
	}

	r := api.SetupRouter(deps)

	log.Printf("Engine listening on :%s (scope: %s)", cfg.Port, cfg.GeoScope)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

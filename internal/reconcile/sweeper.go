package reconcile

import (
	"context"
	"log"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/internal/consolidate"
	"github.com/dronewatch/incident-engine/internal/metrics"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// Store is the slice of the database the sweeper needs: a window scan and
// the transactional absorb.
type Store interface {
	IncidentsForReconcile(ctx context.Context, since time.Time) ([]models.Incident, error)
	AbsorbIncidents(ctx context.Context, survivor models.Incident, absorbed []uuid.UUID) error
}

// Sweeper re-runs consolidation over a recent window, catching duplicates
// that slipped past the write path (concurrent arrivals in different
// fingerprint buckets resolve here once their rows settle). One sweep runs
// at a time; progress is readable while it runs.
type Sweeper struct {
	store  Store
	notify func(action string, inc models.Incident) // optional broadcast callback

	// Progress tracking (atomic for safe concurrent reads)
	scanned    atomic.Int64
	clusters   atomic.Int64
	merged     atomic.Int64
	lastRun    atomic.Int64 // unix seconds, 0 until the first sweep
	isRunning  atomic.Bool
	lastFailed atomic.Bool
}

// Progress is the sweeper's current state for the API.
type Progress struct {
	IsRunning        bool   `json:"isRunning"`
	IncidentsScanned int64  `json:"incidentsScanned"`
	ClustersFound    int64  `json:"clustersFound"`
	IncidentsMerged  int64  `json:"incidentsMerged"`
	LastRun          string `json:"lastRun,omitempty"`
	LastRunFailed    bool   `json:"lastRunFailed"`
}

func NewSweeper(store Store, notify func(action string, inc models.Incident)) *Sweeper {
	return &Sweeper{store: store, notify: notify}
}

// GetProgress returns the current sweep state (thread-safe).
func (s *Sweeper) GetProgress() Progress {
	p := Progress{
		IsRunning:        s.isRunning.Load(),
		IncidentsScanned: s.scanned.Load(),
		ClustersFound:    s.clusters.Load(),
		IncidentsMerged:  s.merged.Load(),
		LastRunFailed:    s.lastFailed.Load(),
	}
	if ts := s.lastRun.Load(); ts > 0 {
		p.LastRun = time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return p
}

// Start launches one sweep over incidents that occurred within the window,
// asynchronously. Returns false when a sweep is already in progress.
func (s *Sweeper) Start(ctx context.Context, window time.Duration) bool {
	if !s.isRunning.CompareAndSwap(false, true) {
		log.Println("[Reconcile] Sweep already in progress, ignoring duplicate request")
		return false
	}

	s.scanned.Store(0)
	s.clusters.Store(0)
	s.merged.Store(0)

	go func() {
		defer s.isRunning.Store(false)
		defer s.lastRun.Store(time.Now().Unix())
		s.lastFailed.Store(s.sweep(ctx, window) != nil)
	}()
	return true
}

// RunEvery sweeps on a fixed interval until the context ends.
func (s *Sweeper) RunEvery(ctx context.Context, every, window time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Start(ctx, window)
		}
	}
}

// sweep loads the window, groups rows by deduplication fingerprint, and
// absorbs every multi-row group into its earliest member.
func (s *Sweeper) sweep(ctx context.Context, window time.Duration) error {
	since := time.Now().UTC().Add(-window)
	log.Printf("[Reconcile] Starting sweep over incidents since %s", since.Format(time.RFC3339))

	incidents, err := s.store.IncidentsForReconcile(ctx, since)
	if err != nil {
		log.Printf("[Reconcile] Window scan failed: %v", err)
		return err
	}
	s.scanned.Store(int64(len(incidents)))

	// Rows arrive ordered by occurred_at, so the first member of every
	// group is the surviving row.
	groups := make(map[string][]models.Incident)
	var order []string
	for _, inc := range incidents {
		fp := consolidate.Fingerprint(inc.Lat, inc.Lon, inc.OccurredAt, inc.Country, inc.AssetType)
		if _, seen := groups[fp]; !seen {
			order = append(order, fp)
		}
		groups[fp] = append(groups[fp], inc)
	}
	sort.Strings(order)

	var firstErr error
	for _, fp := range order {
		group := groups[fp]
		if len(group) < 2 {
			continue
		}
		select {
		case <-ctx.Done():
			log.Printf("[Reconcile] Sweep cancelled after %d merges", s.merged.Load())
			return ctx.Err()
		default:
		}
		s.clusters.Add(1)

		survivor := consolidate.Merge(group)
		absorbed := make([]uuid.UUID, 0, len(group)-1)
		for _, in := range group[1:] {
			absorbed = append(absorbed, in.ID)
		}

		if err := s.store.AbsorbIncidents(ctx, survivor, absorbed); err != nil {
			log.Printf("[Reconcile] Cluster %s absorb failed: %v", fp, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.merged.Add(int64(len(absorbed)))
		log.Printf("[Reconcile] Merged %d rows into %s (%q)", len(absorbed), survivor.ID, survivor.Title)

		if s.notify != nil {
			s.notify("merged", survivor)
		}
	}

	metrics.ReconcileCompleted(int(s.merged.Load()))
	log.Printf("[Reconcile] Sweep complete: %d incidents, %d clusters, %d rows merged",
		s.scanned.Load(), s.clusters.Load(), s.merged.Load())
	return firstErr
}

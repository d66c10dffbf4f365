package reconcile

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dronewatch/incident-engine/pkg/models"
)

type absorbCall struct {
	survivor models.Incident
	absorbed []uuid.UUID
}

type fakeStore struct {
	incidents []models.Incident
	scanErr   error
	absorbErr error
	gate      chan struct{} // when set, the scan blocks until it closes

	mu      sync.Mutex
	absorbs []absorbCall
}

func (f *fakeStore) IncidentsForReconcile(ctx context.Context, since time.Time) ([]models.Incident, error) {
	if f.gate != nil {
		<-f.gate
	}
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.incidents, nil
}

func (f *fakeStore) AbsorbIncidents(ctx context.Context, survivor models.Incident, absorbed []uuid.UUID) error {
	if f.absorbErr != nil {
		return f.absorbErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.absorbs = append(f.absorbs, absorbCall{survivor, absorbed})
	return nil
}

func (f *fakeStore) calls() []absorbCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]absorbCall, len(f.absorbs))
	copy(out, f.absorbs)
	return out
}

func waitIdle(t *testing.T, s *Sweeper) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.GetProgress().IsRunning {
		if time.Now().After(deadline) {
			t.Fatal("Sweep did not finish in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func bucketIncident(title string, minute int, assetType string, src models.IncidentSource) models.Incident {
	occurred := time.Date(2025, 10, 2, 14, minute, 0, 0, time.UTC)
	return models.Incident{
		ID:          uuid.New(),
		Title:       title,
		OccurredAt:  occurred,
		FirstSeenAt: occurred,
		LastSeenAt:  occurred,
		Lat:         55.61, Lon: 12.64,
		AssetType: assetType,
		Country:   "DK",
		Sources:   []models.IncidentSource{src},
	}
}

func TestSweepAbsorbsFingerprintClusters(t *testing.T) {
	police := models.IncidentSource{SourceURL: "https://politi.dk/a", SourceType: models.SourcePolice, TrustWeight: 4}
	media := models.IncidentSource{SourceURL: "https://dr.dk/b", SourceType: models.SourceMedia, TrustWeight: 3}
	other := models.IncidentSource{SourceURL: "https://tv2.dk/c", SourceType: models.SourceMedia, TrustWeight: 2}

	a := bucketIncident("Drone at Kastrup", 0, models.AssetAirport, police)
	b := bucketIncident("Drones spotted over Copenhagen Airport runway", 30, models.AssetAirport, media)
	lone := bucketIncident("Drone near harbor", 30, models.AssetHarbor, other)

	store := &fakeStore{incidents: []models.Incident{a, b, lone}}
	var notified []string
	sweeper := NewSweeper(store, func(action string, inc models.Incident) {
		notified = append(notified, action)
	})

	if !sweeper.Start(context.Background(), time.Hour) {
		t.Fatal("Expected the sweep to start")
	}
	waitIdle(t, sweeper)

	calls := store.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected 1 absorb call, got %d", len(calls))
	}
	if calls[0].survivor.ID != a.ID {
		t.Errorf("Expected the earliest row %s to survive, got %s", a.ID, calls[0].survivor.ID)
	}
	if len(calls[0].absorbed) != 1 || calls[0].absorbed[0] != b.ID {
		t.Errorf("Expected %s to be absorbed, got %v", b.ID, calls[0].absorbed)
	}
	if calls[0].survivor.Title != b.Title {
		t.Errorf("Expected the richer title to win, got %q", calls[0].survivor.Title)
	}
	if calls[0].survivor.EvidenceScore != 4 {
		t.Errorf("Expected merged evidence 4 from the police source, got %d", calls[0].survivor.EvidenceScore)
	}
	if got := len(calls[0].survivor.Sources); got != 2 {
		t.Errorf("Expected the source union of 2, got %d", got)
	}
	if !calls[0].survivor.LastSeenAt.After(calls[0].survivor.OccurredAt) {
		t.Errorf("Expected the time range to widen, got occurred %s last %s",
			calls[0].survivor.OccurredAt, calls[0].survivor.LastSeenAt)
	}

	p := sweeper.GetProgress()
	if p.IncidentsScanned != 3 || p.ClustersFound != 1 || p.IncidentsMerged != 1 {
		t.Errorf("Expected progress 3/1/1, got %d/%d/%d", p.IncidentsScanned, p.ClustersFound, p.IncidentsMerged)
	}
	if p.LastRunFailed {
		t.Error("Expected a clean run")
	}
	if p.LastRun == "" {
		t.Error("Expected lastRun to be recorded")
	}
	if len(notified) != 1 || notified[0] != "merged" {
		t.Errorf("Expected one merged notification, got %v", notified)
	}
}

func TestStartRejectsConcurrentSweeps(t *testing.T) {
	gate := make(chan struct{})
	store := &fakeStore{gate: gate}
	sweeper := NewSweeper(store, nil)

	if !sweeper.Start(context.Background(), time.Hour) {
		t.Fatal("Expected the first sweep to start")
	}
	if sweeper.Start(context.Background(), time.Hour) {
		t.Error("Expected the second start to be refused while running")
	}
	close(gate)
	waitIdle(t, sweeper)

	if !sweeper.Start(context.Background(), time.Hour) {
		t.Error("Expected a new sweep to start once idle")
	}
	waitIdle(t, sweeper)
}

func TestSweepRecordsScanFailure(t *testing.T) {
	store := &fakeStore{scanErr: fmt.Errorf("connection refused")}
	sweeper := NewSweeper(store, nil)

	sweeper.Start(context.Background(), time.Hour)
	waitIdle(t, sweeper)

	if p := sweeper.GetProgress(); !p.LastRunFailed {
		t.Error("Expected the failed scan to be reported")
	}
}

func TestSweepContinuesPastAbsorbFailure(t *testing.T) {
	police := models.IncidentSource{SourceURL: "https://politi.dk/a", SourceType: models.SourcePolice, TrustWeight: 4}
	media := models.IncidentSource{SourceURL: "https://dr.dk/b", SourceType: models.SourceMedia, TrustWeight: 3}
	a := bucketIncident("Drone at Kastrup", 0, models.AssetAirport, police)
	b := bucketIncident("Second report", 30, models.AssetAirport, media)

	store := &fakeStore{incidents: []models.Incident{a, b}, absorbErr: fmt.Errorf("deadlock detected")}
	sweeper := NewSweeper(store, nil)

	sweeper.Start(context.Background(), time.Hour)
	waitIdle(t, sweeper)

	p := sweeper.GetProgress()
	if p.IncidentsMerged != 0 {
		t.Errorf("Expected no merges on absorb failure, got %d", p.IncidentsMerged)
	}
	if !p.LastRunFailed {
		t.Error("Expected the failed absorb to be reported")
	}
}

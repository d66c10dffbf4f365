package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dronewatch/incident-engine/internal/pipeline"
	"github.com/dronewatch/incident-engine/pkg/models"
)

// ─────────────────────────────────────────────────────────────────────────────
// Feed Fetcher
//
// Polls the configured source roster, hands each response to the feed's
// parser, and submits every unseen report into the write path. The fetcher
// owns politeness (bounded concurrency, per-request timeouts) and fetch-layer
// dedup; everything semantic (satire, geography, matching) belongs to the
// ingestion engine.
// ─────────────────────────────────────────────────────────────────────────────

const (
	// maxInFlight caps concurrent feed requests across the whole roster.
	maxInFlight = 10

	fetchTimeout = 20 * time.Second
	maxBodyBytes = 4 << 20
)

// Feed is one entry in the source roster.
type Feed struct {
	Name   string                  `json:"name"`
	URL    string                  `json:"url"`
	Parser string                  `json:"parser"`
	Source models.SourceDescriptor `json:"source"`
}

// Parser turns one fetched document into normalized reports. Implementations
// are registered per feed; the fetcher never inspects response bodies itself.
type Parser interface {
	Parse(feed Feed, body []byte) ([]models.Report, error)
}

// Ingestor is the slice of the write path the fetcher submits into.
type Ingestor interface {
	Ingest(ctx context.Context, req pipeline.IngestRequest) (*pipeline.Result, error)
}

// Fetcher polls feeds and feeds the engine.
type Fetcher struct {
	feeds   []Feed
	sink    Ingestor
	seen    *SeenCache
	client  *http.Client
	parsers map[string]Parser
}

// NewFetcher wires a fetcher over the given roster. The built-in "json"
// parser is always registered; source-specific parsers are added with
// RegisterParser before the fetcher starts.
func NewFetcher(feeds []Feed, sink Ingestor, seen *SeenCache) *Fetcher {
	return &Fetcher{
		feeds:   feeds,
		sink:    sink,
		seen:    seen,
		client:  &http.Client{Timeout: fetchTimeout},
		parsers: map[string]Parser{"json": JSONParser{}},
	}
}

// RegisterParser adds or replaces a named parser. Not safe to call once the
// fetcher is running.
func (f *Fetcher) RegisterParser(name string, p Parser) {
	f.parsers[name] = p
}

// LoadFeeds reads the source roster from a JSON file.
func LoadFeeds(path string) ([]Feed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed roster: %v", err)
	}
	var feeds []Feed
	if err := json.Unmarshal(raw, &feeds); err != nil {
		return nil, fmt.Errorf("parse feed roster %s: %v", path, err)
	}
	for i, fd := range feeds {
		if fd.URL == "" {
			return nil, fmt.Errorf("feed roster %s: entry %d has no url", path, i)
		}
	}
	return feeds, nil
}

// Run polls every feed on the given interval until the context ends. One
// pass runs immediately so a fresh deploy does not wait a full interval.
func (f *Fetcher) Run(ctx context.Context, interval time.Duration) {
	log.Printf("[Ingest] Fetcher started: %d feeds every %s", len(f.feeds), interval)
	f.FetchOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[Ingest] Fetcher stopped")
			return
		case <-ticker.C:
			f.FetchOnce(ctx)
		}
	}
}

// FetchOnce polls the whole roster once, at most maxInFlight feeds at a
// time, and snapshots the seen-URL set afterwards. Individual feed failures
// are logged and skipped so one dead source never starves the rest.
func (f *Fetcher) FetchOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)
	for _, feed := range f.feeds {
		g.Go(func() error {
			if err := f.poll(gctx, feed); err != nil {
				log.Printf("[Ingest] Feed %s failed: %v", feed.Name, err)
			}
			return nil
		})
	}
	g.Wait()

	if err := f.seen.Snapshot(); err != nil {
		log.Printf("[Ingest] Could not snapshot seen URLs: %v", err)
	}
}

func (f *Fetcher) poll(ctx context.Context, feed Feed) error {
	parserName := feed.Parser
	if parserName == "" {
		parserName = "json"
	}
	parser, ok := f.parsers[parserName]
	if !ok {
		return fmt.Errorf("no parser registered as %q", parserName)
	}

	body, err := f.fetch(ctx, feed.URL)
	if err != nil {
		return err
	}

	reports, err := parser.Parse(feed, body)
	if err != nil {
		return fmt.Errorf("parse: %v", err)
	}

	submitted := 0
	for _, rep := range reports {
		if rep.URL == "" {
			log.Printf("[Ingest] Feed %s produced a report without a URL, skipping", feed.Name)
			continue
		}
		if f.seen.Seen(rep.URL) {
			continue
		}
		if f.submit(ctx, rep) {
			submitted++
		}
	}
	if submitted > 0 {
		log.Printf("[Ingest] Feed %s: submitted %d new reports", feed.Name, submitted)
	}
	return nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "DroneWatchBot/1.0 (incident monitoring)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// submit pushes one report through the engine and reports whether it landed.
// Reports the engine refuses for caller-side reasons (satire, out of scope,
// invalid) are marked seen anyway so they are not replayed every cycle;
// server-side failures leave the URL unmarked for the next pass to retry.
func (f *Fetcher) submit(ctx context.Context, rep models.Report) bool {
	result, err := f.sink.Ingest(ctx, requestFromReport(rep))
	if err != nil {
		if pipeline.CallerCaused(err) {
			log.Printf("[Ingest] Report refused (%s): %s", pipeline.CategoryOf(err), rep.URL)
			f.seen.Mark(rep.URL)
		} else {
			log.Printf("[Ingest] Report failed, will retry: %s: %v", rep.URL, err)
		}
		return false
	}

	f.seen.Mark(rep.URL)
	log.Printf("[Ingest] Report %s -> incident %s (%s)", rep.URL, result.ID, result.Status)
	return true
}

// requestFromReport maps the normalized parser output onto an ingest request.
// Coordinates stay unset: the engine resolves them from the narrative text.
func requestFromReport(rep models.Report) pipeline.IngestRequest {
	published := rep.PublishedAt
	if published.IsZero() {
		published = time.Now()
	}
	stamp := published.UTC().Format(time.RFC3339)

	return pipeline.IngestRequest{
		Title:      rep.Title,
		Narrative:  rep.Narrative,
		OccurredAt: stamp,
		Sources: []pipeline.SourceInput{{
			SourceURL:   rep.URL,
			SourceType:  rep.Source.SourceType,
			SourceName:  rep.Source.Name,
			SourceTitle: rep.Title,
			TrustWeight: rep.Source.TrustWeight,
			PublishedAt: stamp,
			Lang:        rep.Source.Lang,
		}},
	}
}

// JSONParser decodes feeds that already emit the normalized report contract
// as a JSON array. Reports missing a source descriptor inherit the feed's.
type JSONParser struct{}

func (JSONParser) Parse(feed Feed, body []byte) ([]models.Report, error) {
	var reports []models.Report
	if err := json.Unmarshal(body, &reports); err != nil {
		return nil, err
	}
	for i := range reports {
		if reports[i].Source.Name == "" {
			reports[i].Source = feed.Source
		}
	}
	return reports, nil
}

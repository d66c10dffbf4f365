package gazetteer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"

	"github.com/dronewatch/incident-engine/internal/textproc"
)

// Entry is one curated place: an airport, harbor, military base, power plant
// or bridge with an authoritative coordinate. LowPrecision marks city-center
// fallback points so downstream consolidation can avoid clustering unrelated
// reports onto a default coordinate.
type Entry struct {
	Name         string   `json:"name"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	Country      string   `json:"country"` // ISO-2
	AssetType    string   `json:"assetType"`
	Aliases      []string `json:"aliases,omitempty"`
	LowPrecision bool     `json:"lowPrecision,omitempty"`
}

// Snapshot is an immutable, fully-built lookup table. Consumers hold a
// snapshot for the duration of one operation; reloads swap in a fresh one.
type Snapshot struct {
	byName map[string]*Entry
	cities []string // folded city tokens for the geographic analyzer
}

// Gazetteer is the process-wide place index. Read-only to consumers; the
// file watcher replaces the snapshot atomically on change.
type Gazetteer struct {
	current atomic.Pointer[Snapshot]
	path    string
}

// New builds a gazetteer from the curated file at path, falling back to the
// built-in defaults when path is empty or unreadable.
func New(path string) *Gazetteer {
	g := &Gazetteer{path: path}

	snap, err := buildSnapshot(path)
	if err != nil {
		log.Printf("[Gazetteer] %v; using built-in entries", err)
		snap = mustBuild(defaultEntries)
	}
	g.current.Store(snap)
	log.Printf("[Gazetteer] Loaded %d entries (%d lookup keys)", snap.entryCount(), len(snap.byName))
	return g
}

// Lookup resolves a place name to its entry. Matching is case- and
// diacritic-insensitive and covers aliases ("Kastrup", "København",
// "Copenhagen Airport" all resolve to the same coordinate).
func (g *Gazetteer) Lookup(name string) (*Entry, bool) {
	e, ok := g.current.Load().byName[Fold(name)]
	return e, ok
}

// Snapshot returns the current immutable table for bulk consumers.
func (g *Gazetteer) Snapshot() *Snapshot {
	return g.current.Load()
}

// CityTokens returns the folded single-word tokens of every known place,
// used by the geographic analyzer for in-scope city detection.
func (s *Snapshot) CityTokens() []string {
	return s.cities
}

// Lookup resolves against this snapshot only.
func (s *Snapshot) Lookup(name string) (*Entry, bool) {
	e, ok := s.byName[Fold(name)]
	return e, ok
}

// FindInText scans free text for any known place name or alias and returns
// the best match. Precise entries beat low-precision city fallbacks, longer
// names beat shorter ones ("copenhagen airport" over "copenhagen"), and the
// final tie-break is lexical so resolution is deterministic.
func (s *Snapshot) FindInText(text string) (*Entry, bool) {
	folded := Fold(text)

	var best *Entry
	var bestName string
	bestPrecise := false

	for name, e := range s.byName {
		if !containsWord(folded, name) {
			continue
		}
		precise := !e.LowPrecision
		better := best == nil ||
			(precise && !bestPrecise) ||
			(precise == bestPrecise && len(name) > len(bestName)) ||
			(precise == bestPrecise && len(name) == len(bestName) && name < bestName)
		if better {
			best, bestName, bestPrecise = e, name, precise
		}
	}
	return best, best != nil
}

// containsWord reports whether phrase occurs in text on word boundaries,
// so "oslo" does not match inside "gosloven".
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		if boundaryBefore(text, idx) && boundaryAfter(text, idx+len(phrase)) {
			return true
		}
		start = idx + 1
	}
}

func boundaryBefore(text string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:idx])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[end:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func (s *Snapshot) entryCount() int {
	seen := make(map[*Entry]bool, len(s.byName))
	for _, e := range s.byName {
		seen[e] = true
	}
	return len(seen)
}

// Reload rebuilds the snapshot from disk and swaps it in. Invalid files
// leave the current snapshot untouched.
func (g *Gazetteer) Reload() error {
	snap, err := buildSnapshot(g.path)
	if err != nil {
		return err
	}
	g.current.Store(snap)
	log.Printf("[Gazetteer] Reloaded: %d entries", snap.entryCount())
	return nil
}

func buildSnapshot(path string) (*Snapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("no gazetteer path configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gazetteer %s: %v", path, err)
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse gazetteer %s: %v", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("gazetteer %s contains no entries", path)
	}
	return build(entries)
}

func build(entries []Entry) (*Snapshot, error) {
	snap := &Snapshot{byName: make(map[string]*Entry, len(entries)*2)}
	citySet := make(map[string]bool)

	for i := range entries {
		e := &entries[i]
		if e.Name == "" {
			return nil, fmt.Errorf("gazetteer entry %d has no name", i)
		}
		if e.AssetType == "" {
			e.AssetType = "other"
		}
		snap.byName[Fold(e.Name)] = e
		for _, alias := range e.Aliases {
			snap.byName[Fold(alias)] = e
		}
		for _, tok := range strings.Fields(Fold(e.Name)) {
			if len(tok) >= 4 && !genericToken[tok] {
				citySet[tok] = true
			}
		}
		for _, alias := range e.Aliases {
			for _, tok := range strings.Fields(Fold(alias)) {
				if len(tok) >= 4 && !genericToken[tok] {
					citySet[tok] = true
				}
			}
		}
	}

	snap.cities = make([]string, 0, len(citySet))
	for tok := range citySet {
		snap.cities = append(snap.cities, tok)
	}
	return snap, nil
}

func mustBuild(entries []Entry) *Snapshot {
	snap, err := build(entries)
	if err != nil {
		panic(fmt.Sprintf("built-in gazetteer is invalid: %v", err))
	}
	return snap
}

// genericToken filters infrastructure words out of the city-token set so
// "airport" alone never counts as a place match.
var genericToken = map[string]bool{
	"airport": true, "airbase": true, "airfield": true, "base": true,
	"harbor": true, "harbour": true, "port": true, "bridge": true,
	"power": true, "plant": true, "station": true, "naval": true,
	"lufthavn": true, "flygplats": true, "flyplass": true, "lentoasema": true,
	"havn": true, "hamn": true, "flughafen": true,
}

// Fold is the shared case- and diacritic-insensitive key function.
func Fold(name string) string {
	return textproc.Fold(name)
}

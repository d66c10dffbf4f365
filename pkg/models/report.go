package models

import "time"

// Report is the normalized tuple a feed parser hands to the ingest layer.
// Parsers for specific RSS/HTML sources live outside this module; anything
// that can produce this tuple can feed the pipeline.
type Report struct {
	Title       string           `json:"title"`
	Narrative   string           `json:"narrative,omitempty"`
	URL         string           `json:"url"`
	PublishedAt time.Time        `json:"publishedAt"`
	Source      SourceDescriptor `json:"source"`
}

// SourceDescriptor identifies the outlet a report came from.
type SourceDescriptor struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	SourceType  string `json:"sourceType"`
	TrustWeight int    `json:"trustWeight"`
	Lang        string `json:"lang,omitempty"`
}

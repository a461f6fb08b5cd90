// Package scrape defines the core types for the eSIM catalog pipeline and the
// orchestrator that drives enumeration, per-product fetching, and extraction.
package scrape

import (
	"time"
)

// ProductReference identifies one storefront product to visit. References are
// created by an Enumerator and consumed once by the Orchestrator.
type ProductReference struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	SourceURL   string `json:"source_url"`
}

// Plan is a single data plan offered by a product. Every field except Label is
// optional; an absent price means "not determined", not "free".
type Plan struct {
	Label    string `json:"label"`
	Data     string `json:"data,omitempty"`
	Validity string `json:"validity,omitempty"`
	Price    string `json:"price,omitempty"`
}

// ProductRecord is the normalized outcome of scraping one product. It is
// produced once per product per run and never mutated afterwards. Countries is
// deduplicated preserving first-seen order. A record with empty Countries and
// Plans is legal; extraction is best effort.
type ProductRecord struct {
	Name      string   `json:"name"`
	SourceID  string   `json:"id"`
	URL       string   `json:"url"`
	Countries []string `json:"countries"`
	Plans     []Plan   `json:"plans"`
}

// ScrapeResult is one complete run over the catalog. The run that produced it
// owns it exclusively until the cache takes ownership of the finished value.
type ScrapeResult struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Channel    string          `json:"channel"`
	Records    []ProductRecord `json:"records"`
}

// Len returns the number of product records in the result.
func (r ScrapeResult) Len() int {
	return len(r.Records)
}

// Raw is the polymorphic content returned by a fetch channel. Exactly one of
// JSON or HTML is populated: browser-context API calls yield JSON, page
// navigation yields a rendered HTML document.
type Raw struct {
	JSON map[string]any
	HTML []byte
}

// IsZero reports whether the fetch produced no usable content at all.
func (r Raw) IsZero() bool {
	return r.JSON == nil && len(r.HTML) == 0
}

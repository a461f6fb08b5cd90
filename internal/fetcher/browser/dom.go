package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// DOMConfig controls the pages a DOMFetcher renders.
type DOMConfig struct {
	BaseURL string
}

// DOMFetcher renders storefront pages in the browser and hands the resulting
// HTML to the extraction layer. It is the fallback channel for when the JSON
// API is unavailable or changes shape.
type DOMFetcher struct {
	session *Session
	cfg     DOMConfig
}

// NewDOMFetcher wraps a session.
func NewDOMFetcher(session *Session, cfg DOMConfig) *DOMFetcher {
	return &DOMFetcher{session: session, cfg: cfg}
}

// Channel reports the fetch channel name.
func (f *DOMFetcher) Channel() string { return "dom" }

// FetchListing renders the category index page.
func (f *DOMFetcher) FetchListing(ctx context.Context) (scrape.Raw, error) {
	html, err := f.session.FetchHTML(ctx, strings.TrimRight(f.cfg.BaseURL, "/")+"/us/en/esims/")
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("listing render: %w", err)
	}
	return scrape.Raw{HTML: html}, nil
}

// FetchProduct renders one product page.
func (f *DOMFetcher) FetchProduct(ctx context.Context, ref scrape.ProductReference) (scrape.Raw, error) {
	html, err := f.session.FetchHTML(ctx, ref.SourceURL)
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("product render %s: %w", ref.ID, err)
	}
	return scrape.Raw{HTML: html}, nil
}

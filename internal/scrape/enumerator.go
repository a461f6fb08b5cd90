package scrape

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// knownSlugs is the degraded-but-available enumeration mode used when the
// listing endpoint is unreachable, empty, or reshaped. These slugs are stable
// storefront identifiers, not duplicate catalog data.
var knownSlugs = []string{
	"bitrefill-esim-north-america",
	"bitrefill-esim-usa",
	"bitrefill-esim-global",
	"bitrefill-esim-europe",
	"bitrefill-esim-united-arab-emirates",
	"bitrefill-esim-united-kingdom",
	"bitrefill-esim-canada",
	"bitrefill-esim-mexico",
	"bitrefill-esim-asia",
	"bitrefill-esim-latam",
	"bitrefill-esim-oceania",
	"bitrefill-esim-africa",
	"bitrefill-esim-middle-east",
}

const slugPrefix = "bitrefill-esim-"

// ListingConfig controls listing enumeration.
type ListingConfig struct {
	// BaseURL is the storefront origin, e.g. https://www.bitrefill.com.
	BaseURL string
	// Keyword filters listing items to the product family (default "esim").
	Keyword string
	// MaxProducts caps the enumerated sequence; 0 means no cap.
	MaxProducts int
}

// ListingEnumerator discovers products from the catalog listing, falling back
// to the fixed known-slug list when the listing yields nothing.
type ListingEnumerator struct {
	fetcher Fetcher
	cfg     ListingConfig
	logger  *zap.Logger
}

// NewListingEnumerator builds the two-tier enumerator.
func NewListingEnumerator(fetcher Fetcher, cfg ListingConfig, logger *zap.Logger) *ListingEnumerator {
	if cfg.Keyword == "" {
		cfg.Keyword = "esim"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingEnumerator{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Enumerate returns the product sequence for one run. A failed or empty
// listing degrades to the known-slug list rather than erroring, because the
// upstream listing is not guaranteed to be discoverable.
func (e *ListingEnumerator) Enumerate(ctx context.Context) ([]ProductReference, error) {
	if ctx.Err() != nil {
		return nil, fmt.Errorf("enumerate: %w", ctx.Err())
	}

	var refs []ProductReference
	raw, err := e.fetcher.FetchListing(ctx)
	if err != nil {
		e.logger.Warn("listing fetch failed, falling back to known slugs", zap.Error(err))
	} else {
		refs = e.refsFromRaw(raw)
	}

	if len(refs) == 0 {
		e.logger.Info("listing yielded no products, using known slug list",
			zap.Int("slugs", len(knownSlugs)),
		)
		refs = e.fallbackRefs()
	}

	if e.cfg.MaxProducts > 0 && len(refs) > e.cfg.MaxProducts {
		refs = refs[:e.cfg.MaxProducts]
	}
	return refs, nil
}

func (e *ListingEnumerator) refsFromRaw(raw Raw) []ProductReference {
	if raw.JSON != nil {
		return e.refsFromListing(raw.JSON)
	}
	if len(raw.HTML) > 0 {
		return e.refsFromDocument(raw.HTML)
	}
	return nil
}

// refsFromListing filters the listing payload to items whose identifier or
// name contains the family keyword.
func (e *ListingEnumerator) refsFromListing(doc map[string]any) []ProductReference {
	items, ok := doc["products"].([]any)
	if !ok || len(items) == 0 {
		items, _ = doc["data"].([]any)
	}

	var refs []ProductReference
	for _, entry := range items {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		id := firstNonEmpty(
			stringField(item, "id"),
			stringField(item, "slug"),
			stringField(item, "name"),
		)
		if id == "" || !containsFold(id, e.cfg.Keyword) {
			continue
		}
		name := stringField(item, "name")
		if name == "" {
			name = slugToName(id)
		}
		refs = append(refs, ProductReference{
			ID:          id,
			DisplayName: name,
			SourceURL:   e.productURL(id),
		})
	}
	return refs
}

// refsFromDocument harvests product links from a rendered listing page.
func (e *ListingEnumerator) refsFromDocument(body []byte) []ProductReference {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("parse listing document failed", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var refs []ProductReference
	doc.Find(`a[href*="esim"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		id := strings.Trim(href[strings.LastIndex(strings.TrimRight(href, "/"), "/")+1:], "/")
		if id == "" || !containsFold(id, e.cfg.Keyword) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		name := strings.TrimSpace(sel.Text())
		if name == "" {
			name = slugToName(id)
		}
		refs = append(refs, ProductReference{
			ID:          id,
			DisplayName: name,
			SourceURL:   e.productURL(id),
		})
	})
	return refs
}

func (e *ListingEnumerator) fallbackRefs() []ProductReference {
	refs := make([]ProductReference, 0, len(knownSlugs))
	for _, slug := range knownSlugs {
		refs = append(refs, ProductReference{
			ID:          slug,
			DisplayName: slugToName(slug),
			SourceURL:   e.productURL(slug),
		})
	}
	return refs
}

func (e *ListingEnumerator) productURL(id string) string {
	return fmt.Sprintf("%s/us/en/esims/%s/", strings.TrimRight(e.cfg.BaseURL, "/"), id)
}

// slugToName converts a product slug into a display name: the family prefix
// is stripped, separators become spaces, and each word is title-cased.
func slugToName(slug string) string {
	trimmed := strings.TrimPrefix(slug, slugPrefix)
	words := strings.Split(strings.ReplaceAll(trimmed, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func stringField(doc map[string]any, field string) string {
	s, _ := doc[field].(string)
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

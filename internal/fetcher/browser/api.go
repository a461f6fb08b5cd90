package browser

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// APIConfig controls the storefront API endpoints an APIFetcher hits.
type APIConfig struct {
	BaseURL string
	Country string
	Limit   int
}

// APIFetcher retrieves listing and product payloads from the storefront's
// JSON API, issuing the requests from inside the browser page so they carry
// the session cookies established during bootstrap.
type APIFetcher struct {
	session *Session
	cfg     APIConfig
}

// NewAPIFetcher wraps a bootstrapped session.
func NewAPIFetcher(session *Session, cfg APIConfig) *APIFetcher {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	return &APIFetcher{session: session, cfg: cfg}
}

// Channel reports the fetch channel name.
func (f *APIFetcher) Channel() string { return "browserapi" }

// FetchListing pulls the catalog search endpoint filtered to in-stock,
// directly purchasable products.
func (f *APIFetcher) FetchListing(ctx context.Context) (scrape.Raw, error) {
	params := url.Values{}
	params.Set("country", f.cfg.Country)
	params.Set("s", "1")
	params.Set("limit", strconv.Itoa(f.cfg.Limit))
	params.Set("exclude_bill_pay_products", "1")
	params.Set("exclude_out_of_stock", "1")

	doc, err := f.session.FetchJSON(ctx, f.cfg.BaseURL+"/api/omni?"+params.Encode())
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("listing fetch: %w", err)
	}
	return scrape.Raw{JSON: doc}, nil
}

// FetchProduct pulls one product's detail payload.
func (f *APIFetcher) FetchProduct(ctx context.Context, ref scrape.ProductReference) (scrape.Raw, error) {
	doc, err := f.session.FetchJSON(ctx, f.cfg.BaseURL+"/api/product/"+url.PathEscape(ref.ID)+"?source=esim")
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("product fetch %s: %w", ref.ID, err)
	}
	return scrape.Raw{JSON: doc}, nil
}

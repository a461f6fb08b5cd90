// Package direct implements a plain-HTTP fetcher using gocolly. It talks to
// the storefront API without a browser session, which works when the site's
// anti-bot layer is lenient and is the cheapest channel to run.
package direct

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	BaseURL   string
	Country   string
	UserAgent string
	Limit     int
	Timeout   time.Duration
}

// Fetcher implements scrape.Fetcher over bare HTTP.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Channel reports the fetch channel name.
func (f *Fetcher) Channel() string { return "direct" }

// FetchListing pulls the catalog search endpoint.
func (f *Fetcher) FetchListing(ctx context.Context) (scrape.Raw, error) {
	params := url.Values{}
	params.Set("country", f.cfg.Country)
	params.Set("s", "1")
	params.Set("limit", strconv.Itoa(f.cfg.Limit))
	params.Set("exclude_bill_pay_products", "1")
	params.Set("exclude_out_of_stock", "1")

	doc, err := f.getJSON(ctx, f.cfg.BaseURL+"/api/omni?"+params.Encode())
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("listing fetch: %w", err)
	}
	return scrape.Raw{JSON: doc}, nil
}

// FetchProduct pulls one product's detail payload.
func (f *Fetcher) FetchProduct(ctx context.Context, ref scrape.ProductReference) (scrape.Raw, error) {
	doc, err := f.getJSON(ctx, f.cfg.BaseURL+"/api/product/"+url.PathEscape(ref.ID)+"?source=esim")
	if err != nil {
		return scrape.Raw{}, fmt.Errorf("product fetch %s: %w", ref.ID, err)
	}
	return scrape.Raw{JSON: doc}, nil
}

func (f *Fetcher) getJSON(ctx context.Context, target string) (map[string]any, error) {
	var (
		body     []byte
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
	})
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := runCollector(ctx, collector, target, &fetchErr); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err == nil {
		return doc, nil
	}
	var list []any
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	return map[string]any{"products": list}, nil
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

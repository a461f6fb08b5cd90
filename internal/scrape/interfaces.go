package scrape

import (
	"context"
	"time"
)

// Fetcher obtains raw content over one of the configured fetch channels. The
// channel only changes how content is obtained, never the orchestrator's
// control flow.
type Fetcher interface {
	// FetchListing returns the raw catalog listing used for enumeration.
	FetchListing(ctx context.Context) (Raw, error)
	// FetchProduct returns the raw content for a single product.
	FetchProduct(ctx context.Context, ref ProductReference) (Raw, error)
	// Channel names the fetch channel for logs and metrics.
	Channel() string
}

// Enumerator discovers the sequence of products to visit.
type Enumerator interface {
	Enumerate(ctx context.Context) ([]ProductReference, error)
}

// Extractor derives normalized countries and plans from raw product content.
// Implementations never fail past their own boundary; a fully unparseable
// input yields empty results.
type Extractor interface {
	Extract(raw Raw) ([]string, []Plan)
	// Name returns the display name carried by the raw content, or "".
	Name(raw Raw) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

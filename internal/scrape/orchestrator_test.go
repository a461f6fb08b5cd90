package scrape

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// stubFetcher serves canned content per product and can fail a product for a
// configured number of attempts.
type stubFetcher struct {
	mu         sync.Mutex
	channel    string
	listing    Raw
	listingErr error
	products   map[string]Raw
	failFirst  map[string]int
	calls      map[string]int
}

func (f *stubFetcher) FetchListing(context.Context) (Raw, error) {
	if f.listingErr != nil {
		return Raw{}, f.listingErr
	}
	return f.listing, nil
}

func (f *stubFetcher) FetchProduct(_ context.Context, ref ProductReference) (Raw, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[ref.ID]++
	if remaining := f.failFirst[ref.ID]; remaining > 0 {
		f.failFirst[ref.ID]--
		return Raw{}, errBoom
	}
	raw, ok := f.products[ref.ID]
	if !ok {
		return Raw{}, errBoom
	}
	return raw, nil
}

func (f *stubFetcher) Channel() string { return f.channel }

func (f *stubFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type stubEnumerator struct {
	refs []ProductReference
	err  error
}

func (e *stubEnumerator) Enumerate(context.Context) ([]ProductReference, error) {
	return e.refs, e.err
}

// stubExtractor reads pre-normalized values straight out of the raw payload.
type stubExtractor struct{}

func (stubExtractor) Extract(raw Raw) ([]string, []Plan) {
	if raw.JSON == nil {
		return nil, nil
	}
	var countries []string
	if list, ok := raw.JSON["countries"].([]string); ok {
		countries = list
	}
	return countries, nil
}

func (stubExtractor) Name(raw Raw) string {
	if raw.JSON == nil {
		return ""
	}
	name, _ := raw.JSON["name"].(string)
	return name
}

type tickingClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixedIDs struct{ id string }

func (g fixedIDs) NewID() (string, error) { return g.id, nil }

func refsFor(ids ...string) []ProductReference {
	refs := make([]ProductReference, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, ProductReference{
			ID:          id,
			DisplayName: id,
			SourceURL:   "https://shop.test/us/en/esims/" + id + "/",
		})
	}
	return refs
}

func newTestOrchestrator(enum Enumerator, fetcher Fetcher, cfg OrchestratorConfig) *Orchestrator {
	return NewOrchestrator(enum, fetcher, stubExtractor{}, &tickingClock{}, fixedIDs{id: "run-1"}, nil, nil, cfg)
}

func TestRunSkipsFailedProducts(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel: "test",
		products: map[string]Raw{
			"p1": {JSON: map[string]any{"name": "One", "countries": []string{"FR"}}},
			"p3": {JSON: map[string]any{"name": "Three"}},
		},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1", "p2", "p3")}, fetcher, OrchestratorConfig{})

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", result.RunID)
	require.Equal(t, "test", result.Channel)
	require.Len(t, result.Records, 2)
	require.Equal(t, "One", result.Records[0].Name)
	require.Equal(t, []string{"FR"}, result.Records[0].Countries)
	require.Equal(t, "Three", result.Records[1].Name)
	require.True(t, result.FinishedAt.After(result.StartedAt))
}

func TestRunRetriesFetchOnce(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel:   "test",
		products:  map[string]Raw{"p1": {JSON: map[string]any{"name": "One"}}},
		failFirst: map[string]int{"p1": 1},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1")}, fetcher, OrchestratorConfig{FetchAttempts: 2})

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, 2, fetcher.callCount("p1"))
}

func TestRunExhaustedRetriesDropProduct(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel:   "test",
		products:  map[string]Raw{"p1": {JSON: map[string]any{"name": "One"}}},
		failFirst: map[string]int{"p1": 2},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1")}, fetcher, OrchestratorConfig{FetchAttempts: 2})

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.Equal(t, 2, fetcher.callCount("p1"))
}

func TestRunEmptyContentSkipsProduct(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel:  "test",
		products: map[string]Raw{"p1": {}},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1")}, fetcher, OrchestratorConfig{FetchAttempts: 3})

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.Equal(t, 1, fetcher.callCount("p1"))
}

func TestRunEnumerationFailure(t *testing.T) {
	t.Parallel()

	orch := newTestOrchestrator(&stubEnumerator{err: errBoom}, &stubFetcher{channel: "test"}, OrchestratorConfig{})

	result, err := orch.Run(context.Background())
	require.Error(t, err)
	require.Empty(t, result.Records)
	require.Equal(t, "run-1", result.RunID)
}

func TestRunNameFallsBackToReference(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel:  "test",
		products: map[string]Raw{"p1": {JSON: map[string]any{"countries": []string{"US"}}}},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1")}, fetcher, OrchestratorConfig{})

	result, err := orch.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	require.Equal(t, "p1", result.Records[0].Name)
}

func TestRunCanceledContextStopsEarly(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &stubFetcher{
		channel:  "test",
		products: map[string]Raw{"p1": {JSON: map[string]any{"name": "One"}}},
	}
	orch := newTestOrchestrator(&stubEnumerator{refs: refsFor("p1", "p2")}, fetcher, OrchestratorConfig{})

	result, err := orch.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, result.Records)
	require.Equal(t, 0, fetcher.callCount("p1"))
}

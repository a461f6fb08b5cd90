package scrape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnumerateFromListing(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel: "test",
		listing: Raw{JSON: map[string]any{
			"products": []any{
				map[string]any{"id": "bitrefill-esim-japan"},
				map[string]any{"id": "gift-card-amazon"},
				map[string]any{"slug": "esim-europe", "name": "Europe eSIM"},
			},
		}},
	}
	enum := NewListingEnumerator(fetcher, ListingConfig{BaseURL: "https://shop.test"}, nil)

	refs, err := enum.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "bitrefill-esim-japan", refs[0].ID)
	require.Equal(t, "Japan", refs[0].DisplayName)
	require.Equal(t, "https://shop.test/us/en/esims/bitrefill-esim-japan/", refs[0].SourceURL)
	require.Equal(t, "esim-europe", refs[1].ID)
	require.Equal(t, "Europe eSIM", refs[1].DisplayName)
}

func TestEnumerateFallsBackOnFetchError(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{channel: "test", listingErr: errBoom}
	enum := NewListingEnumerator(fetcher, ListingConfig{BaseURL: "https://shop.test"}, nil)

	refs, err := enum.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, len(knownSlugs))
	require.Equal(t, "bitrefill-esim-north-america", refs[0].ID)
	require.Equal(t, "North America", refs[0].DisplayName)
}

func TestEnumerateFallsBackOnEmptyListing(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		channel: "test",
		listing: Raw{JSON: map[string]any{"products": []any{}}},
	}
	enum := NewListingEnumerator(fetcher, ListingConfig{BaseURL: "https://shop.test"}, nil)

	refs, err := enum.Enumerate(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, refs)
	require.Len(t, refs, len(knownSlugs))
}

func TestEnumerateRespectsMaxProducts(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{channel: "test", listingErr: errBoom}
	enum := NewListingEnumerator(fetcher, ListingConfig{BaseURL: "https://shop.test", MaxProducts: 5}, nil)

	refs, err := enum.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 5)
}

func TestEnumerateFromDocument(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<a href="/us/en/esims/bitrefill-esim-asia/">Asia eSIM</a>
		<a href="/us/en/esims/bitrefill-esim-asia/">Asia eSIM</a>
		<a href="/us/en/esims/bitrefill-esim-africa/"></a>
		<a href="/us/en/gift-cards/amazon/">Amazon</a>
	</body></html>`)
	fetcher := &stubFetcher{channel: "test", listing: Raw{HTML: body}}
	enum := NewListingEnumerator(fetcher, ListingConfig{BaseURL: "https://shop.test"}, nil)

	refs, err := enum.Enumerate(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, "bitrefill-esim-asia", refs[0].ID)
	require.Equal(t, "Asia eSIM", refs[0].DisplayName)
	require.Equal(t, "bitrefill-esim-africa", refs[1].ID)
	require.Equal(t, "Africa", refs[1].DisplayName)
}

func TestEnumerateCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	enum := NewListingEnumerator(&stubFetcher{channel: "test"}, ListingConfig{}, nil)
	_, err := enum.Enumerate(ctx)
	require.Error(t, err)
}

func TestSlugToName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "United Arab Emirates", slugToName("bitrefill-esim-united-arab-emirates"))
	require.Equal(t, "Usa", slugToName("bitrefill-esim-usa"))
	require.Equal(t, "Other Product", slugToName("other-product"))
}

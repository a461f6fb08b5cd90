package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

func TestExtractHTMLWorksInCountries(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<h1>Europe eSIM</h1>
		<p>Works in: France, Germany &amp; Spain</p>
	</body></html>`)

	e := New(nil)
	countries, _ := e.Extract(scrape.Raw{HTML: body})
	require.Equal(t, []string{"France", "Germany", "Spain"}, countries)
}

func TestExtractHTMLCoverageListFallback(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<ul class="coverage-list">
			<li>Japan</li>
			<li>South Korea</li>
		</ul>
	</body></html>`)

	e := New(nil)
	countries, _ := e.Extract(scrape.Raw{HTML: body})
	require.Equal(t, []string{"Japan", "South Korea"}, countries)
}

func TestExtractHTMLPlans(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<div class="plan-card">5GB 30 Days $24.99</div>
		<div class="plan-card">5GB 30 Days $24.99</div>
		<div class="plan-card">10GB 30 Days $39.99</div>
		<button>Add to cart</button>
	</body></html>`)

	e := New(nil)
	_, plans := e.Extract(scrape.Raw{HTML: body})
	require.Len(t, plans, 2)
	require.Equal(t, "5GB 30 Days $24.99", plans[0].Label)
	require.Equal(t, "5GB", plans[0].Data)
	require.Equal(t, "30 Days", plans[0].Validity)
	require.Equal(t, "$24.99", plans[0].Price)
	require.Equal(t, "10GB", plans[1].Data)
}

func TestExtractHTMLName(t *testing.T) {
	t.Parallel()

	e := New(nil)
	name := e.Name(scrape.Raw{HTML: []byte(`<html><body><h1>Asia eSIM</h1></body></html>`)})
	require.Equal(t, "Asia eSIM", name)
}

func TestPlanFromTextRequiresToken(t *testing.T) {
	t.Parallel()

	_, ok := planFromText("Add to cart")
	require.False(t, ok)

	plan, ok := planFromText("1GB weekly pass")
	require.True(t, ok)
	require.Equal(t, "1GB", plan.Data)
	require.Empty(t, plan.Price)
}

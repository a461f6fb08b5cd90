package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

const (
	defaultPlanLabel = "Standard Plan"
	maxLabelLen      = 100
	maxCountryLen    = 50
)

var (
	dataTokenRe     = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s*(?:GB|MB)`)
	validityTokenRe = regexp.MustCompile(`(?i)\d+\s*days?`)
	priceTokenRe    = regexp.MustCompile(`\$[\d,]+(?:\.\d{2})?`)
	worksInRe       = regexp.MustCompile(`(?i)works?\s+in[\s:]+([^\n]+)`)
	countrySplitRe  = regexp.MustCompile(`[,&]`)
)

// planSelector matches the element classes the storefront has used for plan
// pickers across redesigns, plus bare buttons.
const planSelector = `[class*="plan"], [class*="option"], [class*="package"], [class*="variant"], button`

// extractHTML runs the DOM-channel heuristics over a rendered document.
func (e *Extractor) extractHTML(body []byte) ([]string, []scrape.Plan) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("parse rendered document failed", zap.Error(err))
		return nil, nil
	}

	countries := htmlCountries(doc)
	plans := htmlPlans(doc)
	return dedupe(countries), plans
}

// htmlCountries tries the "works in: ..." text pattern first, then falls back
// to list items near a coverage heading.
func htmlCountries(doc *goquery.Document) []string {
	text := doc.Text()
	if m := worksInRe.FindStringSubmatch(text); len(m) == 2 {
		if countries := splitCountryList(m[1]); len(countries) > 0 {
			return countries
		}
	}

	var out []string
	doc.Find(`[class*="coverage"] li, [class*="countries"] li, [class*="coverage"] span`).
		Each(func(_ int, sel *goquery.Selection) {
			name := strings.TrimSpace(sel.Text())
			if name != "" && len(name) < maxCountryLen {
				out = append(out, name)
			}
		})
	return out
}

func splitCountryList(raw string) []string {
	var out []string
	for _, part := range countrySplitRe.Split(raw, -1) {
		name := strings.TrimSpace(part)
		if name != "" && len(name) < maxCountryLen {
			out = append(out, name)
		}
	}
	return out
}

// htmlPlans scans candidate plan elements; an element qualifies when its text
// carries a data-amount token or a currency token.
func htmlPlans(doc *goquery.Document) []scrape.Plan {
	var plans []scrape.Plan
	seen := make(map[string]struct{})
	doc.Find(planSelector).Each(func(_ int, sel *goquery.Selection) {
		text := strings.Join(strings.Fields(sel.Text()), " ")
		plan, ok := planFromText(text)
		if !ok {
			return
		}
		if _, dup := seen[plan.Label]; dup {
			return
		}
		seen[plan.Label] = struct{}{}
		plans = append(plans, plan)
	})
	return plans
}

// planFromText derives a plan from free text, qualifying it on the presence
// of an amount or price token.
func planFromText(text string) (scrape.Plan, bool) {
	data := dataTokenRe.FindString(text)
	price := priceTokenRe.FindString(text)
	if data == "" && price == "" {
		return scrape.Plan{}, false
	}
	plan := scrape.Plan{
		Label:    truncateLabel(strings.TrimSpace(text)),
		Data:     data,
		Validity: validityTokenRe.FindString(text),
		Price:    price,
	}
	if plan.Label == "" {
		plan.Label = strings.TrimSpace(plan.Data + " " + plan.Validity)
		if plan.Label == "" {
			plan.Label = defaultPlanLabel
		}
	}
	return plan, true
}

func (e *Extractor) htmlName(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	name := ""
	doc.Find("h1, h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		name = strings.TrimSpace(sel.Text())
		return name == ""
	})
	return name
}

func truncateLabel(label string) string {
	if len(label) > maxLabelLen {
		return label[:maxLabelLen]
	}
	return label
}

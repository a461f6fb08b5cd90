// Package extract derives normalized product fields (covered countries, data
// plans, prices) from loosely structured storefront content. Heuristics are
// modeled as ordered source lists applied in priority order with
// first-non-empty-wins semantics, so adding or removing one is a data change.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// countrySource is one prioritized strategy for locating covered countries in
// a structured payload.
type countrySource struct {
	name string
	pull func(doc map[string]any) []string
}

// planSource is one prioritized strategy for locating plan entries.
type planSource struct {
	name string
	pull func(doc map[string]any) []scrape.Plan
}

// Extractor applies the heuristic source lists. Extraction never fails past
// its own boundary: a source that errors is logged and skipped, and the
// extractor always returns (possibly empty) results.
type Extractor struct {
	logger         *zap.Logger
	countrySources []countrySource
	planSources    []planSource
}

// New builds an Extractor with the default source priority lists.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{logger: logger}
	for _, field := range []string{
		"countries",
		"supported_countries",
		"works_in",
		"coverage",
		"coverage_countries",
		"regions",
		"country_codes",
	} {
		e.countrySources = append(e.countrySources, countryField(field))
	}
	for _, field := range []string{
		"plans",
		"options",
		"variants",
		"denominations",
		"data_plans",
		"packages",
	} {
		e.planSources = append(e.planSources, planField(field))
	}
	e.planSources = append(e.planSources, denominationRange())
	return e
}

// Extract dispatches on the raw content kind and returns the covered country
// set (deduplicated, insertion order) and the plan list.
func (e *Extractor) Extract(raw scrape.Raw) ([]string, []scrape.Plan) {
	if raw.JSON != nil {
		return e.extractJSON(raw.JSON)
	}
	if len(raw.HTML) > 0 {
		return e.extractHTML(raw.HTML)
	}
	return nil, nil
}

// Name returns the product display name carried by the raw content, or "".
func (e *Extractor) Name(raw scrape.Raw) string {
	if raw.JSON != nil {
		return firstString(raw.JSON, "name", "title")
	}
	if len(raw.HTML) > 0 {
		return e.htmlName(raw.HTML)
	}
	return ""
}

func (e *Extractor) extractJSON(doc map[string]any) ([]string, []scrape.Plan) {
	var countries []string
	for _, src := range e.countrySources {
		countries = e.applyCountrySource(src, doc)
		if len(countries) > 0 {
			break
		}
	}

	var plans []scrape.Plan
	for _, src := range e.planSources {
		plans = e.applyPlanSource(src, doc)
		if len(plans) > 0 {
			break
		}
	}
	return dedupe(countries), plans
}

// applyCountrySource runs one source, absorbing any panic so a malformed
// field degrades to empty instead of failing the product.
func (e *Extractor) applyCountrySource(src countrySource, doc map[string]any) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("country source failed",
				zap.String("source", src.name),
				zap.Any("error", r),
			)
			out = nil
		}
	}()
	return src.pull(doc)
}

func (e *Extractor) applyPlanSource(src planSource, doc map[string]any) (out []scrape.Plan) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("plan source failed",
				zap.String("source", src.name),
				zap.Any("error", r),
			)
			out = nil
		}
	}()
	return src.pull(doc)
}

// countryField builds a source reading countries from a single named field. A
// raw string value is treated as a single-element set; list entries may be
// strings or objects carrying name/country/code keys.
func countryField(field string) countrySource {
	return countrySource{
		name: field,
		pull: func(doc map[string]any) []string {
			value, ok := doc[field]
			if !ok {
				return nil
			}
			switch v := value.(type) {
			case string:
				if strings.TrimSpace(v) == "" {
					return nil
				}
				return []string{strings.TrimSpace(v)}
			case []any:
				var out []string
				for _, entry := range v {
					if name := countryName(entry); name != "" {
						out = append(out, name)
					}
				}
				return out
			default:
				return nil
			}
		},
	}
}

func countryName(entry any) string {
	switch v := entry.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		return firstString(v, "name", "country", "code")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// planField builds a source scanning a single named field for plan entries.
// An entry qualifies as a plan when it carries at least one of a data-amount
// token or a price.
func planField(field string) planSource {
	return planSource{
		name: field,
		pull: func(doc map[string]any) []scrape.Plan {
			list, ok := doc[field].([]any)
			if !ok {
				return nil
			}
			var out []scrape.Plan
			for _, entry := range list {
				if plan, ok := planFromEntry(entry); ok {
					out = append(out, plan)
				}
			}
			return out
		},
	}
}

// denominationRange constructs a single descriptive plan from min/max
// denomination bounds when no plan list is available.
func denominationRange() planSource {
	return planSource{
		name: "denomination_range",
		pull: func(doc map[string]any) []scrape.Plan {
			minDenom, minOK := doc["min_denomination"]
			maxDenom, maxOK := doc["max_denomination"]
			if !minOK || !maxOK {
				return nil
			}
			return []scrape.Plan{{
				Label: fmt.Sprintf("From %v to %v", minDenom, maxDenom),
			}}
		},
	}
}

func planFromEntry(entry any) (scrape.Plan, bool) {
	switch v := entry.(type) {
	case string:
		return planFromText(v)
	case map[string]any:
		label := firstString(v, "name", "description", "label", "data")
		if label == "" {
			label = composedLabel(v)
		}
		plan := scrape.Plan{
			Label: truncateLabel(strings.TrimSpace(label)),
			Price: NormalizePrice(firstValue(v, "price", "amount", "cost", "usd_price")),
		}
		if m := dataTokenRe.FindString(plan.Label); m != "" {
			plan.Data = m
		}
		if m := validityTokenRe.FindString(plan.Label); m != "" {
			plan.Validity = m
		}
		if plan.Data == "" && plan.Price == "" {
			return scrape.Plan{}, false
		}
		if plan.Label == "" {
			plan.Label = defaultPlanLabel
		}
		return plan, true
	default:
		return scrape.Plan{}, false
	}
}

// composedLabel assembles "<amount> <unit>, <duration> <unit>" from split
// fields used by some payload variants.
func composedLabel(entry map[string]any) string {
	amount := stringify(entry["data_amount"])
	unit := stringify(entry["data_unit"])
	duration := stringify(entry["duration"])
	durationUnit := stringify(entry["duration_unit"])
	if amount == "" && duration == "" {
		return ""
	}
	if durationUnit == "" {
		durationUnit = "Days"
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s, %s %s", amount, unit, duration, durationUnit))
}

// NormalizePrice renders a price value as a currency-formatted string.
// Numeric values become "$<n>.<2dp>"; strings already prefixed with "$" pass
// through; other strings are parsed as floats, falling back to "$<raw>". An
// empty result means the price was not determined.
func NormalizePrice(value any) string {
	switch p := value.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("$%.2f", p)
	case float32:
		return fmt.Sprintf("$%.2f", float64(p))
	case int:
		return fmt.Sprintf("$%.2f", float64(p))
	case int64:
		return fmt.Sprintf("$%.2f", float64(p))
	case string:
		s := strings.TrimSpace(p)
		if s == "" {
			return ""
		}
		if strings.HasPrefix(s, "$") {
			return s
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fmt.Sprintf("$%.2f", f)
		}
		return "$" + s
	default:
		return ""
	}
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstString(doc map[string]any, fields ...string) string {
	for _, field := range fields {
		if s, ok := doc[field].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func firstValue(doc map[string]any, fields ...string) any {
	for _, field := range fields {
		if v, ok := doc[field]; ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v
		}
	}
	return nil
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}

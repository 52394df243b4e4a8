package extract

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// price returns the first selector match whose text contains a digit. No
// cascade beyond the selector lists.
func (p *Pipeline) price(pg *page, site sites.Site) string {
	selectors := append(append([]string{}, site.PriceSelectors...), genericPriceSelectors...)
	for _, doc := range pg.docs() {
		for _, sel := range selectors {
			var found string
			doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if text := cleanText(s.Text()); containsDigit(text) {
					found = text
					return false
				}
				return true
			})
			if found != "" {
				return found
			}
		}
	}
	return ""
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// availability classifies the stock signal. The same policy applies on every
// path: text from the availability selector (document first, then frames) is
// matched against the keyword lists with out-of-stock winning; when no
// selector text exists at all, a strict site reports Unknown while a
// non-strict site scans the full page text before defaulting to InStock.
func (p *Pipeline) availability(pg *page, site sites.Site) (Availability, string) {
	var parts []string
	for _, doc := range pg.docs() {
		doc.Find(site.AvailabilitySelector).Each(func(_ int, s *goquery.Selection) {
			if text := cleanText(s.Text()); text != "" {
				parts = append(parts, text)
			}
		})
	}

	if len(parts) > 0 {
		stockText := strings.Join(parts, " ")
		return classify(stockText, site), stockText
	}

	if site.StrictAvailability {
		return Unknown, ""
	}

	var full strings.Builder
	for _, doc := range pg.docs() {
		full.WriteString(doc.Find("body").Text())
		full.WriteString(" ")
	}
	return classify(full.String(), site), ""
}

// classify applies the keyword lists; out-of-stock beats in-stock. A strict
// site with an in-stock list refuses to guess when the text matches neither.
func classify(text string, site sites.Site) Availability {
	lower := strings.ToLower(text)
	if containsAny(lower, site.OutOfStock) {
		return OutOfStock
	}
	if site.StrictAvailability && len(site.InStock) > 0 && !containsAny(lower, site.InStock) {
		return Unknown
	}
	return InStock
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

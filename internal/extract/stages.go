package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Stage 1: site selector hints, then generic fallbacks, against the main
// document and then every embedded frame.
func (p *Pipeline) nameFromSelectors(_ context.Context, pg *page, site sites.Site) string {
	selectors := append(append([]string{}, site.NameSelectors...), genericNameSelectors...)
	for _, doc := range pg.docs() {
		for _, sel := range selectors {
			var found string
			doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				if text := cleanText(s.Text()); ValidName(text, site) {
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

// Stage 2: JSON-LD structured data, searched recursively for a Product node
// exposing a name.
func (p *Pipeline) nameFromJSONLD(_ context.Context, pg *page, site sites.Site) string {
	for _, doc := range pg.docs() {
		var found string
		doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			var v any
			if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
				return true
			}
			if name := productName(v); ValidName(name, site) {
				found = name
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// productName walks arbitrarily nested JSON-LD looking for a product-typed
// node with a non-empty name.
func productName(v any) string {
	switch node := v.(type) {
	case map[string]any:
		if isProductType(node["@type"]) {
			if name, ok := node["name"].(string); ok {
				if name = cleanText(name); name != "" {
					return name
				}
			}
		}
		for _, child := range node {
			if name := productName(child); name != "" {
				return name
			}
		}
	case []any:
		for _, child := range node {
			if name := productName(child); name != "" {
				return name
			}
		}
	}
	return ""
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "Product")
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.EqualFold(s, "Product") {
				return true
			}
		}
	}
	return false
}

// Stage 3: meta tags, most specific first.
func (p *Pipeline) nameFromMeta(_ context.Context, pg *page, site sites.Site) string {
	metaSelectors := []string{
		`meta[property="og:title"]`,
		`meta[name="twitter:title"]`,
		`meta[property="og:description"]`,
		`meta[name="description"]`,
	}
	for _, doc := range pg.docs() {
		for _, sel := range metaSelectors {
			content := cleanText(doc.Find(sel).AttrOr("content", ""))
			content = stripStoreName(content, site)
			if ValidName(content, site) {
				return content
			}
		}
	}
	return ""
}

// Stage 4: document title with the store-name segment stripped.
func (p *Pipeline) nameFromTitle(_ context.Context, pg *page, site sites.Site) string {
	if pg.doc == nil {
		return ""
	}
	title := stripStoreName(cleanText(pg.doc.Find("title").First().Text()), site)
	if ValidName(title, site) {
		return title
	}
	return ""
}

var titleSeparators = regexp.MustCompile(`\s*(?:\||–|—|::|>>)\s*| - `)

// stripStoreName splits a title on common separators, drops segments that
// are just the store's own name, and keeps the longest remainder.
func stripStoreName(title string, site sites.Site) string {
	if title == "" {
		return ""
	}
	storeName := strings.ToLower(strings.TrimSpace(site.Name))

	var best string
	for _, seg := range titleSeparators.Split(title, -1) {
		seg = strings.TrimSpace(seg)
		lower := strings.ToLower(seg)
		if lower == "" || lower == storeName {
			continue
		}
		if len([]rune(seg)) > len([]rune(best)) {
			best = seg
		}
	}
	return best
}

// Stage 5: reconstruct a name from the URL itself.
var (
	nameParams = []string{"name", "product_name", "title"}
	digitRuns  = regexp.MustCompile(`\d+`)
)

func (p *Pipeline) nameFromURL(_ context.Context, pg *page, site sites.Site) string {
	u, err := url.Parse(pg.url)
	if err != nil {
		return ""
	}

	q := u.Query()
	for _, param := range nameParams {
		if v := cleanText(q.Get(param)); ValidName(v, site) {
			return v
		}
	}

	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) == 0 {
		return ""
	}
	last := segs[len(segs)-1]
	if unescaped, err := url.PathUnescape(last); err == nil {
		last = unescaped
	}
	last = strings.TrimSuffix(last, path.Ext(last))
	last = strings.NewReplacer("-", " ", "_", " ", "+", " ").Replace(last)
	last = digitRuns.ReplaceAllString(last, "")
	if v := cleanText(last); ValidName(v, site) {
		return v
	}
	return ""
}

// Stage 6: the site's own detail endpoint, keyed by the id parsed from the
// URL. Structured API first, popup HTML second.
func (p *Pipeline) nameFromDetailEndpoint(ctx context.Context, pg *page, site sites.Site) string {
	if site.DetailAPI == "" && site.DetailPopup == "" {
		return ""
	}
	id := sites.PathID(pg.url, site)
	if id == "" {
		return ""
	}

	if site.DetailAPI != "" {
		if name := p.detailAPIName(ctx, fmt.Sprintf(site.DetailAPI, id), site); name != "" {
			return name
		}
	}
	if site.DetailPopup != "" {
		if name := p.detailPopupName(ctx, fmt.Sprintf(site.DetailPopup, id), site); name != "" {
			return name
		}
	}
	return ""
}

func (p *Pipeline) detailAPIName(ctx context.Context, endpoint string, site sites.Site) string {
	body, err := p.get(ctx, endpoint, "application/json")
	if err != nil {
		logger.Debug("detail API lookup failed", "endpoint", endpoint, "error", err)
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	if name := firstStringByKey(v, "name", "title", "productName", "product_name", "ProductName"); ValidName(name, site) {
		return name
	}
	return ""
}

func (p *Pipeline) detailPopupName(ctx context.Context, endpoint string, site sites.Site) string {
	body, err := p.get(ctx, endpoint, "text/html")
	if err != nil {
		logger.Debug("detail popup lookup failed", "endpoint", endpoint, "error", err)
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	popup := &page{url: endpoint, doc: doc}
	if name := p.nameFromSelectors(ctx, popup, site); name != "" {
		return name
	}
	return p.nameFromTitle(ctx, popup, site)
}

// firstStringByKey walks nested JSON and returns the first non-empty string
// under any of the given keys, outermost first.
func firstStringByKey(v any, keys ...string) string {
	switch node := v.(type) {
	case map[string]any:
		for _, k := range keys {
			if s, ok := node[k].(string); ok {
				if s = cleanText(s); s != "" {
					return s
				}
			}
		}
		for _, child := range node {
			if s := firstStringByKey(child, keys...); s != "" {
				return s
			}
		}
	case []any:
		for _, child := range node {
			if s := firstStringByKey(child, keys...); s != "" {
				return s
			}
		}
	}
	return ""
}

// Stage 7: last resort. Fetch a plain-text rendering of the page through the
// text-extraction proxy and pick the longest Hebrew line that is not generic
// storefront boilerplate.
var boilerplate = []string{
	"עגלת קניות",
	"סל קניות",
	"שירות לקוחות",
	"צור קשר",
	"כל הזכויות שמורות",
	"תנאי שימוש",
	"מדיניות פרטיות",
	"התחברות",
	"הרשמה לניוזלטר",
	"דף הבית",
	"תפריט",
	"חיפוש באתר",
	"משלוח חינם",
}

func (p *Pipeline) nameFromTextProxy(ctx context.Context, pg *page, site sites.Site) string {
	if p.proxyBase == "" {
		return ""
	}
	base := p.proxyBase
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	body, err := p.get(ctx, base+pg.url, "text/plain")
	if err != nil {
		logger.Debug("text proxy fetch failed", "url", pg.url, "error", err)
		return ""
	}

	var best string
	for _, line := range strings.Split(string(body), "\n") {
		line = cleanText(line)
		if !ValidName(line, site) || !hasHebrew(line) || isBoilerplate(line) {
			continue
		}
		if len([]rune(line)) > len([]rune(best)) {
			best = line
		}
	}
	return best
}

func hasHebrew(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Hebrew, r) {
			return true
		}
	}
	return false
}

func isBoilerplate(line string) bool {
	for _, b := range boilerplate {
		if strings.Contains(line, b) {
			return true
		}
	}
	return false
}

func (p *Pipeline) get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 2<<20))
}

package sites

import (
	"net/url"
	"regexp"
	"strings"
)

// genericIDParams are query parameters commonly used for product ids across
// storefront platforms, checked after the site's own IDParams.
var genericIDParams = []string{"product_id", "productid", "item_id", "itemid", "sku", "pid", "id"}

var (
	numericPathRe = regexp.MustCompile(`(?:^|/)(?:product|products|item|p)/(\d+)`)
	digitRunRe    = regexp.MustCompile(`\d{3,}`)
)

// ProductKey derives a stable product identity from a URL, so the same
// product is recognized across superficially different URLs. It prefers a
// recognized item-identifier query parameter over positional heuristics and
// returns "" when nothing matches; callers then dedup by exact URL only.
// Pure and deterministic: same inputs always produce the same key.
func ProductKey(rawURL string, site Site) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	q := u.Query()
	for _, p := range site.IDParams {
		if v := strings.TrimSpace(q.Get(p)); v != "" {
			return "qp:" + p + ":" + v
		}
	}
	for _, p := range genericIDParams {
		if v := strings.TrimSpace(q.Get(p)); v != "" {
			return "qp:" + p + ":" + v
		}
	}

	path := strings.ToLower(u.Path)
	if site.NumericIDPath {
		if m := numericPathRe.FindStringSubmatch(path); m != nil {
			return "path:" + m[1]
		}
	}
	if m := digitRunRe.FindString(path); m != "" {
		return "digits:" + m
	}

	return ""
}

// PathID returns the raw numeric product id embedded in the URL path, used
// to key the site's secondary detail-endpoint lookup. Empty when the URL
// carries no such id.
func PathID(rawURL string, site Site) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	q := u.Query()
	for _, p := range site.IDParams {
		if v := strings.TrimSpace(q.Get(p)); v != "" {
			return v
		}
	}

	path := strings.ToLower(u.Path)
	if m := numericPathRe.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return digitRunRe.FindString(path)
}

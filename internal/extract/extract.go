// Package extract turns a fetched page into a product snapshot: name, price,
// availability, and a content fingerprint. Name extraction is a cascade of
// independent strategies tried in order until one yields a usable name.
package extract

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/logger"
	"github.com/shelfwatch/shelfwatch/internal/sites"
)

// Availability is the tri-state stock signal.
type Availability int

const (
	Unknown Availability = iota
	InStock
	OutOfStock
)

func (a Availability) String() string {
	switch a {
	case InStock:
		return "in_stock"
	case OutOfStock:
		return "out_of_stock"
	default:
		return "unknown"
	}
}

// Result is the extracted product snapshot. Items holds the normalized
// content lines behind Fingerprint so change detection can enumerate what
// appeared since the previous check.
type Result struct {
	Name         string
	Price        string
	Availability Availability
	StockText    string
	Fingerprint  string
	Items        []string
}

// Generic fallback selectors tried after the site's own hints.
var (
	genericNameSelectors = []string{
		"h1",
		".product-title",
		".product-name",
		`[data-testid="product-title"]`,
		".item-title",
	}
	genericPriceSelectors = []string{
		".price",
		".product-price",
		`[data-testid="price"]`,
		".current-price",
		".final-price",
	}
)

// Options configures the pipeline's network-backed stages.
type Options struct {
	// Client is used by the detail-endpoint and text-proxy stages.
	Client *http.Client

	// ProxyBase is the text-extraction proxy prefix; the page URL is
	// appended verbatim. Empty disables the proxy stage.
	ProxyBase string

	UserAgent string
}

// Pipeline runs the extraction cascade. Safe for concurrent use.
type Pipeline struct {
	client    *http.Client
	proxyBase string
	userAgent string
	stages    []stage
}

// NewPipeline builds the pipeline with its ordered strategy list.
func NewPipeline(opts Options) *Pipeline {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.ProxyBase == "" {
		opts.ProxyBase = "https://r.jina.ai/"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetch.DefaultConfig().UserAgent
	}

	p := &Pipeline{
		client:    opts.Client,
		proxyBase: opts.ProxyBase,
		userAgent: opts.UserAgent,
	}
	p.stages = []stage{
		{"selectors", p.nameFromSelectors},
		{"json-ld", p.nameFromJSONLD},
		{"meta", p.nameFromMeta},
		{"title", p.nameFromTitle},
		{"url", p.nameFromURL},
		{"detail-endpoint", p.nameFromDetailEndpoint},
		{"text-proxy", p.nameFromTextProxy},
	}
	return p
}

// stage is one name-extraction strategy. Each returns "" when it found
// nothing usable; the driver then moves on.
type stage struct {
	name string
	fn   func(ctx context.Context, pg *page, site sites.Site) string
}

// page is the parsed form of a fetched page shared by all stages.
type page struct {
	url    string
	doc    *goquery.Document
	frames []*goquery.Document
}

// docs returns the main document followed by every parsed frame.
func (p *page) docs() []*goquery.Document {
	out := make([]*goquery.Document, 0, 1+len(p.frames))
	if p.doc != nil {
		out = append(out, p.doc)
	}
	return append(out, p.frames...)
}

func parsePage(raw fetch.RawPage, rawURL string) *page {
	pg := &page{url: rawURL}
	if raw.FinalURL != "" {
		pg.url = raw.FinalURL
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw.Body)); err == nil {
		pg.doc = doc
	}
	for _, f := range raw.Frames {
		if strings.TrimSpace(f.HTML) == "" {
			continue
		}
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.HTML)); err == nil {
			pg.frames = append(pg.frames, doc)
		}
	}
	return pg
}

// Run extracts the full snapshot from a fetched page.
func (p *Pipeline) Run(ctx context.Context, raw fetch.RawPage, site sites.Site, rawURL string) Result {
	pg := parsePage(raw, rawURL)

	var result Result
	for _, st := range p.stages {
		if ctx.Err() != nil {
			break
		}
		if name := st.fn(ctx, pg, site); ValidName(name, site) {
			logger.Debug("name extracted", "stage", st.name, "url", pg.url)
			result.Name = name
			break
		}
	}

	result.Price = p.price(pg, site)
	result.Availability, result.StockText = p.availability(pg, site)
	result.Items = contentLines(pg)
	result.Fingerprint = Fingerprint(result.Items)
	return result
}

// QuickName runs only the document-local strategies (selectors, structured
// markup, meta, title). The fetch layer uses it as the "is this page a
// placeholder shell" probe before falling back to the other transport, and
// the add flow uses it for its name-not-recognized signal.
func (p *Pipeline) QuickName(raw fetch.RawPage, site sites.Site, rawURL string) string {
	pg := parsePage(raw, rawURL)
	ctx := context.Background()
	for _, st := range p.stages[:4] {
		if name := st.fn(ctx, pg, site); ValidName(name, site) {
			return name
		}
	}
	return ""
}

// ValidName reports whether an extracted name is usable: non-empty after
// trimming, at least 3 runes, and not the site's own display name (equality
// means the match hit chrome, not content).
func ValidName(name string, site sites.Site) bool {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 3 {
		return false
	}
	return !strings.EqualFold(name, strings.TrimSpace(site.Name))
}

// cleanText collapses internal whitespace to single spaces and trims.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

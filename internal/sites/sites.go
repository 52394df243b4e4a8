// Package sites holds the immutable per-retailer configuration and the
// product-identity derivation built on top of it.
package sites

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Site is one retailer's hand-configured adapter. Fields are read-only after
// Load; nothing in the codebase mutates a Site.
type Site struct {
	ID      string   `yaml:"id" validate:"required"`
	Name    string   `yaml:"name" validate:"required"`
	BaseURL string   `yaml:"base_url" validate:"required,url"`
	Domains []string `yaml:"domains,omitempty" validate:"dive,hostname_rfc1123"`

	// Selector hints for the extraction pipeline.
	NameSelectors        []string `yaml:"name_selectors,omitempty"`
	PriceSelectors       []string `yaml:"price_selectors,omitempty"`
	AvailabilitySelector string   `yaml:"availability_selector" validate:"required"`

	// Keyword lists matched against availability text.
	OutOfStock []string `yaml:"out_of_stock" validate:"required,min=1"`
	InStock    []string `yaml:"in_stock,omitempty"`

	// RequiresRendering selects the headless-browser transport as primary.
	RequiresRendering bool `yaml:"requires_rendering"`

	// StrictAvailability forbids guessing: no availability signal means
	// "unknown", never "in stock".
	StrictAvailability bool `yaml:"strict_availability"`

	// Extra request headers sent on every fetch for this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// IDParams are query parameters that carry the site-assigned product id.
	IDParams []string `yaml:"id_params,omitempty"`

	// NumericIDPath marks sites with conventional /product/<digits> paths.
	NumericIDPath bool `yaml:"numeric_id_path"`

	// Secondary-lookup endpoints, keyed by the product id parsed from the
	// URL. %s is replaced with the id.
	DetailAPI   string `yaml:"detail_api,omitempty"`
	DetailPopup string `yaml:"detail_popup,omitempty"`
}

// Host returns the www-stripped host of the site's base URL.
func (s Site) Host() string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// Registry is the read-only map from site id to its configuration, loaded
// once at startup and validated eagerly so configuration errors surface
// before any polling begins.
type Registry struct {
	sites map[string]Site
	order []string
}

type catalogFile struct {
	Sites []Site `yaml:"sites"`
}

// Load reads and validates the site catalog from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw YAML catalog bytes.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse site catalog: %w", err)
	}
	if len(file.Sites) == 0 {
		return nil, fmt.Errorf("site catalog is empty")
	}

	validate := validator.New()
	r := &Registry{sites: make(map[string]Site, len(file.Sites))}

	for i, s := range file.Sites {
		if err := validate.Struct(s); err != nil {
			return nil, fmt.Errorf("site %d (%q): %w", i, s.ID, err)
		}
		if _, dup := r.sites[s.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		if s.Host() == "" {
			return nil, fmt.Errorf("site %q: base_url has no host", s.ID)
		}
		for _, d := range s.Domains {
			if strings.ContainsAny(d, "/ ") {
				return nil, fmt.Errorf("site %q: malformed domain %q", s.ID, d)
			}
		}
		r.sites[s.ID] = s
		r.order = append(r.order, s.ID)
	}

	return r, nil
}

// Lookup returns the site configuration for an id.
func (r *Registry) Lookup(id string) (Site, bool) {
	s, ok := r.sites[id]
	return s, ok
}

// Match finds the site whose accepted domains cover the URL's host.
// Comparison is case-insensitive and ignores a leading "www.".
func (r *Registry) Match(rawURL string) (Site, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Site{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host == "" {
		return Site{}, false
	}

	for _, id := range r.order {
		s := r.sites[id]
		if host == s.Host() {
			return s, true
		}
		for _, d := range s.Domains {
			if host == strings.TrimPrefix(strings.ToLower(d), "www.") {
				return s, true
			}
		}
	}
	return Site{}, false
}

// IDs returns the site ids in catalog order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of configured sites.
func (r *Registry) Len() int {
	return len(r.order)
}

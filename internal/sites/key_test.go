package sites

import "testing"

func TestProductKey_SiteIDParam(t *testing.T) {
	site := Site{ID: "living", IDParams: []string{"prod"}}

	key := ProductKey("https://www.living.co.il/item?prod=8841&utm_source=mail", site)
	if key != "qp:prod:8841" {
		t.Errorf("expected qp:prod:8841, got %q", key)
	}
}

func TestProductKey_GenericIDParam(t *testing.T) {
	site := Site{ID: "hot"}

	key := ProductKey("https://www.hot.net.il/shop/view?sku=AB-220", site)
	if key != "qp:sku:AB-220" {
		t.Errorf("expected qp:sku:AB-220, got %q", key)
	}
}

func TestProductKey_SiteParamBeatsGeneric(t *testing.T) {
	site := Site{ID: "living", IDParams: []string{"prod"}}

	key := ProductKey("https://www.living.co.il/item?id=1&prod=2", site)
	if key != "qp:prod:2" {
		t.Errorf("site id param should win, got %q", key)
	}
}

func TestProductKey_NumericPath(t *testing.T) {
	site := Site{ID: "mashkar", NumericIDPath: true}

	tests := []struct {
		url  string
		want string
	}{
		{"https://www.mashkarcard.co.il/product/12345-blender", "path:12345"},
		{"https://www.mashkarcard.co.il/products/777", "path:777"},
		{"https://www.mashkarcard.co.il/p/404123", "path:404123"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ProductKey(tt.url, site); got != tt.want {
				t.Errorf("ProductKey(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestProductKey_DigitRunFallback(t *testing.T) {
	site := Site{ID: "buff"}

	key := ProductKey("https://www.buff.co.il/deals/super-9981-limited", site)
	if key != "digits:9981" {
		t.Errorf("expected digits:9981, got %q", key)
	}
}

func TestProductKey_NoMatch(t *testing.T) {
	site := Site{ID: "buff"}

	if key := ProductKey("https://www.buff.co.il/about-us", site); key != "" {
		t.Errorf("expected empty key, got %q", key)
	}
}

// URLs differing only by unrelated query parameters but sharing a recognized
// identifier parameter yield identical keys.
func TestProductKey_IgnoresUnrelatedParams(t *testing.T) {
	site := Site{ID: "living", IDParams: []string{"prod"}}

	a := ProductKey("https://www.living.co.il/item?prod=42", site)
	b := ProductKey("https://www.living.co.il/item?prod=42&ref=homepage&utm_medium=push", site)
	if a == "" || a != b {
		t.Errorf("keys should match: %q vs %q", a, b)
	}
}

func TestProductKey_Deterministic(t *testing.T) {
	site := Site{ID: "mashkar", NumericIDPath: true}
	url := "https://www.mashkarcard.co.il/product/555-mixer"

	first := ProductKey(url, site)
	for i := 0; i < 10; i++ {
		if got := ProductKey(url, site); got != first {
			t.Fatalf("ProductKey not deterministic: %q vs %q", got, first)
		}
	}
}

func TestPathID(t *testing.T) {
	tests := []struct {
		name string
		url  string
		site Site
		want string
	}{
		{"numeric path", "https://x.co.il/product/321-item", Site{NumericIDPath: true}, "321"},
		{"id param", "https://x.co.il/view?pcode=77", Site{IDParams: []string{"pcode"}}, "77"},
		{"digit run", "https://x.co.il/catalog/item-4456", Site{}, "4456"},
		{"nothing", "https://x.co.il/about", Site{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PathID(tt.url, tt.site); got != tt.want {
				t.Errorf("PathID(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

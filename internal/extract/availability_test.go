package extract

import (
	"context"
	"testing"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
)

func rawPageWithFrame(body, frame string) fetch.RawPage {
	return fetch.RawPage{
		Status: 200,
		Body:   body,
		Frames: []fetch.Frame{{URL: "/frame", HTML: frame}},
	}
}

func TestRun_Availability(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		strict    bool
		want      Availability
		stockText string
	}{
		{
			name: "out-of-stock keyword in selector",
			body: `<html><body><div class="stock-status">המוצר אזל מהמלאי</div></body></html>`,
			want: OutOfStock, stockText: "המוצר אזל מהמלאי",
		},
		{
			name: "in-stock keyword in selector",
			body: `<html><body><div class="stock-status">במלאי - משלוח מיידי</div></body></html>`,
			want: InStock, stockText: "במלאי - משלוח מיידי",
		},
		{
			name: "out-of-stock beats in-stock",
			body: `<html><body><div class="stock-status">במלאי</div><div class="stock-status">אזל מהמלאי</div></body></html>`,
			want: OutOfStock, stockText: "במלאי אזל מהמלאי",
		},
		{
			name: "selector text without keywords means in stock",
			body: `<html><body><div class="stock-status">הוסף לסל</div></body></html>`,
			want: InStock, stockText: "הוסף לסל",
		},
		{
			name:      "strict site refuses to guess from keyword-less selector text",
			body:      `<html><body><div class="stock-status">הוסף לסל</div></body></html>`,
			strict:    true,
			want:      Unknown,
			stockText: "הוסף לסל",
		},
		{
			name:   "strict site with no selector text reports unknown",
			body:   `<html><body><p>עמוד מוצר</p></body></html>`,
			strict: true,
			want:   Unknown,
		},
		{
			name: "non-strict scans page text for keywords",
			body: `<html><body><p>מצטערים, המוצר לא זמין כרגע</p></body></html>`,
			want: OutOfStock,
		},
		{
			name: "non-strict with no signal defaults to in stock",
			body: `<html><body><p>עמוד מוצר רגיל</p></body></html>`,
			want: InStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := testSite
			site.StrictAvailability = tt.strict

			r := runPipeline(t, tt.body, site, "https://www.mashkar.co.il/product/1")
			if r.Availability != tt.want {
				t.Errorf("availability = %v, want %v", r.Availability, tt.want)
			}
			if r.StockText != tt.stockText {
				t.Errorf("stockText = %q, want %q", r.StockText, tt.stockText)
			}
		})
	}
}

func TestRun_AvailabilityFromFrame(t *testing.T) {
	p := NewPipeline(Options{ProxyBase: "http://127.0.0.1:1/"})
	raw := rawPageWithFrame(
		`<html><body><h1>מוצר כלשהו</h1></body></html>`,
		`<html><body><div class="stock-status">אזל מהמלאי</div></body></html>`,
	)

	r := p.Run(context.Background(), raw, testSite, "https://www.mashkar.co.il/product/1")
	if r.Availability != OutOfStock {
		t.Errorf("expected frame availability signal, got %v", r.Availability)
	}
}

func TestRun_Price(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "site selector with digits",
			body: `<html><body><span class="prod-price">1,299 ₪</span></body></html>`,
			want: "1,299 ₪",
		},
		{
			name: "skips digitless match in favor of generic selector",
			body: `<html><body><span class="prod-price">מבצע</span><span class="price">499 ₪</span></body></html>`,
			want: "499 ₪",
		},
		{
			name: "no price on page",
			body: `<html><body><p>אין מחיר</p></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runPipeline(t, tt.body, testSite, "https://www.mashkar.co.il/product/1")
			if r.Price != tt.want {
				t.Errorf("price = %q, want %q", r.Price, tt.want)
			}
		})
	}
}

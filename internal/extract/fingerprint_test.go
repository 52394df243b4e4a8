package extract

import (
	"context"
	"reflect"
	"testing"

	"github.com/shelfwatch/shelfwatch/internal/fetch"
)

func TestFingerprint_Stable(t *testing.T) {
	lines := []string{"מיקסר קנווד", "1,299 ₪", "במלאי"}
	if Fingerprint(lines) != Fingerprint([]string{"מיקסר קנווד", "1,299 ₪", "במלאי"}) {
		t.Error("equal line sets must produce equal fingerprints")
	}
	if Fingerprint(lines) == Fingerprint([]string{"מיקסר קנווד", "999 ₪", "במלאי"}) {
		t.Error("different content must produce different fingerprints")
	}
	if Fingerprint(nil) != Fingerprint([]string{}) {
		t.Error("empty inputs must hash identically")
	}
}

func TestRun_FingerprintIgnoresWhitespaceAndCase(t *testing.T) {
	p := NewPipeline(Options{ProxyBase: "http://127.0.0.1:1/"})
	url := "https://www.mashkar.co.il/product/1"

	a := p.Run(context.Background(), fetch.RawPage{Body: `<html><body>
		<h1>Kenwood   Mixer</h1>
		<p>מחיר: 1,299</p>
	</body></html>`}, testSite, url)

	b := p.Run(context.Background(), fetch.RawPage{Body: `<html><body>
		<h1>kenwood mixer</h1>
		<p>  מחיר: 1,299  </p>
	</body></html>`}, testSite, url)

	if a.Fingerprint != b.Fingerprint {
		t.Error("normalization must make whitespace and case irrelevant")
	}
}

func TestNewFragments(t *testing.T) {
	tests := []struct {
		name string
		old  []string
		new  []string
		want []string
	}{
		{
			name: "appended line",
			old:  []string{"מוצר א", "מוצר ב"},
			new:  []string{"מוצר א", "מוצר ב", "מוצר ג"},
			want: []string{"מוצר ג"},
		},
		{
			name: "no change",
			old:  []string{"מוצר א"},
			new:  []string{"מוצר א"},
			want: nil,
		},
		{
			name: "removed lines are not reported",
			old:  []string{"מוצר א", "מוצר ב"},
			new:  []string{"מוצר א"},
			want: nil,
		},
		{
			name: "first check against empty baseline",
			old:  nil,
			new:  []string{"מוצר א"},
			want: []string{"מוצר א"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewFragments(tt.old, tt.new); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewFragments() = %v, want %v", got, tt.want)
			}
		})
	}
}

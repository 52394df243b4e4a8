package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/extract"
	"github.com/shelfwatch/shelfwatch/internal/fetch"
	"github.com/shelfwatch/shelfwatch/internal/sites"
	"github.com/shelfwatch/shelfwatch/internal/track"
)

const testCatalog = `
sites:
  - id: mashkar
    name: משקארד
    base_url: https://www.mashkar.co.il
    availability_selector: ".stock-status"
    out_of_stock: ["אזל מהמלאי"]
    in_stock: ["במלאי"]
    numeric_id_path: true
`

func testRegistry(t *testing.T) *sites.Registry {
	t.Helper()
	r, err := sites.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("failed to parse test catalog: %v", err)
	}
	return r
}

func testPipeline() *extract.Pipeline {
	return extract.NewPipeline(extract.Options{ProxyBase: "http://127.0.0.1:1/"})
}

// fakeStore is an in-memory Storage.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	trackings map[int64]track.Tracking
	blocked   map[int64]bool
	owners    map[int64]int
	due       []track.Tracking
	updateErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trackings: make(map[int64]track.Tracking),
		blocked:   make(map[int64]bool),
		owners:    make(map[int64]int),
	}
}

func (f *fakeStore) Due(_ context.Context, _ time.Time, limit int) ([]track.Tracking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *fakeStore) Update(_ context.Context, tr track.Tracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.trackings[tr.ID] = tr
	return nil
}

func (f *fakeStore) Insert(_ context.Context, tr *track.Tracking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tr.ID = f.nextID
	f.trackings[tr.ID] = *tr
	return nil
}

func (f *fakeStore) FindDuplicate(_ context.Context, ownerID int64, url, key, siteID string) (track.Tracking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.trackings {
		if tr.OwnerID != ownerID {
			continue
		}
		if key != "" && tr.Key == key && tr.SiteID == siteID {
			return tr, true, nil
		}
		if key == "" && tr.URL == url {
			return tr, true, nil
		}
	}
	return track.Tracking{}, false, nil
}

func (f *fakeStore) EnsureOwner(_ context.Context, ownerID int64, defaultInterval int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.owners[ownerID]; ok {
		return v, nil
	}
	f.owners[ownerID] = defaultInterval
	return defaultInterval, nil
}

func (f *fakeStore) MarkOwnerBlocked(_ context.Context, ownerID int64, blocked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked[ownerID] = blocked
	return nil
}

func (f *fakeStore) get(id int64) track.Tracking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trackings[id]
}

// fakeFetcher serves a canned page or error and records call pressure.
type fakeFetcher struct {
	mu          sync.Mutex
	page        fetch.RawPage
	err         error
	delay       time.Duration
	calls       int
	inFlight    int
	maxInFlight int
	starts      []time.Time
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ sites.Site, _ func(fetch.RawPage) bool) (fetch.RawPage, error) {
	f.mu.Lock()
	f.calls++
	f.starts = append(f.starts, time.Now())
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return f.page, f.err
}

// fakeNotifier records deliveries.
type fakeNotifier struct {
	mu       sync.Mutex
	err      error
	messages []string
	newItems [][]string
}

func (f *fakeNotifier) Notify(_ context.Context, _ track.Tracking, message string, newItems []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.newItems = append(f.newItems, newItems)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func inStockPage() fetch.RawPage {
	return fetch.RawPage{
		Status: 200,
		Body: `<html><body>
			<h1>מיקסר קנווד מקצועי</h1>
			<div class="stock-status">במלאי</div>
		</body></html>`,
	}
}

func stockTracking(id int64, status track.Status) track.Tracking {
	return track.Tracking{
		ID:      id,
		OwnerID: 42,
		URL:     "https://www.mashkar.co.il/product/123",
		Key:     "path:123",
		SiteID:  "mashkar",
		Name:    "מיקסר קנווד מקצועי",
		Mode:    track.ModeStock,
		Status:  status,
	}
}

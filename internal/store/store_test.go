package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shelfwatch/shelfwatch/internal/track"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTracking(owner int64, url string) track.Tracking {
	return track.Tracking{
		OwnerID:         owner,
		URL:             url,
		Key:             "path:123",
		SiteID:          "mashkar",
		Name:            "מיקסר קנווד",
		Mode:            track.ModeStock,
		Status:          track.StatusActive,
		IntervalMinutes: 60,
	}
}

func TestInsertAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := newTracking(42, "https://www.mashkar.co.il/product/123")
	tr.Items = []string{"מיקסר קנווד", "1,299"}
	tr.Fingerprint = "fp1"

	if err := s.Insert(ctx, &tr); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if tr.ID == 0 {
		t.Fatal("Insert must assign an id")
	}

	got, err := s.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.OwnerID != 42 || got.Key != "path:123" || got.SiteID != "mashkar" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if got.Mode != track.ModeStock || got.Status != track.StatusActive {
		t.Errorf("mode/status mismatch: %v/%v", got.Mode, got.Status)
	}
	if len(got.Items) != 2 || got.Items[0] != "מיקסר קנווד" {
		t.Errorf("items mismatch: %v", got.Items)
	}
	if !got.LastChecked.IsZero() {
		t.Error("never-checked tracking must come back with zero LastChecked")
	}
}

func TestDue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(status track.Status, lastChecked time.Time) int64 {
		tr := newTracking(1, fmt.Sprintf("https://www.mashkar.co.il/product/%d", time.Now().UnixNano()))
		tr.Key = ""
		tr.Status = status
		tr.LastChecked = lastChecked
		if err := s.Insert(ctx, &tr); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
		return tr.ID
	}

	neverChecked := insert(track.StatusActive, time.Time{})
	stale := insert(track.StatusInStock, now.Add(-2*time.Hour))
	staleOOS := insert(track.StatusOutOfStock, now.Add(-2*time.Hour))
	insert(track.StatusActive, now.Add(-5*time.Minute)) // fresh
	insert(track.StatusPaused, now.Add(-2*time.Hour))
	insert(track.StatusError, now.Add(-2*time.Hour))

	due, err := s.Due(ctx, now, 0)
	if err != nil {
		t.Fatalf("Due() error: %v", err)
	}

	got := make(map[int64]bool)
	for _, tr := range due {
		got[tr.ID] = true
	}
	for _, want := range []int64{neverChecked, stale, staleOOS} {
		if !got[want] {
			t.Errorf("expected tracking %d to be due", want)
		}
	}
	if len(due) != 3 {
		t.Errorf("expected exactly 3 due trackings, got %d", len(due))
	}
}

func TestDue_RespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tr := newTracking(1, fmt.Sprintf("https://www.mashkar.co.il/product/%d", i))
		tr.Key = ""
		if err := s.Insert(ctx, &tr); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	due, err := s.Due(ctx, time.Now(), 2)
	if err != nil {
		t.Fatalf("Due() error: %v", err)
	}
	if len(due) != 2 {
		t.Errorf("expected limit of 2, got %d", len(due))
	}
}

func TestDue_PerTrackingInterval(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	slow := newTracking(1, "https://www.mashkar.co.il/product/1")
	slow.Key = ""
	slow.IntervalMinutes = 240
	slow.LastChecked = now.Add(-2 * time.Hour)
	if err := s.Insert(ctx, &slow); err != nil {
		t.Fatal(err)
	}

	fast := newTracking(1, "https://www.mashkar.co.il/product/2")
	fast.Key = ""
	fast.IntervalMinutes = 30
	fast.LastChecked = now.Add(-2 * time.Hour)
	if err := s.Insert(ctx, &fast); err != nil {
		t.Fatal(err)
	}

	due, err := s.Due(ctx, now, 0)
	if err != nil {
		t.Fatalf("Due() error: %v", err)
	}
	if len(due) != 1 || due[0].ID != fast.ID {
		t.Errorf("expected only the 30-minute tracking to be due, got %+v", due)
	}
}

func TestUpdatePersistsPollOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	tr := newTracking(42, "https://www.mashkar.co.il/product/123")
	if err := s.Insert(ctx, &tr); err != nil {
		t.Fatal(err)
	}

	tr.Status = track.StatusInStock
	tr.NotificationSent = true
	tr.Fingerprint = "fp2"
	tr.Items = []string{"a", "b"}
	tr.LastChecked = now
	tr.LastStatusChange = now
	if err := s.Update(ctx, tr); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := s.Get(ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != track.StatusInStock || !got.NotificationSent || got.Fingerprint != "fp2" {
		t.Errorf("outcome not persisted: %+v", got)
	}
	if !got.LastChecked.Equal(now) || !got.LastStatusChange.Equal(now) {
		t.Errorf("timestamps not persisted: %v / %v", got.LastChecked, got.LastStatusChange)
	}
}

func TestUpdateDeletedRowIsNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := newTracking(42, "https://www.mashkar.co.il/product/123")
	if err := s.Insert(ctx, &tr); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, tr.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.Update(ctx, tr); err != nil {
		t.Errorf("update of a deleted tracking must be a harmless no-op, got %v", err)
	}
}

func TestFindDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tr := newTracking(42, "https://www.mashkar.co.il/product/123?ref=home")
	if err := s.Insert(ctx, &tr); err != nil {
		t.Fatal(err)
	}

	t.Run("by product key across URL variants", func(t *testing.T) {
		_, found, err := s.FindDuplicate(ctx, 42, "https://www.mashkar.co.il/product/123", "path:123", "mashkar")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Error("expected key-based duplicate to be found")
		}
	})

	t.Run("by exact URL when no key", func(t *testing.T) {
		_, found, err := s.FindDuplicate(ctx, 42, "https://www.mashkar.co.il/product/123?ref=home", "", "mashkar")
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Error("expected URL-based duplicate to be found")
		}
	})

	t.Run("different owner is independent", func(t *testing.T) {
		_, found, err := s.FindDuplicate(ctx, 7, "https://www.mashkar.co.il/product/123?ref=home", "path:123", "mashkar")
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Error("another owner's tracking must not count as a duplicate")
		}
	})
}

func TestTwoOwnersSameProduct(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := newTracking(1, "https://www.mashkar.co.il/product/123")
	b := newTracking(2, "https://www.mashkar.co.il/product/123")
	if err := s.Insert(ctx, &a); err != nil {
		t.Fatal(err)
	}
	if err := s.Insert(ctx, &b); err != nil {
		t.Fatal(err)
	}

	a.Status = track.StatusError
	a.ErrorCount = 5
	if err := s.Update(ctx, a); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != track.StatusActive || got.ErrorCount != 0 {
		t.Errorf("owner 2's tracking must be untouched by owner 1's state: %+v", got)
	}
}

func TestStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i, status := range []track.Status{track.StatusActive, track.StatusActive, track.StatusError} {
		tr := newTracking(int64(i%2)+1, fmt.Sprintf("https://www.mashkar.co.il/product/%d", i))
		tr.Key = ""
		tr.Status = status
		if err := s.Insert(ctx, &tr); err != nil {
			t.Fatal(err)
		}
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Total != 3 || st.ByStatus["active"] != 2 || st.ByStatus["error"] != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.BySite["mashkar"] != 3 || st.Owners != 2 {
		t.Errorf("unexpected site/owner stats: %+v", st)
	}
}

func TestOwners(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	interval, err := s.EnsureOwner(ctx, 42, 90)
	if err != nil {
		t.Fatalf("EnsureOwner() error: %v", err)
	}
	if interval != 90 {
		t.Errorf("expected default interval 90, got %d", interval)
	}

	// Second ensure must not overwrite.
	if err := s.SetOwnerInterval(ctx, 42, 30); err != nil {
		t.Fatal(err)
	}
	interval, err = s.EnsureOwner(ctx, 42, 90)
	if err != nil {
		t.Fatal(err)
	}
	if interval != 30 {
		t.Errorf("expected stored interval 30, got %d", interval)
	}

	blocked, err := s.OwnerBlocked(ctx, 42)
	if err != nil || blocked {
		t.Errorf("fresh owner must not be blocked (err %v)", err)
	}
	if err := s.MarkOwnerBlocked(ctx, 42, true); err != nil {
		t.Fatal(err)
	}
	blocked, err = s.OwnerBlocked(ctx, 42)
	if err != nil || !blocked {
		t.Errorf("expected owner to be flagged blocked (err %v)", err)
	}

	// Unknown owner reads as not blocked.
	blocked, err = s.OwnerBlocked(ctx, 999)
	if err != nil || blocked {
		t.Errorf("unknown owner must read as not blocked (err %v)", err)
	}
}

// Package store is the SQLite persistence layer for trackings and owners.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shelfwatch/shelfwatch/internal/track"
)

// Schema for the shelfwatch tables. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS trackings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL,
	url TEXT NOT NULL,
	product_key TEXT NOT NULL DEFAULT '',
	option_key TEXT NOT NULL DEFAULT '',
	site_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	mode TEXT NOT NULL DEFAULT 'changes',
	status TEXT NOT NULL DEFAULT 'active',
	interval_minutes INTEGER NOT NULL DEFAULT 60,
	error_count INTEGER NOT NULL DEFAULT 0,
	notification_sent INTEGER NOT NULL DEFAULT 0,
	fingerprint TEXT NOT NULL DEFAULT '',
	items TEXT NOT NULL DEFAULT '',
	change_count INTEGER NOT NULL DEFAULT 0,
	last_checked INTEGER,
	last_status_change INTEGER,
	created_at INTEGER NOT NULL,
	UNIQUE(owner_id, url)
);
CREATE INDEX IF NOT EXISTS idx_trackings_due ON trackings(status, last_checked);
CREATE INDEX IF NOT EXISTS idx_trackings_owner ON trackings(owner_id);
CREATE INDEX IF NOT EXISTS idx_trackings_key ON trackings(owner_id, product_key, site_id) WHERE product_key != '';

CREATE TABLE IF NOT EXISTS owners (
	id INTEGER PRIMARY KEY,
	blocked INTEGER NOT NULL DEFAULT 0,
	default_interval_minutes INTEGER NOT NULL DEFAULT 60,
	created_at INTEGER NOT NULL
);
`

// DueLimit caps how many trackings one poll cycle may select.
const DueLimit = 100

// Store wraps the shelfwatch database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path, applies pragmas and
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const trackingColumns = `id, owner_id, url, product_key, option_key, site_id, name, mode, status,
	interval_minutes, error_count, notification_sent, fingerprint, items, change_count,
	last_checked, last_status_change, created_at`

// Insert persists a new tracking and fills in its id and creation time.
func (s *Store) Insert(ctx context.Context, tr *track.Tracking) error {
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO trackings
		(owner_id, url, product_key, option_key, site_id, name, mode, status,
		 interval_minutes, error_count, notification_sent, fingerprint, items, change_count,
		 last_checked, last_status_change, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.OwnerID, tr.URL, tr.Key, tr.OptionKey, tr.SiteID, tr.Name, string(tr.Mode), string(tr.Status),
		tr.IntervalMinutes, tr.ErrorCount, boolInt(tr.NotificationSent), tr.Fingerprint,
		joinItems(tr.Items), tr.ChangeCount, nullTime(tr.LastChecked), nullTime(tr.LastStatusChange),
		tr.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert tracking: %w", err)
	}
	tr.ID, err = res.LastInsertId()
	return err
}

// Get returns one tracking by id.
func (s *Store) Get(ctx context.Context, id int64) (track.Tracking, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackingColumns+` FROM trackings WHERE id = ?`, id)
	return scanTracking(row)
}

// Due selects schedulable trackings whose last check is absent or older than
// their own interval, capped at DueLimit (or lower when limit says so).
func (s *Store) Due(ctx context.Context, now time.Time, limit int) ([]track.Tracking, error) {
	if limit <= 0 || limit > DueLimit {
		limit = DueLimit
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackingColumns+` FROM trackings
		WHERE status IN ('active', 'in_stock', 'out_of_stock')
		  AND (last_checked IS NULL OR last_checked <= ? - interval_minutes * 60)
		LIMIT ?`, now.Unix(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select due trackings: %w", err)
	}
	defer rows.Close()

	var out []track.Tracking
	for rows.Next() {
		tr, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Update persists a tracking's mutable fields after a poll or owner action.
// Updates to a deleted row are harmless no-ops.
func (s *Store) Update(ctx context.Context, tr track.Tracking) error {
	_, err := s.db.ExecContext(ctx, `UPDATE trackings SET
		name = ?, mode = ?, status = ?, interval_minutes = ?,
		error_count = ?, notification_sent = ?, fingerprint = ?, items = ?, change_count = ?,
		last_checked = ?, last_status_change = ?
		WHERE id = ?`,
		tr.Name, string(tr.Mode), string(tr.Status), tr.IntervalMinutes,
		tr.ErrorCount, boolInt(tr.NotificationSent), tr.Fingerprint, joinItems(tr.Items),
		tr.ChangeCount, nullTime(tr.LastChecked), nullTime(tr.LastStatusChange), tr.ID)
	if err != nil {
		return fmt.Errorf("failed to update tracking %d: %w", tr.ID, err)
	}
	return nil
}

// FindDuplicate looks for an existing tracking with the same identity:
// (owner, product key, site) when a key is derivable, else (owner, exact URL).
func (s *Store) FindDuplicate(ctx context.Context, ownerID int64, url, key, siteID string) (track.Tracking, bool, error) {
	var row *sql.Row
	if key != "" {
		row = s.db.QueryRowContext(ctx, `SELECT `+trackingColumns+` FROM trackings
			WHERE owner_id = ? AND product_key = ? AND site_id = ?`, ownerID, key, siteID)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+trackingColumns+` FROM trackings
			WHERE owner_id = ? AND url = ?`, ownerID, url)
	}

	tr, err := scanTracking(row)
	if err == sql.ErrNoRows {
		return track.Tracking{}, false, nil
	}
	if err != nil {
		return track.Tracking{}, false, err
	}
	return tr, true, nil
}

// SetStatus flips a tracking's status directly (pause, resume).
func (s *Store) SetStatus(ctx context.Context, id int64, status track.Status) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE trackings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set status of tracking %d: %w", id, err)
	}
	return nil
}

// Delete removes a tracking.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trackings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tracking %d: %w", id, err)
	}
	return nil
}

// ListByOwner returns an owner's trackings, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]track.Tracking, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+trackingColumns+` FROM trackings
		WHERE owner_id = ? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackings: %w", err)
	}
	defer rows.Close()

	var out []track.Tracking
	for rows.Next() {
		tr, err := scanTracking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// Stats summarizes the tracked population.
type Stats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	BySite   map[string]int `json:"by_site"`
	Owners   int            `json:"owners"`
}

// Stats counts trackings by status and site.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByStatus: make(map[string]int), BySite: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, site_id, COUNT(*) FROM trackings GROUP BY status, site_id`)
	if err != nil {
		return st, fmt.Errorf("failed to count trackings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, siteID string
		var n int
		if err := rows.Scan(&status, &siteID, &n); err != nil {
			return st, err
		}
		st.Total += n
		st.ByStatus[status] += n
		st.BySite[siteID] += n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT owner_id) FROM trackings`).Scan(&st.Owners)
	return st, err
}

// EnsureOwner creates the owner row if absent and returns its default check
// interval in minutes.
func (s *Store) EnsureOwner(ctx context.Context, ownerID int64, defaultInterval int) (int, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO owners (id, default_interval_minutes, created_at)
		VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		ownerID, defaultInterval, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to ensure owner %d: %w", ownerID, err)
	}

	var interval int
	err = s.db.QueryRowContext(ctx,
		`SELECT default_interval_minutes FROM owners WHERE id = ?`, ownerID).Scan(&interval)
	return interval, err
}

// SetOwnerInterval updates an owner's default check interval.
func (s *Store) SetOwnerInterval(ctx context.Context, ownerID int64, minutes int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE owners SET default_interval_minutes = ? WHERE id = ?`, minutes, ownerID)
	return err
}

// MarkOwnerBlocked flags an owner whose delivery channel reported the
// recipient unreachable.
func (s *Store) MarkOwnerBlocked(ctx context.Context, ownerID int64, blocked bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE owners SET blocked = ? WHERE id = ?`, boolInt(blocked), ownerID)
	if err != nil {
		return fmt.Errorf("failed to mark owner %d blocked: %w", ownerID, err)
	}
	return nil
}

// OwnerBlocked reports whether an owner's channel is flagged blocked.
func (s *Store) OwnerBlocked(ctx context.Context, ownerID int64) (bool, error) {
	var blocked int
	err := s.db.QueryRowContext(ctx,
		`SELECT blocked FROM owners WHERE id = ?`, ownerID).Scan(&blocked)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return blocked != 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTracking(row scanner) (track.Tracking, error) {
	var (
		tr                      track.Tracking
		mode, status, items     string
		sent                    int
		lastChecked, lastChange sql.NullInt64
		createdAt               int64
	)
	err := row.Scan(&tr.ID, &tr.OwnerID, &tr.URL, &tr.Key, &tr.OptionKey, &tr.SiteID, &tr.Name,
		&mode, &status, &tr.IntervalMinutes, &tr.ErrorCount, &sent, &tr.Fingerprint, &items,
		&tr.ChangeCount, &lastChecked, &lastChange, &createdAt)
	if err != nil {
		return tr, err
	}

	tr.Mode = track.Mode(mode)
	tr.Status = track.Status(status)
	tr.NotificationSent = sent != 0
	tr.Items = splitItems(items)
	if lastChecked.Valid {
		tr.LastChecked = time.Unix(lastChecked.Int64, 0).UTC()
	}
	if lastChange.Valid {
		tr.LastStatusChange = time.Unix(lastChange.Int64, 0).UTC()
	}
	tr.CreatedAt = time.Unix(createdAt, 0).UTC()
	return tr, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func joinItems(items []string) string {
	return strings.Join(items, "\n")
}

func splitItems(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

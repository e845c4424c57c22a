package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"gallery-engine/internal/logging"
	"gallery-engine/internal/metrics"
)

// Default timeout for store operations.
const defaultTimeout = 5 * time.Second

// SQLite is the durable Store implementation. Each namespace lives in
// its own table so that corruption in one cannot invalidate another.
type SQLite struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	bus    *bus
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (creating if necessary) the engagement database at
// dbPath. The parent directory must already exist and be writable.
func NewSQLite(ctx context.Context, dbPath string) (*SQLite, error) {
	logging.Info("Engagement database path: %s", dbPath)

	// WAL mode and busy_timeout keep concurrent readers from hitting
	// "database is locked" errors.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &SQLite{
		db:     db,
		dbPath: dbPath,
		bus:    newBus(),
	}

	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Engagement database initialized at %s", dbPath)
	return s, nil
}

func (s *SQLite) initialize(ctx context.Context) error {
	schema := `
	-- Cumulative watch time per item
	CREATE TABLE IF NOT EXISTS watch_time (
		item_id TEXT PRIMARY KEY,
		seconds REAL NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- First-sight dates, backfilled once and never overwritten
	CREATE TABLE IF NOT EXISTS added_dates (
		item_id TEXT PRIMARY KEY,
		added_at INTEGER NOT NULL
	);

	-- Favorites set
	CREATE TABLE IF NOT EXISTS favorites (
		item_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Manual tags, relational so the catalog-wide union is one join
	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE COLLATE NOCASE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS item_tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,
		UNIQUE(item_id, tag_id)
	);

	CREATE INDEX IF NOT EXISTS idx_item_tags_item ON item_tags(item_id);
	CREATE INDEX IF NOT EXISTS idx_item_tags_tag ON item_tags(tag_id);

	-- Cached auto-tag derivation results, JSON tag list
	CREATE TABLE IF NOT EXISTS auto_tags (
		item_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		tags TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	-- Title overrides
	CREATE TABLE IF NOT EXISTS titles (
		item_id TEXT PRIMARY KEY,
		title TEXT NOT NULL
	);

	-- Video resume positions
	CREATE TABLE IF NOT EXISTS playback (
		item_id TEXT PRIMARY KEY,
		position REAL NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Scalar settings (global volume)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection and cancels all subscriptions.
func (s *SQLite) Close() error {
	s.bus.closeAll()
	return s.db.Close()
}

// observeWrite records write metrics for one namespace. Callers invoke
// the returned func with the final error.
func observeWrite(namespace string) func(error) {
	start := time.Now()
	return func(err error) {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.StoreWritesTotal.WithLabelValues(namespace, status).Inc()
		metrics.StoreWriteDuration.WithLabelValues(namespace).Observe(time.Since(start).Seconds())
	}
}

// WatchSeconds returns the accumulated watch time for an item. Any
// read failure yields 0.
func (s *SQLite) WatchSeconds(ctx context.Context, id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var seconds float64
	err := s.db.QueryRowContext(ctx,
		"SELECT seconds FROM watch_time WHERE item_id = ?", id,
	).Scan(&seconds)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Debug("watch_time read failed for %s: %v", id, err)
			metrics.StoreCorruptReads.WithLabelValues("watch").Inc()
		}
		return 0
	}
	return seconds
}

// AllWatchSeconds returns the full watch-time map.
func (s *SQLite) AllWatchSeconds(ctx context.Context) map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	out := make(map[string]float64)
	rows, err := s.db.QueryContext(ctx, "SELECT item_id, seconds FROM watch_time")
	if err != nil {
		logging.Debug("watch_time scan failed: %v", err)
		return out
	}
	defer closeRows(rows)

	for rows.Next() {
		var id string
		var seconds float64
		if err := rows.Scan(&id, &seconds); err == nil {
			out[id] = seconds
		}
	}
	return out
}

// AddWatchTime accumulates a positive watch-time delta and returns the
// new total. Non-positive deltas are ignored.
func (s *SQLite) AddWatchTime(ctx context.Context, id string, delta float64) (float64, error) {
	if delta <= 0 {
		return s.WatchSeconds(ctx, id), nil
	}

	done := observeWrite("watch")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	var total float64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO watch_time (item_id, seconds, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(item_id) DO UPDATE SET
			seconds = watch_time.seconds + excluded.seconds,
			updated_at = strftime('%s', 'now')
		RETURNING seconds
	`, id, delta).Scan(&total)
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return 0, fmt.Errorf("failed to add watch time: %w", err)
	}

	s.bus.publish(Event{Topic: TopicWatch, ItemID: id, Value: total})
	return total, nil
}

// ResetAllWatchTime zeroes every watch-time counter.
func (s *SQLite) ResetAllWatchTime(ctx context.Context) error {
	done := observeWrite("watch")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err := s.db.ExecContext(ctx, "DELETE FROM watch_time")
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return fmt.Errorf("failed to reset watch time: %w", err)
	}

	s.bus.publish(Event{Topic: TopicWatch})
	return nil
}

// Progress returns the stored resume position for an item.
func (s *SQLite) Progress(ctx context.Context, id string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var position float64
	err := s.db.QueryRowContext(ctx,
		"SELECT position FROM playback WHERE item_id = ?", id,
	).Scan(&position)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			logging.Debug("playback read failed for %s: %v", id, err)
			metrics.StoreCorruptReads.WithLabelValues("progress").Inc()
		}
		return 0
	}
	if position < 0 {
		return 0
	}
	return position
}

// SetProgress stores a resume position, clamped to [0, duration].
func (s *SQLite) SetProgress(ctx context.Context, id string, seconds, duration float64) (float64, error) {
	clamped := ClampProgress(seconds, duration)
	done := observeWrite("progress")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO playback (item_id, position, updated_at)
		VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(item_id) DO UPDATE SET
			position = excluded.position,
			updated_at = strftime('%s', 'now')
	`, id, clamped)
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return 0, fmt.Errorf("failed to set progress: %w", err)
	}

	s.bus.publish(Event{Topic: TopicProgress, ItemID: id, Value: clamped})
	return clamped, nil
}

// ClearProgress resets an item's resume position to zero.
func (s *SQLite) ClearProgress(ctx context.Context, id string) error {
	done := observeWrite("progress")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err := s.db.ExecContext(ctx, "DELETE FROM playback WHERE item_id = ?", id)
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}

	s.bus.publish(Event{Topic: TopicProgress, ItemID: id, Value: 0.0})
	return nil
}

// Volume returns the global playback volume, defaulting to 1 when
// unset or unreadable.
func (s *SQLite) Volume(ctx context.Context) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = 'volume'",
	).Scan(&value)
	if err != nil {
		return 1
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logging.Debug("stored volume %q unreadable: %v", value, err)
		metrics.StoreCorruptReads.WithLabelValues("volume").Inc()
		return 1
	}
	return ClampVolume(v)
}

// SetVolume stores the global playback volume, clamped to [0, 1].
func (s *SQLite) SetVolume(ctx context.Context, v float64) (float64, error) {
	clamped := ClampVolume(v)
	done := observeWrite("volume")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ('volume', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.FormatFloat(clamped, 'f', -1, 64))
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return 0, fmt.Errorf("failed to set volume: %w", err)
	}
	return clamped, nil
}

// IsFavorite reports whether an item is in the favorites set.
func (s *SQLite) IsFavorite(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM favorites WHERE item_id = ?", id,
	).Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// Favorites returns the ids of all favorited items, most recent first.
func (s *SQLite) Favorites(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		"SELECT item_id FROM favorites ORDER BY created_at DESC, item_id",
	)
	if err != nil {
		logging.Debug("favorites scan failed: %v", err)
		return nil
	}
	defer closeRows(rows)

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// ToggleFavorite flips an item's favorite membership and returns the
// new state.
func (s *SQLite) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	done := observeWrite("favorites")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)

	var now bool
	res, err := s.db.ExecContext(ctx, "DELETE FROM favorites WHERE item_id = ?", id)
	if err == nil {
		if n, _ := res.RowsAffected(); n == 0 {
			_, err = s.db.ExecContext(ctx,
				"INSERT INTO favorites (item_id) VALUES (?) ON CONFLICT(item_id) DO NOTHING", id)
			now = true
		}
	}
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}

	s.bus.publish(Event{Topic: TopicFavorites, ItemID: id, Value: now})
	return now, nil
}

// Tags returns an item's manual tags, sorted.
func (s *SQLite) Tags(ctx context.Context, id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return s.tagsUnlocked(ctx, id)
}

// tagsUnlocked reads tags without acquiring the lock. Caller must hold
// at least a read lock.
func (s *SQLite) tagsUnlocked(ctx context.Context, id string) []string {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.name
		FROM tags t
		INNER JOIN item_tags it ON t.id = it.tag_id
		WHERE it.item_id = ?
		ORDER BY t.name COLLATE NOCASE
	`, id)
	if err != nil {
		logging.Debug("tags read failed for %s: %v", id, err)
		metrics.StoreCorruptReads.WithLabelValues("tags").Inc()
		return nil
	}
	defer closeRows(rows)

	var tags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tags = append(tags, name)
		}
	}
	return tags
}

// SetTags replaces an item's manual tags with the normalized form of
// the given list.
func (s *SQLite) SetTags(ctx context.Context, id string, tags []string) ([]string, error) {
	normalized := NormalizeTags(tags)
	done := observeWrite("tags")

	s.mu.Lock()
	err := s.setTagsLocked(ctx, id, normalized)
	s.mu.Unlock()

	done(err)
	if err != nil {
		return nil, err
	}

	s.bus.publish(Event{Topic: TopicTags, ItemID: id, Value: normalized})
	return normalized, nil
}

func (s *SQLite) setTagsLocked(ctx context.Context, id string, normalized []string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tag transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error("tag rollback failed: %v", rbErr)
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, "DELETE FROM item_tags WHERE item_id = ?", id); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}

	for _, name := range normalized {
		var tagID int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM tags WHERE name = ? COLLATE NOCASE", name,
		).Scan(&tagID)
		if err != nil {
			res, insErr := tx.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
			if insErr != nil {
				return fmt.Errorf("failed to create tag %q: %w", name, insErr)
			}
			tagID, _ = res.LastInsertId()
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO item_tags (item_id, tag_id) VALUES (?, ?)", id, tagID,
		); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tags: %w", err)
	}
	committed = true
	return nil
}

// AllTags returns the sorted union of every stored manual and derived
// tag across the catalog.
func (s *SQLite) AllTags(ctx context.Context) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var all []string

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT t.name
		FROM tags t
		INNER JOIN item_tags it ON t.id = it.tag_id
	`)
	if err == nil {
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err == nil {
				all = append(all, name)
			}
		}
		closeRows(rows)
	}

	metaRows, err := s.db.QueryContext(ctx, "SELECT tags FROM auto_tags")
	if err == nil {
		for metaRows.Next() {
			var raw string
			if err := metaRows.Scan(&raw); err != nil {
				continue
			}
			var tags []string
			if err := json.Unmarshal([]byte(raw), &tags); err != nil {
				metrics.StoreCorruptReads.WithLabelValues("autotag").Inc()
				continue
			}
			all = append(all, tags...)
		}
		closeRows(metaRows)
	}

	return NormalizeTags(all)
}

// AutoTagMeta returns the cached derivation result for an item. A
// malformed cache entry reads as absent, which forces recomputation.
func (s *SQLite) AutoTagMeta(ctx context.Context, id string) (AutoTagMeta, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var meta AutoTagMeta
	var raw string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT version, tags, updated_at FROM auto_tags WHERE item_id = ?", id,
	).Scan(&meta.Version, &raw, &updatedAt)
	if err != nil {
		return AutoTagMeta{}, false
	}

	if err := json.Unmarshal([]byte(raw), &meta.Tags); err != nil {
		logging.Debug("auto_tags entry for %s unreadable: %v", id, err)
		metrics.StoreCorruptReads.WithLabelValues("autotag").Inc()
		return AutoTagMeta{}, false
	}
	meta.UpdatedAt = time.Unix(updatedAt, 0)
	return meta, true
}

// SetAutoTagMeta caches a derivation result for an item.
func (s *SQLite) SetAutoTagMeta(ctx context.Context, id string, meta AutoTagMeta) error {
	raw, err := json.Marshal(meta.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode auto tags: %w", err)
	}

	updatedAt := meta.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	done := observeWrite("autotag")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO auto_tags (item_id, version, tags, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			version = excluded.version,
			tags = excluded.tags,
			updated_at = excluded.updated_at
	`, id, meta.Version, string(raw), updatedAt.Unix())
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return fmt.Errorf("failed to store auto tags: %w", err)
	}

	s.bus.publish(Event{Topic: TopicTags, ItemID: id, Value: meta.Tags})
	return nil
}

// Title returns the title override for an item, or "".
func (s *SQLite) Title(ctx context.Context, id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var title string
	if err := s.db.QueryRowContext(ctx,
		"SELECT title FROM titles WHERE item_id = ?", id,
	).Scan(&title); err != nil {
		return ""
	}
	return title
}

// SetTitle stores or, when title is empty, removes a title override.
func (s *SQLite) SetTitle(ctx context.Context, id string, title string) error {
	title = trimTitle(title)
	done := observeWrite("titles")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	var err error
	if title == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM titles WHERE item_id = ?", id)
	} else {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO titles (item_id, title) VALUES (?, ?)
			ON CONFLICT(item_id) DO UPDATE SET title = excluded.title
		`, id, title)
	}
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return fmt.Errorf("failed to set title: %w", err)
	}

	s.bus.publish(Event{Topic: TopicTitles, ItemID: id, Value: title})
	return nil
}

// AddedAt returns the recorded first-sight date for an item.
func (s *SQLite) AddedAt(ctx context.Context, id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var unix int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT added_at FROM added_dates WHERE item_id = ?", id,
	).Scan(&unix); err != nil {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// BackfillAdded records a first-sight date if none exists yet.
func (s *SQLite) BackfillAdded(ctx context.Context, id string, t time.Time) error {
	done := observeWrite("added")

	s.mu.Lock()
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO added_dates (item_id, added_at) VALUES (?, ?)
		ON CONFLICT(item_id) DO NOTHING
	`, id, t.Unix())
	cancel()
	s.mu.Unlock()

	done(err)
	if err != nil {
		return fmt.Errorf("failed to backfill added date: %w", err)
	}
	return nil
}

// Subscribe registers a change listener.
func (s *SQLite) Subscribe(buffer int, topics ...Topic) *Subscription {
	return s.bus.subscribe(buffer, topics...)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Error("error closing rows: %v", err)
	}
}

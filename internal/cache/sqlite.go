package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS album_history (
	host         TEXT NOT NULL,
	album_id     INTEGER NOT NULL,
	ts           INTEGER NOT NULL,
	present      INTEGER NOT NULL,
	recent_score REAL,
	PRIMARY KEY (host, album_id, ts)
);

CREATE INDEX IF NOT EXISTS idx_album_history_lookup
	ON album_history (host, album_id, ts);
`

// SQLite is the on-disk Store and HistoryStore.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set cache WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Get(key string, into any) bool {
	var raw string
	var expiresAt int64

	err := s.db.QueryRow(
		`SELECT value, expires_at FROM kv_cache WHERE key = ?`, key,
	).Scan(&raw, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		return false
	}

	if s.now().Unix() >= expiresAt {
		_, _ = s.db.Exec(`DELETE FROM kv_cache WHERE key = ?`, key)
		return false
	}

	return json.Unmarshal([]byte(raw), into) == nil
}

func (s *SQLite) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	expiresAt := s.now().Add(ttl).Unix()
	_, err = s.db.Exec(
		`INSERT INTO kv_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, string(raw), expiresAt,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	return nil
}

func (s *SQLite) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_cache WHERE key = ?`, key)
	return err
}

func (s *SQLite) AppendHistory(host string, albumID int64, sample HistorySample) error {
	var score any
	if sample.RecentScore != nil {
		score = *sample.RecentScore
	}

	_, err := s.db.Exec(
		`INSERT INTO album_history (host, album_id, ts, present, recent_score)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(host, album_id, ts) DO UPDATE SET
			present = excluded.present, recent_score = excluded.recent_score`,
		host, albumID, sample.Timestamp.Unix(), boolToInt(sample.Present), score,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	return nil
}

func (s *SQLite) History(host string, albumID int64, since time.Time) ([]HistorySample, error) {
	rows, err := s.db.Query(
		`SELECT ts, present, recent_score FROM album_history
		 WHERE host = ? AND album_id = ? AND ts >= ?
		 ORDER BY ts ASC`,
		host, albumID, since.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []HistorySample
	for rows.Next() {
		var ts int64
		var present int
		var score sql.NullFloat64

		if err := rows.Scan(&ts, &present, &score); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		sample := HistorySample{
			Timestamp: time.Unix(ts, 0),
			Present:   present != 0,
		}
		if score.Valid {
			v := score.Float64
			sample.RecentScore = &v
		}

		out = append(out, sample)
	}

	return out, rows.Err()
}

func (s *SQLite) PruneHistory(host string, albumID int64, before time.Time) error {
	_, err := s.db.Exec(
		`DELETE FROM album_history WHERE host = ? AND album_id = ? AND ts < ?`,
		host, albumID, before.Unix(),
	)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

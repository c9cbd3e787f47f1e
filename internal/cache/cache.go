package cache

import (
	"strings"
	"time"
)

// Store is the persistent key-value cache behind the rank lookups, external
// scrapes and popularity records. Values are JSON blobs with a TTL; a miss
// and an expired entry look the same to callers.
type Store interface {
	Get(key string, into any) bool
	Set(key string, value any, ttl time.Duration) error
	Delete(key string) error
	Close() error
}

// HistorySample is one observation of an album's recent score. Appended on
// every popularity computation; only the scorer reads these back.
type HistorySample struct {
	Timestamp   time.Time `json:"timestamp"`
	Present     bool      `json:"present"`
	RecentScore *float64  `json:"recentScore"`
}

// HistoryStore keeps the bounded per-album score time series.
type HistoryStore interface {
	AppendHistory(host string, albumID int64, sample HistorySample) error
	History(host string, albumID int64, since time.Time) ([]HistorySample, error)
	PruneHistory(host string, albumID int64, before time.Time) error
}

// Key builds the cache key. Every cached blob is scoped by host so mirror
// switches never serve another site's data.
func Key(host, scope, ident string) string {
	return strings.Join([]string{host, scope, ident}, "|")
}

package cache

import (
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	raw       []byte
	expiresAt time.Time
}

// Memory is an in-process Store and HistoryStore. Used for --no-cache runs
// and tests; behaviour matches the sqlite store including TTL expiry.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	history map[string][]HistorySample
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		history: make(map[string][]HistorySample),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Memory) Get(key string, into any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return false
	}

	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return false
	}

	return json.Unmarshal(entry.raw, into) == nil
}

func (m *Memory) Set(key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.entries[key] = memoryEntry{raw: raw, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()

	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) AppendHistory(host string, albumID int64, sample HistorySample) error {
	key := Key(host, "history", strconv.FormatInt(albumID, 10))

	m.mu.Lock()
	m.history[key] = append(m.history[key], sample)
	sort.Slice(m.history[key], func(i, j int) bool {
		return m.history[key][i].Timestamp.Before(m.history[key][j].Timestamp)
	})
	m.mu.Unlock()

	return nil
}

func (m *Memory) History(host string, albumID int64, since time.Time) ([]HistorySample, error) {
	key := Key(host, "history", strconv.FormatInt(albumID, 10))

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []HistorySample
	for _, s := range m.history[key] {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}

	return out, nil
}

func (m *Memory) PruneHistory(host string, albumID int64, before time.Time) error {
	key := Key(host, "history", strconv.FormatInt(albumID, 10))

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[key][:0]
	for _, s := range m.history[key] {
		if !s.Timestamp.Before(before) {
			kept = append(kept, s)
		}
	}
	m.history[key] = kept

	return nil
}


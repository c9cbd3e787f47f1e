package popularity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/site"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func TestLoadSourceConfigs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	yaml := `
sources:
  - key: other-mirror
    weight: 0.15
    base_url: https://rank.example
    scopes:
      day: /day.html
      week: /week.html
    item_selector: ".rank-item .title"
    ttl_hours: 5
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfgs, err := LoadSourceConfigs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 1 {
		t.Fatalf("got %d sources, want 1", len(cfgs))
	}

	cfg := cfgs[0]
	if cfg.Key != "other-mirror" || cfg.Weight != 0.15 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ScopePaths["day"] != "/day.html" {
		t.Errorf("scope paths = %v", cfg.ScopePaths)
	}
}

func TestLoadSourceConfigsMissingFile(t *testing.T) {
	cfgs, err := LoadSourceConfigs(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil || cfgs != nil {
		t.Errorf("missing file = (%v, %v), want (nil, nil)", cfgs, err)
	}
}

func TestLoadSourceConfigsRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  - weight: 0.1\n    base_url: https://x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSourceConfigs(path); err == nil {
		t.Error("expected an error for a source without a key")
	}
}

func TestHTTPSourceTTLClamping(t *testing.T) {
	cases := []struct {
		hours int
		want  time.Duration
	}{
		{0, DefaultSourceTTL},
		{1, 3 * time.Hour},
		{4, 4 * time.Hour},
		{24, 6 * time.Hour},
	}

	for _, c := range cases {
		s := NewHTTPSource(SourceConfig{TTLHours: c.hours}, nil, nil, nopLogger{})
		if got := s.ttl(); got != c.want {
			t.Errorf("ttl_hours=%d: got %s, want %s", c.hours, got, c.want)
		}
	}
}

func TestHTTPSourceRankedTitles(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`<html><body>
			<div class="rank-item"><span class="title">First Album</span></div>
			<div class="rank-item"><span class="title">Second Album</span></div>
			<div class="rank-item"><span class="title">  </span></div>
			<div class="rank-item"><span class="title">Third Album</span></div>
		</body></html>`))
	}))
	defer srv.Close()

	gateway := fetch.NewGateway(srv.Client(), 5*time.Second, nopLogger{})
	src := NewHTTPSource(SourceConfig{
		Key:          "ext",
		Weight:       0.15,
		BaseURL:      srv.URL,
		ScopePaths:   map[string]string{"day": "/day.html"},
		ItemSelector: ".rank-item .title",
		MaxItems:     2,
	}, gateway, cache.NewMemory(), nopLogger{})

	titles := src.RankedTitles(context.Background(), site.ScopeDay, false)
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2 (max_items cap, blanks skipped)", len(titles))
	}
	if titles[0].Rank != 1 || titles[0].Title != "First Album" {
		t.Errorf("titles[0] = %+v", titles[0])
	}
	if titles[1].Rank != 2 || titles[1].Title != "Second Album" {
		t.Errorf("titles[1] = %+v", titles[1])
	}

	// second read comes from cache
	src.RankedTitles(context.Background(), site.ScopeDay, false)
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	// unknown scope has no page configured
	if got := src.RankedTitles(context.Background(), site.ScopeWeek, false); got != nil {
		t.Errorf("unconfigured scope = %v, want nil", got)
	}
}

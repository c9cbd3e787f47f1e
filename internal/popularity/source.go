package popularity

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"gopkg.in/yaml.v3"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/match"
	"github.com/shaw465/wnacg-downloader/internal/site"
)

// Source supplies ranked title lists from another site, used to cross-check
// an album's standing beyond its home mirror.
type Source interface {
	Key() string
	Weight() float64
	RankedTitles(ctx context.Context, scope site.Scope, forceRefresh bool) []match.RankedTitle
}

const (
	// External scrapes age slower than local rankings but faster than
	// popularity records.
	DefaultSourceTTL = 4 * time.Hour
	minSourceTTL     = 3 * time.Hour
	maxSourceTTL     = 6 * time.Hour

	defaultSourceMaxItems = 200
)

// SourceConfig describes one external ranking site declaratively, so new
// sources need a YAML stanza rather than code.
type SourceConfig struct {
	Key          string            `yaml:"key"`
	Weight       float64           `yaml:"weight"`
	BaseURL      string            `yaml:"base_url"`
	ScopePaths   map[string]string `yaml:"scopes"`
	ItemSelector string            `yaml:"item_selector"`
	TTLHours     int               `yaml:"ttl_hours"`
	MaxItems     int               `yaml:"max_items"`
}

type sourceFile struct {
	Sources []SourceConfig `yaml:"sources"`
}

// LoadSourceConfigs reads external source definitions from a YAML file.
// A missing file is not an error; it just means no external sources.
func LoadSourceConfigs(path string) ([]SourceConfig, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var f sourceFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse sources file %s: %w", path, err)
	}

	for i, cfg := range f.Sources {
		if strings.TrimSpace(cfg.Key) == "" {
			return nil, fmt.Errorf("sources file %s: source %d has no key", path, i+1)
		}
		if strings.TrimSpace(cfg.BaseURL) == "" {
			return nil, fmt.Errorf("sources file %s: source %q has no base_url", path, cfg.Key)
		}
	}

	return f.Sources, nil
}

type sourceLogger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// HTTPSource scrapes an external site's ranking pages with a configured
// selector. Results are cached per (source, scope).
type HTTPSource struct {
	cfg     SourceConfig
	gateway *fetch.Gateway
	store   cache.Store
	log     sourceLogger
}

func NewHTTPSource(cfg SourceConfig, gateway *fetch.Gateway, store cache.Store, log sourceLogger) *HTTPSource {
	return &HTTPSource{cfg: cfg, gateway: gateway, store: store, log: log}
}

func (s *HTTPSource) Key() string     { return s.cfg.Key }
func (s *HTTPSource) Weight() float64 { return s.cfg.Weight }

func (s *HTTPSource) ttl() time.Duration {
	if s.cfg.TTLHours <= 0 {
		return DefaultSourceTTL
	}

	ttl := time.Duration(s.cfg.TTLHours) * time.Hour
	if ttl < minSourceTTL {
		return minSourceTTL
	}
	if ttl > maxSourceTTL {
		return maxSourceTTL
	}

	return ttl
}

// RankedTitles scrapes the scope's ranking page in document order. An
// unreachable page or unknown scope degrades to an empty list, never an
// error: the scorer treats empty as "no data from this source".
func (s *HTTPSource) RankedTitles(ctx context.Context, scope site.Scope, forceRefresh bool) []match.RankedTitle {
	path, ok := s.cfg.ScopePaths[string(scope)]
	if !ok || path == "" {
		return nil
	}

	pageURL := strings.TrimRight(s.cfg.BaseURL, "/") + path
	key := cache.Key(s.cfg.Key, "titles-"+string(scope), pageURL)

	if !forceRefresh {
		var cached []match.RankedTitle
		if s.store.Get(key, &cached) {
			return cached
		}
	}

	doc := s.gateway.Document(ctx, pageURL)
	if doc == nil {
		s.log.Warnf("external source %s: %s unavailable\n", s.cfg.Key, pageURL)
		return nil
	}

	maxItems := s.cfg.MaxItems
	if maxItems <= 0 {
		maxItems = defaultSourceMaxItems
	}

	var titles []match.RankedTitle
	doc.Find(s.cfg.ItemSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.Text())
		if title != "" {
			titles = append(titles, match.RankedTitle{Rank: len(titles) + 1, Title: title})
		}
		return len(titles) < maxItems
	})

	s.log.Debugf("external source %s: %d title(s) for scope %s\n", s.cfg.Key, len(titles), scope)

	if err := s.store.Set(key, titles, s.ttl()); err != nil {
		s.log.Warnf("caching %s titles failed: %v\n", s.cfg.Key, err)
	}

	return titles
}

package ranking

import (
	"context"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/site"
)

const (
	// LookupTTL bounds how stale a crawled ranking may get before the
	// next request rebuilds it wholesale.
	LookupTTL = 20 * time.Minute

	DefaultMaxPages = 50
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// Lookup is an identifier-to-rank table crawled from a paginated listing.
// Never mutated in place; a refresh replaces it wholesale.
type Lookup struct {
	URL      string        `json:"url"`
	ListSize int           `json:"listSize"`
	RankOf   map[int64]int `json:"rankOf"`
}

// Rank returns the 1-based rank of id, or 0 when absent.
func (l *Lookup) Rank(id int64) int {
	if l == nil {
		return 0
	}
	return l.RankOf[id]
}

// ScoreFor converts id's rank into a percentile score, nil when unranked.
func (l *Lookup) ScoreFor(id int64) *float64 {
	if l == nil {
		return nil
	}

	rank, ok := l.RankOf[id]
	if !ok {
		return nil
	}

	return Score(rank, l.ListSize)
}

// Score is the rank-percentile transform: rank 1 of N scores 1.0 and the
// last rank scores ~1/N, not 0. Downstream blending depends on the
// nonzero floor.
func Score(rank, listSize int) *float64 {
	if rank <= 0 || listSize <= 0 {
		return nil
	}

	s := 1 - float64(rank-1)/float64(listSize)
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}

	return &s
}

type BuildOptions struct {
	Scope        string
	MaxPages     int
	MaxItems     int
	ForceRefresh bool
}

// Builder crawls paginated listings into rank lookups, cached per
// (host, scope, url).
type Builder struct {
	gateway *fetch.Gateway
	adapter site.Adapter
	store   cache.Store
	log     Logger
}

func NewBuilder(gateway *fetch.Gateway, adapter site.Adapter, store cache.Store, log Logger) *Builder {
	return &Builder{gateway: gateway, adapter: adapter, store: store, log: log}
}

// Build walks the listing from startURL, assigning each album its 1-based
// position in the cumulative first-seen order. Stops at the page cap, the
// item cap, a missing next link, an unfetchable page, or a pagination
// cycle. A partial crawl still yields a usable (smaller) lookup.
func (b *Builder) Build(ctx context.Context, startURL string, opts BuildOptions) *Lookup {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}

	key := cache.Key(b.adapter.Host(), "rank-"+opts.Scope, startURL)
	if !opts.ForceRefresh {
		var cached Lookup
		if b.store.Get(key, &cached) {
			b.log.Debugf("rank lookup cache hit: %s\n", key)
			return &cached
		}
	}

	lookup := &Lookup{URL: startURL, RankOf: make(map[int64]int)}

	visited := make(map[string]bool)
	pageURL := startURL

crawl:
	for page := 0; page < opts.MaxPages; page++ {
		if visited[pageURL] {
			b.log.Warnf("pagination cycle at %s, stopping\n", pageURL)
			break
		}
		visited[pageURL] = true

		doc := b.gateway.Document(ctx, pageURL)
		if doc == nil {
			b.log.Warnf("page %s unavailable, keeping partial ranking\n", pageURL)
			break
		}

		for _, entry := range b.adapter.AlbumEntries(doc) {
			if _, ranked := lookup.RankOf[entry.ID]; ranked {
				continue
			}

			lookup.ListSize++
			lookup.RankOf[entry.ID] = lookup.ListSize

			if opts.MaxItems > 0 && lookup.ListSize >= opts.MaxItems {
				break crawl
			}
		}

		next := b.adapter.NextPageURL(doc, pageURL)
		if next == "" {
			break
		}
		pageURL = next
	}

	b.log.Debugf("rank lookup built: %s, %d item(s), %d page(s)\n",
		startURL, lookup.ListSize, len(visited))

	if err := b.store.Set(key, lookup, LookupTTL); err != nil {
		b.log.Warnf("caching rank lookup failed: %v\n", err)
	}

	return lookup
}

// CollectIDs harvests album IDs across a paginated listing in first-seen
// order. Backs batch selection over whole shelves; uncached since the
// shelf changes under the user's hands.
func (b *Builder) CollectIDs(ctx context.Context, startURL string, maxPages int) []int64 {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	seen := make(map[int64]bool)
	var ids []int64

	visited := make(map[string]bool)
	pageURL := startURL

	for page := 0; page < maxPages; page++ {
		if visited[pageURL] {
			break
		}
		visited[pageURL] = true

		doc := b.gateway.Document(ctx, pageURL)
		if doc == nil {
			break
		}

		for _, entry := range b.adapter.AlbumEntries(doc) {
			if seen[entry.ID] {
				continue
			}
			seen[entry.ID] = true
			ids = append(ids, entry.ID)
		}

		next := b.adapter.NextPageURL(doc, pageURL)
		if next == "" {
			break
		}
		pageURL = next
	}

	b.log.Debugf("collected %d album ID(s) from %s (%d page(s))\n",
		len(ids), startURL, len(visited))

	return ids
}

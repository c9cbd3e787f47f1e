package popularity

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/match"
	"github.com/shaw465/wnacg-downloader/internal/ranking"
	"github.com/shaw465/wnacg-downloader/internal/site"
)

const (
	// RecordTTL is how long a computed popularity record stays valid.
	RecordTTL = 6 * time.Hour

	// HistoryRetention bounds the per-album score time series.
	HistoryRetention = 120 * 24 * time.Hour

	// longtermWindow is the sampling window for the long-term stats.
	longtermWindow = 30 * 24 * time.Hour

	// newAlbumAge splits the age-adaptive blend: young albums live and die
	// by their current rank, older ones by their staying power.
	newAlbumAge = 30 * 24 * time.Hour

	// localWeight is the home site's share of the recent score; external
	// sources fill the rest according to their configured weights.
	localWeight = 0.75

	trendSamples = 3

	longtermAppearWeight = 0.6
	longtermRecentWeight = 0.4
)

// scopeWeights favour the freshest ranking window.
var scopeWeights = map[site.Scope]float64{
	site.ScopeDay:   0.5,
	site.ScopeWeek:  0.3,
	site.ScopeMonth: 0.2,
}

var scopes = []site.Scope{site.ScopeDay, site.ScopeWeek, site.ScopeMonth}

type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Store is the persistence the scorer needs: the KV cache plus the
// per-album history series. Both cache backends satisfy it.
type Store interface {
	cache.Store
	cache.HistoryStore
}

// Scorer runs the one-shot popularity pipeline: local scope rankings and
// external sources fetched concurrently, joined by key, aggregated into a
// cached record. It holds no per-request state and is safe for concurrent
// use across albums.
type Scorer struct {
	gateway *fetch.Gateway
	adapter site.Adapter
	builder *ranking.Builder
	store   Store
	sources []Source
	log     Logger
	now     func() time.Time
}

func NewScorer(gateway *fetch.Gateway, adapter site.Adapter, builder *ranking.Builder,
	store Store, sources []Source, log Logger) *Scorer {

	return &Scorer{
		gateway: gateway,
		adapter: adapter,
		builder: builder,
		store:   store,
		sources: sources,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the time source. Test hook.
func (s *Scorer) SetClock(now func() time.Time) { s.now = now }

// Score computes (or serves from cache) the popularity record for one
// album. forceRefresh bypasses every cache read but still rewrites them.
func (s *Scorer) Score(ctx context.Context, id int64, forceRefresh bool) *Record {
	key := cache.Key(s.adapter.Host(), "popularity", strconv.FormatInt(id, 10))

	if !forceRefresh {
		var cached Record
		if s.store.Get(key, &cached) {
			s.log.Debugf("popularity cache hit for %d\n", id)
			return &cached
		}
	}

	now := s.now()
	record := &Record{
		ID:             id,
		ComputedAt:     now,
		ExternalScores: make(map[string]*float64),
	}

	info := s.albumInfo(ctx, id)
	record.Title = info.Title

	local, external := s.fetchScores(ctx, id, info.Title, forceRefresh)
	record.ScopeScores = local
	for k, v := range external {
		record.ExternalScores[k] = v
	}

	localScore := WeightedAverage(
		WeightedValue{local.Day, scopeWeights[site.ScopeDay]},
		WeightedValue{local.Week, scopeWeights[site.ScopeWeek]},
		WeightedValue{local.Month, scopeWeights[site.ScopeMonth]},
	)

	recentParts := []WeightedValue{{localScore, localWeight}}
	for _, src := range s.sources {
		recentParts = append(recentParts, WeightedValue{external[src.Key()], src.Weight()})
	}
	record.RecentScore = WeightedAverage(recentParts...)

	s.updateHistory(record, now)
	s.deriveLongterm(record, now)

	record.FinalScore = s.blendFinal(record, info.UploadedAt, now)
	record.Grade = GradeOf(record.FinalScore)

	if err := s.store.Set(key, record, RecordTTL); err != nil {
		s.log.Warnf("caching popularity record for %d failed: %v\n", id, err)
	}

	return record
}

// ScoreMany scores albums one at a time. The per-album pipeline already
// fans out internally; issuing albums serially keeps the crawl polite.
func (s *Scorer) ScoreMany(ctx context.Context, ids []int64, forceRefresh bool) []*Record {
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		out = append(out, s.Score(ctx, id, forceRefresh))
	}

	return out
}

func (s *Scorer) albumInfo(ctx context.Context, id int64) site.AlbumInfo {
	doc := s.gateway.Document(ctx, s.adapter.AlbumURL(id))
	if doc == nil {
		s.log.Warnf("album page for %d unavailable, scoring without title/age\n", id)
		return site.AlbumInfo{}
	}

	return s.adapter.ParseAlbumInfo(doc)
}

// fetchScores fans out the local scope lookups and the external sources as
// independent in-flight fetches and joins them by key. No ordering between
// them matters; each slot is written by exactly one goroutine.
func (s *Scorer) fetchScores(ctx context.Context, id int64, title string, forceRefresh bool) (ScopeScores, map[string]*float64) {
	var (
		wg    sync.WaitGroup
		local ScopeScores
	)

	slots := map[site.Scope]**float64{
		site.ScopeDay:   &local.Day,
		site.ScopeWeek:  &local.Week,
		site.ScopeMonth: &local.Month,
	}

	for _, scope := range scopes {
		wg.Add(1)
		go func(scope site.Scope, slot **float64) {
			defer wg.Done()
			lookup := s.builder.Build(ctx, s.adapter.RankURL(scope), ranking.BuildOptions{
				Scope:        string(scope),
				ForceRefresh: forceRefresh,
			})
			*slot = lookup.ScoreFor(id)
		}(scope, slots[scope])
	}

	external := make(map[string]*float64, len(s.sources))
	externalSlots := make([]*float64, len(s.sources))

	for i, src := range s.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			externalSlots[i] = s.externalScore(ctx, src, title, forceRefresh)
		}(i, src)
	}

	wg.Wait()

	for i, src := range s.sources {
		external[src.Key()] = externalSlots[i]
	}

	return local, external
}

// externalScore matches the album's title against one external site's
// ranked lists and averages the per-scope combined scores. Nil when the
// title is unknown or nothing matches anywhere.
func (s *Scorer) externalScore(ctx context.Context, src Source, title string, forceRefresh bool) *float64 {
	if title == "" {
		return nil
	}

	candidates := []string{title}

	var parts []WeightedValue
	for _, scope := range scopes {
		titles := src.RankedTitles(ctx, scope, forceRefresh)
		if len(titles) == 0 {
			parts = append(parts, WeightedValue{nil, scopeWeights[scope]})
			continue
		}

		var score *float64
		if res := match.FindInRankedList(candidates, titles, len(titles)); res != nil {
			score = ptr(res.Score)
		}
		parts = append(parts, WeightedValue{score, scopeWeights[scope]})
	}

	return WeightedAverage(parts...)
}

// updateHistory appends the new observation and derives the short-term
// trend against the mean of the last few prior samples.
func (s *Scorer) updateHistory(record *Record, now time.Time) {
	host := s.adapter.Host()

	if err := s.store.PruneHistory(host, record.ID, now.Add(-HistoryRetention)); err != nil {
		s.log.Warnf("pruning history for %d failed: %v\n", record.ID, err)
	}

	prior, err := s.store.History(host, record.ID, now.Add(-HistoryRetention))
	if err != nil {
		s.log.Warnf("reading history for %d failed: %v\n", record.ID, err)
		prior = nil
	}

	if record.RecentScore != nil {
		var recents []float64
		for _, sample := range prior {
			if sample.RecentScore != nil {
				recents = append(recents, *sample.RecentScore)
			}
		}
		if len(recents) > trendSamples {
			recents = recents[len(recents)-trendSamples:]
		}
		if len(recents) > 0 {
			var sum float64
			for _, r := range recents {
				sum += r
			}
			delta := *record.RecentScore - sum/float64(len(recents))
			record.TrendDelta = &delta
		}
	}

	sample := cache.HistorySample{
		Timestamp: now,
		Present:   record.RecentScore != nil,
	}
	if record.RecentScore != nil {
		v := *record.RecentScore
		sample.RecentScore = &v
	}

	if err := s.store.AppendHistory(host, record.ID, sample); err != nil {
		s.log.Warnf("appending history for %d failed: %v\n", record.ID, err)
	}
}

// deriveLongterm computes the 30-day appearance and score stats. Sustained
// presence weighs more than the level of any single sample.
func (s *Scorer) deriveLongterm(record *Record, now time.Time) {
	window, err := s.store.History(s.adapter.Host(), record.ID, now.Add(-longtermWindow))
	if err != nil {
		s.log.Warnf("reading history window for %d failed: %v\n", record.ID, err)
		return
	}

	if len(window) == 0 {
		return
	}

	var present int
	var recentSum float64
	var recentCount int
	for _, sample := range window {
		if sample.Present {
			present++
		}
		if sample.RecentScore != nil {
			recentSum += *sample.RecentScore
			recentCount++
		}
	}

	appearRate := float64(present) / float64(len(window))

	var avgRecent *float64
	if recentCount > 0 {
		avgRecent = ptr(recentSum / float64(recentCount))
	}

	record.LongtermScore = WeightedAverage(
		WeightedValue{ptr(appearRate), longtermAppearWeight},
		WeightedValue{avgRecent, longtermRecentWeight},
	)
}

// blendFinal weights recent vs long-term by album age: a fresh album is
// judged by its current rank, an established one by its history.
func (s *Scorer) blendFinal(record *Record, uploadedAt *time.Time, now time.Time) *float64 {
	recentWeight, longtermWeight := 0.5, 0.5
	if uploadedAt != nil {
		if now.Sub(*uploadedAt) <= newAlbumAge {
			recentWeight, longtermWeight = 0.7, 0.3
		} else {
			recentWeight, longtermWeight = 0.3, 0.7
		}
	}

	return WeightedAverage(
		WeightedValue{record.RecentScore, recentWeight},
		WeightedValue{record.LongtermScore, longtermWeight},
	)
}

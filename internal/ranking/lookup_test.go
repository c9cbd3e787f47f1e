package ranking

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/site"
)

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// rankServer serves n listing pages of 10 albums each, chained with 後頁
// links in the mirror's markup.
func rankServer(t *testing.T, pages int, hits *int) *httptest.Server {
	t.Helper()

	handler := func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if _, err := fmt.Sscanf(r.URL.Path, "/albums-rank-page-%d.html", &page); err != nil {
			page = 1
		}
		if hits != nil {
			*hits++
		}

		var b strings.Builder
		b.WriteString("<html><body><ul>")
		for i := 1; i <= 10; i++ {
			id := (page-1)*10 + i
			fmt.Fprintf(&b, `<li><a href="/photos-index-aid-%d.html">Album %d</a></li>`, id, id)
		}
		b.WriteString("</ul>")
		if page < pages {
			fmt.Fprintf(&b, `<a href="/albums-rank-page-%d.html">後頁</a>`, page+1)
		}
		b.WriteString("</body></html>")

		_, _ = w.Write([]byte(b.String()))
	}

	return httptest.NewServer(http.HandlerFunc(handler))
}

func newTestBuilder(srv *httptest.Server, store cache.Store) *Builder {
	gateway := fetch.NewGateway(srv.Client(), 5*time.Second, nopLogger{})
	return NewBuilder(gateway, site.NewWnacg("www.wnacg.com"), store, nopLogger{})
}

func TestScore(t *testing.T) {
	if s := Score(1, 30); s == nil || *s != 1 {
		t.Errorf("rank 1 of 30 = %v, want 1", s)
	}

	if s := Score(30, 30); s == nil || math.Abs(*s-1.0/30) > 1e-9 {
		t.Errorf("last rank = %v, want ~%v (never zero)", s, 1.0/30)
	}

	if s := Score(0, 30); s != nil {
		t.Errorf("rank 0 = %v, want nil", s)
	}
	if s := Score(5, 0); s != nil {
		t.Errorf("empty list = %v, want nil", s)
	}
}

func TestBuildCrawlsAllPages(t *testing.T) {
	srv := rankServer(t, 3, nil)
	defer srv.Close()

	b := newTestBuilder(srv, cache.NewMemory())
	lookup := b.Build(context.Background(), srv.URL+"/albums-rank-page-1.html", BuildOptions{Scope: "day"})

	if lookup.ListSize != 30 {
		t.Fatalf("listSize = %d, want 30", lookup.ListSize)
	}
	if got := lookup.Rank(15); got != 15 {
		t.Errorf("rank of album 15 = %d, want 15", got)
	}
	if got := lookup.Rank(999); got != 0 {
		t.Errorf("missing album rank = %d, want 0", got)
	}

	// rank 15 of 30
	want := 1 - 14.0/30
	if s := lookup.ScoreFor(15); s == nil || math.Abs(*s-want) > 1e-9 {
		t.Errorf("score of album 15 = %v, want %v", s, want)
	}
	if s := lookup.ScoreFor(999); s != nil {
		t.Errorf("score of missing album = %v, want nil", s)
	}
}

func TestBuildHonorsItemCap(t *testing.T) {
	srv := rankServer(t, 3, nil)
	defer srv.Close()

	b := newTestBuilder(srv, cache.NewMemory())
	lookup := b.Build(context.Background(), srv.URL+"/albums-rank-page-1.html", BuildOptions{Scope: "day", MaxItems: 12})

	if lookup.ListSize != 12 {
		t.Errorf("listSize = %d, want 12", lookup.ListSize)
	}
}

func TestBuildUsesCacheUntilForced(t *testing.T) {
	hits := 0
	srv := rankServer(t, 1, &hits)
	defer srv.Close()

	store := cache.NewMemory()
	b := newTestBuilder(srv, store)
	start := srv.URL + "/albums-rank-page-1.html"

	first := b.Build(context.Background(), start, BuildOptions{Scope: "day"})
	second := b.Build(context.Background(), start, BuildOptions{Scope: "day"})

	if hits != 1 {
		t.Fatalf("server hit %d times, want 1 (second build served from cache)", hits)
	}
	if second.ListSize != first.ListSize {
		t.Errorf("cached lookup differs: %d vs %d", second.ListSize, first.ListSize)
	}

	b.Build(context.Background(), start, BuildOptions{Scope: "day", ForceRefresh: true})
	if hits != 2 {
		t.Errorf("server hit %d times after force refresh, want 2", hits)
	}

	// expired entries rebuild too
	b.Build(context.Background(), start, BuildOptions{Scope: "week"})
	hitsBefore := hits
	store.SetClock(func() time.Time { return time.Now().Add(LookupTTL + time.Minute) })
	b.Build(context.Background(), start, BuildOptions{Scope: "week"})
	if hits != hitsBefore+1 {
		t.Errorf("expired lookup was not rebuilt")
	}
}

func TestBuildStopsOnPaginationCycle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// every page links back to itself
		_, _ = fmt.Fprintf(w, `<html><body>
			<a href="/photos-index-aid-7.html">Album 7</a>
			<a href="%s">後頁</a>
		</body></html>`, r.URL.Path)
	}))
	defer srv.Close()

	b := newTestBuilder(srv, cache.NewMemory())
	done := make(chan *Lookup, 1)
	go func() {
		done <- b.Build(context.Background(), srv.URL+"/loop.html", BuildOptions{Scope: "day"})
	}()

	select {
	case lookup := <-done:
		if lookup.ListSize != 1 {
			t.Errorf("listSize = %d, want 1", lookup.ListSize)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("crawl did not terminate on a pagination cycle")
	}
}

func TestCollectIDsKeepsDocumentOrder(t *testing.T) {
	srv := rankServer(t, 2, nil)
	defer srv.Close()

	b := newTestBuilder(srv, cache.NewMemory())
	ids := b.CollectIDs(context.Background(), srv.URL+"/albums-rank-page-1.html", 2)

	if len(ids) != 20 {
		t.Fatalf("got %d IDs, want 20", len(ids))
	}
	for i, id := range ids {
		if id != int64(i+1) {
			t.Fatalf("ids[%d] = %d, want %d", i, id, i+1)
		}
	}
}

package fetch

import (
	"context"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/shaw465/wnacg-downloader/internal/util"
)

const DefaultTimeout = 30 * time.Second

type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Gateway fetches HTML pages and hands back parsed documents. Every failure
// mode (timeout, network error, bad status, unparseable body) comes back as
// nil: callers must treat nil as "unknown", never as an empty page.
type Gateway struct {
	client  *http.Client
	timeout time.Duration
	log     Logger
}

func NewGateway(client *http.Client, timeout time.Duration, log Logger) *Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Gateway{client: client, timeout: timeout, log: log}
}

// Document fetches url and parses it. Returns nil on any failure.
func (g *Gateway) Document(ctx context.Context, target string) *goquery.Document {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		g.log.Errorf("bad page URL %q: %v\n", target, err)
		return nil
	}

	resp, err := util.DoWithRetry(g.client, req, 3, 500*time.Millisecond)
	if err != nil {
		g.log.Errorf("fetching %s failed: %v\n", target, err)
		return nil
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		g.log.Errorf("parsing %s failed: %v\n", target, err)
		return nil
	}

	g.log.Debugf("fetched %s\n", target)
	return doc
}

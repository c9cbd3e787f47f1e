package cmd

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/cache"
	"github.com/shaw465/wnacg-downloader/internal/config"
	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/popularity"
	"github.com/shaw465/wnacg-downloader/internal/ranking"
	"github.com/shaw465/wnacg-downloader/internal/site"
	"github.com/shaw465/wnacg-downloader/internal/ui"
	"github.com/shaw465/wnacg-downloader/internal/util"
)

// app bundles the wiring every network-facing command shares.
type app struct {
	cfg     *config.Config
	log     *ui.Logger
	client  *http.Client
	adapter site.Adapter
	gateway *fetch.Gateway
	store   popularity.Store
	builder *ranking.Builder
}

func newApp(opts config.Options) (*app, error) {
	cfg, usedPath, err := config.LoadMerged(opts)
	if err != nil {
		return nil, err
	}

	log := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond

	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     timeout,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		DebugLogger: log,
	})
	if err != nil {
		return nil, err
	}

	var store popularity.Store
	if cfg.NoCache {
		store = cache.NewMemory()
	} else {
		sqlite, err := cache.OpenSQLite(cfg.CachePath)
		if err != nil {
			log.Warnf("cache db unavailable (%v), continuing without persistence\n", err)
			store = cache.NewMemory()
		} else {
			store = sqlite
		}
	}

	if cfg.Mirror != "" && !site.KnownMirror(cfg.Mirror) {
		log.Warnf("mirror %q is not a known host (%s); using it anyway\n",
			cfg.Mirror, strings.Join(site.Mirrors, ", "))
	}
	adapter := site.NewWnacg(cfg.Mirror)
	gateway := fetch.NewGateway(client, timeout, log)
	builder := ranking.NewBuilder(gateway, adapter, store, log)

	return &app{
		cfg:     cfg,
		log:     log,
		client:  client,
		adapter: adapter,
		gateway: gateway,
		store:   store,
		builder: builder,
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
}

func (a *app) sources() []popularity.Source {
	configs, err := popularity.LoadSourceConfigs(a.cfg.SourcesFile)
	if err != nil {
		a.log.Warnf("loading external sources failed: %v\n", err)
		return nil
	}

	out := make([]popularity.Source, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, popularity.NewHTTPSource(cfg, a.gateway, a.store, a.log))
	}

	return out
}

package site

import (
	"context"
	"fmt"

	"github.com/shaw465/wnacg-downloader/internal/fetch"
	"github.com/shaw465/wnacg-downloader/internal/queue"
)

type resolverLogger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// DownloadResolver resolves album IDs to direct archive links through the
// site's download page. It is the queue's Resolver.
type DownloadResolver struct {
	gateway *fetch.Gateway
	adapter Adapter
	log     resolverLogger
}

func NewDownloadResolver(gateway *fetch.Gateway, adapter Adapter, log resolverLogger) *DownloadResolver {
	return &DownloadResolver{gateway: gateway, adapter: adapter, log: log}
}

func (r *DownloadResolver) Resolve(ctx context.Context, id int64) (*queue.DownloadInfo, error) {
	pageURL := r.adapter.DownloadPageURL(id)
	r.log.Debugf("resolving download link: %s\n", pageURL)

	doc := r.gateway.Document(ctx, pageURL)
	if doc == nil {
		return nil, fmt.Errorf("download page for album %d unavailable", id)
	}

	url, filename, ok := r.adapter.ResolveDownload(doc, id)
	if !ok {
		r.log.Warnf("no direct download link on %s\n", pageURL)
		return nil, fmt.Errorf("album %d has no direct download link", id)
	}

	r.log.Debugf("resolved %d to %s\n", id, filename)
	return &queue.DownloadInfo{URL: url, Filename: filename}, nil
}

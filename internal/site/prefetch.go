package site

import (
	"context"
	"sync"

	"github.com/shaw465/wnacg-downloader/internal/fetch"
)

// PrefetchTitles fetches the album pages for the given IDs with a bounded
// worker pool and returns whatever metadata could be scraped. Albums whose
// page cannot be fetched are simply absent from the result.
func PrefetchTitles(ctx context.Context, gateway *fetch.Gateway, adapter Adapter, ids []int64, maxParallel int) map[int64]AlbumInfo {
	total := len(ids)
	if maxParallel < 1 {
		maxParallel = 1
	}
	if maxParallel > total && total > 0 {
		maxParallel = total
	}

	var mu sync.Mutex
	out := make(map[int64]AlbumInfo, total)

	jobs := make(chan int64)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for id := range jobs {
			doc := gateway.Document(ctx, adapter.AlbumURL(id))
			if doc == nil {
				continue
			}

			info := adapter.ParseAlbumInfo(doc)
			if info.Title == "" {
				continue
			}

			mu.Lock()
			out[id] = info
			mu.Unlock()
		}
	}

	wg.Add(maxParallel)
	for w := 0; w < maxParallel; w++ {
		go worker()
	}

	for _, id := range ids {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return out
		case jobs <- id:
		}
	}

	close(jobs)
	wg.Wait()

	return out
}

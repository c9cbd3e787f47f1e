package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

type Logger interface {
	Debugf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FileTrigger streams resolved archives to the output directory. Retries
// belong to the queue; one call is one attempt.
type FileTrigger struct {
	client    *http.Client
	outputDir string
	referer   string
	log       Logger

	// OnProgress receives cumulative byte counts while a file streams.
	OnProgress func(filename string, done, total int64)
}

func NewFileTrigger(client *http.Client, outputDir, referer string, log Logger) *FileTrigger {
	return &FileTrigger{
		client:    client,
		outputDir: outputDir,
		referer:   referer,
		log:       log,
	}
}

func (t *FileTrigger) Download(ctx context.Context, url, filename string) error {
	if err := os.MkdirAll(t.outputDir, 0755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Referer", t.referer)
	req.Header.Set("Accept", "application/zip,application/octet-stream,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}

	var bodyCloseErr error
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && bodyCloseErr == nil {
			bodyCloseErr = cerr
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	path := filepath.Join(t.outputDir, filename)
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var fileCloseErr error
	defer func() {
		if cerr := f.Close(); cerr != nil && fileCloseErr == nil {
			fileCloseErr = cerr
		}
	}()

	var progress func(done int64)
	if t.OnProgress != nil {
		total := resp.ContentLength
		progress = func(done int64) {
			t.OnProgress(filename, done, total)
		}
	}

	written, err := copyWithProgress(f, resp.Body, progress)
	if err != nil {
		// A torn file is worse than a missing one for a batch that retries.
		_ = os.Remove(path)
		return err
	}

	if resp.ContentLength > 0 && written < resp.ContentLength {
		_ = os.Remove(path)
		return fmt.Errorf("short body: %d of %d bytes", written, resp.ContentLength)
	}

	t.log.Debugf("saved %s (%d bytes)\n", path, written)

	if fileCloseErr != nil {
		return fileCloseErr
	}

	return bodyCloseErr
}

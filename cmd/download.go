package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shaw465/wnacg-downloader/internal/config"
	"github.com/shaw465/wnacg-downloader/internal/download"
	"github.com/shaw465/wnacg-downloader/internal/queue"
	"github.com/shaw465/wnacg-downloader/internal/site"
	"github.com/shaw465/wnacg-downloader/internal/ui"
	"github.com/shaw465/wnacg-downloader/internal/util"

	"github.com/spf13/cobra"
)

var (
	// selection
	flagURL      string
	flagAllPages bool
	flagLimit    int
	flagRange    string
	flagList     string

	// runtime
	flagOutput     string
	flagMirror     string
	flagDelayMs    int
	flagMaxRetries int
	flagTimeoutMs  int
	flagNoCache    bool
	flagYes        bool
	flagDryRun     bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download [aid...]",
		Short: "Batch-download album archives by ID or from a listing page. Uses the defaults from the selected config, overwritten by CLI flags",
		RunE:  runDownload,
	}

	// selection
	downloadCmd.Flags().StringVar(&flagURL, "url", "", "shelf/gallery page URL to harvest album IDs from")
	downloadCmd.Flags().BoolVar(&flagAllPages, "all-pages", false, "follow pagination when harvesting from --url")
	downloadCmd.Flags().IntVar(&flagLimit, "limit", 0, "cap the number of albums enqueued (0 = no cap)")
	downloadCmd.Flags().StringVar(&flagRange, "range", "", "keep only positions start-end of the selection, e.g. 3-7")
	downloadCmd.Flags().StringVar(&flagList, "list", "", "keep only the listed positions, e.g. 1,4,9")

	// runtime
	downloadCmd.Flags().StringVar(&flagOutput, "output", "", "output folder for downloaded archives")
	downloadCmd.Flags().StringVar(&flagMirror, "mirror", "", "mirror host to use (e.g. www.wnacg.com)")
	downloadCmd.Flags().IntVar(&flagDelayMs, "delay", 0, "milliseconds between queue tasks")
	downloadCmd.Flags().IntVar(&flagMaxRetries, "max-retries", 0, "retries per failed album")
	downloadCmd.Flags().IntVar(&flagTimeoutMs, "timeout", 0, "per-request timeout in milliseconds")
	downloadCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "skip the on-disk cache entirely")
	downloadCmd.Flags().BoolVar(&flagYes, "yes", false, "start without the confirmation prompt")
	downloadCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")

	// headers/auth
	downloadCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	downloadCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	downloadCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	app, err := newApp(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		NoCache:      flagNoCache,
		Output:       flagOutput,
		Mirror:       flagMirror,
		DelayMs:      flagDelayMs,
		MaxRetries:   flagMaxRetries,
		TimeoutMs:    flagTimeoutMs,
		Cookie:       flagCookie,
		CookieFile:   flagCookieFile,
		UserAgent:    flagUserAgent,
	})
	if err != nil {
		return err
	}
	defer app.close()

	if cmd.Flags().Changed("max-retries") {
		app.cfg.MaxRetries = flagMaxRetries
	}

	fmt.Println("Full config:")
	app.cfg.Print()
	fmt.Println()

	ctx := context.Background()

	ids, err := selectAlbumIDs(ctx, app, args)
	if err != nil {
		return err
	}

	ids = site.FilterIDs(ids, flagRange, flagList)

	if flagLimit > 0 && len(ids) > flagLimit {
		ids = ids[:flagLimit]
	}

	if len(ids) == 0 {
		return fmt.Errorf("no albums selected; pass IDs or --url")
	}

	if flagDryRun {
		fmt.Printf("Dry-run: %d album(s) selected.\n\n", len(ids))
		for i, id := range ids {
			fmt.Printf("%3d) aid=%d  %s\n", i+1, id, app.adapter.AlbumURL(id))
		}
		return nil
	}

	if !flagYes && !confirm(fmt.Sprintf("Download %d album(s) to %s?", len(ids), app.cfg.Output)) {
		fmt.Println("Aborted.")
		return nil
	}

	if err := os.MkdirAll(app.cfg.Output, 0755); err != nil {
		return fmt.Errorf("cannot create output folder: %w", err)
	}

	return runQueue(ctx, app, ids)
}

// selectAlbumIDs merges explicit arguments (raw IDs or album URLs) with a
// harvested listing page, first occurrence winning.
func selectAlbumIDs(ctx context.Context, app *app, args []string) ([]int64, error) {
	seen := make(map[int64]bool)
	var ids []int64

	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, arg := range args {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
			add(id)
			continue
		}
		if id, ok := app.adapter.ExtractAlbumID(arg); ok {
			add(id)
			continue
		}
		return nil, fmt.Errorf("argument %q is neither an album ID nor an album URL", arg)
	}

	if flagURL != "" {
		maxPages := 1
		if flagAllPages {
			maxPages = app.cfg.MaxPages
		}
		for _, id := range app.builder.CollectIDs(ctx, flagURL, maxPages) {
			add(id)
		}
	}

	return ids, nil
}

func runQueue(ctx context.Context, app *app, ids []int64) error {
	resolver := site.NewDownloadResolver(app.gateway, app.adapter, app.log)
	trigger := download.NewFileTrigger(app.client, app.cfg.Output, "https://"+app.adapter.Host()+"/", app.log)

	q := queue.New(resolver, trigger, app.log, queue.Options{
		DelayBetweenTasks: time.Duration(app.cfg.DelayMs) * time.Millisecond,
		MaxRetries:        app.cfg.MaxRetries,
	})

	for _, id := range ids {
		q.AddTask(id)
	}

	pm := ui.NewProgressManager()
	handle := pm.Register("Batch")
	handle.SetTotal(len(ids))

	// Byte progress arrives cumulative per file; convert to deltas.
	var byteMu sync.Mutex
	var lastFile string
	var lastDone int64
	trigger.OnProgress = func(filename string, done, total int64) {
		byteMu.Lock()
		if filename != lastFile {
			lastFile = filename
			lastDone = 0
		}
		if delta := done - lastDone; delta > 0 {
			lastDone = done
			handle.AddBytes(delta)
		}
		byteMu.Unlock()
	}

	stats := &ui.Stats{}

	q.OnProgress(func(p queue.Progress) {
		handle.Update(p.Current, p.Total)
		stats.TotalAlbums.Add(1)
	})
	q.OnError(func(e queue.TaskError) {
		app.log.Errorf("aid=%d: %s (retry %d)\n", e.ID, e.Message, e.RetryCount)
	})
	q.OnCompleted(func(s queue.Summary) {
		stats.TotalFailed.Store(int64(s.Failed))
	})

	util.SetupInterruptHandler(q.Cancel)

	start := time.Now()
	q.Start(ctx)

	handle.MarkDone()
	pm.Close()

	summary := q.Stats()
	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Albums:     %d\n", summary.Total)
	fmt.Printf("Successful: %d\n", summary.Successful)
	fmt.Printf("Failed:     %d\n", summary.Failed)
	fmt.Printf("Time:       %s\n", time.Since(start).Round(time.Second))

	if summary.Successful == 0 {
		util.RemoveIfEmpty(app.cfg.Output)
	}

	fmt.Println("\nAll done.")
	return nil
}

func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", question)
	resp, _ := reader.ReadString('\n')
	resp = strings.TrimSpace(strings.ToLower(resp))

	return resp == "y" || resp == "yes"
}

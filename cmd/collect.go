package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shaw465/wnacg-downloader/internal/config"
	"github.com/shaw465/wnacg-downloader/internal/site"

	"github.com/spf13/cobra"
)

var (
	flagCollectAllPages bool
	flagCollectJSON     bool
	flagCollectRank     string
	flagCollectNoCache  bool
	flagCollectMirror   string
	flagCollectTitles   bool
	flagCollectParallel int
)

func init() {
	collectCmd := &cobra.Command{
		Use:   "collect [url]",
		Short: "Harvest album IDs from a listing page (or a rank chart) and print them, one per line",
		RunE:  runCollect,
	}

	collectCmd.Flags().BoolVar(&flagCollectAllPages, "all-pages", false, "follow pagination")
	collectCmd.Flags().BoolVar(&flagCollectJSON, "json", false, "emit a JSON array instead of plain lines")
	collectCmd.Flags().StringVar(&flagCollectRank, "rank", "", "collect from the rank chart for a scope (day, week, month) instead of a URL")
	collectCmd.Flags().BoolVar(&flagCollectNoCache, "no-cache", false, "skip the on-disk cache entirely")
	collectCmd.Flags().StringVar(&flagCollectMirror, "mirror", "", "mirror host to use (e.g. www.wnacg.com)")
	collectCmd.Flags().BoolVar(&flagCollectTitles, "titles", false, "also fetch each album page and print its title")
	collectCmd.Flags().IntVar(&flagCollectParallel, "parallel", 4, "worker count for --titles page fetches")

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	app, err := newApp(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		NoCache:      flagCollectNoCache,
		Mirror:       flagCollectMirror,
	})
	if err != nil {
		return err
	}
	defer app.close()

	var startURL string
	switch {
	case flagCollectRank != "":
		scope := site.Scope(flagCollectRank)
		if scope != site.ScopeDay && scope != site.ScopeWeek && scope != site.ScopeMonth {
			return fmt.Errorf("unknown rank scope %q (want day, week or month)", flagCollectRank)
		}
		startURL = app.adapter.RankURL(scope)
	case len(args) == 1:
		startURL = args[0]
	default:
		return fmt.Errorf("pass a listing URL, or --rank <scope>")
	}

	maxPages := 1
	if flagCollectAllPages {
		maxPages = app.cfg.MaxPages
	}

	ctx := context.Background()

	ids := app.builder.CollectIDs(ctx, startURL, maxPages)
	if len(ids) == 0 {
		return fmt.Errorf("no albums found at %s", startURL)
	}

	if flagCollectTitles {
		return printWithTitles(ctx, app, ids)
	}

	if flagCollectJSON {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(ids)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func printWithTitles(ctx context.Context, app *app, ids []int64) error {
	infos := site.PrefetchTitles(ctx, app.gateway, app.adapter, ids, flagCollectParallel)

	if flagCollectJSON {
		type row struct {
			ID    int64  `json:"id"`
			Title string `json:"title,omitempty"`
		}
		rows := make([]row, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, row{ID: id, Title: infos[id].Title})
		}
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(rows)
	}

	for _, id := range ids {
		fmt.Printf("%d\t%s\n", id, infos[id].Title)
	}
	return nil
}

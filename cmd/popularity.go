package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/shaw465/wnacg-downloader/internal/config"
	"github.com/shaw465/wnacg-downloader/internal/popularity"

	"github.com/spf13/cobra"
)

var (
	flagPopJSON    bool
	flagPopRefresh bool
	flagPopNoCache bool
	flagPopMirror  string
	flagPopSources string
)

func init() {
	popularityCmd := &cobra.Command{
		Use:   "popularity [aid...]",
		Short: "Score albums by their standing on the site rank charts plus configured external sources",
		RunE:  runPopularity,
	}

	popularityCmd.Flags().BoolVar(&flagPopJSON, "json", false, "emit records as a JSON array")
	popularityCmd.Flags().BoolVar(&flagPopRefresh, "force-refresh", false, "recompute even if a cached record is still fresh")
	popularityCmd.Flags().BoolVar(&flagPopNoCache, "no-cache", false, "skip the on-disk cache entirely")
	popularityCmd.Flags().StringVar(&flagPopMirror, "mirror", "", "mirror host to use (e.g. www.wnacg.com)")
	popularityCmd.Flags().StringVar(&flagPopSources, "sources", "", "path to the external sources YAML")

	rootCmd.AddCommand(popularityCmd)
}

func runPopularity(cmd *cobra.Command, args []string) error {
	app, err := newApp(config.Options{
		IgnoreConfig: flagIgnoreConfig,
		Debug:        flagDebug,
		NoCache:      flagPopNoCache,
		Mirror:       flagPopMirror,
		SourcesFile:  flagPopSources,
	})
	if err != nil {
		return err
	}
	defer app.close()

	if len(args) == 0 {
		return fmt.Errorf("pass at least one album ID or album URL")
	}

	var ids []int64
	for _, arg := range args {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
			continue
		}
		if id, ok := app.adapter.ExtractAlbumID(arg); ok {
			ids = append(ids, id)
			continue
		}
		return fmt.Errorf("argument %q is neither an album ID nor an album URL", arg)
	}

	scorer := popularity.NewScorer(app.gateway, app.adapter, app.builder, app.store, app.sources(), app.log)
	records := scorer.ScoreMany(context.Background(), ids, flagPopRefresh)

	if flagPopJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	printRecords(records)
	return nil
}

func printRecords(records []*popularity.Record) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "AID\tGRADE\tFINAL\tRECENT\tLONGTERM\tTREND\tTITLE")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Grade,
			fmtScore(r.FinalScore), fmtScore(r.RecentScore),
			fmtScore(r.LongtermScore), fmtDelta(r.TrendDelta),
			r.Title)
	}
}

func fmtScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 3, 64)
}

func fmtDelta(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.3f", *v)
}

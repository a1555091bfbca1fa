package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"github.com/vinodismyname/shopperinsights/config"
	"github.com/vinodismyname/shopperinsights/internal/analytics"
	"github.com/vinodismyname/shopperinsights/internal/clickstream"
	"github.com/vinodismyname/shopperinsights/internal/export"
	"github.com/vinodismyname/shopperinsights/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		file        string
		sheet       string
		clusters    int
		seed        uint64
		partial     bool
		out         string
		quiet       bool
		showVersion bool
	)
	flag.StringVar(&file, "file", "", "Clickstream file (.csv, .xlsx, .xlsm)")
	flag.StringVar(&sheet, "sheet", "", "Worksheet for workbook files (default first sheet)")
	flag.IntVar(&clusters, "clusters", config.DefaultClusterCount, "Number of user segments")
	flag.Uint64Var(&seed, "seed", config.DefaultClusterSeed, "Clustering seed")
	flag.BoolVar(&partial, "partial", false, "Report segmentation shortfalls as warnings")
	flag.StringVar(&out, "out", "", "Also write the report as an .xlsx workbook")
	flag.BoolVar(&quiet, "quiet", false, "Hide the progress bar")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.String())
		return
	}

	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(config.String(config.EnvLogLevel, "warn")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	logger := zlog.With().Str("service", "shopperinsights-report").Logger()

	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: report -file clicks.csv [-clusters 4] [-seed 42] [-partial] [-out report.xlsx]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logger.WithContext(ctx)

	if err := run(ctx, file, sheet, clusters, seed, partial, out, quiet); err != nil {
		logger.Error().Err(err).Str("file", file).Msg("report failed")
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, file, sheet string, clusters int, seed uint64, partial bool, out string, quiet bool) error {
	tbl, err := clickstream.Load(ctx, file, clickstream.LoadOptions{Sheet: sheet})
	if err != nil {
		return err
	}

	opts := analytics.Options{AllowPartial: partial}
	opts.Segments = analytics.DefaultSegmentOptions()
	opts.Segments.Clusters = clusters
	opts.Segments.Seed = seed
	if !quiet {
		bar := progressbar.NewOptions(len(analytics.Passes),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("analyzing"),
			progressbar.OptionClearOnFinish(),
		)
		opts.OnPass = func(string) { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	rep, err := analytics.Analyze(ctx, tbl, opts)
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Interface("durations", rep.Durations).Msg("report assembled")

	if out != "" {
		if err := export.WriteFile(out, rep); err != nil {
			return err
		}
		zerolog.Ctx(ctx).Info().Str("path", out).Msg("report exported")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// exitCode separates bad input (3) and too little data (4) from other failures.
func exitCode(err error) int {
	switch {
	case errors.Is(err, clickstream.ErrParse), errors.Is(err, clickstream.ErrValidation):
		return 3
	case errors.Is(err, analytics.ErrInsufficientData):
		return 4
	}
	return 1
}

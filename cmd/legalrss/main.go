package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/2003riku/static-legal-rss/pkg/config"
	"github.com/2003riku/static-legal-rss/pkg/discovery"
	"github.com/2003riku/static-legal-rss/pkg/extract"
	"github.com/2003riku/static-legal-rss/pkg/feed"
	"github.com/2003riku/static-legal-rss/pkg/harvest"
	"github.com/2003riku/static-legal-rss/pkg/render"
	"github.com/2003riku/static-legal-rss/pkg/repository"
	"github.com/2003riku/static-legal-rss/pkg/site"
	"github.com/2003riku/static-legal-rss/pkg/store"
)

// Opts with all CLI options
type Opts struct {
	Config   string   `short:"c" long:"config" env:"CONFIG" description:"config file, built-in defaults if empty"`
	Sites    []string `short:"s" long:"site" env:"SITES" env-delim:"," description:"harvest only these site keys"`
	MaxLinks int      `short:"n" long:"max-links" env:"MAX_LINKS" description:"articles per site, overrides config"`
	Mode     string   `short:"m" long:"mode" env:"FETCH_MODE" choice:"browser" choice:"http" description:"fetch mode, overrides config"`
	Out      string   `short:"o" long:"out" env:"OUT" description:"articles file, overrides config"`
	FeedDir  string   `long:"feed-dir" env:"FEED_DIR" description:"rss output directory, overrides config"`
	DB       string   `long:"db" env:"DB" description:"sqlite run history, overrides config"`
	NoFeed   bool     `long:"no-feed" description:"skip rss generation"`
	History  int      `long:"history" description:"show last N recorded runs and exit"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	color.NoColor = color.NoColor || opts.NoColor
	setupLog(opts.Debug)
	log.Printf("[INFO] starting legalrss version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	err := run(ctx, opts)
	cancel()
	if err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyOverrides(cfg, opts)

	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to build site registry: %w", err)
	}

	var repos *repository.Repositories
	if cfg.Output.DB != "" {
		repos, err = repository.NewRepositories(ctx, repository.Config{DSN: cfg.Output.DB, MaxOpenConns: 1})
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer repos.Close()
	}

	if opts.History > 0 {
		if repos == nil {
			return errors.New("history needs a database, set --db or output.db")
		}
		return printHistory(ctx, os.Stdout, repos.Run, opts.History)
	}

	fetcher, err := newFetcher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start fetcher: %w", err)
	}
	defer fetcher.Close()

	retry := harvest.NewRetry(cfg.Retry.Attempts, cfg.Retry.Delay, cfg.Retry.MaxDelay)
	runner := &harvest.Runner{
		Fetcher:    fetcher,
		Discoverer: &discovery.Discoverer{Fetcher: fetcher, Retry: retry},
		Extractor: &extract.Extractor{
			ContentCap:   cfg.Harvest.ContentCap,
			MinParagraph: cfg.Harvest.MinParagraph,
			Marker:       extract.DefaultMarker,
		},
		Normalizer: cfg.Normalizer(),
		Retry:      retry,
		MaxLinks:   cfg.Harvest.MaxLinks,
	}

	var seen map[string]map[string]bool
	if repos != nil {
		runner.Recorder = repos.Run
		seen = seenURLs(ctx, repos.Run, reg.Sites())
	}

	log.Printf("[INFO] harvesting %d sites in %s mode", reg.Len(), cfg.Fetch.Mode)
	res, runErr := runner.Run(ctx, reg)
	if res == nil {
		return runErr
	}
	if seen != nil {
		reportNew(res, seen)
	}
	if len(res.Articles) == 0 {
		return errors.Join(runErr, errors.New("no articles harvested"))
	}

	if err := store.SaveArticles(cfg.Output.Articles, res.Articles); err != nil {
		return err
	}
	md := store.NewMetadata(res, cfg.Normalizer().Location)
	md.Categories = feed.Categories(res.Articles)
	if err := store.SaveMetadata(cfg.Output.Metadata, md); err != nil {
		return err
	}
	log.Printf("[INFO] saved %d articles to %s", len(res.Articles), cfg.Output.Articles)

	if !opts.NoFeed {
		gen := feed.NewGenerator(feed.Channel{
			Title:       cfg.Feed.Title,
			Link:        cfg.Feed.Link,
			Description: cfg.Feed.Description,
			Language:    cfg.Feed.Language,
			Generator:   "legalrss " + revision,
		}, filepath.Base(cfg.Output.FeedDir), cfg.Feed.MaxItems, cfg.Normalizer().Location)
		files, err := gen.WriteAll(cfg.Output.FeedDir, res.Articles, reg.Sites())
		if err != nil {
			return fmt.Errorf("failed to write feeds: %w", err)
		}
		log.Printf("[INFO] wrote %d feeds to %s", len(files), cfg.Output.FeedDir)
	}
	return runErr
}

// applyOverrides puts non-empty CLI options on top of the config
func applyOverrides(cfg *config.Config, opts Opts) {
	if len(opts.Sites) > 0 {
		cfg.Harvest.Sites = opts.Sites
	}
	if opts.MaxLinks > 0 {
		cfg.Harvest.MaxLinks = opts.MaxLinks
	}
	if opts.Mode != "" {
		cfg.Fetch.Mode = opts.Mode
	}
	if opts.Out != "" {
		cfg.Output.Articles = opts.Out
	}
	if opts.FeedDir != "" {
		cfg.Output.FeedDir = opts.FeedDir
	}
	if opts.DB != "" {
		cfg.Output.DB = opts.DB
	}
}

func newFetcher(ctx context.Context, cfg *config.Config) (render.Fetcher, error) {
	if cfg.Fetch.Mode == config.ModeHTTP {
		return render.NewHTTPFetcher(cfg.FetchOptions()), nil
	}
	return render.NewBrowser(ctx, cfg.FetchOptions())
}

// seenURLs loads article urls recorded by earlier runs, per site key
func seenURLs(ctx context.Context, repo *repository.RunRepository, sites []site.Config) map[string]map[string]bool {
	res := make(map[string]map[string]bool, len(sites))
	for _, s := range sites {
		urls, err := repo.SeenURLs(ctx, s.Key)
		if err != nil {
			log.Printf("[WARN] can't load known urls of %s: %v", s.Key, err)
			continue
		}
		res[s.Key] = urls
	}
	return res
}

// reportNew logs how many harvested articles were not seen by earlier runs
func reportNew(res *harvest.Result, seen map[string]map[string]bool) {
	fresh := map[string]int{}
	for _, a := range res.Articles {
		if !seen[a.SiteKey][a.URL] {
			fresh[a.SiteKey]++
		}
	}
	for _, rep := range res.Sites {
		log.Printf("[INFO] site %s: %d new of %d articles", rep.Key, fresh[rep.Key], rep.Emitted)
	}
}

// printHistory writes recorded runs, newest first
func printHistory(ctx context.Context, w io.Writer, repo *repository.RunRepository, limit int) error {
	runs, err := repo.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "no runs recorded")
		return err
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %v  %d articles\n", r.StartedAt.Format(time.DateTime), r.ID,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second), r.Articles)
		for _, s := range r.Sites {
			fmt.Fprintf(w, "    %s\n", s)
		}
	}
	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}

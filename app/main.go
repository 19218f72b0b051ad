package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blogsmith/refresher/app/api"
	"github.com/blogsmith/refresher/app/cache"
	"github.com/blogsmith/refresher/app/cfg"
	"github.com/blogsmith/refresher/app/crawl"
	"github.com/blogsmith/refresher/app/database"
	"github.com/blogsmith/refresher/app/extract"
	"github.com/blogsmith/refresher/app/fetch"
	"github.com/blogsmith/refresher/app/metrics"
	"github.com/blogsmith/refresher/app/notify"
	"github.com/blogsmith/refresher/app/pipeline"
	"github.com/blogsmith/refresher/app/publish"
	"github.com/blogsmith/refresher/app/rewrite"
	"github.com/blogsmith/refresher/app/scrape"
	"github.com/blogsmith/refresher/app/search"
	"github.com/blogsmith/refresher/app/source"
	"github.com/blogsmith/refresher/app/tasks"
)

func main() {
	appCfg, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Refresher failed", "command", appCfg.Command, "error", err)
		os.Exit(1)
	}
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// app holds the wired components for one process.
type app struct {
	cfg       *cfg.Cfg
	profile   *source.Profile
	repo      *database.SQLArticleRepository
	ingester  *pipeline.Ingester
	driver    *pipeline.Driver
	startPage int
	closers   []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(c *cfg.Cfg) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting refresher", "version", c.Version, "command", c.Command)
	metrics.Init(c.Version)

	profile, err := source.Load(c.SourceConfig)
	if err != nil {
		return fmt.Errorf("failed to load source profile: %w", err)
	}

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	a, err := wire(ctx, c, profile, database.NewArticleRepository(db))
	if err != nil {
		return err
	}
	defer a.close()

	switch c.Command {
	case cfg.CommandCrawl:
		return a.crawl(ctx)
	case cfg.CommandAugment:
		return a.augment(ctx)
	case cfg.CommandRun:
		if err := a.crawl(ctx); err != nil {
			return err
		}
		return a.augment(ctx)
	case cfg.CommandServe:
		return a.serve(ctx)
	}

	return nil
}

func wire(ctx context.Context, c *cfg.Cfg, profile *source.Profile, repo *database.SQLArticleRepository) (*app, error) {
	a := &app{
		cfg:       c,
		profile:   profile,
		repo:      repo,
		startPage: cmp.Or(c.CrawlStartPage, profile.StartPage),
	}

	httpClient := &http.Client{Timeout: c.HTTPTimeout}
	fetcher := fetch.NewFetcher(httpClient, c.UserAgent, c.HTTPTimeout, c.MaxBodySize)

	lister, err := crawl.NewLister(fetcher.WithService("listing"), profile.Listing)
	if err != nil {
		return nil, fmt.Errorf("failed to build listing strategy: %w", err)
	}

	rules, err := extract.RulesFor(profile.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to build extraction rules: %w", err)
	}

	a.ingester = pipeline.NewIngester(
		crawl.NewCrawler(lister),
		fetcher.WithService("article"),
		extract.NewExtractor(rules),
		repo,
		profile.Name,
	)

	searchClient := search.NewClient(c.SearchURL, c.SearchAPIKey, c.SearchEngine, c.SearchResults, c.HTTPTimeout)
	if c.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(ctx, c.RedisAddr)
		if err != nil {
			slog.Warn("Search cache unavailable, continuing without it", "addr", c.RedisAddr, "error", err)
		} else {
			searchClient.WithCache(redisCache, c.SearchCacheTTL)
			a.closers = append(a.closers, func() { redisCache.Close() })
			slog.Info("Search cache enabled", "addr", c.RedisAddr, "ttl", c.SearchCacheTTL)
		}
	}

	publisher := publish.NewPublisher(repo)
	if c.NATSURL != "" {
		natsPublisher, err := notify.NewNATSPublisher(notify.NATSConfig{URL: c.NATSURL, Subject: c.NATSSubject}, c.Version)
		if err != nil {
			slog.Warn("Publish notifications unavailable", "url", c.NATSURL, "error", err)
		} else {
			publisher.WithNotifier(natsPublisher)
			a.closers = append(a.closers, natsPublisher.Close)
			slog.Info("Publish notifications enabled", "subject", c.NATSSubject)
		}
	}

	a.driver = pipeline.NewDriver(
		repo,
		search.NewDiscoverer(searchClient, profile.Domain, profile.Brand),
		scrape.NewScraper(fetcher.WithService("scrape"), c.ScrapeChars),
		rewrite.NewOrchestrator(
			rewrite.NewClient(c.LLMBaseURL, c.LLMAPIKey, c.LLMModel, c.LLMTemperature, c.LLMTimeout),
			rewrite.Limits{Original: c.OriginalChars, Reference: c.ReferenceChars},
		),
		publisher,
	)

	return a, nil
}

func (a *app) crawl(ctx context.Context) error {
	task := tasks.NewCrawlTask(a.ingester, a.cfg.CrawlTarget, a.startPage)
	task.Start()
	return task.Execute(ctx)
}

func (a *app) augment(ctx context.Context) error {
	task := tasks.NewAugmentTask(a.driver)
	task.Start()
	return task.Execute(ctx)
}

func (a *app) serve(ctx context.Context) error {
	scheduler := tasks.NewScheduler(tasks.DefaultQueueSize, tasks.DefaultTaskTimeout)

	if a.cfg.Schedule != "" {
		err := scheduler.WithSchedule(a.cfg.Schedule, time.Local, func() []tasks.TaskInterface {
			return []tasks.TaskInterface{
				tasks.NewCrawlTask(a.ingester, a.cfg.CrawlTarget, a.startPage),
				tasks.NewAugmentTask(a.driver),
			}
		})
		if err != nil {
			return err
		}
		slog.Info("Scheduled runs enabled", "schedule", a.cfg.Schedule)
	}

	scheduler.Start()
	defer scheduler.Stop()

	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	crawlDefaults := api.CrawlDefaults{
		Target:       a.cfg.CrawlTarget,
		StartPage:    a.startPage,
		MaxTarget:    a.cfg.MaxCrawlTarget,
		MaxStartPage: a.cfg.MaxStartPage,
	}

	if err := a.cfg.CheckCredentials(); err != nil {
		slog.Warn("Augmentation disabled until provider credentials are set", "error", err)
	}

	handler := api.NewHandler(a.repo, scheduler, a.ingester, a.driver, crawlDefaults, a.cfg.Version).
		WithChannel(a.profile.Name+" (refreshed)", "https://"+a.profile.Domain).
		WithAugmentCheck(a.cfg.CheckCredentials)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      api.NewServer(handler, a.cfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port, "source", a.profile.Name)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Refresher shutdown complete")
	return nil
}

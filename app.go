package main

import (
	"context"
	"fmt"

	"venue-discovery/internal/api"
	"venue-discovery/internal/constants"
	"venue-discovery/internal/curated"
	"venue-discovery/internal/discovery"
	"venue-discovery/internal/fallback"
	"venue-discovery/internal/models"
	"venue-discovery/internal/processor"
	"venue-discovery/internal/prompts"
	"venue-discovery/internal/quality"
	"venue-discovery/internal/recommend"
	"venue-discovery/internal/scorer"
	"venue-discovery/internal/scraper"
	"venue-discovery/pkg/cache"
	"venue-discovery/pkg/circuit"
	"venue-discovery/pkg/config"
	"venue-discovery/pkg/container"
	"venue-discovery/pkg/database"
	"venue-discovery/pkg/events"
	"venue-discovery/pkg/health"
	"venue-discovery/pkg/logging"
)

// App holds the wired components a command needs.
type App struct {
	cfg       *config.Config
	container *container.Container

	Service   *recommend.Service
	Discovery *discovery.Engine
	API       *api.Server
	Health    *health.HealthManager
	Events    events.EventStore
	Breakers  []*circuit.Breaker

	caches []interface{ Start() }
}

// processingConfig maps env settings onto the pipeline config.
func processingConfig(cfg *config.Config) processor.ProcessingConfig {
	return processor.ProcessingConfig{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxRecommendations:  cfg.MaxRecommendations,
		Retry: processor.Policy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Timeout:     cfg.StageTimeout,
		},
	}
}

func newLogger(cfg *config.Config, output string) (*logging.Logger, error) {
	lc := logging.DefaultLogConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	lc.Format = cfg.LogFormat
	lc.Output = output
	if cfg.LogFile != "" {
		lc.Output = cfg.LogFile
		lc.FilePath = cfg.LogFile
	}
	return logging.NewLogger(lc)
}

// buildApp registers every provider and resolves the object graph. Optional
// components (Google Maps, feeds, enhancement, run history) resolve to nil
// when not configured.
func buildApp(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	c := container.New()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(c.Supply(cfg))
	must(c.Supply(log))

	must(c.Provide(curated.Load, true))
	must(c.Provide(func(cfg *config.Config) (*prompts.Manager, error) { return prompts.NewManager(cfg.PromptDir) }, true))

	must(c.Provide(func(cfg *config.Config, log *logging.Logger) (*scraper.GoogleMapsSource, error) {
		if cfg.GoogleMapsAPIKey == "" {
			return nil, nil
		}
		return scraper.NewGoogleMapsSource(cfg.GoogleMapsAPIKey, log.WithComponent("google_maps"))
	}, true))
	must(c.Provide(func(cfg *config.Config, log *logging.Logger) *scraper.FeedSource {
		if len(cfg.FeedURLs) == 0 {
			return nil
		}
		return scraper.NewFeedSource(scraper.FeedOptions{
			Name:   "travel_feeds",
			URLs:   cfg.FeedURLs,
			Logger: log.WithComponent("feeds"),
		})
	}, true))

	must(c.Provide(func(cfg *config.Config, pm *prompts.Manager, log *logging.Logger) (*scorer.OpenAIEnhancer, error) {
		if !cfg.EnhancementEnabled || cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return scorer.NewOpenAIEnhancer(cfg.OpenAIAPIKey, scorer.EnhancerOptions{
			Model:       cfg.OpenAIModel,
			Temperature: float32(cfg.OpenAITemperature),
			MaxTokens:   cfg.OpenAIMaxTokens,
			CacheTTL:    cfg.CacheTTL,
			Prompts:     pm,
			Logger:      log.WithComponent("enhancer"),
		})
	}, true))

	must(c.Provide(func(cfg *config.Config, log *logging.Logger, data *curated.Dataset, gm *scraper.GoogleMapsSource, feeds *scraper.FeedSource) *discovery.Engine {
		sources := []discovery.Source{curated.NewSource(data)}
		if gm != nil {
			sources = append(sources, gm)
		}
		if feeds != nil {
			sources = append(sources, feeds)
		}
		return discovery.NewEngine(discovery.Options{
			Concurrency:   cfg.DiscoveryConcurrency,
			Limit:         cfg.DiscoveryLimit,
			RPS:           cfg.SourceRPS,
			Burst:         cfg.SourceBurst,
			SourceTimeout: cfg.SourceTimeout,
			Logger:        log.WithComponent("discovery"),
		}, sources...)
	}, true))

	must(c.Provide(func(cfg *config.Config, log *logging.Logger, data *curated.Dataset, gm *scraper.GoogleMapsSource) *fallback.Manager {
		opts := fallback.Options{
			Curated:        data,
			SearchEnabled:  cfg.FallbackSearchEnabled,
			GenericEnabled: cfg.FallbackGenericEnabled,
			MaxQueries:     cfg.FallbackMaxQueries,
			MaxResults:     cfg.FallbackMaxResults,
			Logger:         log.WithComponent("fallback"),
		}
		if gm != nil {
			opts.Searcher = gm
		}
		return fallback.New(opts)
	}, true))

	must(c.Provide(func(cfg *config.Config) *cache.Cache[quality.Evaluation] {
		if !cfg.CacheEnabled {
			return nil
		}
		return cache.New[quality.Evaluation](cache.Options{Name: "quality", MaxSize: cfg.CacheMaxSize * 4, SweepInterval: cfg.CacheSweepInterval})
	}, true))
	must(c.Provide(func(cfg *config.Config) *cache.Cache[[]*models.Venue] {
		if !cfg.CacheEnabled {
			return nil
		}
		return cache.New[[]*models.Venue](cache.Options{
			Name:              "venues",
			MaxSize:           cfg.CacheMaxSize,
			DefaultTTL:        cfg.CacheTTL,
			SweepInterval:     cfg.CacheSweepInterval,
			CompressThreshold: 8 << 10,
		})
	}, true))
	must(c.Provide(func(cfg *config.Config) *cache.Cache[recommend.Response] {
		if !cfg.CacheEnabled {
			return nil
		}
		return cache.New[recommend.Response](cache.Options{
			Name:              "responses",
			MaxSize:           cfg.CacheMaxSize,
			DefaultTTL:        cfg.CacheTTL,
			SweepInterval:     cfg.CacheSweepInterval,
			CompressThreshold: 8 << 10,
		})
	}, true))

	must(c.Provide(func(cfg *config.Config) (*database.DB, error) {
		if !cfg.HistoryEnabled() {
			return nil, nil
		}
		return database.NewWithOptions(ctx, database.Options{
			Driver:       cfg.DatabaseDriver,
			URL:          cfg.DatabaseURL,
			ReadTimeout:  cfg.DBReadTimeout,
			WriteTimeout: cfg.DBWriteTimeout,
		})
	}, true))
	must(c.Provide(func(db *database.DB) (events.EventStore, error) {
		if db == nil {
			return events.NewMemoryStore(200), nil
		}
		return events.NewSQLEventStore(ctx, db)
	}, true))

	must(c.Provide(func(cfg *config.Config, log *logging.Logger, eng *discovery.Engine, fb *fallback.Manager,
		enh *scorer.OpenAIEnhancer, qc *cache.Cache[quality.Evaluation], vc *cache.Cache[[]*models.Venue],
		rc *cache.Cache[recommend.Response], es events.EventStore,
	) *recommend.Service {
		opts := recommend.Options{
			Discovery:     eng,
			Quality:       quality.NewController(quality.Options{StrictMode: cfg.StrictValidation, Cache: qc, Logger: log.WithComponent("quality")}),
			Fallback:      fb,
			Processing:    processingConfig(cfg),
			VenueCache:    vc,
			ResponseCache: rc,
			ResponseTTL:   cfg.CacheTTL,
			Events:        es,
			Logger:        log.WithComponent("recommend"),
		}
		if enh != nil {
			opts.Enhancer = enh
		}
		return recommend.NewService(opts)
	}, true))

	app := &App{cfg: cfg, container: c}
	err := c.Invoke(func(svc *recommend.Service, eng *discovery.Engine, es events.EventStore, db *database.DB,
		gm *scraper.GoogleMapsSource, feeds *scraper.FeedSource, enh *scorer.OpenAIEnhancer,
		qc *cache.Cache[quality.Evaluation], vc *cache.Cache[[]*models.Venue], rc *cache.Cache[recommend.Response],
	) {
		app.Service, app.Discovery, app.Events = svc, eng, es

		var costs func() scorer.CostStats
		if gm != nil {
			app.Breakers = append(app.Breakers, gm.Breaker())
		}
		if feeds != nil {
			app.Breakers = append(app.Breakers, feeds.Breaker())
		}
		if enh != nil {
			app.Breakers = append(app.Breakers, enh.Breaker())
			costs = enh.Costs
		}

		hm := health.NewHealthManager(health.DefaultHealthConfig(), log.WithComponent("health"))
		hm.RegisterChecker(health.StatsChecker("pipeline", func() any { return svc.Engine().GetStats() }))
		if db != nil {
			hm.RegisterChecker(health.DatabaseChecker(db))
		}
		for _, b := range app.Breakers {
			hm.RegisterChecker(health.BreakerChecker(b))
		}
		if qc != nil {
			hm.RegisterChecker(health.CacheChecker("quality", qc.Stats))
			app.caches = append(app.caches, qc)
		}
		if vc != nil {
			hm.RegisterChecker(health.CacheChecker("venues", vc.Stats))
			app.caches = append(app.caches, vc)
		}
		if rc != nil {
			hm.RegisterChecker(health.CacheChecker("responses", rc.Stats))
			app.caches = append(app.caches, rc)
		}
		app.Health = hm

		app.API = api.NewServer(api.Options{
			Service:        svc,
			Events:         es,
			Costs:          costs,
			Breakers:       app.Breakers,
			RequestTimeout: constants.RecommendRequestTimeout,
			Logger:         log.WithComponent("api"),
		})
	})
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wire application: %w", err)
	}
	return app, nil
}

// StartBackground starts cache sweepers.
func (a *App) StartBackground() {
	for _, c := range a.caches {
		c.Start()
	}
}

// ApplyConfig pushes hot-reloadable settings into running components.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.Service.Engine().ApplyConfig(processingConfig(cfg))
	a.Discovery.SetLimit(cfg.DiscoveryLimit)
	a.cfg = cfg
}

// Close releases caches, the run history database and other closable
// singletons.
func (a *App) Close() error { return a.container.Close() }

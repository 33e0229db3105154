package main

import (
	"context"
	"fmt"
	"log/slog"

	"ytscrape/config"
	"ytscrape/download"
	ythttp "ytscrape/http"
	"ytscrape/progress"
	"ytscrape/scrape"
	"ytscrape/youtube"
)

// app holds the services built from one configuration.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	client   *ythttp.Client
	ytdlp    *youtube.YtdlpExtractor
	scrape   *scrape.Service
	download *download.Service
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := cfg.Logger()

	httpCfg := ythttp.DefaultConfig()
	httpCfg.Timeout = cfg.HTTPTimeout
	httpCfg.Retry = cfg.Retry()
	httpCfg.Logger = log
	client, err := ythttp.New(httpCfg)
	if err != nil {
		return nil, fmt.Errorf("http client: %w", err)
	}

	x := youtube.NewYtdlpExtractor(youtube.YtdlpConfig{
		Path:    cfg.YtdlpPath,
		Timeout: cfg.YtdlpTimeout,
		Logger:  log,
	})
	fallback := youtube.NewFallbackEnumerator(x, youtube.FallbackConfig{
		PageSize: cfg.FallbackPageSize,
		MaxItems: cfg.FallbackMaxItems,
		Retry:    cfg.Retry(),
		Logger:   log,
	})
	pageResolver := youtube.NewResolver(youtube.NewPageLookup(client), log)

	var (
		api         youtube.Enumerator
		resolver    = pageResolver
		resolverAlt *youtube.Resolver
	)
	if cfg.APIKey != "" {
		dataAPI, err := youtube.NewDataAPI(ctx, youtube.DataAPIConfig{
			APIKey:       cfg.APIKey,
			QuotaReserve: cfg.QuotaReserve,
			Retry:        cfg.Retry(),
			Logger:       log,
		})
		if err != nil {
			return nil, fmt.Errorf("data api: %w", err)
		}
		api = dataAPI
		resolver = youtube.NewResolver(dataAPI, log)
		resolverAlt = pageResolver
	}

	var probe youtube.ShortsProbe
	if cfg.ProbeShorts {
		probe = youtube.NewHTTPShortsProbe(client)
	}

	catalog := scrape.NewCatalog()
	scrapeSvc, err := scrape.NewService(scrape.Config{
		Resolver:         resolver,
		FallbackResolver: resolverAlt,
		Enumerators:      scrape.NewEnumeratorFactory(api, fallback),
		Classifier:       youtube.DefaultClassifier(probe, cfg.ShortMax(), log),
		Tracker:          progress.NewScrapeTracker(),
		Catalog:          catalog,
		FallbackOnQuota:  cfg.FallbackOnQuota,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	downloadSvc := download.NewService(x, x, download.Config{
		OutputDir: cfg.OutputDir,
		Retry:     cfg.Retry(),
		Tracker:   progress.NewDownloadTracker(),
		Catalog:   catalog,
		Logger:    log,
	})

	return &app{cfg: cfg, log: log, client: client, ytdlp: x, scrape: scrapeSvc, download: downloadSvc}, nil
}

func (a *app) Close() error {
	_ = a.scrape.Close()
	_ = a.download.Close()
	return a.client.Close()
}

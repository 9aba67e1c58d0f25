package main

import (
	"github.com/turtacn/RxDossier/internal/application/pipeline"
	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/enrichment/grader"
	"github.com/turtacn/RxDossier/internal/enrichment/literature"
	"github.com/turtacn/RxDossier/internal/enrichment/normalize"
	"github.com/turtacn/RxDossier/internal/enrichment/regulatory"
	redisdb "github.com/turtacn/RxDossier/internal/infrastructure/database/redis"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/RxDossier/internal/intelligence/llm"
)

// buildLiteratureCache selects the cache backend. The returned closer is
// nil for the in-process backend.
func buildLiteratureCache(cfg *config.Config, logger logging.Logger) (literature.Cache, func() error, error) {
	if cfg.Literature.Cache.Backend == "redis" {
		client, err := redisdb.NewClient(cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		cache := literature.NewRedisCache(client, cfg.Redis.KeyPrefix, cfg.Literature.Cache.Freshness, logger)
		return cache, client.Close, nil
	}
	return literature.NewMemoryCache(cfg.Literature.Cache.Freshness), nil, nil
}

// buildOrchestrator wires every enrichment stage from configuration.
func buildOrchestrator(cfg *config.Config, cache literature.Cache, metrics *prometheus.Collector, logger logging.Logger) (*pipeline.Orchestrator, error) {
	capability, err := llm.NewClient(llm.Config{
		BaseURL:         cfg.AI.BaseURL,
		APIKey:          cfg.AI.APIKey,
		Model:           cfg.AI.Model,
		Temperature:     cfg.AI.Temperature,
		MaxOutputTokens: cfg.AI.MaxOutputTokens,
		Timeout:         cfg.AI.Timeout,
		Retry:           cfg.AI.Retry.Policy(),
	}, logger)
	if err != nil {
		return nil, err
	}

	index := normalize.NewRxNavClient(normalize.RxNavConfig{
		BaseURL: cfg.Normalization.RxNavBaseURL,
		Timeout: cfg.Normalization.Timeout,
		Retry:   cfg.Normalization.Retry.Policy(),
	}, logger)
	resolver := normalize.NewResolver(index, capability, logger)

	checkers := []regulatory.Checker{
		regulatory.NewFDAChecker(cfg.Regulatory.FDABaseURL, cfg.Regulatory.CheckerTimeout, logger),
		regulatory.NewEMAChecker(cfg.Regulatory.EMABaseURL, cfg.Regulatory.CheckerTimeout, logger),
		regulatory.NewWHOEMLChecker(),
	}
	if cfg.Regulatory.BNFCorpusPath != "" {
		bnf, err := regulatory.NewBNFChecker(cfg.Regulatory.BNFCorpusPath, logger)
		if err != nil {
			return nil, err
		}
		checkers = append(checkers, bnf)
	}
	verifier := regulatory.NewVerifier(checkers, cfg.Regulatory.CheckerTimeout, cfg.Regulatory.Retry.Policy(), logger)

	entrez := literature.NewEntrezClient(literature.EntrezConfig{
		BaseURL:       cfg.Literature.EntrezBaseURL,
		APIKey:        cfg.Literature.APIKey,
		Email:         cfg.Literature.Email,
		RatePerSecond: cfg.Literature.RatePerSecond,
		Timeout:       cfg.Literature.Timeout,
		Retry:         cfg.Literature.Retry.Policy(),
	}, logger)
	search := literature.NewService(entrez, cache, logger)

	return pipeline.NewOrchestrator(pipeline.Config{
		MaxInFlight:          cfg.Pipeline.MaxInFlight,
		RunTimeout:           cfg.Pipeline.RunTimeout,
		NormalizeTimeout:     cfg.Pipeline.NormalizeTimeout,
		RegulatoryTimeout:    cfg.Pipeline.RegulatoryTimeout,
		LiteratureTimeout:    cfg.Pipeline.LiteratureTimeout,
		GradingTimeout:       cfg.Pipeline.GradingTimeout,
		LiteratureMaxResults: cfg.Literature.MaxResults,
	}, resolver, verifier, search, grader.NewGrader(capability, logger), metrics, logger), nil
}

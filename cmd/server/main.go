package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	registryhandler "diligence/internal/evidence/registry/handler"
	"diligence/internal/evidence/registry/orchestrator"
	"diligence/internal/evidence/registry/providers"
	"diligence/internal/lookup"
	lookuphandler "diligence/internal/lookup/handler"
	"diligence/internal/narration"
	narrationhandler "diligence/internal/narration/handler"
	"diligence/internal/platform/config"
	"diligence/internal/platform/httpserver"
	"diligence/internal/platform/logger"
	"diligence/internal/platform/metrics"
	httptransport "diligence/internal/transport/http"
)

// writeMargin covers normalization and response encoding on top of the
// registry and narrator timeouts.
const writeMargin = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config is part of what failed to load
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	if cfg.Portal.APIKey == "" {
		log.Warn("PORTAL_API_KEY is not set; lookups will fail with configuration_error")
	}
	if cfg.Narrator.APIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; lookups will return without analysis")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	platformMetrics := metrics.New(reg)

	registry := providers.NewPortalRegistry(providers.Config{
		BaseURL: cfg.Portal.BaseURL,
		APIKey:  cfg.Portal.APIKey,
		Timeout: cfg.Portal.Timeout,
	}, nil)
	orch := orchestrator.NewOrchestrator(orchestrator.OrchestratorConfig{
		Registry: registry,
		Metrics:  orchestrator.NewMetrics(reg),
		Logger:   log,
	})

	narrator := narration.New(narration.Config{
		APIKey:      cfg.Narrator.APIKey,
		Endpoint:    cfg.Narrator.Endpoint,
		Model:       cfg.Narrator.Model,
		Temperature: cfg.Narrator.Temperature,
		MaxTokens:   cfg.Narrator.MaxTokens,
		Timeout:     cfg.Narrator.Timeout,
	}, narration.WithLogger(log), narration.WithMetrics(narration.NewMetrics(reg)))

	service := lookup.NewService(orch, narrator, log, platformMetrics)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Logger:   log,
		Metrics:  platformMetrics,
		Gatherer: reg,
		Handlers: []httptransport.Registrar{
			lookuphandler.New(service, log),
			registryhandler.New(orch, log),
			narrationhandler.New(narrator, log),
		},
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Portal.Timeout+cfg.Narrator.Timeout+writeMargin)

	go func() {
		log.Info("starting diligence", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/adapter"
	"github.com/pantrywatch/pantrywatch/internal/adapter/restapi"
	"github.com/pantrywatch/pantrywatch/internal/config"
	"github.com/pantrywatch/pantrywatch/internal/history"
	"github.com/pantrywatch/pantrywatch/internal/metrics"
	"github.com/pantrywatch/pantrywatch/internal/poller"
	"github.com/pantrywatch/pantrywatch/internal/repository/mongodb"
	"github.com/pantrywatch/pantrywatch/internal/repository/sheets"
	"github.com/pantrywatch/pantrywatch/internal/scheduler"
	"github.com/pantrywatch/pantrywatch/internal/server/handlers"
	"github.com/pantrywatch/pantrywatch/internal/server/router"
	comparesvc "github.com/pantrywatch/pantrywatch/internal/service/compare"
	forecastsvc "github.com/pantrywatch/pantrywatch/internal/service/forecast"
	notifysvc "github.com/pantrywatch/pantrywatch/internal/service/notify"
	shoppingsvc "github.com/pantrywatch/pantrywatch/internal/service/shopping"
	webhookclient "github.com/pantrywatch/pantrywatch/pkg/clients/webhook"
	"github.com/pantrywatch/pantrywatch/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New())
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
	if err != nil {
		baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
	}

	mongoRepo, err := mongodb.NewMongoDBRepository(context.Background(), cfg.MongoDB.URI, cfg.MongoDB.DBName)
	if err != nil {
		baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
	}
	defer func() {
		if err := mongoRepo.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close mongodb connection", zap.Error(err))
		}
	}()

	registry := adapter.NewRegistry()
	for _, platform := range cfg.Platforms {
		client := restapi.New(restapi.Config{
			PlatformID: platform.ID,
			BaseURL:    platform.BaseURL,
			APIKey:     platform.APIKey,
		})
		if err := registry.Register(client); err != nil {
			baseLogger.Fatal("failed to register platform adapter",
				zap.String("platform", platform.ID), zap.Error(err))
		}
	}
	baseLogger.Info("platform adapters registered", zap.Strings("platforms", registry.IDs()))

	metricsReg := metrics.NewRegistry()
	store := history.NewMemoryStore(mongoRepo, baseLogger.Named("history"))

	pollerSvc := poller.New(registry, store, sheetsRepo, metricsReg, poller.Config{
		PerPlatformConcurrency: cfg.Monitor.PerPlatformConcurrency,
		MaxConcurrency:         cfg.Monitor.MaxConcurrency,
		MaxAttempts:            cfg.Monitor.MaxAttempts,
		SearchLimit:            cfg.Monitor.SearchLimit,
	}, baseLogger.Named("poller"))

	engine := comparesvc.NewEngine(store, comparesvc.Config{
		Staleness:        cfg.Monitor.StalenessThreshold(),
		DropThresholdPct: cfg.Monitor.PriceDropThresholdPct,
	}, baseLogger.Named("svc.compare"))

	forecaster := forecastsvc.New(forecastsvc.Config{
		RestockLead:   cfg.Monitor.RestockLeadTime(),
		ExpiryWarning: cfg.Monitor.ExpiryWarning(),
	}, baseLogger.Named("svc.forecast"))

	generator := shoppingsvc.NewGenerator(engine, registry.IDs, mongoRepo, baseLogger.Named("svc.shopping"))

	var dedup notifysvc.DedupCache
	if cfg.Redis.Enabled {
		dedup = notifysvc.NewRedisDedup(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}))
		baseLogger.Info("redis notification dedup enabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		dedup = notifysvc.NewMemoryDedup()
	}

	var sink notifysvc.Sink = notifysvc.Discard
	if cfg.Notify.WebhookURL != "" {
		sink = webhookclient.NewClient(cfg.Notify)
	} else {
		baseLogger.Warn("notify webhook url missing, notifications will be dropped")
	}

	notifyRouter := notifysvc.NewRouter(sink, dedup, time.Duration(cfg.Monitor.PollIntervalHours)*time.Hour, metricsReg, baseLogger.Named("svc.notify"))

	sched := scheduler.NewScheduler(
		cfg.Monitor,
		sheetsRepo,
		pollerSvc,
		engine,
		forecaster,
		generator,
		notifyRouter,
		registry.IDs,
		metricsReg,
		baseLogger.Named("scheduler"),
	)
	sched.Start()
	defer sched.Stop()

	monitorHandler := handlers.NewMonitorHandler(sched, engine, sheetsRepo, pollerSvc, mongoRepo, baseLogger.Named("handlers.monitor"))
	engineRouter := router.New(monitorHandler, metricsReg.Handler(), baseLogger.Named("router"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engineRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Let in-flight notification deliveries drain before exit.
	notifyRouter.Wait()
}

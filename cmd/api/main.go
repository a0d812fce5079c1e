package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/purchasing-console/api/routes"
	"github.com/angelmondragon/purchasing-console/internal/catalog"
	"github.com/angelmondragon/purchasing-console/internal/drafts"
	"github.com/angelmondragon/purchasing-console/internal/lastcost"
	"github.com/angelmondragon/purchasing-console/internal/variants"
	"github.com/angelmondragon/purchasing-console/pkg/backend"
	"github.com/angelmondragon/purchasing-console/pkg/config"
	"github.com/angelmondragon/purchasing-console/pkg/logger"
	"github.com/angelmondragon/purchasing-console/pkg/metrics"
	"github.com/angelmondragon/purchasing-console/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "purchasing-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "purchasing-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	draftMetrics := metrics.NewDraftMetrics(registry)

	backendClient, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithMetrics(metrics.NewBackendMetrics(registry)),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create backend client", err)
		os.Exit(1)
	}

	engine, err := catalog.NewEngine(backendClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog engine", err)
		os.Exit(1)
	}

	store := drafts.NewStore(drafts.StoreParams{
		Variants: variants.NewRegistry(backendClient, cfg.Purchasing.VariantSearchLimit, logg),
		TTL:      cfg.Purchasing.DraftSessionTTL,
		Logger:   logg,
		Metrics:  draftMetrics,
	})

	draftService, err := drafts.NewService(drafts.ServiceParams{
		Store:   store,
		Catalog: engine,
		Costs:   lastcost.NewResolver(backendClient, logg, draftMetrics),
		Orders:  backendClient,
		Logger:  logg,
		Metrics: draftMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create draft service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting purchasing api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, redisClient, registry, draftService),
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		if err := store.Run(groupCtx, cfg.Purchasing.DraftSweepInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownWait)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

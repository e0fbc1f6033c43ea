package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mekongcart/storefront-backend/api/routes"
	"github.com/mekongcart/storefront-backend/internal/catalog"
	checkoutsvc "github.com/mekongcart/storefront-backend/internal/checkout"
	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/internal/payments"
	"github.com/mekongcart/storefront-backend/internal/vouchers"
	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/metrics"
	"github.com/mekongcart/storefront-backend/pkg/migrate"
	"github.com/mekongcart/storefront-backend/pkg/outbox"
	"github.com/mekongcart/storefront-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

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
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	gateway, err := payments.NewGateway(cfg.Gateway, nil, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Params{
		Tx:          dbClient,
		CatalogRepo: catalog.NewRepository(dbClient.DB()),
		VoucherRepo: vouchers.NewRepository(dbClient.DB()),
		OrdersRepo:  ordersRepo,
		Gateway:     gateway,
		Outbox:      outboxSvc,
		Config:      cfg.Checkout,
		Logger:      logg,
		Metrics:     checkoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Tx:         dbClient,
		OrdersRepo: ordersRepo,
		Outbox:     outboxSvc,
		Secret:     cfg.Gateway.Secret,
		Logger:     logg,
		Metrics:    checkoutMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment reconciler", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Registry:   registry,
			Checkout:   checkoutService,
			OrdersRepo: ordersRepo,
			Reconciler: reconciler,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutting down api server")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

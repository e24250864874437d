package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/avigneron/cavebox-backend/internal/address"
	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/cron"
	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/internal/members"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/pkg/carrier"
	"github.com/avigneron/cavebox-backend/pkg/config"
	"github.com/avigneron/cavebox-backend/pkg/db"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/mailer"
	"github.com/avigneron/cavebox-backend/pkg/metrics"
	"github.com/avigneron/cavebox-backend/pkg/migrate"
	"github.com/avigneron/cavebox-backend/pkg/redis"
)

const lockKeyFormat = "cb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	carrierClient, err := carrier.NewClient(cfg.Carrier.APIKey, cfg.Carrier.BaseURL,
		carrier.WithHTTPClient(&http.Client{Timeout: cfg.Carrier.Timeout}))
	if err != nil {
		logg.Error(context.Background(), "failed to create carrier client", err)
		os.Exit(1)
	}

	mailerClient, err := mailer.NewClient(cfg.Mailer.APIKey, cfg.Mailer.BaseURL, cfg.Mailer.From,
		mailer.WithHTTPClient(&http.Client{Timeout: cfg.Mailer.Timeout}))
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer client", err)
		os.Exit(1)
	}

	caveRepo := caves.NewRepository(dbClient.DB())
	memberRepo := members.NewRepository(dbClient.DB())

	addressSvc, err := address.NewService(address.ServiceParams{Logger: logg})
	if err != nil {
		logg.Error(context.Background(), "failed to create address service", err)
		os.Exit(1)
	}

	notificationSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:      notifications.NewRepository(dbClient.DB()),
		Logger:    logg,
		Retention: time.Duration(cfg.Replenishment.NotificationTTLHours) * time.Hour,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:       subscriptions.NewRepository(dbClient.DB()),
		CaveRepo:   caveRepo,
		AddressSvc: addressSvc,
		Notifier:   notificationSvc,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	inventorySvc, err := inventory.NewService(inventory.ServiceParams{
		Repo:              inventory.NewRepository(dbClient.DB()),
		CaveRepo:          caveRepo,
		Notifier:          notificationSvc,
		Mailer:            mailerClient,
		Logger:            logg,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	recommendationSvc, err := recommendations.NewService(recommendations.ServiceParams{
		Repo:       recommendations.NewRepository(dbClient.DB()),
		MemberRepo: memberRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create recommendation service", err)
		os.Exit(1)
	}

	shipmentRepo := shipments.NewRepository(dbClient.DB())
	shipmentSvc, err := shipments.NewService(shipments.ServiceParams{
		Repo:              shipmentRepo,
		SubscriptionSvc:   subscriptionSvc,
		InventorySvc:      inventorySvc,
		CaveRepo:          caveRepo,
		MemberRepo:        memberRepo,
		Carrier:           carrierClient,
		Notifier:          notificationSvc,
		Logger:            logg,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment service", err)
		os.Exit(1)
	}

	dispatchJob, err := cron.NewShipmentDispatchJob(cron.ShipmentDispatchJobParams{
		Logger:        logg,
		Subscriptions: subscriptionSvc,
		Shipments:     shipmentSvc,
		OpenShipments: shipmentRepo,
		Recommender:   recommendationSvc,
		Tiers:         caveRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create shipment dispatch job", err)
		os.Exit(1)
	}

	replenishmentJob, err := cron.NewReplenishmentJob(cron.ReplenishmentJobParams{
		Logger:    logg,
		Caves:     caveRepo,
		Inventory: inventorySvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create replenishment job", err)
		os.Exit(1)
	}

	trackingJob, err := cron.NewTrackingPollJob(cron.TrackingPollJobParams{
		Logger:    logg,
		Shipments: shipmentRepo,
		Tracker:   shipmentSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking poll job", err)
		os.Exit(1)
	}

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:   logg,
		Notifier: notificationSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(dispatchJob, replenishmentJob, trackingJob, cleanupJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

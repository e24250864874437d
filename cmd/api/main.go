package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/avigneron/cavebox-backend/api/routes"
	"github.com/avigneron/cavebox-backend/internal/address"
	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/internal/members"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/internal/webhooks/payments"
	"github.com/avigneron/cavebox-backend/pkg/carrier"
	"github.com/avigneron/cavebox-backend/pkg/config"
	"github.com/avigneron/cavebox-backend/pkg/db"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/mailer"
	"github.com/avigneron/cavebox-backend/pkg/maps"
	"github.com/avigneron/cavebox-backend/pkg/migrate"
	"github.com/avigneron/cavebox-backend/pkg/redis"
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

	cfg.Service.Kind = "api"

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

	var addressValidator address.Validator
	if cfg.Maps.APIKey != "" {
		mapsClient, err := maps.NewClient(cfg.Maps.APIKey, cfg.Maps.BaseURL)
		if err != nil {
			logg.Error(context.Background(), "failed to create maps client", err)
			os.Exit(1)
		}
		addressValidator = mapsClient
	}

	caveRepo := caves.NewRepository(dbClient.DB())
	memberRepo := members.NewRepository(dbClient.DB())

	addressSvc, err := address.NewService(address.ServiceParams{
		Validator: addressValidator,
		Logger:    logg,
	})
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

	paymentWebhookSvc, err := payments.NewService(payments.ServiceParams{
		SubscriptionSvc: subscriptionSvc,
		Notifier:        notificationSvc,
		Idempotency:     redisClient,
		Logger:          logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment webhook service", err)
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
		Handler: routes.NewRouter(routes.RouterParams{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Subscriptions:   subscriptionSvc,
			Shipments:       shipmentSvc,
			ShipmentRepo:    shipmentRepo,
			Inventory:       inventorySvc,
			Recommendations: recommendationSvc,
			Notifications:   notificationSvc,
			PaymentWebhook:  paymentWebhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

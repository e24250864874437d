package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avigneron/cavebox-backend/api/controllers"
	webhookcontrollers "github.com/avigneron/cavebox-backend/api/controllers/webhooks"
	"github.com/avigneron/cavebox-backend/api/middleware"
	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/internal/webhooks/payments"
	"github.com/avigneron/cavebox-backend/pkg/config"
	"github.com/avigneron/cavebox-backend/pkg/db"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/redis"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           redis.Pinger
	Subscriptions   subscriptions.Service
	Shipments       shipments.Service
	ShipmentRepo    shipments.Repository
	Inventory       inventory.Service
	Recommendations recommendations.Service
	Notifications   notifications.Service
	PaymentWebhook  payments.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.DB, p.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(p.PaymentWebhook, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", controllers.SubscriptionActivate(p.Subscriptions, logg))
			r.Get("/{subscriptionId}", controllers.SubscriptionDetail(p.Subscriptions, logg))
			r.Post("/{subscriptionId}/status", controllers.SubscriptionSetStatus(p.Subscriptions, logg))
			r.Get("/{subscriptionId}/shipments", controllers.SubscriptionShipments(p.ShipmentRepo, p.Subscriptions, logg))
		})

		r.Route("/shipments", func(r chi.Router) {
			r.Get("/{shipmentId}/tracking", controllers.ShipmentTrack(p.Shipments, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.MemberRoleCaveOwner, enums.MemberRoleAdmin))
				r.Post("/", controllers.ShipmentCreate(p.Shipments, logg))
				r.Post("/{shipmentId}/label", controllers.ShipmentLabel(p.Shipments, logg))
				r.Post("/{shipmentId}/status", controllers.ShipmentUpdateStatus(p.Shipments, logg))
			})
		})

		r.Route("/caves/{caveId}/inventory", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleCaveOwner, enums.MemberRoleAdmin))
			r.Get("/low-stock", controllers.InventoryLowStock(p.Inventory, logg))
			r.Post("/purchase-orders", controllers.InventoryGenerateOrders(p.Inventory, logg))
		})

		r.Route("/purchase-orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleCaveOwner, enums.MemberRoleAdmin))
			r.Post("/{orderId}/receive", controllers.PurchaseOrderReceive(p.Inventory, logg))
			r.Patch("/{orderId}", controllers.PurchaseOrderUpdateStatus(p.Inventory, logg))
		})

		r.Get("/recommendations", controllers.RecommendationsForMember(p.Recommendations, logg))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
		})
	})

	return r
}

package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/avigneron/cavebox-backend/api/middleware"
	"github.com/avigneron/cavebox-backend/api/responses"
	"github.com/avigneron/cavebox-backend/api/validators"
	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

type updateOrderStatusRequest struct {
	Status string  `json:"status" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// InventoryLowStock lists wines at or under their restock threshold.
func InventoryLowStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caveID, err := validators.ParseUUID(chi.URLParam(r, "caveId"), "caveId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		wines, err := svc.ScanLowStock(r.Context(), inventory.ScanParams{
			ActorID:    middleware.MemberIDFromContext(r.Context()),
			ActorRole:  middleware.RoleFromContext(r.Context()),
			WineCaveID: caveID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": wines})
	}
}

// InventoryGenerateOrders raises purchase orders for a cave's low stock.
func InventoryGenerateOrders(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caveID, err := validators.ParseUUID(chi.URLParam(r, "caveId"), "caveId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		autoSend := false
		if raw := strings.TrimSpace(r.URL.Query().Get("autoSend")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid autoSend value"))
				return
			}
			autoSend = value
		}

		orders, err := svc.GeneratePurchaseOrders(r.Context(), inventory.GenerateParams{
			ActorID:    middleware.MemberIDFromContext(r.Context()),
			ActorRole:  middleware.RoleFromContext(r.Context()),
			WineCaveID: caveID,
			AutoSend:   autoSend,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"items": orders})
	}
}

// PurchaseOrderReceive books delivered stock into the cave's inventory.
func PurchaseOrderReceive(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ReceiveOrder(r.Context(), inventory.OrderActionParams{
			ActorID:         middleware.MemberIDFromContext(r.Context()),
			ActorRole:       middleware.RoleFromContext(r.Context()),
			PurchaseOrderID: orderID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// PurchaseOrderUpdateStatus moves an order along its lifecycle.
func PurchaseOrderUpdateStatus(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParsePurchaseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.UpdateOrderStatus(r.Context(), inventory.UpdateOrderStatusParams{
			ActorID:         middleware.MemberIDFromContext(r.Context()),
			ActorRole:       middleware.RoleFromContext(r.Context()),
			PurchaseOrderID: orderID,
			Status:          status,
			Notes:           req.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

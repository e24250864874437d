package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avigneron/cavebox-backend/api/middleware"
	"github.com/avigneron/cavebox-backend/api/responses"
	"github.com/avigneron/cavebox-backend/api/validators"
	"github.com/avigneron/cavebox-backend/internal/shipments"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

type createShipmentRequest struct {
	SubscriptionID string                 `json:"subscription_id" validate:"required,uuid"`
	Carrier        string                 `json:"carrier" validate:"required"`
	Selections     []shipmentSelectionDTO `json:"selections" validate:"omitempty,dive"`
}

type shipmentSelectionDTO struct {
	WineID   string `json:"wine_id" validate:"required,uuid"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type updateShipmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ShipmentCreate assembles a pending shipment for a subscription.
func ShipmentCreate(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createShipmentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		subID, err := validators.ParseUUID(req.SubscriptionID, "subscription_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		carrier, err := enums.ParseCarrier(req.Carrier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid carrier"))
			return
		}

		selections := make([]shipments.WineSelection, 0, len(req.Selections))
		for _, sel := range req.Selections {
			wineID, err := validators.ParseUUID(sel.WineID, "wine_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			selections = append(selections, shipments.WineSelection{WineID: wineID, Quantity: sel.Quantity})
		}

		shipment, err := svc.Create(r.Context(), shipments.CreateParams{
			ActorID:        middleware.MemberIDFromContext(r.Context()),
			ActorRole:      middleware.RoleFromContext(r.Context()),
			SubscriptionID: subID,
			Carrier:        carrier,
			Selections:     selections,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, shipment)
	}
}

// ShipmentLabel requests a carrier label for a pending shipment.
func ShipmentLabel(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParseUUID(chi.URLParam(r, "shipmentId"), "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		label, err := svc.GenerateLabel(r.Context(), shipments.ActionParams{
			ActorID:    middleware.MemberIDFromContext(r.Context()),
			ActorRole:  middleware.RoleFromContext(r.Context()),
			ShipmentID: shipmentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, label)
	}
}

// ShipmentTrack returns the carrier's latest view of a shipment.
func ShipmentTrack(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParseUUID(chi.URLParam(r, "shipmentId"), "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.Track(r.Context(), shipments.ActionParams{
			ActorID:    middleware.MemberIDFromContext(r.Context()),
			ActorRole:  middleware.RoleFromContext(r.Context()),
			ShipmentID: shipmentID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

// ShipmentUpdateStatus applies a manual lifecycle transition.
func ShipmentUpdateStatus(svc shipments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipmentID, err := validators.ParseUUID(chi.URLParam(r, "shipmentId"), "shipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateShipmentStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseShipmentStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		shipment, err := svc.UpdateStatus(r.Context(), shipments.UpdateStatusParams{
			ActorID:    middleware.MemberIDFromContext(r.Context()),
			ActorRole:  middleware.RoleFromContext(r.Context()),
			ShipmentID: shipmentID,
			Status:     status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, shipment)
	}
}

// SubscriptionShipments lists the shipment history of one subscription.
func SubscriptionShipments(repo shipments.Repository, subSvc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subID, err := validators.ParseUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := subSvc.GetByID(r.Context(), subID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !subscriptionVisible(r, sub.MemberID.String(), sub.WineCaveID.String()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "subscription access denied"))
			return
		}

		items, err := repo.ListBySubscription(r.Context(), subID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items, "subscription_id": subID})
	}
}

package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/avigneron/cavebox-backend/api/middleware"
	"github.com/avigneron/cavebox-backend/api/responses"
	"github.com/avigneron/cavebox-backend/api/validators"
	"github.com/avigneron/cavebox-backend/internal/subscriptions"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

type activateSubscriptionRequest struct {
	WineCaveID         string        `json:"wine_cave_id" validate:"required,uuid"`
	SubscriptionTierID string        `json:"subscription_tier_id" validate:"required,uuid"`
	DeliveryAddress    types.Address `json:"delivery_address" validate:"required"`
}

type setSubscriptionStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SubscriptionActivate starts a subscription for the authenticated member.
func SubscriptionActivate(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activateSubscriptionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caveID, err := validators.ParseUUID(req.WineCaveID, "wine_cave_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tierID, err := validators.ParseUUID(req.SubscriptionTierID, "subscription_tier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.Activate(r.Context(), subscriptions.ActivateParams{
			MemberID:           middleware.MemberIDFromContext(r.Context()),
			WineCaveID:         caveID,
			SubscriptionTierID: tierID,
			DeliveryAddress:    req.DeliveryAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sub)
	}
}

// SubscriptionSetStatus pauses, resumes, or cancels a subscription.
func SubscriptionSetStatus(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subID, err := validators.ParseUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setSubscriptionStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := enums.ParseSubscriptionStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		sub, err := svc.SetStatus(r.Context(), subscriptions.SetStatusParams{
			ActorID:        middleware.MemberIDFromContext(r.Context()),
			ActorRole:      middleware.RoleFromContext(r.Context()),
			SubscriptionID: subID,
			Status:         status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

// SubscriptionDetail returns one subscription visible to the caller.
func SubscriptionDetail(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subID, err := validators.ParseUUID(chi.URLParam(r, "subscriptionId"), "subscriptionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.GetByID(r.Context(), subID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if !subscriptionVisible(r, sub.MemberID.String(), sub.WineCaveID.String()) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "subscription access denied"))
			return
		}
		responses.WriteSuccess(w, sub)
	}
}

func subscriptionVisible(r *http.Request, memberID, caveID string) bool {
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case enums.MemberRoleAdmin:
		return true
	case enums.MemberRoleCaveOwner:
		ownerCave := middleware.CaveIDFromContext(ctx)
		return ownerCave != nil && ownerCave.String() == caveID
	default:
		return middleware.MemberIDFromContext(ctx).String() == memberID
	}
}

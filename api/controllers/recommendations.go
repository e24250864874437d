package controllers

import (
	"net/http"

	"github.com/avigneron/cavebox-backend/api/middleware"
	"github.com/avigneron/cavebox-backend/api/responses"
	"github.com/avigneron/cavebox-backend/api/validators"
	"github.com/avigneron/cavebox-backend/internal/recommendations"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

// RecommendationsForMember ranks a cave's catalog for the caller.
func RecommendationsForMember(svc recommendations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caveID, err := validators.ParseUUID(r.URL.Query().Get("caveId"), "caveId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ranked, err := svc.Recommend(r.Context(), recommendations.RecommendParams{
			MemberID:   middleware.MemberIDFromContext(r.Context()),
			WineCaveID: caveID,
			Limit:      limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": ranked})
	}
}

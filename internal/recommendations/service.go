package recommendations

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/members"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
)

const (
	// DefaultLimit caps the ranked list when the caller does not ask for a size.
	DefaultLimit = 10

	ratingWeight    = 2.0
	priceMatchBonus = 5.0
)

// RankedWine is one scored recommendation.
type RankedWine struct {
	WineID   uuid.UUID       `json:"wine_id"`
	Name     string          `json:"name"`
	Varietal string          `json:"varietal"`
	Price    decimal.Decimal `json:"price"`
	Score    float64         `json:"score"`
}

// Service ranks a cave's wines for a member.
type Service interface {
	Recommend(ctx context.Context, params RecommendParams) ([]RankedWine, error)
}

// RecommendParams identifies the member and catalog to score.
type RecommendParams struct {
	MemberID   uuid.UUID
	WineCaveID uuid.UUID
	Limit      int
}

// ServiceParams groups dependencies for the recommendation service.
type ServiceParams struct {
	Repo       Repository
	MemberRepo members.Repository
}

type service struct {
	repo       Repository
	memberRepo members.Repository
}

// NewService builds a recommendation service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recommendations repository required")
	}
	if params.MemberRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "members repository required")
	}
	return &service{repo: params.Repo, memberRepo: params.MemberRepo}, nil
}

func (s *service) Recommend(ctx context.Context, params RecommendParams) ([]RankedWine, error) {
	if params.MemberID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "member id required")
	}
	if params.WineCaveID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wine cave id required")
	}

	prefs, err := s.memberRepo.GetPreferences(ctx, params.MemberID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load member preferences")
		}
		prefs = nil
	}

	candidates, err := s.repo.ListCandidates(ctx, params.WineCaveID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load candidate wines")
	}

	return score(candidates, prefs, params.Limit), nil
}

// score ranks candidates by averageRating x 2, plus a flat bonus when the
// price sits inside the member's preferred range. Ties keep catalog order.
func score(candidates []candidateRow, prefs *models.MemberPreferences, limit int) []RankedWine {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]RankedWine, 0, len(candidates))
	for _, c := range candidates {
		total := c.AvgRating * ratingWeight
		if prefs != nil && priceInRange(c.Price, prefs.MinPrice, prefs.MaxPrice) {
			total += priceMatchBonus
		}
		ranked = append(ranked, RankedWine{
			WineID:   c.ID,
			Name:     c.Name,
			Varietal: c.Varietal,
			Price:    c.Price,
			Score:    total,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// priceInRange treats a missing bound as open, but an entirely unbounded
// preference row grants no bonus.
func priceInRange(price decimal.Decimal, minPrice, maxPrice *decimal.Decimal) bool {
	if minPrice == nil && maxPrice == nil {
		return false
	}
	if minPrice != nil && price.LessThan(*minPrice) {
		return false
	}
	if maxPrice != nil && price.GreaterThan(*maxPrice) {
		return false
	}
	return true
}

package recommendations

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/members"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
)

type fakeCandidateRepo struct {
	rows []candidateRow
	err  error
}

func (f *fakeCandidateRepo) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeCandidateRepo) ListCandidates(ctx context.Context, caveID uuid.UUID) ([]candidateRow, error) {
	return f.rows, f.err
}

type fakeMemberRepo struct {
	prefs    *models.MemberPreferences
	prefsErr error
}

func (f *fakeMemberRepo) WithTx(tx *gorm.DB) members.Repository {
	return f
}

func (f *fakeMemberRepo) GetByID(ctx context.Context, memberID uuid.UUID) (*models.Member, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMemberRepo) GetPreferences(ctx context.Context, memberID uuid.UUID) (*models.MemberPreferences, error) {
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	if f.prefs == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.prefs, nil
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestRecommend_NoPreferencesUsesRatingOnly(t *testing.T) {
	// ratings [4,5,3] average to 4.0
	repo := &fakeCandidateRepo{rows: []candidateRow{
		{ID: uuid.New(), Name: "Pinot Noir 2021", Price: dec("20.00"), AvgRating: 4.0},
	}}
	svc, err := NewService(ServiceParams{Repo: repo, MemberRepo: &fakeMemberRepo{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ranked, err := svc.Recommend(context.Background(), RecommendParams{MemberID: uuid.New(), WineCaveID: uuid.New()})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ranked))
	}
	if ranked[0].Score != 8.0 {
		t.Fatalf("expected score 8.0, got %v", ranked[0].Score)
	}
}

func TestRecommend_PriceRangeBonus(t *testing.T) {
	inRange := candidateRow{ID: uuid.New(), Name: "In Range", Price: dec("25.00"), AvgRating: 2.0}
	tooDear := candidateRow{ID: uuid.New(), Name: "Too Dear", Price: dec("80.00"), AvgRating: 2.0}
	repo := &fakeCandidateRepo{rows: []candidateRow{tooDear, inRange}}

	minPrice := dec("10.00")
	maxPrice := dec("40.00")
	memberRepo := &fakeMemberRepo{prefs: &models.MemberPreferences{MinPrice: &minPrice, MaxPrice: &maxPrice}}

	svc, err := NewService(ServiceParams{Repo: repo, MemberRepo: memberRepo})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ranked, err := svc.Recommend(context.Background(), RecommendParams{MemberID: uuid.New(), WineCaveID: uuid.New()})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if ranked[0].WineID != inRange.ID {
		t.Fatalf("expected price-matched wine first, got %s", ranked[0].Name)
	}
	if ranked[0].Score != 9.0 {
		t.Fatalf("expected score 9.0 (2x2+5), got %v", ranked[0].Score)
	}
	if ranked[1].Score != 4.0 {
		t.Fatalf("expected score 4.0 for out-of-range wine, got %v", ranked[1].Score)
	}
}

func TestRecommend_StableTiesAndLimit(t *testing.T) {
	rows := make([]candidateRow, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, candidateRow{ID: uuid.New(), Name: "Wine", Price: dec("15.00"), AvgRating: 3.0})
	}
	repo := &fakeCandidateRepo{rows: rows}

	svc, err := NewService(ServiceParams{Repo: repo, MemberRepo: &fakeMemberRepo{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ranked, err := svc.Recommend(context.Background(), RecommendParams{MemberID: uuid.New(), WineCaveID: uuid.New()})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(ranked) != DefaultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultLimit, len(ranked))
	}
	// equal scores keep catalog order
	for i := 0; i < DefaultLimit; i++ {
		if ranked[i].WineID != rows[i].ID {
			t.Fatalf("tie order not stable at position %d", i)
		}
	}
}

func TestRecommend_UnratedWinesScoreZeroButRank(t *testing.T) {
	unrated := candidateRow{ID: uuid.New(), Name: "Unrated", Price: dec("100.00"), AvgRating: 0}
	repo := &fakeCandidateRepo{rows: []candidateRow{unrated}}

	svc, err := NewService(ServiceParams{Repo: repo, MemberRepo: &fakeMemberRepo{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ranked, err := svc.Recommend(context.Background(), RecommendParams{MemberID: uuid.New(), WineCaveID: uuid.New()})
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Score != 0 {
		t.Fatalf("unrated wine should rank with score 0, got %+v", ranked)
	}
}

func TestRecommend_Validation(t *testing.T) {
	svc, err := NewService(ServiceParams{Repo: &fakeCandidateRepo{}, MemberRepo: &fakeMemberRepo{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = svc.Recommend(context.Background(), RecommendParams{WineCaveID: uuid.New()})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

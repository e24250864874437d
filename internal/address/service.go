package address

import (
	"context"
	"errors"
	"strings"

	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
	"github.com/avigneron/cavebox-backend/pkg/maps"
	"github.com/avigneron/cavebox-backend/pkg/types"
)

// Service validates delivery addresses before they are attached to a
// subscription or shipment.
type Service interface {
	Validate(ctx context.Context, address types.Address) (types.Address, error)
}

// Validator is the subset of the maps client the service needs.
type Validator interface {
	ValidateAddress(ctx context.Context, address types.Address) (*maps.Validation, error)
}

// ServiceParams carries the service dependencies.
type ServiceParams struct {
	Validator Validator // optional; structural checks apply when absent
	Logger    *logger.Logger
}

type service struct {
	validator Validator
	logger    *logger.Logger
}

// NewService builds the address service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		validator: params.Validator,
		logger:    params.Logger,
	}, nil
}

// Validate runs structural checks, then consults the geocoding provider when
// one is configured. A provider outage does not block the caller; structural
// acceptance stands and the miss is logged.
func (s *service) Validate(ctx context.Context, address types.Address) (types.Address, error) {
	normalized := address
	normalized.Line1 = strings.TrimSpace(address.Line1)
	normalized.Line2 = strings.TrimSpace(address.Line2)
	normalized.City = strings.TrimSpace(address.City)
	normalized.PostalCode = strings.TrimSpace(address.PostalCode)
	normalized.Country = strings.ToUpper(strings.TrimSpace(address.Country))

	if !normalized.IsComplete() {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is incomplete")
	}
	if len(normalized.Country) != 2 {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "country must be a two-letter code")
	}

	if s.validator == nil {
		return normalized, nil
	}

	validation, err := s.validator.ValidateAddress(ctx, normalized)
	if err != nil {
		warnCtx := s.logger.WithField(ctx, "error", err.Error())
		s.logger.Warn(warnCtx, "address validation provider unavailable, accepting structural result")
		return normalized, nil
	}
	if !validation.Deliverable {
		return types.Address{}, pkgerrors.New(pkgerrors.CodeValidation, "address is not deliverable")
	}
	return validation.Normalized, nil
}

package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/avigneron/cavebox-backend/internal/inventory"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

// ReplenishmentJobParams configure the nightly reorder loop.
type ReplenishmentJobParams struct {
	Logger    *logger.Logger
	Caves     caveIDLister
	Inventory purchaseOrderGenerator
}

type caveIDLister interface {
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

type purchaseOrderGenerator interface {
	GeneratePurchaseOrders(ctx context.Context, params inventory.GenerateParams) ([]models.PurchaseOrder, error)
}

// NewReplenishmentJob builds the cron job that raises purchase orders for
// every cave with low stock.
func NewReplenishmentJob(params ReplenishmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Caves == nil {
		return nil, fmt.Errorf("cave lister required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &replenishmentJob{
		logg:      params.Logger,
		caves:     params.Caves,
		inventory: params.Inventory,
	}, nil
}

type replenishmentJob struct {
	logg      *logger.Logger
	caves     caveIDLister
	inventory purchaseOrderGenerator
}

func (j *replenishmentJob) Name() string { return "replenishment" }

func (j *replenishmentJob) Run(ctx context.Context) error {
	caveIDs, err := j.caves.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list caves: %w", err)
	}

	var errs error
	raised := 0
	for _, caveID := range caveIDs {
		orders, err := j.inventory.GeneratePurchaseOrders(ctx, inventory.GenerateParams{
			ActorRole:  enums.MemberRoleAdmin,
			WineCaveID: caveID,
			AutoSend:   true,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("replenish cave %s: %w", caveID, err))
			continue
		}
		raised += len(orders)
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"caves":         len(caveIDs),
		"orders_raised": raised,
	})
	j.logg.Info(reportCtx, "replenishment loop complete")
	return errs
}

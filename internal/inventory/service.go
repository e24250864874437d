package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

const (
	// suggestedQuantityCap bounds one replenishment line; stock x 2 below it,
	// and a full cap order when the shelf is empty.
	suggestedQuantityCap = 20

	// costPriceRatio approximates a missing cost price as 60% of retail.
	costPriceRatio = "0.6"
)

// Service drives stock monitoring and supplier replenishment.
type Service interface {
	ScanLowStock(ctx context.Context, params ScanParams) ([]models.Wine, error)
	GeneratePurchaseOrders(ctx context.Context, params GenerateParams) ([]models.PurchaseOrder, error)
	ReceiveOrder(ctx context.Context, params OrderActionParams) (*models.PurchaseOrder, error)
	UpdateOrderStatus(ctx context.Context, params UpdateOrderStatusParams) (*models.PurchaseOrder, error)
	AvailableStock(ctx context.Context, wineID uuid.UUID) (int, error)
	DecrementStock(ctx context.Context, tx *gorm.DB, wineID uuid.UUID, qty int) error
}

// Mailer is the outbound email surface the engine needs.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ScanParams identifies the cave to scan on behalf of an actor.
type ScanParams struct {
	ActorID    uuid.UUID
	ActorRole  enums.MemberRole
	WineCaveID uuid.UUID
}

// GenerateParams configures a replenishment run.
type GenerateParams struct {
	ActorID    uuid.UUID
	ActorRole  enums.MemberRole
	WineCaveID uuid.UUID
	AutoSend   bool
}

// OrderActionParams identifies one purchase order acted on by an actor.
type OrderActionParams struct {
	ActorID         uuid.UUID
	ActorRole       enums.MemberRole
	PurchaseOrderID uuid.UUID
}

// UpdateOrderStatusParams describes a manual status transition.
type UpdateOrderStatusParams struct {
	ActorID         uuid.UUID
	ActorRole       enums.MemberRole
	PurchaseOrderID uuid.UUID
	Status          enums.PurchaseOrderStatus
	Notes           *string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the inventory service.
type ServiceParams struct {
	Repo              Repository
	CaveRepo          caves.Repository
	Notifier          notifications.Service
	Mailer            Mailer
	Logger            *logger.Logger
	TransactionRunner txRunner
}

type service struct {
	repo     Repository
	caveRepo caves.Repository
	notifier notifications.Service
	mailer   Mailer
	logger   *logger.Logger
	txRunner txRunner
}

// NewService builds an inventory service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory repository required")
	}
	if params.CaveRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "caves repository required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		caveRepo: params.CaveRepo,
		notifier: params.Notifier,
		mailer:   params.Mailer,
		logger:   params.Logger,
		txRunner: params.TransactionRunner,
	}, nil
}

func (s *service) requireCaveAccess(ctx context.Context, caveID, actorID uuid.UUID, role enums.MemberRole) error {
	if caveID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "wine cave id required")
	}
	if role == enums.MemberRoleAdmin {
		return nil
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity required")
	}
	owns, err := s.caveRepo.IsOwner(ctx, caveID, actorID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check cave ownership")
	}
	if !owns {
		return pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this cave")
	}
	return nil
}

func (s *service) ScanLowStock(ctx context.Context, params ScanParams) ([]models.Wine, error) {
	if err := s.requireCaveAccess(ctx, params.WineCaveID, params.ActorID, params.ActorRole); err != nil {
		return nil, err
	}
	wines, err := s.repo.ListLowStock(ctx, params.WineCaveID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan low stock")
	}
	return wines, nil
}

func (s *service) GeneratePurchaseOrders(ctx context.Context, params GenerateParams) ([]models.PurchaseOrder, error) {
	if err := s.requireCaveAccess(ctx, params.WineCaveID, params.ActorID, params.ActorRole); err != nil {
		return nil, err
	}

	lowStock, err := s.repo.ListLowStock(ctx, params.WineCaveID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan low stock")
	}
	if len(lowStock) == 0 {
		return nil, nil
	}

	// group deficient wines by supplier, preserving scan order
	supplierOrder := make([]uuid.UUID, 0)
	groups := make(map[uuid.UUID][]models.Wine)
	for _, wine := range lowStock {
		if wine.SupplierID == nil {
			continue
		}
		id := *wine.SupplierID
		if _, seen := groups[id]; !seen {
			supplierOrder = append(supplierOrder, id)
		}
		groups[id] = append(groups[id], wine)
	}
	if len(supplierOrder) == 0 {
		return nil, nil
	}

	supplierRows, err := s.repo.ListSuppliers(ctx, supplierOrder)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load suppliers")
	}
	suppliers := make(map[uuid.UUID]models.Supplier, len(supplierRows))
	for _, supplier := range supplierRows {
		suppliers[supplier.ID] = supplier
	}

	status := enums.PurchaseOrderStatusDraft
	if params.AutoSend {
		status = enums.PurchaseOrderStatusSent
	}

	now := time.Now().UTC()
	created := make([]models.PurchaseOrder, 0, len(supplierOrder))
	for _, supplierID := range supplierOrder {
		supplier, known := suppliers[supplierID]
		if !known {
			skipCtx := s.logger.WithField(ctx, "supplier_id", supplierID.String())
			s.logger.Warn(skipCtx, "low-stock wine references missing supplier, skipping group")
			continue
		}

		open, err := s.repo.HasOpenPurchaseOrder(ctx, params.WineCaveID, supplierID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check open purchase orders")
		}
		if open {
			continue
		}

		items := make([]models.PurchaseOrderItem, 0, len(groups[supplierID]))
		total := decimal.Zero
		for _, wine := range groups[supplierID] {
			qty := suggestedQuantity(wine.StockQuantity)
			unit := unitPrice(wine)
			items = append(items, models.PurchaseOrderItem{
				WineID:    wine.ID,
				Quantity:  qty,
				UnitPrice: unit,
			})
			total = total.Add(unit.Mul(decimal.NewFromInt(int64(qty))))
		}

		po := models.PurchaseOrder{
			WineCaveID:           params.WineCaveID,
			SupplierID:           supplierID,
			Status:               status,
			TotalAmount:          total,
			ExpectedDeliveryDate: now.AddDate(0, 0, supplier.LeadTimeDays),
			Items:                items,
		}
		if err := s.repo.CreatePurchaseOrder(ctx, &po); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase order")
		}
		created = append(created, po)

		if params.AutoSend {
			s.notifyOrderSent(ctx, po, supplier)
		}
	}
	return created, nil
}

// notifyOrderSent emails the supplier and records an in-app notification for
// the cave owner. Failures are logged, never fatal: the order already exists.
func (s *service) notifyOrderSent(ctx context.Context, po models.PurchaseOrder, supplier models.Supplier) {
	if s.mailer != nil {
		subject := fmt.Sprintf("Purchase order %s", po.ID)
		body := fmt.Sprintf("A replenishment order of %d wines totalling %s is headed your way. Expected delivery %s.",
			len(po.Items), po.TotalAmount.StringFixed(2), po.ExpectedDeliveryDate.Format("2006-01-02"))
		if err := s.mailer.Send(ctx, supplier.Email, subject, body); err != nil {
			failCtx := s.logger.WithField(ctx, "purchase_order_id", po.ID.String())
			s.logger.Warn(failCtx, "supplier email failed after order creation")
		}
	}

	cave, err := s.caveRepo.GetByID(ctx, po.WineCaveID)
	if err != nil {
		failCtx := s.logger.WithField(ctx, "wine_cave_id", po.WineCaveID.String())
		s.logger.Warn(failCtx, "owner lookup failed, skipping order notification")
		return
	}
	_, err = s.notifier.Send(ctx, notifications.SendParams{
		RecipientID: cave.OwnerID,
		Category:    enums.NotificationCategoryInventory,
		TemplateKey: "purchase_order_sent",
		Data: map[string]string{
			"item_count":             fmt.Sprintf("%d", len(po.Items)),
			"supplier_name":          supplier.Name,
			"expected_delivery_date": po.ExpectedDeliveryDate.Format("2006-01-02"),
		},
	})
	if err != nil {
		failCtx := s.logger.WithField(ctx, "purchase_order_id", po.ID.String())
		s.logger.Warn(failCtx, "owner notification failed after order creation")
	}
}

func (s *service) ReceiveOrder(ctx context.Context, params OrderActionParams) (*models.PurchaseOrder, error) {
	return s.transitionOrder(ctx, params.ActorID, params.ActorRole, params.PurchaseOrderID, enums.PurchaseOrderStatusReceived, nil)
}

func (s *service) UpdateOrderStatus(ctx context.Context, params UpdateOrderStatusParams) (*models.PurchaseOrder, error) {
	if !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown purchase order status")
	}
	return s.transitionOrder(ctx, params.ActorID, params.ActorRole, params.PurchaseOrderID, params.Status, params.Notes)
}

// transitionOrder moves an order to the target status. The move into received
// also applies every item quantity back to stock; the guard on the previous
// status keeps that side effect single-shot even under concurrent calls.
func (s *service) transitionOrder(ctx context.Context, actorID uuid.UUID, role enums.MemberRole, poID uuid.UUID, target enums.PurchaseOrderStatus, notes *string) (*models.PurchaseOrder, error) {
	if poID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase order id required")
	}

	po, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase order")
	}
	if err := s.requireCaveAccess(ctx, po.WineCaveID, actorID, role); err != nil {
		return nil, err
	}
	if !po.Status.CanTransition(target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order status transition not allowed").
			WithDetails(map[string]string{"from": po.Status.String(), "to": target.String()})
	}

	transition := transitionPOParams{
		PurchaseOrderID: poID,
		From:            po.Status,
		To:              target,
		Notes:           notes,
	}
	receiving := target == enums.PurchaseOrderStatusReceived
	if receiving {
		now := time.Now().UTC()
		transition.ReceivedAt = &now
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		moved, err := repo.TransitionPurchaseOrder(ctx, transition)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition purchase order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "purchase order was transitioned concurrently")
		}
		if receiving {
			for _, item := range po.Items {
				if err := repo.IncrementStock(ctx, item.WineID, item.Quantity); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply received quantity to stock")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.GetPurchaseOrder(ctx, poID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload purchase order")
	}
	return updated, nil
}

func (s *service) AvailableStock(ctx context.Context, wineID uuid.UUID) (int, error) {
	wine, err := s.repo.GetWine(ctx, wineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "wine not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wine")
	}
	return wine.StockQuantity, nil
}

// DecrementStock removes qty bottles from a wine inside the caller's
// transaction, failing with a conflict when stock would go negative.
func (s *service) DecrementStock(ctx context.Context, tx *gorm.DB, wineID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.WithTx(tx).DecrementStock(ctx, wineID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]string{"wine_id": wineID.String()})
	}
	return nil
}

// suggestedQuantity doubles the remaining stock, capped at one full order; an
// empty shelf also gets the full cap rather than a zero-line order.
func suggestedQuantity(stock int) int {
	qty := stock * 2
	if qty <= 0 || qty > suggestedQuantityCap {
		return suggestedQuantityCap
	}
	return qty
}

// unitPrice prefers the recorded cost and otherwise approximates it from the
// retail price.
func unitPrice(wine models.Wine) decimal.Decimal {
	if wine.CostPrice != nil {
		return *wine.CostPrice
	}
	return wine.Price.Mul(decimal.RequireFromString(costPriceRatio)).Round(2)
}

package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
)

// Repository exposes persistence helpers for wine stock and purchase orders.
// Stock counters are only ever touched through the atomic increment and
// decrement statements here; callers never read-modify-write.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetWine(ctx context.Context, wineID uuid.UUID) (*models.Wine, error)
	ListLowStock(ctx context.Context, caveID uuid.UUID) ([]models.Wine, error)
	IncrementStock(ctx context.Context, wineID uuid.UUID, qty int) error
	DecrementStock(ctx context.Context, wineID uuid.UUID, qty int) (bool, error)
	ListSuppliers(ctx context.Context, supplierIDs []uuid.UUID) ([]models.Supplier, error)
	CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error
	GetPurchaseOrder(ctx context.Context, poID uuid.UUID) (*models.PurchaseOrder, error)
	HasOpenPurchaseOrder(ctx context.Context, caveID, supplierID uuid.UUID) (bool, error)
	TransitionPurchaseOrder(ctx context.Context, params transitionPOParams) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// transitionPOParams guards a purchase order status write against its current
// state so the receive side effect can fire exactly once.
type transitionPOParams struct {
	PurchaseOrderID uuid.UUID
	From            enums.PurchaseOrderStatus
	To              enums.PurchaseOrderStatus
	Notes           *string
	ReceivedAt      *time.Time
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) GetWine(ctx context.Context, wineID uuid.UUID) (*models.Wine, error) {
	var wine models.Wine
	if err := r.db.WithContext(ctx).First(&wine, "id = ?", wineID).Error; err != nil {
		return nil, err
	}
	return &wine, nil
}

func (r *repositoryImpl) ListLowStock(ctx context.Context, caveID uuid.UUID) ([]models.Wine, error) {
	var wines []models.Wine
	err := r.db.WithContext(ctx).
		Where("wine_cave_id = ? AND stock_quantity <= low_stock_threshold", caveID).
		Order("created_at ASC, id ASC").
		Find(&wines).Error
	if err != nil {
		return nil, err
	}
	return wines, nil
}

func (r *repositoryImpl) IncrementStock(ctx context.Context, wineID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.Wine{}).
		Where("id = ?", wineID).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error
}

// DecrementStock returns false when the wine has fewer than qty bottles; the
// guard and the write are a single statement so racing decrements cannot
// drive the counter negative.
func (r *repositoryImpl) DecrementStock(ctx context.Context, wineID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wine{}).
		Where("id = ? AND stock_quantity >= ?", wineID, qty).
		UpdateColumn("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ListSuppliers(ctx context.Context, supplierIDs []uuid.UUID) ([]models.Supplier, error) {
	if len(supplierIDs) == 0 {
		return nil, nil
	}
	var suppliers []models.Supplier
	if err := r.db.WithContext(ctx).Where("id IN ?", supplierIDs).Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (r *repositoryImpl) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	return r.db.WithContext(ctx).Create(po).Error
}

func (r *repositoryImpl) GetPurchaseOrder(ctx context.Context, poID uuid.UUID) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := r.db.WithContext(ctx).Preload("Items").First(&po, "id = ?", poID).Error; err != nil {
		return nil, err
	}
	return &po, nil
}

// HasOpenPurchaseOrder reports whether a non-terminal order already exists for
// the (cave, supplier) pair. Used to keep the replenishment scan idempotent.
func (r *repositoryImpl) HasOpenPurchaseOrder(ctx context.Context, caveID, supplierID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("wine_cave_id = ? AND supplier_id = ? AND status NOT IN ?", caveID, supplierID,
			[]enums.PurchaseOrderStatus{enums.PurchaseOrderStatusReceived, enums.PurchaseOrderStatusCancelled}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) TransitionPurchaseOrder(ctx context.Context, params transitionPOParams) (bool, error) {
	updates := map[string]any{"status": params.To}
	if params.Notes != nil {
		updates["notes"] = *params.Notes
	}
	if params.ReceivedAt != nil {
		updates["received_at"] = *params.ReceivedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.PurchaseOrder{}).
		Where("id = ? AND status = ?", params.PurchaseOrderID, params.From).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

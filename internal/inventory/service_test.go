package inventory

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avigneron/cavebox-backend/internal/caves"
	"github.com/avigneron/cavebox-backend/internal/notifications"
	"github.com/avigneron/cavebox-backend/pkg/db/models"
	"github.com/avigneron/cavebox-backend/pkg/enums"
	pkgerrors "github.com/avigneron/cavebox-backend/pkg/errors"
	"github.com/avigneron/cavebox-backend/pkg/logger"
)

type fakeRepo struct {
	lowStock     []models.Wine
	suppliers    []models.Supplier
	openOrders   map[uuid.UUID]bool
	created      []*models.PurchaseOrder
	po           *models.PurchaseOrder
	transitioned []transitionPOParams
	transitionOK bool
	increments   map[uuid.UUID]int
	decrementOK  bool
	wine         *models.Wine
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) GetWine(ctx context.Context, wineID uuid.UUID) (*models.Wine, error) {
	if f.wine == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.wine, nil
}

func (f *fakeRepo) ListLowStock(ctx context.Context, caveID uuid.UUID) ([]models.Wine, error) {
	return f.lowStock, nil
}

func (f *fakeRepo) IncrementStock(ctx context.Context, wineID uuid.UUID, qty int) error {
	if f.increments == nil {
		f.increments = map[uuid.UUID]int{}
	}
	f.increments[wineID] += qty
	return nil
}

func (f *fakeRepo) DecrementStock(ctx context.Context, wineID uuid.UUID, qty int) (bool, error) {
	return f.decrementOK, nil
}

func (f *fakeRepo) ListSuppliers(ctx context.Context, supplierIDs []uuid.UUID) ([]models.Supplier, error) {
	return f.suppliers, nil
}

func (f *fakeRepo) CreatePurchaseOrder(ctx context.Context, po *models.PurchaseOrder) error {
	po.ID = uuid.New()
	f.created = append(f.created, po)
	return nil
}

func (f *fakeRepo) GetPurchaseOrder(ctx context.Context, poID uuid.UUID) (*models.PurchaseOrder, error) {
	if f.po == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.po, nil
}

func (f *fakeRepo) HasOpenPurchaseOrder(ctx context.Context, caveID, supplierID uuid.UUID) (bool, error) {
	return f.openOrders[supplierID], nil
}

func (f *fakeRepo) TransitionPurchaseOrder(ctx context.Context, params transitionPOParams) (bool, error) {
	f.transitioned = append(f.transitioned, params)
	return f.transitionOK, nil
}

type fakeCaveRepo struct {
	ownerID uuid.UUID
	owns    bool
}

func (f *fakeCaveRepo) WithTx(tx *gorm.DB) caves.Repository { return f }

func (f *fakeCaveRepo) GetByID(ctx context.Context, caveID uuid.UUID) (*models.WineCave, error) {
	return &models.WineCave{ID: caveID, OwnerID: f.ownerID, Name: "Cave du Test"}, nil
}

func (f *fakeCaveRepo) IsOwner(ctx context.Context, caveID, memberID uuid.UUID) (bool, error) {
	return f.owns, nil
}

func (f *fakeCaveRepo) GetTier(ctx context.Context, tierID uuid.UUID) (*models.SubscriptionTier, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeCaveRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeNotifier struct {
	sent    []notifications.SendParams
	sendErr error
}

func (f *fakeNotifier) Send(ctx context.Context, params notifications.SendParams) (*models.Notification, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, params)
	return &models.Notification{ID: uuid.New(), RecipientID: params.RecipientID}, nil
}

func (f *fakeNotifier) SendBulk(ctx context.Context, recipientIDs []uuid.UUID, category enums.NotificationCategory, templateKey string, data map[string]string) ([]models.Notification, error) {
	return nil, nil
}

func (f *fakeNotifier) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (f *fakeNotifier) MarkRead(ctx context.Context, callerID, notificationID uuid.UUID) error {
	return nil
}

func (f *fakeNotifier) PurgeExpired(ctx context.Context) (int64, error) { return 0, nil }

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeTxRunner struct{}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newInventoryService(t *testing.T, repo *fakeRepo, caveRepo *fakeCaveRepo, notifier *fakeNotifier, mailer *fakeMailer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		CaveRepo:          caveRepo,
		Notifier:          notifier,
		Mailer:            mailer,
		Logger:            logger.New(logger.Options{Output: io.Discard, Level: zerolog.ErrorLevel}),
		TransactionRunner: &fakeTxRunner{},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func mustDecimal(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestGeneratePurchaseOrders_SingleLowStockWine(t *testing.T) {
	supplierID := uuid.New()
	caveID := uuid.New()
	wine := models.Wine{
		ID:                uuid.New(),
		WineCaveID:        caveID,
		SupplierID:        &supplierID,
		Name:              "Pinot Noir 2021",
		Price:             mustDecimal("20.00"),
		StockQuantity:     8,
		LowStockThreshold: 10,
	}
	repo := &fakeRepo{
		lowStock:  []models.Wine{wine},
		suppliers: []models.Supplier{{ID: supplierID, Name: "S1", Email: "s1@example.com", LeadTimeDays: 7}},
	}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	before := time.Now().UTC()
	created, err := svc.GeneratePurchaseOrders(context.Background(), GenerateParams{
		ActorID:    uuid.New(),
		ActorRole:  enums.MemberRoleCaveOwner,
		WineCaveID: caveID,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 purchase order, got %d", len(created))
	}

	po := created[0]
	if po.Status != enums.PurchaseOrderStatusDraft {
		t.Fatalf("expected draft status, got %s", po.Status)
	}
	if len(po.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(po.Items))
	}
	if po.Items[0].Quantity != 16 {
		t.Fatalf("expected quantity 16, got %d", po.Items[0].Quantity)
	}
	if !po.Items[0].UnitPrice.Equal(mustDecimal("12.00")) {
		t.Fatalf("expected unit price 12.00, got %s", po.Items[0].UnitPrice)
	}
	if !po.TotalAmount.Equal(mustDecimal("192.00")) {
		t.Fatalf("expected total 192.00, got %s", po.TotalAmount)
	}

	wantDelivery := before.AddDate(0, 0, 7)
	if po.ExpectedDeliveryDate.Before(wantDelivery.Add(-time.Minute)) || po.ExpectedDeliveryDate.After(wantDelivery.Add(time.Minute)) {
		t.Fatalf("expected delivery around %s, got %s", wantDelivery, po.ExpectedDeliveryDate)
	}
}

func TestGeneratePurchaseOrders_GroupsBySupplierAndSkipsUnassigned(t *testing.T) {
	supplierID := uuid.New()
	caveID := uuid.New()
	wines := []models.Wine{
		{ID: uuid.New(), SupplierID: &supplierID, Price: mustDecimal("10.00"), StockQuantity: 4},
		{ID: uuid.New(), SupplierID: nil, Price: mustDecimal("30.00"), StockQuantity: 1},
		{ID: uuid.New(), SupplierID: &supplierID, Price: mustDecimal("15.00"), StockQuantity: 2},
	}
	repo := &fakeRepo{
		lowStock:  wines,
		suppliers: []models.Supplier{{ID: supplierID, Name: "S1", Email: "s1@example.com"}},
	}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	created, err := svc.GeneratePurchaseOrders(context.Background(), GenerateParams{
		ActorID:    uuid.New(),
		ActorRole:  enums.MemberRoleCaveOwner,
		WineCaveID: caveID,
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected one order for the single supplier, got %d", len(created))
	}
	if len(created[0].Items) != 2 {
		t.Fatalf("expected 2 items in supplier group, got %d", len(created[0].Items))
	}
}

func TestGeneratePurchaseOrders_SkipsSupplierWithOpenOrder(t *testing.T) {
	supplierID := uuid.New()
	repo := &fakeRepo{
		lowStock:   []models.Wine{{ID: uuid.New(), SupplierID: &supplierID, Price: mustDecimal("10.00"), StockQuantity: 3}},
		suppliers:  []models.Supplier{{ID: supplierID, Name: "S1", Email: "s1@example.com"}},
		openOrders: map[uuid.UUID]bool{supplierID: true},
	}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	created, err := svc.GeneratePurchaseOrders(context.Background(), GenerateParams{
		ActorID:    uuid.New(),
		ActorRole:  enums.MemberRoleCaveOwner,
		WineCaveID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("expected no new order while one is open, got %d", len(created))
	}
}

func TestGeneratePurchaseOrders_AutoSendNotifyFailureNonFatal(t *testing.T) {
	supplierID := uuid.New()
	ownerID := uuid.New()
	repo := &fakeRepo{
		lowStock:  []models.Wine{{ID: uuid.New(), SupplierID: &supplierID, Price: mustDecimal("10.00"), StockQuantity: 3}},
		suppliers: []models.Supplier{{ID: supplierID, Name: "S1", Email: "s1@example.com"}},
	}
	notifier := &fakeNotifier{sendErr: errors.New("notifier down")}
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true, ownerID: ownerID}, notifier, mailer)

	created, err := svc.GeneratePurchaseOrders(context.Background(), GenerateParams{
		ActorID:    uuid.New(),
		ActorRole:  enums.MemberRoleCaveOwner,
		WineCaveID: uuid.New(),
		AutoSend:   true,
	})
	if err != nil {
		t.Fatalf("notification failure must not fail the run: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected order to persist regardless, got %d", len(created))
	}
	if created[0].Status != enums.PurchaseOrderStatusSent {
		t.Fatalf("expected sent status under autoSend, got %s", created[0].Status)
	}
}

func TestGeneratePurchaseOrders_Forbidden(t *testing.T) {
	svc := newInventoryService(t, &fakeRepo{}, &fakeCaveRepo{owns: false}, &fakeNotifier{}, &fakeMailer{})

	_, err := svc.GeneratePurchaseOrders(context.Background(), GenerateParams{
		ActorID:    uuid.New(),
		ActorRole:  enums.MemberRoleCaveOwner,
		WineCaveID: uuid.New(),
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestReceiveOrder_IncrementsStockOnce(t *testing.T) {
	wineID := uuid.New()
	po := &models.PurchaseOrder{
		ID:         uuid.New(),
		WineCaveID: uuid.New(),
		Status:     enums.PurchaseOrderStatusConfirmed,
		Items:      []models.PurchaseOrderItem{{WineID: wineID, Quantity: 16}},
	}
	repo := &fakeRepo{po: po, transitionOK: true}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	_, err := svc.ReceiveOrder(context.Background(), OrderActionParams{
		ActorID:         uuid.New(),
		ActorRole:       enums.MemberRoleCaveOwner,
		PurchaseOrderID: po.ID,
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if repo.increments[wineID] != 16 {
		t.Fatalf("expected stock +16, got %d", repo.increments[wineID])
	}
	if repo.transitioned[0].ReceivedAt == nil {
		t.Fatal("expected received_at to be stamped")
	}
}

func TestReceiveOrder_SecondReceiveRejected(t *testing.T) {
	po := &models.PurchaseOrder{
		ID:         uuid.New(),
		WineCaveID: uuid.New(),
		Status:     enums.PurchaseOrderStatusReceived,
		Items:      []models.PurchaseOrderItem{{WineID: uuid.New(), Quantity: 16}},
	}
	repo := &fakeRepo{po: po, transitionOK: true}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	_, err := svc.ReceiveOrder(context.Background(), OrderActionParams{
		ActorID:         uuid.New(),
		ActorRole:       enums.MemberRoleCaveOwner,
		PurchaseOrderID: po.ID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(repo.increments) != 0 {
		t.Fatal("stock must not be incremented twice")
	}
}

func TestReceiveOrder_ConcurrentTransitionLosesGuard(t *testing.T) {
	po := &models.PurchaseOrder{
		ID:         uuid.New(),
		WineCaveID: uuid.New(),
		Status:     enums.PurchaseOrderStatusSent,
		Items:      []models.PurchaseOrderItem{{WineID: uuid.New(), Quantity: 8}},
	}
	repo := &fakeRepo{po: po, transitionOK: false}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	_, err := svc.ReceiveOrder(context.Background(), OrderActionParams{
		ActorID:         uuid.New(),
		ActorRole:       enums.MemberRoleCaveOwner,
		PurchaseOrderID: po.ID,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict when guard loses, got %v", err)
	}
	if len(repo.increments) != 0 {
		t.Fatal("stock must not change when the guarded write loses")
	}
}

func TestUpdateOrderStatus_RegressionRejected(t *testing.T) {
	po := &models.PurchaseOrder{
		ID:         uuid.New(),
		WineCaveID: uuid.New(),
		Status:     enums.PurchaseOrderStatusConfirmed,
	}
	repo := &fakeRepo{po: po, transitionOK: true}
	svc := newInventoryService(t, repo, &fakeCaveRepo{owns: true}, &fakeNotifier{}, &fakeMailer{})

	_, err := svc.UpdateOrderStatus(context.Background(), UpdateOrderStatusParams{
		ActorID:         uuid.New(),
		ActorRole:       enums.MemberRoleCaveOwner,
		PurchaseOrderID: po.ID,
		Status:          enums.PurchaseOrderStatusDraft,
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestSuggestedQuantity(t *testing.T) {
	cases := []struct {
		stock int
		want  int
	}{
		{stock: 8, want: 16},
		{stock: 10, want: 20},
		{stock: 15, want: 20},
		{stock: 0, want: 20},
		{stock: 1, want: 2},
	}
	for _, tc := range cases {
		if got := suggestedQuantity(tc.stock); got != tc.want {
			t.Errorf("suggestedQuantity(%d) = %d, want %d", tc.stock, got, tc.want)
		}
	}
}

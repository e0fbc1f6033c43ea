package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/internal/catalog"
	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/internal/payments"
	"github.com/mekongcart/storefront-backend/internal/vouchers"
	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/outbox"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

type stubGateway struct {
	calls  int
	result *payments.InitiationResult
	err    error
}

func (s *stubGateway) Initiate(ctx context.Context, order *models.Order) (*payments.InitiationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.result != nil {
		return s.result, nil
	}
	return &payments.InitiationResult{
		PaymentURL: "https://gateway.example.com/redirect/" + order.PaymentRef,
		TxnRef:     order.PaymentRef,
	}, nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL,
  name TEXT NOT NULL,
  slug TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS skus (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price INTEGER NOT NULL,
  promo_price INTEGER NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS vouchers (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  type TEXT NOT NULL,
  value INTEGER NOT NULL,
  max_discount_value INTEGER NOT NULL DEFAULT 0,
  min_order_value INTEGER NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  product_id TEXT,
  category_id TEXT,
  starts_at DATETIME,
  ends_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  contact_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  province_code TEXT NOT NULL DEFAULT '',
  district_code TEXT NOT NULL DEFAULT '',
  ward_code TEXT NOT NULL DEFAULT '',
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL,
  shipping_fee INTEGER NOT NULL DEFAULT 0,
  total_amount INTEGER NOT NULL DEFAULT 0,
  note TEXT,
  failure_reason TEXT,
  payment_ref TEXT NOT NULL UNIQUE,
  paid_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  sku_id TEXT NOT NULL,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_vouchers (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  voucher_id TEXT NOT NULL,
  discount_amount INTEGER NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, gw payments.Gateway) Service {
	t.Helper()
	svc, err := NewService(Params{
		Tx:          testTxRunner{db: db},
		CatalogRepo: catalog.NewRepository(db),
		VoucherRepo: vouchers.NewRepository(db),
		OrdersRepo:  orders.NewRepository(db),
		Gateway:     gw,
		Outbox:      outbox.NewService(outbox.NewRepository(db), nil),
		Config: config.CheckoutConfig{
			ShippingFee:  30000,
			MaxLineItems: 50,
			MaxVouchers:  5,
		},
	})
	require.NoError(t, err)
	return svc
}

func seedSku(t *testing.T, db *gorm.DB, price, promo int64, qty int) *models.Sku {
	t.Helper()
	product := &models.Product{
		ID:         uuid.New(),
		CategoryID: uuid.New(),
		Name:       "Robusta Beans",
		Slug:       "robusta-" + uuid.NewString()[:8],
		Status:     enums.ProductStatusActive,
	}
	require.NoError(t, db.Create(product).Error)
	sku := &models.Sku{
		ID:         uuid.New(),
		ProductID:  product.ID,
		Name:       "500g",
		Price:      price,
		PromoPrice: promo,
		Quantity:   qty,
	}
	require.NoError(t, db.Create(sku).Error)
	return sku
}

func seedVoucher(t *testing.T, db *gorm.DB, mutate func(*models.Voucher)) *models.Voucher {
	t.Helper()
	voucher := &models.Voucher{
		ID:       uuid.New(),
		Code:     "SALE" + uuid.NewString()[:8],
		Type:     enums.VoucherTypePercent,
		Value:    20,
		Quantity: 10,
		Status:   enums.VoucherStatusActive,
	}
	if mutate != nil {
		mutate(voucher)
	}
	require.NoError(t, db.Create(voucher).Error)
	return voucher
}

func baseInput(sku *models.Sku, qty int, method enums.PaymentMethod) Input {
	return Input{
		Items: []catalog.LineRequest{{SkuID: sku.ID, Quantity: qty}},
		Contact: Contact{
			Name:         "Nguyen Van A",
			Email:        "a@example.com",
			Phone:        "0900000000",
			Address:      "1 Le Loi",
			ProvinceCode: "79",
			DistrictCode: "760",
			WardCode:     "26734",
		},
		PaymentMethod: method,
	}
}

func skuQuantity(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var sku models.Sku
	require.NoError(t, db.First(&sku, "id = ?", id).Error)
	return sku.Quantity
}

func TestExecuteCODOrder(t *testing.T) {
	db := newTestDB(t)
	gw := &stubGateway{}
	svc := newTestService(t, db, gw)
	sku := seedSku(t, db, 125000, 0, 5)

	result, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 2, enums.PaymentMethodCOD))
	require.NoError(t, err)
	require.NotNil(t, result.Order)
	assert.Empty(t, result.PaymentURL)
	assert.Nil(t, result.PaymentErr)
	assert.Equal(t, 0, gw.calls, "cod orders never touch the gateway")

	order := result.Order
	assert.Equal(t, enums.OrderStatusAwaitingFulfillment, order.Status)
	assert.Equal(t, int64(2*125000+30000), order.TotalAmount)
	assert.NotEmpty(t, order.PaymentRef)
	assert.Equal(t, 3, skuQuantity(t, db, sku.ID))

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCreated).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestExecuteBankOrderReturnsPaymentURL(t *testing.T) {
	db := newTestDB(t)
	gw := &stubGateway{}
	svc := newTestService(t, db, gw)
	sku := seedSku(t, db, 125000, 0, 5)

	result, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 1, enums.PaymentMethodBank))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, result.Order.Status)
	assert.Contains(t, result.PaymentURL, result.Order.PaymentRef)
	assert.Equal(t, 1, gw.calls)
}

func TestExecuteGatewayFailureKeepsOrder(t *testing.T) {
	db := newTestDB(t)
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGatewayUnreachable, "payment gateway unreachable")}
	svc := newTestService(t, db, gw)
	sku := seedSku(t, db, 125000, 0, 5)

	result, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 1, enums.PaymentMethodBank))
	require.NoError(t, err, "gateway failure must not fail the committed checkout")
	require.NotNil(t, result.PaymentErr)
	typed := pkgerrors.As(result.PaymentErr)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeGatewayUnreachable, typed.Code())

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", result.Order.ID).Error)
	assert.Equal(t, enums.OrderStatusAwaitingPayment, reloaded.Status)
	assert.Equal(t, 4, skuQuantity(t, db, sku.ID), "stock decrement survives the gateway failure")
}

func TestExecuteAppliesVoucher(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 250000, 0, 5)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.Value = 20
		v.MaxDiscountValue = 50000
	})

	input := baseInput(sku, 2, enums.PaymentMethodCOD)
	input.VoucherIDs = []uuid.UUID{voucher.ID}

	result, err := svc.Execute(context.Background(), uuid.New(), input)
	require.NoError(t, err)

	// subtotal 500000, 20% capped at 50000, plus 30000 shipping
	assert.Equal(t, int64(480000), result.Order.TotalAmount)
	require.Len(t, result.Order.Vouchers, 1)
	assert.Equal(t, int64(50000), result.Order.Vouchers[0].DiscountAmount)

	var reloaded models.Voucher
	require.NoError(t, db.First(&reloaded, "id = ?", voucher.ID).Error)
	assert.Equal(t, 9, reloaded.Quantity)
}

func TestExecuteInsufficientStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 125000, 0, 1)

	_, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 2, enums.PaymentMethodCOD))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	assert.Equal(t, 1, skuQuantity(t, db, sku.ID))
	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count, "no partial order may survive the rollback")
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestExecuteVoucherFailureRollsBackStock(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 125000, 0, 5)
	voucher := seedVoucher(t, db, func(v *models.Voucher) {
		v.Quantity = 0
	})

	input := baseInput(sku, 2, enums.PaymentMethodCOD)
	input.VoucherIDs = []uuid.UUID{voucher.ID}

	_, err := svc.Execute(context.Background(), uuid.New(), input)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeVoucherInvalid, typed.Code())

	assert.Equal(t, 5, skuQuantity(t, db, sku.ID), "stock decrement must roll back with the voucher failure")
}

func TestExecuteSnapshotsUnitPrice(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 125000, 0, 5)

	result, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 1, enums.PaymentMethodBank))
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Sku{}).
		Where("id = ?", sku.ID).
		Update("price", 999999).Error)

	var item models.OrderItem
	require.NoError(t, db.First(&item, "order_id = ?", result.Order.ID).Error)
	assert.Equal(t, int64(125000), item.UnitPrice, "order item price is fixed at creation time")
}

func TestExecuteLastUnitContention(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 125000, 0, 1)

	first, err := svc.Execute(context.Background(), uuid.New(), baseInput(sku, 1, enums.PaymentMethodCOD))
	require.NoError(t, err)
	require.NotNil(t, first.Order)

	_, err = svc.Execute(context.Background(), uuid.New(), baseInput(sku, 1, enums.PaymentMethodCOD))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	assert.Equal(t, 0, skuQuantity(t, db, sku.ID), "quantity must never go negative")
}

func TestExecuteValidation(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, &stubGateway{})
	sku := seedSku(t, db, 125000, 0, 5)

	t.Run("missing user", func(t *testing.T) {
		_, err := svc.Execute(context.Background(), uuid.Nil, baseInput(sku, 1, enums.PaymentMethodCOD))
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	})

	t.Run("bad payment method", func(t *testing.T) {
		input := baseInput(sku, 1, enums.PaymentMethod("crypto"))
		_, err := svc.Execute(context.Background(), uuid.New(), input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("no items", func(t *testing.T) {
		input := baseInput(sku, 1, enums.PaymentMethodCOD)
		input.Items = nil
		_, err := svc.Execute(context.Background(), uuid.New(), input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})

	t.Run("too many vouchers", func(t *testing.T) {
		input := baseInput(sku, 1, enums.PaymentMethodCOD)
		for i := 0; i < 6; i++ {
			input.VoucherIDs = append(input.VoucherIDs, uuid.New())
		}
		_, err := svc.Execute(context.Background(), uuid.New(), input)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	})
}

func TestRetryPayment(t *testing.T) {
	db := newTestDB(t)
	gw := &stubGateway{err: pkgerrors.New(pkgerrors.CodeGatewayUnreachable, "payment gateway unreachable")}
	svc := newTestService(t, db, gw)
	sku := seedSku(t, db, 125000, 0, 5)
	userID := uuid.New()

	created, err := svc.Execute(context.Background(), userID, baseInput(sku, 1, enums.PaymentMethodBank))
	require.NoError(t, err)
	require.NotNil(t, created.PaymentErr)

	gw.err = nil
	retried, err := svc.RetryPayment(context.Background(), userID, created.Order.ID)
	require.NoError(t, err)
	assert.Contains(t, retried.PaymentURL, created.Order.PaymentRef)

	t.Run("wrong user", func(t *testing.T) {
		_, err := svc.RetryPayment(context.Background(), uuid.New(), created.Order.ID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	})

	t.Run("cod order", func(t *testing.T) {
		cod, err := svc.Execute(context.Background(), userID, baseInput(sku, 1, enums.PaymentMethodCOD))
		require.NoError(t, err)
		_, err = svc.RetryPayment(context.Background(), userID, cod.Order.ID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})

	t.Run("already paid", func(t *testing.T) {
		require.NoError(t, db.Model(&models.Order{}).
			Where("id = ?", created.Order.ID).
			Update("status", enums.OrderStatusAwaitingFulfillment).Error)
		_, err := svc.RetryPayment(context.Background(), userID, created.Order.ID)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	})
}

package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/internal/catalog"
	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/internal/payments"
	"github.com/mekongcart/storefront-backend/internal/pricing"
	"github.com/mekongcart/storefront-backend/internal/vouchers"
	"github.com/mekongcart/storefront-backend/pkg/config"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/metrics"
	"github.com/mekongcart/storefront-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Contact is the shipping contact snapshotted onto the order.
type Contact struct {
	Name         string
	Email        string
	Phone        string
	Address      string
	ProvinceCode string
	DistrictCode string
	WardCode     string
}

// Input is one checkout request.
type Input struct {
	Items         []catalog.LineRequest
	Contact       Contact
	PaymentMethod enums.PaymentMethod
	VoucherIDs    []uuid.UUID
	Note          *string
}

// Result is the committed order plus the optional gateway outcome. A non-nil
// PaymentErr means the order exists but payment initiation failed; the client
// may retry initiation against the same order.
type Result struct {
	Order      *models.Order
	PaymentURL string
	PaymentErr error
}

// Service executes checkout orchestration.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
	RetryPayment(ctx context.Context, userID, orderID uuid.UUID) (*Result, error)
}

// Params collects the checkout service dependencies.
type Params struct {
	Tx          txRunner
	CatalogRepo catalog.Repository
	VoucherRepo vouchers.Repository
	OrdersRepo  orders.Repository
	Engine      vouchers.Engine
	Gateway     payments.Gateway
	Outbox      outboxEmitter
	Config      config.CheckoutConfig
	Logger      *logger.Logger
	Metrics     *metrics.CheckoutMetrics
}

type service struct {
	tx          txRunner
	catalogRepo catalog.Repository
	voucherRepo vouchers.Repository
	ordersRepo  orders.Repository
	engine      vouchers.Engine
	gateway     payments.Gateway
	outbox      outboxEmitter
	cfg         config.CheckoutConfig
	logg        *logger.Logger
	metrics     *metrics.CheckoutMetrics
}

// NewService builds the checkout service.
func NewService(p Params) (Service, error) {
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.CatalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if p.VoucherRepo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if p.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Engine == nil {
		p.Engine = vouchers.NewEngine()
	}
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		tx:          p.Tx,
		catalogRepo: p.CatalogRepo,
		voucherRepo: p.VoucherRepo,
		ordersRepo:  p.OrdersRepo,
		engine:      p.Engine,
		gateway:     p.Gateway,
		outbox:      p.Outbox,
		cfg:         p.Config,
		logg:        p.Logger,
		metrics:     p.Metrics,
	}, nil
}

// Execute runs the whole order write as one transaction: catalog snapshot,
// guarded stock decrements, voucher validation and consumption, pricing, and
// the order + item + voucher-attachment writes. The gateway call happens
// strictly after commit; its failure leaves the committed order awaiting
// payment and is reported through Result.PaymentErr.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	started := time.Now()
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if err := s.validateInput(input); err != nil {
		s.metrics.IncCheckoutFailure(string(pkgerrors.CodeValidation))
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalogRepo := s.catalogRepo.WithTx(tx)
		voucherRepo := s.voucherRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		snapshotter, err := catalog.NewSnapshotter(catalogRepo)
		if err != nil {
			return err
		}
		lines, err := snapshotter.Snapshot(ctx, input.Items)
		if err != nil {
			return err
		}

		for _, line := range lines {
			ok, err := catalogRepo.DecrementStock(ctx, line.SkuID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserving stock")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{"sku_id": line.SkuID})
			}
		}

		subtotal := pricing.Subtotal(lines)
		redemptions, err := s.engine.Evaluate(ctx, voucherRepo, userID, input.VoucherIDs, subtotal, lines)
		if err != nil {
			return err
		}
		for _, redemption := range redemptions {
			ok, err := voucherRepo.DecrementQuantity(ctx, redemption.VoucherID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consuming voucher")
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher cannot be applied").
					WithDetails(map[string]any{"code": redemption.Code, "reason": "voucher has no redemptions left"})
			}
		}

		quote := pricing.NewQuote(subtotal, vouchers.TotalDiscount(redemptions), s.cfg.ShippingFee)
		order = buildOrder(userID, input, lines, redemptions, quote)
		if _, err := ordersRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating order")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data:          orderCreatedData(order),
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncCheckoutFailure(string(typed.Code()))
		}
		return nil, err
	}

	s.metrics.IncOrderCreated(string(input.PaymentMethod))
	s.metrics.ObserveCheckout(string(input.PaymentMethod), time.Since(started))
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created")
	}

	result := &Result{Order: order}
	if input.PaymentMethod.RequiresGateway() {
		initiation, err := s.gateway.Initiate(ctx, order)
		if err != nil {
			result.PaymentErr = err
			return result, nil
		}
		result.PaymentURL = initiation.PaymentURL
	}
	return result, nil
}

// RetryPayment re-invokes the gateway for an order that is still awaiting
// payment, covering a crash or gateway outage between commit and initiation.
func (s *service) RetryPayment(ctx context.Context, userID, orderID uuid.UUID) (*Result, error) {
	order, err := s.ordersRepo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
	}
	if !order.PaymentMethod.RequiresGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order does not use gateway payment")
	}
	if order.Status != enums.OrderStatusAwaitingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting payment")
	}

	initiation, err := s.gateway.Initiate(ctx, order)
	if err != nil {
		return nil, err
	}
	return &Result{Order: order, PaymentURL: initiation.PaymentURL}, nil
}

func (s *service) validateInput(input Input) error {
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment method")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	if s.cfg.MaxLineItems > 0 && len(input.Items) > s.cfg.MaxLineItems {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many line items")
	}
	if s.cfg.MaxVouchers > 0 && len(input.VoucherIDs) > s.cfg.MaxVouchers {
		return pkgerrors.New(pkgerrors.CodeValidation, "too many vouchers")
	}
	return nil
}

func buildOrder(userID uuid.UUID, input Input, lines []catalog.LineSnapshot, redemptions []vouchers.Redemption, quote pricing.Quote) *models.Order {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItem{
			ProductID: line.ProductID,
			SkuID:     line.SkuID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	attachments := make([]models.OrderVoucher, 0, len(redemptions))
	for _, redemption := range redemptions {
		attachments = append(attachments, models.OrderVoucher{
			VoucherID:      redemption.VoucherID,
			DiscountAmount: redemption.Discount,
		})
	}
	return &models.Order{
		UserID:        userID,
		ContactName:   input.Contact.Name,
		Email:         input.Contact.Email,
		Phone:         input.Contact.Phone,
		Address:       input.Contact.Address,
		ProvinceCode:  input.Contact.ProvinceCode,
		DistrictCode:  input.Contact.DistrictCode,
		WardCode:      input.Contact.WardCode,
		PaymentMethod: input.PaymentMethod,
		Status:        input.PaymentMethod.InitialOrderStatus(),
		ShippingFee:   quote.ShippingFee,
		TotalAmount:   quote.Total,
		Note:          input.Note,
		PaymentRef:    uuid.NewString(),
		Items:         items,
		Vouchers:      attachments,
	}
}

func orderCreatedData(order *models.Order) outbox.OrderCreatedData {
	lines := make([]outbox.OrderLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, outbox.OrderLine{
			SkuID:     item.SkuID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return outbox.OrderCreatedData{
		OrderID:       order.ID,
		UserID:        order.UserID,
		PaymentMethod: string(order.PaymentMethod),
		Status:        string(order.Status),
		TotalAmount:   order.TotalAmount,
		Lines:         lines,
	}
}

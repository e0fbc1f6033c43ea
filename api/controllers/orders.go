package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mekongcart/storefront-backend/api/middleware"
	"github.com/mekongcart/storefront-backend/api/responses"
	"github.com/mekongcart/storefront-backend/api/validators"
	"github.com/mekongcart/storefront-backend/internal/catalog"
	checkoutsvc "github.com/mekongcart/storefront-backend/internal/checkout"
	"github.com/mekongcart/storefront-backend/internal/orders"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/logger"
	"github.com/mekongcart/storefront-backend/pkg/pagination"
)

const timeFormat = time.RFC3339

// CreateOrder validates a checkout submission and writes the order.
func CreateOrder(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// GetOrder returns a single order owned by the caller.
func GetOrder(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindByIDForUser(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// ListOrders returns the caller's orders newest first with cursor pagination.
func ListOrders(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders repository unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, next, err := repo.ListByUser(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]orderSummaryResponse, 0, len(list))
		for i := range list {
			items = append(items, newOrderSummaryResponse(&list[i]))
		}

		responses.WriteSuccess(w, orderListResponse{Orders: items, NextCursor: next})
	}
}

// RetryPayment re-initiates the gateway flow for an unpaid bank order.
func RetryPayment(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := orderIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RetryPayment(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.PaymentErr != nil {
			responses.WriteError(r.Context(), logg, w, result.PaymentErr)
			return
		}

		responses.WriteSuccess(w, retryPaymentResponse{
			OrderID:    result.Order.ID,
			PaymentURL: result.PaymentURL,
		})
	}
}

func userIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return userID, nil
}

func orderIDFromPath(r *http.Request) (uuid.UUID, error) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}

type createOrderRequest struct {
	Items         []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	Contact       contactRequest     `json:"contact" validate:"required"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=cod bank"`
	VoucherIDs    []uuid.UUID        `json:"voucher_ids" validate:"omitempty,dive,required"`
	Note          *string            `json:"note,omitempty" validate:"omitempty,max=500"`
}

type orderItemRequest struct {
	SkuID    uuid.UUID `json:"sku_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"required,min=1"`
}

type contactRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=20"`
	Address      string `json:"address" validate:"required,max=255"`
	ProvinceCode string `json:"province_code" validate:"required"`
	DistrictCode string `json:"district_code" validate:"required"`
	WardCode     string `json:"ward_code" validate:"required"`
}

func (req createOrderRequest) toInput() (checkoutsvc.Input, error) {
	method, err := enums.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return checkoutsvc.Input{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	items := make([]catalog.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, catalog.LineRequest{SkuID: item.SkuID, Quantity: item.Quantity})
	}

	return checkoutsvc.Input{
		Items: items,
		Contact: checkoutsvc.Contact{
			Name:         req.Contact.Name,
			Email:        req.Contact.Email,
			Phone:        req.Contact.Phone,
			Address:      req.Contact.Address,
			ProvinceCode: req.Contact.ProvinceCode,
			DistrictCode: req.Contact.DistrictCode,
			WardCode:     req.Contact.WardCode,
		},
		PaymentMethod: method,
		VoucherIDs:    req.VoucherIDs,
		Note:          req.Note,
	}, nil
}

type checkoutResponse struct {
	Order        orderResponse         `json:"order"`
	PaymentURL   string                `json:"payment_url,omitempty"`
	PaymentError *paymentErrorResponse `json:"payment_error,omitempty"`
}

type paymentErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type retryPaymentResponse struct {
	OrderID    uuid.UUID `json:"order_id"`
	PaymentURL string    `json:"payment_url"`
}

type orderListResponse struct {
	Orders     []orderSummaryResponse `json:"orders"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type orderResponse struct {
	orderSummaryResponse
	Contact  contactResponse        `json:"contact"`
	Items    []orderItemResponse    `json:"items"`
	Vouchers []orderVoucherResponse `json:"vouchers,omitempty"`
	Note     *string                `json:"note,omitempty"`
}

type orderSummaryResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	Status        string    `json:"status"`
	PaymentMethod string    `json:"payment_method"`
	ShippingFee   int64     `json:"shipping_fee"`
	TotalAmount   int64     `json:"total_amount"`
	PaymentRef    string    `json:"payment_ref"`
	PaidAt        *string   `json:"paid_at,omitempty"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	CreatedAt     string    `json:"created_at"`
}

type contactResponse struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	ProvinceCode string `json:"province_code"`
	DistrictCode string `json:"district_code"`
	WardCode     string `json:"ward_code"`
}

type orderItemResponse struct {
	ProductID uuid.UUID `json:"product_id"`
	SkuID     uuid.UUID `json:"sku_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	LineTotal int64     `json:"line_total"`
}

type orderVoucherResponse struct {
	VoucherID      uuid.UUID `json:"voucher_id"`
	DiscountAmount int64     `json:"discount_amount"`
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	resp := checkoutResponse{
		Order:      newOrderResponse(result.Order),
		PaymentURL: result.PaymentURL,
	}
	if result.PaymentErr != nil {
		resp.PaymentError = newPaymentErrorResponse(result.PaymentErr)
	}
	return resp
}

func newPaymentErrorResponse(err error) *paymentErrorResponse {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment initiation failed")
	}
	msg := typed.Message()
	if msg == "" {
		msg = pkgerrors.MetadataFor(typed.Code()).PublicMessage
	}
	return &paymentErrorResponse{
		Code:    string(typed.Code()),
		Message: msg,
	}
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			SkuID:     item.SkuID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
		})
	}
	vouchers := make([]orderVoucherResponse, 0, len(order.Vouchers))
	for _, voucher := range order.Vouchers {
		vouchers = append(vouchers, orderVoucherResponse{
			VoucherID:      voucher.VoucherID,
			DiscountAmount: voucher.DiscountAmount,
		})
	}
	return orderResponse{
		orderSummaryResponse: newOrderSummaryResponse(order),
		Contact: contactResponse{
			Name:         order.ContactName,
			Email:        order.Email,
			Phone:        order.Phone,
			Address:      order.Address,
			ProvinceCode: order.ProvinceCode,
			DistrictCode: order.DistrictCode,
			WardCode:     order.WardCode,
		},
		Items:    items,
		Vouchers: vouchers,
		Note:     order.Note,
	}
}

func newOrderSummaryResponse(order *models.Order) orderSummaryResponse {
	resp := orderSummaryResponse{
		OrderID:       order.ID,
		Status:        order.Status.String(),
		PaymentMethod: order.PaymentMethod.String(),
		ShippingFee:   order.ShippingFee,
		TotalAmount:   order.TotalAmount,
		PaymentRef:    order.PaymentRef,
		FailureReason: order.FailureReason,
		CreatedAt:     order.CreatedAt.UTC().Format(timeFormat),
	}
	if order.PaidAt != nil {
		paidAt := order.PaidAt.UTC().Format(timeFormat)
		resp.PaidAt = &paidAt
	}
	return resp
}

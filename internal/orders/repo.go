package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
	"github.com/mekongcart/storefront-backend/pkg/pagination"
)

// Repository persists orders and drives their status transitions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Vouchers").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentRef(ctx context.Context, paymentRef string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns one page of the user's orders, newest first, plus the
// cursor for the next page when more rows remain.
func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	q := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		q = q.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Order
	err = q.Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// MarkPaid moves an order awaiting payment to awaiting fulfillment. The
// conditional update keeps replayed callbacks from re-applying the
// transition; the boolean reports whether this call performed it.
func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusAwaitingPayment).
		Updates(map[string]any{
			"status":  enums.OrderStatusAwaitingFulfillment,
			"paid_at": paidAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCancelled cancels an order only while it is still in the expected
// status, recording the provider's message as the reason.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, from enums.OrderStatus, reason string) (bool, error) {
	if !from.CanTransitionTo(enums.OrderStatusCancelled) {
		return false, errors.New("status cannot transition to cancelled")
	}
	updates := map[string]any{
		"status": enums.OrderStatusCancelled,
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

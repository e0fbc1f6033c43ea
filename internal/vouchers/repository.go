package vouchers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/db/models"
)

// Repository reads vouchers and applies guarded redemption decrements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Voucher, error)
	HasPriorUse(ctx context.Context, userID, voucherID uuid.UUID) (bool, error)
	DecrementQuantity(ctx context.Context, voucherID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a voucher repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Voucher, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Voucher
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasPriorUse reports whether the user already redeemed the voucher on any
// earlier order.
func (r *repository) HasPriorUse(ctx context.Context, userID, voucherID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderVoucher{}).
		Joins("JOIN orders ON orders.id = order_vouchers.order_id").
		Where("orders.user_id = ? AND order_vouchers.voucher_id = ?", userID, voucherID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DecrementQuantity consumes one redemption only while some remain, so the
// second of two contending checkouts fails deterministically.
func (r *repository) DecrementQuantity(ctx context.Context, voucherID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND quantity > 0", voucherID).
		Update("quantity", gorm.Expr("quantity - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/db/models"
)

// Repository reads sku snapshots and applies guarded stock decrements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSkusByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Sku, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	DecrementStock(ctx context.Context, skuID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSkusByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Sku, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var skus []models.Sku
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&skus).Error
	if err != nil {
		return nil, err
	}
	return skus, nil
}

func (r *repository) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock decreases the sku quantity only when enough units remain.
// The guarded update makes the second of two contending writers observe the
// first one's decrement and fail, so stock never goes negative.
func (r *repository) DecrementStock(ctx context.Context, skuID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Sku{}).
		Where("id = ? AND quantity >= ?", skuID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/enums"
)

// Voucher is a discount instrument with a finite redemption quantity.
// ProductID/CategoryID scope the voucher to part of an order; both nil means
// the voucher applies to the whole order.
type Voucher struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code             string              `gorm:"column:code;uniqueIndex;not null"`
	Type             enums.VoucherType   `gorm:"column:type;type:text;not null"`
	Value            int64               `gorm:"column:value;not null"`
	MaxDiscountValue int64               `gorm:"column:max_discount_value;not null;default:0"`
	MinOrderValue    int64               `gorm:"column:min_order_value;not null;default:0"`
	Quantity         int                 `gorm:"column:quantity;not null;default:0"`
	Status           enums.VoucherStatus `gorm:"column:status;type:text;not null;default:'active'"`
	ProductID        *uuid.UUID          `gorm:"column:product_id;type:uuid"`
	CategoryID       *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	StartsAt         *time.Time          `gorm:"column:starts_at"`
	EndsAt           *time.Time          `gorm:"column:ends_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Voucher) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderVoucher records a voucher redemption against an order together with
// the exact discount granted, so later edits to the voucher configuration do
// not rewrite history.
type OrderVoucher struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:ux_order_vouchers_order_voucher"`
	VoucherID      uuid.UUID `gorm:"column:voucher_id;type:uuid;not null;index;uniqueIndex:ux_order_vouchers_order_voucher"`
	DiscountAmount int64     `gorm:"column:discount_amount;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ov *OrderVoucher) BeforeCreate(tx *gorm.DB) error {
	if ov.ID == uuid.Nil {
		ov.ID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem snapshots one purchased line. UnitPrice is the price quoted at
// checkout and never changes with later catalog edits.
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SkuID     uuid.UUID `gorm:"column:sku_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Quantity  int       `gorm:"column:quantity;not null"`
	UnitPrice int64     `gorm:"column:unit_price;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal returns quantity times the snapshotted unit price.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

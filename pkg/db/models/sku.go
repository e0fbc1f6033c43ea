package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sku is a purchasable variant of a product. PromoPrice of zero means no
// promotion is running. Quantity must never go negative; the repo decrements
// it with a guarded update.
type Sku struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name       string    `gorm:"column:name;not null"`
	Price      int64     `gorm:"column:price;not null"`
	PromoPrice int64     `gorm:"column:promo_price;not null;default:0"`
	Quantity   int       `gorm:"column:quantity;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sku) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// UnitPrice returns the price in effect right now: the promotional price when
// one is set, the base price otherwise.
func (s Sku) UnitPrice() int64 {
	if s.PromoPrice > 0 {
		return s.PromoPrice
	}
	return s.Price
}

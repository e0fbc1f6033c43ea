package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/enums"
)

// Product groups the purchasable variants under one catalog entry.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CategoryID uuid.UUID           `gorm:"column:category_id;type:uuid;not null"`
	Name       string              `gorm:"column:name;not null"`
	Slug       string              `gorm:"column:slug;uniqueIndex;not null"`
	Status     enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Skus       []Sku               `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

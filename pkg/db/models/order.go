package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mekongcart/storefront-backend/pkg/enums"
)

// Order is the checkout result. Contact fields are snapshotted at creation
// time; only the status (and its companions paid_at / failure_reason) mutate
// afterwards. PaymentRef is the correlation id sent to the gateway, unique
// per checkout.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	ContactName   string              `gorm:"column:contact_name;not null"`
	Email         string              `gorm:"column:email;not null"`
	Phone         string              `gorm:"column:phone;not null"`
	Address       string              `gorm:"column:address;not null"`
	ProvinceCode  string              `gorm:"column:province_code;not null"`
	DistrictCode  string              `gorm:"column:district_code;not null"`
	WardCode      string              `gorm:"column:ward_code;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	ShippingFee   int64               `gorm:"column:shipping_fee;not null;default:0"`
	TotalAmount   int64               `gorm:"column:total_amount;not null"`
	Note          *string             `gorm:"column:note"`
	FailureReason *string             `gorm:"column:failure_reason"`
	PaymentRef    string              `gorm:"column:payment_ref;uniqueIndex;not null"`
	PaidAt        *time.Time          `gorm:"column:paid_at"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Vouchers      []OrderVoucher      `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

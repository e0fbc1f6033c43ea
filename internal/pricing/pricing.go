package pricing

import (
	"github.com/mekongcart/storefront-backend/internal/catalog"
)

// Quote is the money breakdown of a checkout. All amounts are VND.
type Quote struct {
	Subtotal    int64
	Discount    int64
	ShippingFee int64
	Total       int64
}

// Subtotal sums the line totals of a snapshot. Vouchers evaluate their
// minimum-order thresholds against this pre-discount figure.
func Subtotal(lines []catalog.LineSnapshot) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.LineTotal()
	}
	return subtotal
}

// NewQuote applies the discount to the subtotal, floors at zero, and adds the
// shipping fee. Overlapping vouchers can push the discount past the subtotal;
// the floor keeps the goods portion from going negative.
func NewQuote(subtotal, discount, shippingFee int64) Quote {
	goods := subtotal - discount
	if goods < 0 {
		goods = 0
	}
	return Quote{
		Subtotal:    subtotal,
		Discount:    discount,
		ShippingFee: shippingFee,
		Total:       goods + shippingFee,
	}
}

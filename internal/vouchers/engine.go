package vouchers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mekongcart/storefront-backend/internal/catalog"
	"github.com/mekongcart/storefront-backend/pkg/db/models"
	"github.com/mekongcart/storefront-backend/pkg/enums"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
)

// Redemption is one applied voucher with the exact discount granted.
type Redemption struct {
	VoucherID uuid.UUID
	Code      string
	Discount  int64
}

// TotalDiscount sums the discounts across redemptions.
func TotalDiscount(redemptions []Redemption) int64 {
	var total int64
	for _, r := range redemptions {
		total += r.Discount
	}
	return total
}

// Engine validates a voucher set against an order and computes discounts.
type Engine interface {
	Evaluate(ctx context.Context, repo Repository, userID uuid.UUID, voucherIDs []uuid.UUID, subtotal int64, lines []catalog.LineSnapshot) ([]Redemption, error)
}

type engine struct{}

// NewEngine builds the voucher engine.
func NewEngine() Engine {
	return engine{}
}

// Evaluate resolves and validates each voucher in order, first violation
// wins. Duplicate ids are deduplicated. The returned redemptions carry the
// discount each voucher grants against this order; the caller is responsible
// for consuming redemption quantity inside the checkout transaction.
func (engine) Evaluate(ctx context.Context, repo Repository, userID uuid.UUID, voucherIDs []uuid.UUID, subtotal int64, lines []catalog.LineSnapshot) ([]Redemption, error) {
	if len(voucherIDs) == 0 {
		return nil, nil
	}
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}

	unique := make([]uuid.UUID, 0, len(voucherIDs))
	seen := map[uuid.UUID]bool{}
	for _, id := range voucherIDs {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher id required")
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	rows, err := repo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading vouchers")
	}
	byID := make(map[uuid.UUID]models.Voucher, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	redemptions := make([]Redemption, 0, len(unique))
	for _, id := range unique {
		voucher, ok := byID[id]
		if !ok {
			return nil, invalid("", "voucher not found")
		}
		if voucher.Status != enums.VoucherStatusActive {
			return nil, invalid(voucher.Code, "voucher is not active")
		}
		if voucher.Quantity <= 0 {
			return nil, invalid(voucher.Code, "voucher has no redemptions left")
		}
		if subtotal < voucher.MinOrderValue {
			return nil, invalid(voucher.Code, "order does not meet the voucher minimum")
		}
		used, err := repo.HasPriorUse(ctx, userID, voucher.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking voucher history")
		}
		if used {
			return nil, invalid(voucher.Code, "voucher already used")
		}

		eligible := eligibleAmount(voucher, subtotal, lines)
		discount, err := computeDiscount(voucher, eligible)
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, Redemption{
			VoucherID: voucher.ID,
			Code:      voucher.Code,
			Discount:  discount,
		})
	}
	return redemptions, nil
}

// eligibleAmount sums the line totals the voucher's scope covers. Unscoped
// vouchers cover the full subtotal.
func eligibleAmount(voucher models.Voucher, subtotal int64, lines []catalog.LineSnapshot) int64 {
	switch {
	case voucher.ProductID != nil:
		var sum int64
		for _, line := range lines {
			if line.ProductID == *voucher.ProductID {
				sum += line.LineTotal()
			}
		}
		return sum
	case voucher.CategoryID != nil:
		var sum int64
		for _, line := range lines {
			if line.CategoryID == *voucher.CategoryID {
				sum += line.LineTotal()
			}
		}
		return sum
	default:
		return subtotal
	}
}

func computeDiscount(voucher models.Voucher, eligible int64) (int64, error) {
	switch voucher.Type {
	case enums.VoucherTypePercent:
		discount := decimal.NewFromInt(eligible).
			Mul(decimal.NewFromInt(voucher.Value)).
			Div(decimal.NewFromInt(100)).
			Floor().
			IntPart()
		if voucher.MaxDiscountValue > 0 && discount > voucher.MaxDiscountValue {
			discount = voucher.MaxDiscountValue
		}
		return discount, nil
	case enums.VoucherTypeFixed:
		discount := voucher.Value
		if discount > eligible {
			discount = eligible
		}
		return discount, nil
	default:
		return 0, invalid(voucher.Code, fmt.Sprintf("unsupported voucher type %q", voucher.Type))
	}
}

func invalid(code, reason string) *pkgerrors.Error {
	details := map[string]any{"reason": reason}
	if code != "" {
		details["code"] = code
	}
	return pkgerrors.New(pkgerrors.CodeVoucherInvalid, "voucher cannot be applied").WithDetails(details)
}

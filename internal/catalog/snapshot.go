package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mekongcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/mekongcart/storefront-backend/pkg/errors"
)

// LineRequest is one requested purchase line.
type LineRequest struct {
	SkuID    uuid.UUID
	Quantity int
}

// LineSnapshot is a requested line joined with the catalog state read at
// snapshot time. UnitPrice is the price quoted to the customer.
type LineSnapshot struct {
	SkuID      uuid.UUID
	ProductID  uuid.UUID
	CategoryID uuid.UUID
	Name       string
	Quantity   int
	UnitPrice  int64
	Available  int
}

// LineTotal returns quantity times the quoted unit price.
func (l LineSnapshot) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Snapshotter loads and validates the catalog state for a set of lines.
type Snapshotter interface {
	Snapshot(ctx context.Context, lines []LineRequest) ([]LineSnapshot, error)
}

type snapshotter struct {
	repo Repository
}

// NewSnapshotter builds the catalog snapshot reader.
func NewSnapshotter(repo Repository) (Snapshotter, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &snapshotter{repo: repo}, nil
}

// Snapshot resolves every requested line against the live catalog. It fails
// on the first unresolvable sku, unsellable product, or short stock. The
// availability check here is advisory; the checkout transaction re-asserts it
// with guarded decrements.
func (s *snapshotter) Snapshot(ctx context.Context, lines []LineRequest) ([]LineSnapshot, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	for _, line := range lines {
		if line.SkuID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
	}

	skuIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		skuIDs = append(skuIDs, line.SkuID)
	}
	skus, err := s.repo.FindSkusByIDs(ctx, skuIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading skus")
	}
	skuByID := make(map[uuid.UUID]models.Sku, len(skus))
	for _, sku := range skus {
		skuByID[sku.ID] = sku
	}

	productIDs := make([]uuid.UUID, 0, len(skus))
	seen := map[uuid.UUID]bool{}
	for _, sku := range skus {
		if !seen[sku.ProductID] {
			seen[sku.ProductID] = true
			productIDs = append(productIDs, sku.ProductID)
		}
	}
	products, err := s.repo.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}
	productByID := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		productByID[product.ID] = product
	}

	snapshots := make([]LineSnapshot, 0, len(lines))
	for _, line := range lines {
		sku, ok := skuByID[line.SkuID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeVariantNotFound, "variant not found").
				WithDetails(map[string]any{"sku_id": line.SkuID})
		}
		product, ok := productByID[sku.ProductID]
		if !ok || !product.Status.Sellable() {
			return nil, pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available for sale").
				WithDetails(map[string]any{"sku_id": line.SkuID})
		}
		if sku.Quantity < line.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"sku_id":    line.SkuID,
					"requested": line.Quantity,
					"available": sku.Quantity,
				})
		}
		snapshots = append(snapshots, LineSnapshot{
			SkuID:      sku.ID,
			ProductID:  sku.ProductID,
			CategoryID: product.CategoryID,
			Name:       product.Name + " " + sku.Name,
			Quantity:   line.Quantity,
			UnitPrice:  sku.UnitPrice(),
			Available:  sku.Quantity,
		})
	}
	return snapshots, nil
}

package enums

import "fmt"

// ProductStatus reflects whether a product can be sold.
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusUnlisted ProductStatus = "unlisted"
	ProductStatusArchived ProductStatus = "archived"
)

var validProductStatuses = []ProductStatus{
	ProductStatusActive,
	ProductStatusUnlisted,
	ProductStatusArchived,
}

// String implements fmt.Stringer.
func (p ProductStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductStatus.
func (p ProductStatus) IsValid() bool {
	for _, candidate := range validProductStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// Sellable reports whether variants of the product may be purchased.
func (p ProductStatus) Sellable() bool {
	return p == ProductStatusActive
}

// ParseProductStatus converts raw input into a ProductStatus.
func ParseProductStatus(value string) (ProductStatus, error) {
	for _, candidate := range validProductStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product status %q", value)
}

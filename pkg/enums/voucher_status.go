package enums

import "fmt"

// VoucherStatus reflects whether a voucher is currently redeemable. The
// start/end window is enforced by flipping this field, not evaluated inline.
type VoucherStatus string

const (
	VoucherStatusActive   VoucherStatus = "active"
	VoucherStatusExpired  VoucherStatus = "expired"
	VoucherStatusDisabled VoucherStatus = "disabled"
)

var validVoucherStatuses = []VoucherStatus{
	VoucherStatusActive,
	VoucherStatusExpired,
	VoucherStatusDisabled,
}

// String implements fmt.Stringer.
func (v VoucherStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VoucherStatus.
func (v VoucherStatus) IsValid() bool {
	for _, candidate := range validVoucherStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVoucherStatus converts raw input into a VoucherStatus.
func ParseVoucherStatus(value string) (VoucherStatus, error) {
	for _, candidate := range validVoucherStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher status %q", value)
}

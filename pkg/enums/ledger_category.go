package enums

import "fmt"

// LedgerCategory classifies why a ledger entry exists.
type LedgerCategory string

const (
	LedgerCategoryInitialDeposit        LedgerCategory = "initial_deposit"
	LedgerCategoryAdditionalDeposit     LedgerCategory = "additional_deposit"
	LedgerCategoryRefund                LedgerCategory = "refund"
	LedgerCategoryChangeOrderAdjustment LedgerCategory = "change_order_adjustment"
)

var validLedgerCategories = []LedgerCategory{
	LedgerCategoryInitialDeposit,
	LedgerCategoryAdditionalDeposit,
	LedgerCategoryRefund,
	LedgerCategoryChangeOrderAdjustment,
}

// String implements fmt.Stringer.
func (c LedgerCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known LedgerCategory.
func (c LedgerCategory) IsValid() bool {
	for _, candidate := range validLedgerCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseLedgerCategory converts raw input into a LedgerCategory.
func ParseLedgerCategory(value string) (LedgerCategory, error) {
	for _, candidate := range validLedgerCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger category %q", value)
}

package enums

import "fmt"

// TransactionType decides the direction a ledger entry moves money.
type TransactionType string

const (
	TransactionTypePayment         TransactionType = "payment"
	TransactionTypeRefund          TransactionType = "refund"
	TransactionTypeDepositIncrease TransactionType = "deposit_increase"
	TransactionTypeDepositDecrease TransactionType = "deposit_decrease"
)

var validTransactionTypes = []TransactionType{
	TransactionTypePayment,
	TransactionTypeRefund,
	TransactionTypeDepositIncrease,
	TransactionTypeDepositDecrease,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Sign returns +1 for money received, -1 for money returned and 0 for
// deposit adjustments, which never move the received totals.
func (t TransactionType) Sign() int {
	switch t {
	case TransactionTypePayment:
		return 1
	case TransactionTypeRefund:
		return -1
	default:
		return 0
	}
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}

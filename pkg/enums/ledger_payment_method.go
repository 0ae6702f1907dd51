package enums

import "fmt"

// PaymentMethod records how money moved for a ledger entry.
type PaymentMethod string

const (
	PaymentMethodProviderCharge PaymentMethod = "provider_charge"
	PaymentMethodCheck          PaymentMethod = "check"
	PaymentMethodWire           PaymentMethod = "wire"
	PaymentMethodCreditOnFile   PaymentMethod = "credit_on_file"
	PaymentMethodCash           PaymentMethod = "cash"
	PaymentMethodOther          PaymentMethod = "other"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodProviderCharge,
	PaymentMethodCheck,
	PaymentMethodWire,
	PaymentMethodCreditOnFile,
	PaymentMethodCash,
	PaymentMethodOther,
}

// String implements fmt.Stringer.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMethod.
func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// RequiresProof is true for every method the payment provider cannot vouch for.
func (m PaymentMethod) RequiresProof() bool {
	return m != PaymentMethodProviderCharge
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

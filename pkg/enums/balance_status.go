package enums

// BalanceStatus is the derived reconciliation outcome for an order.
type BalanceStatus string

const (
	BalanceStatusPaid      BalanceStatus = "paid"
	BalanceStatusUnderpaid BalanceStatus = "underpaid"
	BalanceStatusOverpaid  BalanceStatus = "overpaid"
	BalanceStatusPending   BalanceStatus = "pending"
)

// String implements fmt.Stringer.
func (b BalanceStatus) String() string {
	return string(b)
}

// Settled is true when confirmed money covers the deposit.
func (b BalanceStatus) Settled() bool {
	return b == BalanceStatusPaid || b == BalanceStatusOverpaid
}

package enums

import "fmt"

// LedgerEntryStatus is the lifecycle state of a ledger entry.
//
//	pending  -> approved | verified | voided
//	approved -> verified | voided
//	verified -> voided
//	voided   (terminal)
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending  LedgerEntryStatus = "pending"
	LedgerEntryStatusApproved LedgerEntryStatus = "approved"
	LedgerEntryStatusVerified LedgerEntryStatus = "verified"
	LedgerEntryStatusVoided   LedgerEntryStatus = "voided"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusApproved,
	LedgerEntryStatusVerified,
	LedgerEntryStatusVoided,
}

var ledgerEntryTransitions = map[LedgerEntryStatus][]LedgerEntryStatus{
	LedgerEntryStatusPending:  {LedgerEntryStatusApproved, LedgerEntryStatusVerified, LedgerEntryStatusVoided},
	LedgerEntryStatusApproved: {LedgerEntryStatusVerified, LedgerEntryStatusVoided},
	LedgerEntryStatusVerified: {LedgerEntryStatusVoided},
}

// String implements fmt.Stringer.
func (s LedgerEntryStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (s LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsConfirmed reports whether the entry counts toward the balance.
func (s LedgerEntryStatus) IsConfirmed() bool {
	return s == LedgerEntryStatusApproved || s == LedgerEntryStatusVerified
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s LedgerEntryStatus) CanTransitionTo(next LedgerEntryStatus) bool {
	for _, candidate := range ledgerEntryTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// LedgerEntrySourcesFor lists the statuses that may move to target.
func LedgerEntrySourcesFor(target LedgerEntryStatus) []LedgerEntryStatus {
	sources := []LedgerEntryStatus{}
	for _, from := range validLedgerEntryStatuses {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ParseLedgerEntryStatus converts raw input into a LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}

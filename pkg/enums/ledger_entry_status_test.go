package enums

import "testing"

func TestLedgerEntryStatusTransitions(t *testing.T) {
	tests := []struct {
		from LedgerEntryStatus
		to   LedgerEntryStatus
		ok   bool
	}{
		{LedgerEntryStatusPending, LedgerEntryStatusApproved, true},
		{LedgerEntryStatusPending, LedgerEntryStatusVerified, true},
		{LedgerEntryStatusPending, LedgerEntryStatusVoided, true},
		{LedgerEntryStatusApproved, LedgerEntryStatusVerified, true},
		{LedgerEntryStatusApproved, LedgerEntryStatusVoided, true},
		{LedgerEntryStatusVerified, LedgerEntryStatusVoided, true},
		{LedgerEntryStatusApproved, LedgerEntryStatusPending, false},
		{LedgerEntryStatusVerified, LedgerEntryStatusPending, false},
		{LedgerEntryStatusVerified, LedgerEntryStatusApproved, false},
		{LedgerEntryStatusVoided, LedgerEntryStatusPending, false},
		{LedgerEntryStatusVoided, LedgerEntryStatusVerified, false},
		{LedgerEntryStatusVoided, LedgerEntryStatusVoided, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
			t.Fatalf("%s -> %s: expected %v, got %v", tt.from, tt.to, tt.ok, got)
		}
	}
}

func TestLedgerEntrySourcesFor(t *testing.T) {
	sources := LedgerEntrySourcesFor(LedgerEntryStatusVoided)
	if len(sources) != 3 {
		t.Fatalf("expected 3 voidable statuses, got %v", sources)
	}
	for _, s := range sources {
		if s == LedgerEntryStatusVoided {
			t.Fatalf("voided must not be a void source")
		}
	}

	approvable := LedgerEntrySourcesFor(LedgerEntryStatusApproved)
	if len(approvable) != 1 || approvable[0] != LedgerEntryStatusPending {
		t.Fatalf("only pending entries can be approved, got %v", approvable)
	}
}

func TestLedgerEntryStatusConfirmed(t *testing.T) {
	if !LedgerEntryStatusApproved.IsConfirmed() || !LedgerEntryStatusVerified.IsConfirmed() {
		t.Fatal("approved and verified entries are confirmed")
	}
	if LedgerEntryStatusPending.IsConfirmed() || LedgerEntryStatusVoided.IsConfirmed() {
		t.Fatal("pending and voided entries are not confirmed")
	}
}

func TestParseHelpers(t *testing.T) {
	if _, err := ParseTransactionType("payment"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseTransactionType("chargeback"); err == nil {
		t.Fatal("expected unknown transaction type to fail")
	}
	if _, err := ParsePaymentMethod("wire"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseLedgerEntryStatus("archived"); err == nil {
		t.Fatal("expected unknown status to fail")
	}
	if PaymentMethodProviderCharge.RequiresProof() {
		t.Fatal("provider charges are vouched for by the provider")
	}
	if !PaymentMethodCheck.RequiresProof() {
		t.Fatal("checks require proof")
	}
	if TransactionTypeDepositIncrease.Sign() != 0 || TransactionTypeRefund.Sign() != -1 {
		t.Fatal("unexpected transaction signs")
	}
	if AuditActionFor(LedgerEntryStatusVoided) != AuditActionVoided {
		t.Fatal("voided entries audit as voided")
	}
	if ProviderModeFromLive(true) != ProviderModeLive {
		t.Fatal("livemode true maps to live")
	}
}

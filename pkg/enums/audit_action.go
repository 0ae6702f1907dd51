package enums

import "fmt"

// AuditAction names the ledger transition an audit row documents.
type AuditAction string

const (
	AuditActionCreated       AuditAction = "created"
	AuditActionApproved      AuditAction = "approved"
	AuditActionVerified      AuditAction = "verified"
	AuditActionVoided        AuditAction = "voided"
	AuditActionStatusChanged AuditAction = "status_changed"
)

var validAuditActions = []AuditAction{
	AuditActionCreated,
	AuditActionApproved,
	AuditActionVerified,
	AuditActionVoided,
	AuditActionStatusChanged,
}

// String implements fmt.Stringer.
func (a AuditAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// AuditActionFor maps the status an entry moved into onto the audit action.
func AuditActionFor(status LedgerEntryStatus) AuditAction {
	switch status {
	case LedgerEntryStatusApproved:
		return AuditActionApproved
	case LedgerEntryStatusVerified:
		return AuditActionVerified
	case LedgerEntryStatusVoided:
		return AuditActionVoided
	default:
		return AuditActionStatusChanged
	}
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

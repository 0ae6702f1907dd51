package enums

// ExternalEventStatus tracks webhook processing for a claimed provider event.
type ExternalEventStatus string

const (
	ExternalEventStatusProcessing ExternalEventStatus = "processing"
	ExternalEventStatusProcessed  ExternalEventStatus = "processed"
	ExternalEventStatusFailed     ExternalEventStatus = "failed"
)

// String implements fmt.Stringer.
func (s ExternalEventStatus) String() string {
	return string(s)
}

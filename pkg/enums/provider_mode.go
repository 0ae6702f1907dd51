package enums

// ProviderMode is the payment provider environment an event belongs to.
type ProviderMode string

const (
	ProviderModeTest ProviderMode = "test"
	ProviderModeLive ProviderMode = "live"
)

// ProviderModeFromLive converts a provider livemode flag.
func ProviderModeFromLive(live bool) ProviderMode {
	if live {
		return ProviderModeLive
	}
	return ProviderModeTest
}

// IsLive reports whether the mode is production traffic.
func (m ProviderMode) IsLive() bool {
	return m == ProviderModeLive
}

// String implements fmt.Stringer.
func (m ProviderMode) String() string {
	return string(m)
}

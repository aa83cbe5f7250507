package types

import "time"

// AddressPair holds an IPv4/IPv6 address snapshot. An empty string means
// the address was not observed (or is not monitored).
type AddressPair struct {
	IPv4 string `json:"ipv4"`
	IPv6 string `json:"ipv6"`
}

// IsEmpty reports whether neither address is set.
func (p AddressPair) IsEmpty() bool {
	return p.IPv4 == "" && p.IPv6 == ""
}

// GeoInfo holds geographic details attached to a resolved address.
// It is never persisted and exists only for notification rendering.
type GeoInfo struct {
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
}

// ChangeKind classifies the outcome of one detection cycle.
type ChangeKind string

const (
	ChangeFirstRun ChangeKind = "first_run"
	ChangeIPv4     ChangeKind = "ipv4_changed"
	ChangeIPv6     ChangeKind = "ipv6_changed"
	ChangeBoth     ChangeKind = "both_changed"
	ChangeNone     ChangeKind = "unchanged"
)

// ChangeEvent describes a detected address change. It is built once per
// cycle and consumed immediately by the notification dispatcher.
type ChangeEvent struct {
	Kind     ChangeKind
	Current  AddressPair
	Previous AddressPair
	Geo      *GeoInfo
}

// IsFirstRun reports whether this event marks the initial detection.
func (e *ChangeEvent) IsFirstRun() bool {
	return e.Kind == ChangeFirstRun
}

// PersistedState is the on-disk record owned by the state store.
type PersistedState struct {
	IPv4        string    `json:"ipv4"`
	IPv6        string    `json:"ipv6"`
	LastUpdated time.Time `json:"last_updated"`
}

// UpdateInfo describes an available release newer than the running version.
type UpdateInfo struct {
	CurrentVersion string
	LatestVersion  string
	ReleaseURL     string
	ReleaseNotes   string
}

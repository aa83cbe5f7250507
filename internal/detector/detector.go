// Package detector classifies resolved addresses against the stored state.
package detector

import "wanwatch/internal/types"

// Classify compares the current and previous address pairs and returns the
// change kind. It is a pure function: equality is exact string equality
// with empty standing for "not observed". No canonicalization happens, so
// a service switching textual forms reads as a change rather than being
// silently masked.
func Classify(current, previous types.AddressPair) types.ChangeKind {
	if previous.IsEmpty() {
		return types.ChangeFirstRun
	}

	ipv4Changed := current.IPv4 != previous.IPv4
	ipv6Changed := current.IPv6 != previous.IPv6

	switch {
	case ipv4Changed && ipv6Changed:
		return types.ChangeBoth
	case ipv4Changed:
		return types.ChangeIPv4
	case ipv6Changed:
		return types.ChangeIPv6
	default:
		return types.ChangeNone
	}
}

// NewEvent builds the per-cycle change event consumed by the dispatcher.
func NewEvent(current, previous types.AddressPair, geo *types.GeoInfo) *types.ChangeEvent {
	return &types.ChangeEvent{
		Kind:     Classify(current, previous),
		Current:  current,
		Previous: previous,
		Geo:      geo,
	}
}

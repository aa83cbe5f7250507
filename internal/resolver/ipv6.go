package resolver

import "net"

// IsGloballyRoutable reports whether addr is an IPv6 address eligible for
// change tracking. Loopback, link-local, multicast, unique-local and
// IPv4-mapped addresses are rejected, as is anything that fails to parse.
// Several public lookup services return unroutable addresses under
// misconfiguration; accepting them would produce perpetual false changes.
func IsGloballyRoutable(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	// Excludes IPv4 and IPv4-mapped literals (::ffff:192.0.2.1)
	if ip.To4() != nil {
		return false
	}
	if ip.IsUnspecified() || ip.IsLoopback() {
		return false
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
		return false
	}
	if ip.IsMulticast() {
		return false
	}
	// Unique-local fc00::/7
	if ip.IsPrivate() {
		return false
	}
	return true
}

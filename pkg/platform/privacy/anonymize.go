// Package privacy keeps client addresses and contact details out of logs in
// identifiable form.
package privacy

import (
	"net/netip"
	"strings"
)

// AnonymizeIP masks an address to its network: IPv4 to /24, IPv6 to /48.
// IPv4-mapped IPv6 addresses are treated as IPv4. Returns "unknown" for an
// empty value and "invalid" when the value is not an address.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// AnonymizeIdentifier anonymises a rate limit identifier. Identifiers are
// usually a bare client IP; composite "ip|suffix" identifiers keep their
// suffix and mask the address part.
func AnonymizeIdentifier(identifier string) string {
	head, tail, found := strings.Cut(identifier, "|")
	masked := AnonymizeIP(head)
	if !found {
		return masked
	}
	return masked + "|" + tail
}

// AnonymizeEmail keeps the domain and the first character of the local part,
// e.g. "a***@example.com". Returns "invalid" when there is no "@".
func AnonymizeEmail(email string) string {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return "invalid"
	}
	return local[:1] + "***@" + domain
}

package docloader

import (
	"fmt"
	"net"
	"net/url"
)

// ErrBlockedAddress is returned when a target host resolves to an address
// the SSRF guard refuses to dial.
var ErrBlockedAddress = fmt.Errorf("docloader: target address is blocked by the private-address policy")

// guardOptions configures a single SSRF check.
type guardOptions struct {
	allowPrivateAddress bool
}

// GuardOption configures CheckURL.
type GuardOption func(*guardOptions)

// AllowPrivateAddress bypasses the SSRF guard for this call. Used by the
// test mock loader and any caller that has already established the
// target is trusted (e.g. a loopback fixture server in tests).
func AllowPrivateAddress() GuardOption {
	return func(o *guardOptions) { o.allowPrivateAddress = true }
}

// resolveFunc is overridable in tests.
var resolveFunc = net.LookupIP

// CheckURL resolves the hostname in u and rejects it if it is loopback,
// link-local, private (RFC1918) IPv4, or ULA/link-local/multicast IPv6.
// A caller-scoped AllowPrivateAddress bypasses the check entirely.
func CheckURL(u *url.URL, opts ...GuardOption) error {
	var o guardOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.allowPrivateAddress {
		return nil
	}

	host := u.Hostname()
	if host == "localhost" {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := checkIP(ip); err != nil {
			return err
		}
		return nil
	}

	ips, err := resolveFunc(host)
	if err != nil {
		return fmt.Errorf("docloader: resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback(),
		ip.IsLinkLocalUnicast(),
		ip.IsLinkLocalMulticast(),
		ip.To4() == nil && ip.IsMulticast(),
		ip.IsPrivate(),
		ip.IsUnspecified(),
		isULA(ip):
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip.String())
	}
	return nil
}

// isULA reports whether ip is an IPv6 Unique Local Address (fc00::/7).
func isULA(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 != nil {
		return false
	}
	return len(ip) == net.IPv6len && (ip[0]&0xfe) == 0xfc
}

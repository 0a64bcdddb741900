package fetcher

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/asaskevich/govalidator"
)

var ErrInvalidURL = errors.New("invalid or non-public url")

// ValidationError explains why a URL was rejected before any request was made.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %q: %s", ErrInvalidURL, e.URL, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidURL }

// reserved ranges not covered by the netip predicates
var nonPublicPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
}

var localSuffixes = []string{".localhost", ".local", ".internal", ".localdomain", ".home.arpa"}

// ValidatePublicURL accepts well-formed http(s) URLs whose host is a public
// domain name or a globally routable IP literal. It never resolves the host.
func ValidatePublicURL(raw string) error {
	reject := func(reason string) error {
		return &ValidationError{URL: raw, Reason: reason}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return reject("empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return reject(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return reject("scheme must be http or https")
	}
	if u.User != nil {
		return reject("credentials are not allowed")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return reject("missing host")
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if !isPublicAddr(addr) {
			return reject("address is not publicly routable")
		}
		return nil
	}
	if !govalidator.IsURL(raw) || !govalidator.IsDNSName(host) {
		return reject("malformed url")
	}
	if host == "localhost" || !strings.Contains(strings.TrimSuffix(host, "."), ".") {
		return reject("host is not a public domain name")
	}
	for _, suffix := range localSuffixes {
		if strings.HasSuffix(strings.TrimSuffix(host, "."), suffix) {
			return reject("host is not a public domain name")
		}
	}
	return nil
}

func isPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return false
	}
	for _, p := range nonPublicPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

package license

import (
	"net"
	"strings"
)

// NormalizeDomain lowercases a requested domain and strips scheme, path,
// query, port and a leading www. Comparisons across the system always use
// the normalized form.
func NormalizeDomain(raw string) string {
	domain := strings.TrimSpace(strings.ToLower(raw))

	if idx := strings.Index(domain, "://"); idx != -1 {
		domain = domain[idx+3:]
	}
	if idx := strings.IndexAny(domain, "/?#"); idx != -1 {
		domain = domain[:idx]
	}
	// Strip a port, but leave IPv6 literals intact
	if !strings.HasPrefix(domain, "[") {
		if host, _, err := net.SplitHostPort(domain); err == nil {
			domain = host
		}
	}
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimSuffix(domain, ".")
}

// HasHTTPScheme reports whether the raw value carried an explicit plain-http
// scheme
func HasHTTPScheme(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), "http://")
}

// IsIPLiteral reports whether the normalized domain is an IPv4/IPv6 address
func IsIPLiteral(domain string) bool {
	trimmed := strings.Trim(domain, "[]")
	return net.ParseIP(trimmed) != nil
}

// IsLocalhost reports whether the normalized domain refers to the local host
func IsLocalhost(domain string) bool {
	switch domain {
	case "localhost", "127.0.0.1", "::1", "[::1]":
		return true
	}
	return strings.HasSuffix(domain, ".localhost")
}

// IsWildcard reports whether the domain is a wildcard pattern
func IsWildcard(domain string) bool {
	return strings.HasPrefix(domain, "*.")
}

// WildcardMatches reports whether a bound wildcard pattern covers the domain.
// The pattern *.example.com matches a.example.com and example.com itself.
func WildcardMatches(pattern, domain string) bool {
	if !IsWildcard(pattern) {
		return false
	}
	base := strings.TrimPrefix(pattern, "*.")
	return domain == base || strings.HasSuffix(domain, "."+base)
}

// IsSubdomainOf reports whether child sits strictly under parent
func IsSubdomainOf(child, parent string) bool {
	return child != parent && strings.HasSuffix(child, "."+parent)
}

package license

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"example.com", "example.com"},
		{"EXAMPLE.COM", "example.com"},
		{"  example.com  ", "example.com"},
		{"https://example.com", "example.com"},
		{"http://example.com/path/to/page", "example.com"},
		{"https://example.com?ref=1", "example.com"},
		{"example.com#anchor", "example.com"},
		{"example.com:8080", "example.com"},
		{"www.example.com", "example.com"},
		{"https://www.example.com:443/shop", "example.com"},
		{"example.com.", "example.com"},
		{"sub.example.co.uk", "sub.example.co.uk"},
		{"*.example.com", "*.example.com"},
		{"localhost:3000", "localhost"},
		{"127.0.0.1", "127.0.0.1"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeDomain(tc.raw), "raw %q", tc.raw)
	}
}

func TestHasHTTPScheme(t *testing.T) {
	assert.True(t, HasHTTPScheme("http://example.com"))
	assert.True(t, HasHTTPScheme("  HTTP://example.com"))
	assert.False(t, HasHTTPScheme("https://example.com"))
	assert.False(t, HasHTTPScheme("example.com"))
}

func TestIsIPLiteral(t *testing.T) {
	assert.True(t, IsIPLiteral("192.168.1.10"))
	assert.True(t, IsIPLiteral("::1"))
	assert.True(t, IsIPLiteral("[2001:db8::1]"))
	assert.False(t, IsIPLiteral("example.com"))
	assert.False(t, IsIPLiteral("10.0.0.example.com"))
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, IsLocalhost("localhost"))
	assert.True(t, IsLocalhost("127.0.0.1"))
	assert.True(t, IsLocalhost("::1"))
	assert.True(t, IsLocalhost("myapp.localhost"))
	assert.False(t, IsLocalhost("localhost.example.com"))
	assert.False(t, IsLocalhost("example.com"))
}

func TestIsWildcard(t *testing.T) {
	assert.True(t, IsWildcard("*.example.com"))
	assert.False(t, IsWildcard("example.com"))
	assert.False(t, IsWildcard("a.*.example.com"))
}

func TestWildcardMatches(t *testing.T) {
	assert.True(t, WildcardMatches("*.example.com", "app.example.com"))
	assert.True(t, WildcardMatches("*.example.com", "deep.app.example.com"))
	assert.True(t, WildcardMatches("*.example.com", "example.com"))
	assert.False(t, WildcardMatches("*.example.com", "example.org"))
	assert.False(t, WildcardMatches("*.example.com", "notexample.com"))
	assert.False(t, WildcardMatches("example.com", "app.example.com"))
}

func TestIsSubdomainOf(t *testing.T) {
	assert.True(t, IsSubdomainOf("app.example.com", "example.com"))
	assert.True(t, IsSubdomainOf("a.b.example.com", "example.com"))
	assert.False(t, IsSubdomainOf("example.com", "example.com"))
	assert.False(t, IsSubdomainOf("notexample.com", "example.com"))
	assert.False(t, IsSubdomainOf("example.com", "app.example.com"))
}

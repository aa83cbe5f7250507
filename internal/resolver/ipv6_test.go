package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGloballyRoutable(t *testing.T) {
	testCases := []struct {
		addr string
		want bool
	}{
		// Globally routable
		{"2001:4860:4860::8888", true},
		{"2606:4700:4700::1111", true},
		{"2001:db8::8a2e:370:7334", true},
		{"2001:0db8:85a3:0000:0000:8a2e:0370:7334", true},

		// Loopback and unspecified
		{"::1", false},
		{"::", false},

		// Link-local
		{"fe80::1", false},
		{"fe80::dead:beef:cafe", false},

		// Multicast
		{"ff02::1", false},
		{"ff00::1", false},
		{"ff01::1", false},

		// Unique-local
		{"fc00::1", false},
		{"fd00::1", false},

		// IPv4 and IPv4-mapped
		{"192.168.1.1", false},
		{"::ffff:192.0.2.1", false},

		// Malformed
		{"not:an:ipv6:address", false},
		{"12345", false},
		{"", false},
		{"2001:0db8:85a3:0000:0000:8a2e:0370:7334:extra", false},
	}

	for _, tc := range testCases {
		t.Run(tc.addr, func(t *testing.T) {
			assert.Equal(t, tc.want, IsGloballyRoutable(tc.addr))
		})
	}
}

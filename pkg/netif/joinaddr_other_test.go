//go:build !windows

package netif

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinAddressUsesInterfaceName(t *testing.T) {
	got := joinAddress(netip.MustParseAddr("fe80::1"), Interface{Name: "eth0", Index: 2})

	assert.Equal(t, "fe80::1%eth0", got)
}

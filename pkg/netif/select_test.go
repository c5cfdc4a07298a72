package netif

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInterfaces() []Interface {
	return []Interface{
		{
			Name:     "lo",
			Index:    1,
			Internal: true,
			Addrs:    []netip.Addr{netip.MustParseAddr("127.0.0.1"), netip.MustParseAddr("::1")},
		},
		{
			Name:  "eth0",
			Index: 2,
			Addrs: []netip.Addr{
				netip.MustParseAddr("192.168.1.10"),
				netip.MustParseAddr("fe80::1"),
				netip.MustParseAddr("2001:db8::10"),
			},
		},
		{
			Name:  "wlan0",
			Index: 3,
			Addrs: []netip.Addr{
				netip.MustParseAddr("169.254.3.4"),
				netip.MustParseAddr("::ffff:10.0.0.7"),
			},
		},
		{
			Name:  "tun0",
			Index: 0,
			Addrs: []netip.Addr{netip.MustParseAddr("fe80::9")},
		},
	}
}

func TestSelectIPv4(t *testing.T) {
	got := Select(testInterfaces(), IPv4)
	require.Len(t, got, 2)

	assert.Equal(t, "eth0", got[0].Name)
	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, netip.MustParseAddr("192.168.1.10"), got[0].Address)
	assert.Equal(t, "192.168.1.10", got[0].JoinAddress)
	assert.Equal(t, IPv4, got[0].Family)
	assert.Zero(t, got[0].ScopeID)

	// mapped addresses are treated as IPv4
	assert.Equal(t, "wlan0", got[1].Name)
	assert.Equal(t, "10.0.0.7", got[1].JoinAddress)
}

func TestSelectIPv6LinkLocalOnly(t *testing.T) {
	got := Select(testInterfaces(), IPv6)
	require.Len(t, got, 1)

	assert.Equal(t, "eth0", got[0].Name)
	assert.Equal(t, netip.MustParseAddr("fe80::1"), got[0].Address)
	assert.Equal(t, uint32(2), got[0].ScopeID)
	assert.Equal(t, IPv6, got[0].Family)
	assert.Equal(t, joinAddress(netip.MustParseAddr("fe80::1"), Interface{Name: "eth0", Index: 2}), got[0].JoinAddress)
}

func TestSelectEmpty(t *testing.T) {
	got := Select(nil, IPv4)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	got = Select([]Interface{{Name: "eth1", Index: 4, Addrs: []netip.Addr{{}}}}, IPv6)
	assert.Empty(t, got)
}

func TestFilterByName(t *testing.T) {
	ifaces := testInterfaces()

	assert.Len(t, FilterByName(ifaces, nil), len(ifaces))
	assert.Empty(t, FilterByName(ifaces, []string{}))

	got := FilterByName(ifaces, []string{" wlan0", "missing"})
	require.Len(t, got, 1)
	assert.Equal(t, "wlan0", got[0].Name)
}

func TestIndexesDeduplicates(t *testing.T) {
	candidates := []Candidate{{Index: 2}, {Index: 3}, {Index: 2}}

	assert.Equal(t, []int{2, 3}, Indexes(candidates))
}

func TestFamilyString(t *testing.T) {
	assert.Equal(t, "IPv4", IPv4.String())
	assert.Equal(t, "IPv6", IPv6.String())
	assert.Equal(t, "unknown", Family(0).String())
}

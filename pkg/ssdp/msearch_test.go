package ssdp

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMSearchIsByteExact(t *testing.T) {
	got := BuildMSearch(IPv4Host, SearchAll, 2, "linux/1.0 UPnP/1.1 ssdpradar/1.0")

	want := "M-SEARCH * HTTP/1.1\r\n" +
		"HOST: 239.255.255.250:1900\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: ssdp:all\r\n" +
		"USER-AGENT: linux/1.0 UPnP/1.1 ssdpradar/1.0\r\n" +
		"\r\n"

	assert.Equal(t, want, string(got))
}

func TestBuildMSearchIPv6AndDefaultMX(t *testing.T) {
	got := string(BuildMSearch(IPv6Host, RootDevice, 0, "ua"))

	assert.Contains(t, got, "HOST: [FF02::C]:1900\r\n")
	assert.Contains(t, got, "MX: 2\r\n")
	assert.Contains(t, got, "ST: upnp:rootdevice\r\n")
}

func TestDefaultUserAgent(t *testing.T) {
	assert.Equal(t, runtime.GOOS+"/1.2.3 UPnP/1.1 ssdpradar/1.2.3", DefaultUserAgent("1.2.3"))
	assert.Equal(t, runtime.GOOS+"/dev UPnP/1.1 ssdpradar/dev", DefaultUserAgent(""))
}

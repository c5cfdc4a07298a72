package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ssdp.SearchAll, cfg.SearchTarget)
	assert.Equal(t, 10*time.Second, cfg.MSearchInterval.Duration())
	assert.Equal(t, 30*time.Second, cfg.DeviceCleanupInterval.Duration())
	assert.Equal(t, models.DetailBasic, cfg.DetailLevel)
	assert.Equal(t, ssdp.DefaultMX, cfg.MX)
	assert.Equal(t, 2, cfg.MulticastTTL)
	assert.Contains(t, cfg.UserAgent, "UPnP/1.1")
	assert.False(t, cfg.IncludeIPv6)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"negative interval", Config{MSearchInterval: models.Duration(-time.Second)}, errInvalidInterval},
		{"negative cleanup", Config{DeviceCleanupInterval: models.Duration(-time.Second)}, errInvalidInterval},
		{"detail level", Config{DetailLevel: models.DetailLevel(9)}, errInvalidDetailLevel},
		{"mx too large", Config{MX: 121}, errInvalidMX},
		{"mx negative", Config{MX: -1}, errInvalidMX},
		{"ttl", Config{MulticastTTL: 300}, errInvalidTTL},
		{"multi-line target", Config{SearchTarget: "ssdp:all\r\nX-Evil: 1"}, errBadSearchTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, tt.cfg.Validate(), tt.err)
		})
	}
}

func TestConfigFromJSON(t *testing.T) {
	var cfg Config

	require.NoError(t, json.Unmarshal([]byte(`{
		"search_target": "urn:schemas-upnp-org:device:MediaRenderer:1",
		"msearch_interval": "1m",
		"device_cleanup_interval": 15000000000,
		"include_ipv6": true,
		"detail_level": "services",
		"network_interfaces": ["en0"],
		"mx": 5
	}`), &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Minute, cfg.MSearchInterval.Duration())
	assert.Equal(t, 15*time.Second, cfg.DeviceCleanupInterval.Duration())
	assert.Equal(t, models.DetailServices, cfg.DetailLevel)
	assert.Equal(t, []string{"en0"}, cfg.NetworkInterfaces)
	assert.Equal(t, 5, cfg.MX)

	opts := cfg.transportOptions()
	assert.True(t, opts.IncludeIPv6)
	assert.Equal(t, 5, opts.MX)
	assert.Equal(t, cfg.UserAgent, opts.UserAgent)
}

func TestConfigExpiry(t *testing.T) {
	cfg := Config{MSearchInterval: models.Duration(10 * time.Second)}
	now := time.Unix(1700000000, 0)

	assert.Equal(t, now.Add(1800*time.Second), cfg.expiry(now, 1800))
	assert.Equal(t, now.Add(30*time.Second), cfg.expiry(now, 0))
	assert.Equal(t, now.Add(30*time.Second), cfg.expiry(now, -5))
}

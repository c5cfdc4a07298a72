/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
	"github.com/carverauto/ssdpradar/pkg/transport"
	"github.com/carverauto/ssdpradar/pkg/version"
)

const (
	defaultMSearchInterval       = 10 * time.Second
	defaultDeviceCleanupInterval = 30 * time.Second
	defaultMulticastTTL          = 2

	// expiryIntervals is how many search intervals a device without
	// max-age survives unseen.
	expiryIntervals = 3

	maxMX  = 120
	maxTTL = 255
)

// RawMessageHook receives every datagram before it is parsed.
type RawMessageHook func(data []byte, src netip.AddrPort, socket transport.SocketID)

// Config configures a DeviceRegistry.
type Config struct {
	SearchTarget          string             `json:"search_target"`
	MSearchInterval       models.Duration    `json:"msearch_interval"`
	DeviceCleanupInterval models.Duration    `json:"device_cleanup_interval"`
	IncludeIPv6           bool               `json:"include_ipv6"`
	DetailLevel           models.DetailLevel `json:"detail_level"`
	NetworkInterfaces     []string           `json:"network_interfaces,omitempty"`
	MX                    int                `json:"mx"`
	UserAgent             string             `json:"user_agent,omitempty"`
	MulticastTTL          int                `json:"multicast_ttl"`

	// OnRawMessage, when set, sees every datagram for diagnostics.
	OnRawMessage RawMessageHook `json:"-"`
}

// DefaultConfig returns the configuration used for unset fields.
func DefaultConfig() Config {
	return Config{
		SearchTarget:          ssdp.SearchAll,
		MSearchInterval:       models.Duration(defaultMSearchInterval),
		DeviceCleanupInterval: models.Duration(defaultDeviceCleanupInterval),
		DetailLevel:           models.DetailBasic,
		MX:                    ssdp.DefaultMX,
		UserAgent:             ssdp.DefaultUserAgent(version.GetVersion()),
		MulticastTTL:          defaultMulticastTTL,
	}
}

// ApplyDefaults fills zero-valued fields from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()

	if strings.TrimSpace(c.SearchTarget) == "" {
		c.SearchTarget = def.SearchTarget
	}

	if c.MSearchInterval == 0 {
		c.MSearchInterval = def.MSearchInterval
	}

	if c.DeviceCleanupInterval == 0 {
		c.DeviceCleanupInterval = def.DeviceCleanupInterval
	}

	if c.MX == 0 {
		c.MX = def.MX
	}

	if c.UserAgent == "" {
		c.UserAgent = def.UserAgent
	}

	if c.MulticastTTL == 0 {
		c.MulticastTTL = def.MulticastTTL
	}
}

// Validate implements config.Validator. Defaults are applied first.
func (c *Config) Validate() error {
	c.ApplyDefaults()

	if c.MSearchInterval < 0 {
		return fmt.Errorf("msearch_interval: %w", errInvalidInterval)
	}

	if c.DeviceCleanupInterval < 0 {
		return fmt.Errorf("device_cleanup_interval: %w", errInvalidInterval)
	}

	if !c.DetailLevel.Valid() {
		return fmt.Errorf("%w: %d", errInvalidDetailLevel, int(c.DetailLevel))
	}

	if c.MX < 1 || c.MX > maxMX {
		return fmt.Errorf("%w: %d", errInvalidMX, c.MX)
	}

	if c.MulticastTTL < 1 || c.MulticastTTL > maxTTL {
		return fmt.Errorf("%w: %d", errInvalidTTL, c.MulticastTTL)
	}

	if strings.ContainsAny(c.SearchTarget, "\r\n") {
		return errBadSearchTarget
	}

	return nil
}

func (c *Config) transportOptions() transport.Options {
	return transport.Options{
		IncludeIPv6:    c.IncludeIPv6,
		InterfaceNames: c.NetworkInterfaces,
		MX:             c.MX,
		UserAgent:      c.UserAgent,
		MulticastTTL:   c.MulticastTTL,
	}
}

// expiry returns the deadline for a device last seen at now.
func (c *Config) expiry(now time.Time, maxAge int) time.Time {
	if maxAge > 0 {
		return now.Add(time.Duration(maxAge) * time.Second)
	}

	return now.Add(expiryIntervals * time.Duration(c.MSearchInterval))
}

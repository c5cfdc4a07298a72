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

// Package ssdp holds the SSDP wire format: datagram parsing, M-SEARCH
// construction and the identity rules shared by the registry.
package ssdp

import (
	"fmt"
	"net"
	"runtime"
	"strconv"
)

const (
	// Port is the well-known SSDP port.
	Port = 1900

	// IPv4Group is the administratively scoped SSDP multicast group.
	IPv4Group = "239.255.255.250"
	// IPv6Group is the link-local SSDP multicast group.
	IPv6Group = "FF02::C"

	// SearchAll matches every device and service.
	SearchAll = "ssdp:all"
	// RootDevice is the target advertised once per root device.
	RootDevice = "upnp:rootdevice"

	MethodNotify  = "NOTIFY"
	MethodMSearch = "M-SEARCH"

	discoverMAN = `"ssdp:discover"`
	productName = "ssdpradar"

	// DefaultMX is the response window requested in M-SEARCH.
	DefaultMX = 2
)

var (
	// IPv4Host is the HOST header value and destination for IPv4 searches.
	IPv4Host = net.JoinHostPort(IPv4Group, strconv.Itoa(Port))
	// IPv6Host is the HOST header value and destination for IPv6 searches.
	IPv6Host = net.JoinHostPort(IPv6Group, strconv.Itoa(Port))
)

// DefaultUserAgent returns the USER-AGENT sent with searches, in the
// "OS/version UPnP/1.1 product/version" form UPnP 1.1 asks for.
func DefaultUserAgent(version string) string {
	if version == "" {
		version = "dev"
	}

	return fmt.Sprintf("%s/%s UPnP/1.1 %s/%s", runtime.GOOS, version, productName, version)
}

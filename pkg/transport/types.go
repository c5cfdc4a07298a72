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

// Package transport owns the UDP sockets used for SSDP: the multicast
// listeners on port 1900 and the ephemeral search sockets that send
// M-SEARCH and receive unicast responses.
package transport

import (
	"net/netip"

	"github.com/carverauto/ssdpradar/pkg/netif"
)

// SocketID names one of the managed sockets.
type SocketID string

const (
	NotifyV4 SocketID = "notify-v4"
	SearchV4 SocketID = "search-v4"
	NotifyV6 SocketID = "notify-v6"
	SearchV6 SocketID = "search-v6"
)

// Family returns the address family the socket serves.
func (id SocketID) Family() netif.Family {
	if id == NotifyV6 || id == SearchV6 {
		return netif.IPv6
	}

	return netif.IPv4
}

// Options configures Open.
type Options struct {
	// IncludeIPv6 adds the notify-v6 and search-v6 sockets.
	IncludeIPv6 bool
	// Interfaces overrides OS interface enumeration when non-nil.
	Interfaces []netif.Interface
	// InterfaceNames restricts the interfaces used to these names when non-nil.
	InterfaceNames []string
	// MX is the MX header of outgoing searches.
	MX int
	// UserAgent is the USER-AGENT header of outgoing searches.
	UserAgent string
	// MulticastTTL is the IPv4 TTL and IPv6 hop limit of outgoing datagrams.
	MulticastTTL int
}

// MessageHandler receives every datagram read from a socket. data is owned
// by the handler.
type MessageHandler func(data []byte, src netip.AddrPort, socket SocketID)

// ErrorHandler receives socket setup and read errors.
type ErrorHandler func(err error, socket SocketID)

// CloseResult reports the outcome of closing one socket.
type CloseResult struct {
	Socket SocketID
	Err    error
}

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

// Package netif picks the local interfaces and addresses that SSDP multicast
// sockets should join and send on.
package netif

import (
	"net/netip"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return "unknown"
	}
}

// Interface is one OS interface with the addresses assigned to it.
type Interface struct {
	Name     string       `json:"name"`
	Index    int          `json:"index"`
	Internal bool         `json:"internal"`
	Addrs    []netip.Addr `json:"addrs"`
}

// Candidate is an address on an interface that is usable for SSDP.
type Candidate struct {
	Name    string
	Index   int
	Address netip.Addr
	Family  Family
	// ScopeID is the IPv6 zone index, zero for IPv4.
	ScopeID uint32
	// JoinAddress identifies the interface when joining a multicast group.
	JoinAddress string
}

// Select filters ifaces down to the addresses of the requested family that
// can take part in SSDP. Loopback interfaces, APIPA IPv4 addresses and IPv6
// addresses outside fe80::/10 are skipped. It never returns nil.
func Select(ifaces []Interface, family Family) []Candidate {
	out := make([]Candidate, 0)

	for _, iface := range ifaces {
		if iface.Internal {
			continue
		}

		for _, addr := range iface.Addrs {
			addr = addr.Unmap()
			if !addr.IsValid() {
				continue
			}

			switch {
			case family == IPv4 && addr.Is4():
				if isAPIPA(addr) || addr.IsLoopback() {
					continue
				}

				out = append(out, Candidate{
					Name:        iface.Name,
					Index:       iface.Index,
					Address:     addr,
					Family:      IPv4,
					JoinAddress: addr.String(),
				})
			case family == IPv6 && addr.Is6():
				scope := scopeID(iface)
				if !addr.IsLinkLocalUnicast() || scope == 0 {
					continue
				}

				out = append(out, Candidate{
					Name:        iface.Name,
					Index:       iface.Index,
					Address:     addr.WithZone(""),
					Family:      IPv6,
					ScopeID:     scope,
					JoinAddress: joinAddress(addr.WithZone(""), iface),
				})
			}
		}
	}

	return out
}

// FilterByName keeps the interfaces whose names appear in names. A nil names
// slice returns ifaces unchanged.
func FilterByName(ifaces []Interface, names []string) []Interface {
	if names == nil {
		return ifaces
	}

	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		wanted[strings.TrimSpace(name)] = struct{}{}
	}

	out := make([]Interface, 0, len(names))

	for _, iface := range ifaces {
		if _, ok := wanted[iface.Name]; ok {
			out = append(out, iface)
		}
	}

	return out
}

// Indexes returns the distinct interface indexes of the candidates in
// first-seen order.
func Indexes(candidates []Candidate) []int {
	seen := make(map[int]struct{}, len(candidates))
	out := make([]int, 0, len(candidates))

	for _, c := range candidates {
		if _, ok := seen[c.Index]; ok {
			continue
		}

		seen[c.Index] = struct{}{}
		out = append(out, c.Index)
	}

	return out
}

func isAPIPA(addr netip.Addr) bool {
	b := addr.As4()

	return b[0] == 169 && b[1] == 254
}

// scopeID returns the zone index of a link-local address on iface. Addresses
// read from the OS carry no zone, so the interface index stands in for it.
func scopeID(iface Interface) uint32 {
	if iface.Index <= 0 {
		return 0
	}

	return uint32(iface.Index)
}

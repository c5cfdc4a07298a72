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

package netif

import (
	"fmt"
	"net"
	"net/netip"
)

// System lists the interfaces of this host that are up and multicast
// capable. Loopback interfaces are returned marked Internal.
func System() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	out := make([]Interface, 0, len(ifaces))

	for i := range ifaces {
		ifi := &ifaces[i]

		if ifi.Flags&net.FlagUp == 0 {
			continue
		}

		internal := ifi.Flags&net.FlagLoopback != 0
		if !internal && ifi.Flags&net.FlagMulticast == 0 {
			continue
		}

		addrs, err := ifi.Addrs()
		if err != nil {
			continue
		}

		out = append(out, Interface{
			Name:     ifi.Name,
			Index:    ifi.Index,
			Internal: internal,
			Addrs:    toAddrs(addrs),
		})
	}

	return out, nil
}

func toAddrs(addrs []net.Addr) []netip.Addr {
	out := make([]netip.Addr, 0, len(addrs))

	for _, a := range addrs {
		var ip net.IP

		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		default:
			continue
		}

		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}

		out = append(out, addr.Unmap())
	}

	return out
}

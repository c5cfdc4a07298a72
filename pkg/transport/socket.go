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

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/netif"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
)

// maxDatagramSize covers any UDP payload.
const maxDatagramSize = 65535

var (
	ipv4Group = net.ParseIP(ssdp.IPv4Group)
	ipv6Group = net.ParseIP(ssdp.IPv6Group)
)

// socket is one bound UDP endpoint and the interfaces it joined.
type socket struct {
	id     SocketID
	conn   *net.UDPConn
	v4     *ipv4.PacketConn
	v6     *ipv6.PacketConn
	ifaces []*net.Interface
	group  *net.UDPAddr
	logger logger.Logger

	sendMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func bindAddress(id SocketID) (network, address string, reuse bool) {
	switch id {
	case NotifyV4:
		return "udp4", fmt.Sprintf("0.0.0.0:%d", ssdp.Port), true
	case SearchV4:
		return "udp4", "0.0.0.0:0", false
	case NotifyV6:
		return "udp6", fmt.Sprintf("[::]:%d", ssdp.Port), true
	case SearchV6:
		return "udp6", "[::]:0", false
	}

	return "", "", false
}

// openSocket binds the socket for id and joins the SSDP group on every
// candidate interface. It fails if no join succeeds.
func openSocket(ctx context.Context, id SocketID, candidates []netif.Candidate, ttl int, log logger.Logger) (*socket, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoInterfaces, id.Family())
	}

	network, address, reuse := bindAddress(id)
	if network == "" {
		return nil, fmt.Errorf("%w: %s", errUnsupportedFamily, id)
	}

	var lc net.ListenConfig
	if reuse {
		lc.Control = reuseControl
	}

	pc, err := lc.ListenPacket(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s on %s: %w", id, address, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()

		return nil, fmt.Errorf("%w: %T", errUnsupportedFamily, pc)
	}

	s := &socket{
		id:     id,
		conn:   conn,
		logger: log,
	}

	if id.Family() == netif.IPv6 {
		s.v6 = ipv6.NewPacketConn(conn)
		s.group = &net.UDPAddr{IP: ipv6Group, Port: ssdp.Port}
	} else {
		s.v4 = ipv4.NewPacketConn(conn)
		s.group = &net.UDPAddr{IP: ipv4Group, Port: ssdp.Port}
	}

	if err := s.join(candidates); err != nil {
		_ = conn.Close()

		return nil, err
	}

	s.configure(ttl)

	return s, nil
}

func (s *socket) join(candidates []netif.Candidate) error {
	names := make(map[int]string, len(candidates))
	for _, c := range candidates {
		names[c.Index] = c.Name
	}

	var errs []error

	for _, idx := range netif.Indexes(candidates) {
		ifi, err := net.InterfaceByIndex(idx)
		if err != nil {
			ifi = &net.Interface{Index: idx, Name: names[idx]}
		}

		group := &net.UDPAddr{IP: s.group.IP}

		if s.v6 != nil {
			err = s.v6.JoinGroup(ifi, group)
		} else {
			err = s.v4.JoinGroup(ifi, group)
		}

		if err != nil {
			s.logger.Debug().Err(err).Str("socket", string(s.id)).Str("interface", ifi.Name).
				Msg("Failed to join SSDP multicast group")

			errs = append(errs, fmt.Errorf("%s: %w", ifi.Name, err))

			continue
		}

		s.ifaces = append(s.ifaces, ifi)
	}

	if len(s.ifaces) == 0 {
		return fmt.Errorf("%w (%s): %w", ErrJoinFailed, s.id, errors.Join(errs...))
	}

	return nil
}

// configure applies TTL and loopback settings. Failures only degrade
// reach, so they are logged.
func (s *socket) configure(ttl int) {
	var err error

	if s.v6 != nil {
		if err = s.v6.SetMulticastHopLimit(ttl); err == nil {
			err = s.v6.SetMulticastLoopback(true)
		}
	} else {
		if err = s.v4.SetMulticastTTL(ttl); err == nil {
			err = s.v4.SetMulticastLoopback(true)
		}
	}

	if err != nil {
		s.logger.Warn().Err(err).Str("socket", string(s.id)).Msg("Failed to configure multicast options")
	}
}

// send writes payload to the group once per joined interface. It succeeds
// if at least one write does.
func (s *socket) send(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var (
		errs []error
		sent int
	)

	for _, ifi := range s.ifaces {
		var err error

		if s.v6 != nil {
			if err = s.v6.SetMulticastInterface(ifi); err == nil {
				_, err = s.v6.WriteTo(payload, nil, s.group)
			}
		} else {
			if err = s.v4.SetMulticastInterface(ifi); err == nil {
				_, err = s.v4.WriteTo(payload, nil, s.group)
			}
		}

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ifi.Name, err))

			continue
		}

		sent++
	}

	if sent == 0 {
		return fmt.Errorf("%w (%s): %w", ErrSendFailed, s.id, errors.Join(errs...))
	}

	if len(errs) > 0 {
		s.logger.Debug().Err(errors.Join(errs...)).Str("socket", string(s.id)).
			Int("sent", sent).Msg("M-SEARCH not sent on every interface")
	}

	return nil
}

// readLoop delivers datagrams until the socket is closed.
func (s *socket) readLoop(onMessage MessageHandler, onError ErrorHandler) {
	buf := make([]byte, maxDatagramSize)

	for {
		n, src, err := s.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}

			onError(fmt.Errorf("read on %s: %w", s.id, err), s.id)

			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		onMessage(data, src, s.id)
	}
}

func (s *socket) close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.conn.Close()
	})

	return s.closeErr
}

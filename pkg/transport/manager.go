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
	"net/netip"
	"sort"
	"sync"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/netif"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
	"github.com/carverauto/ssdpradar/pkg/version"
)

const defaultMulticastTTL = 2

// Manager owns the SSDP sockets and their read goroutines.
type Manager struct {
	opts      Options
	logger    logger.Logger
	onMessage MessageHandler
	onError   ErrorHandler

	// dial creates one socket; tests replace it.
	dial func(ctx context.Context, id SocketID, candidates []netif.Candidate, ttl int, log logger.Logger) (*socket, error)

	mu      sync.RWMutex
	sockets map[SocketID]*socket
	wg      sync.WaitGroup
}

func newManager(opts Options, onMessage MessageHandler, onError ErrorHandler, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NewTestLogger()
	}

	if opts.MX <= 0 {
		opts.MX = ssdp.DefaultMX
	}

	if opts.UserAgent == "" {
		opts.UserAgent = ssdp.DefaultUserAgent(version.GetVersion())
	}

	if opts.MulticastTTL <= 0 {
		opts.MulticastTTL = defaultMulticastTTL
	}

	return &Manager{
		opts:      opts,
		logger:    log,
		onMessage: onMessage,
		onError:   onError,
		dial:      openSocket,
		sockets:   make(map[SocketID]*socket),
	}
}

// Open creates the notify and search sockets for IPv4, plus IPv6 when
// requested, and starts reading from them. A socket that cannot be created
// is reported through onError and skipped. Open fails with ErrNoSockets
// only when no IPv4 socket could be created.
func Open(
	ctx context.Context, opts Options, onMessage MessageHandler, onError ErrorHandler, log logger.Logger,
) (*Manager, error) {
	m := newManager(opts, onMessage, onError, log)

	if err := m.open(ctx); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Manager) open(ctx context.Context) error {
	opts := m.opts

	ifaces := opts.Interfaces
	if ifaces == nil {
		sys, err := netif.System()
		if err != nil {
			m.logger.Warn().Err(err).Msg("Failed to enumerate network interfaces")
		}

		ifaces = sys
	}

	ifaces = netif.FilterByName(ifaces, opts.InterfaceNames)

	ids := []SocketID{NotifyV4, SearchV4}
	if opts.IncludeIPv6 {
		ids = append(ids, NotifyV6, SearchV6)
	}

	var failures []error

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			m.CloseAll()

			return err
		}

		candidates := netif.Select(ifaces, id.Family())

		s, err := m.dial(ctx, id, candidates, opts.MulticastTTL, m.logger)
		if err != nil {
			m.logger.Warn().Err(err).Str("socket", string(id)).Msg("Failed to create SSDP socket")
			m.reportError(err, id)

			failures = append(failures, err)

			continue
		}

		m.logger.Info().Str("socket", string(id)).Str("local_addr", s.conn.LocalAddr().String()).
			Int("interfaces", len(s.ifaces)).Msg("SSDP socket ready")

		m.add(s)
	}

	if !m.hasFamily(netif.IPv4) {
		m.CloseAll()

		return fmt.Errorf("%w: %w", ErrNoSockets, errors.Join(failures...))
	}

	return nil
}

func (m *Manager) add(s *socket) {
	m.mu.Lock()
	m.sockets[s.id] = s
	m.mu.Unlock()

	m.wg.Add(1)

	go func() {
		defer m.wg.Done()

		s.readLoop(m.deliver, m.reportError)
	}()
}

func (m *Manager) deliver(data []byte, src netip.AddrPort, id SocketID) {
	if m.onMessage != nil {
		m.onMessage(data, src, id)
	}
}

func (m *Manager) reportError(err error, id SocketID) {
	if m.onError != nil {
		m.onError(err, id)
	}
}

func (m *Manager) get(id SocketID) *socket {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sockets[id]
}

func (m *Manager) hasFamily(family netif.Family) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id := range m.sockets {
		if id.Family() == family {
			return true
		}
	}

	return false
}

// Sockets lists the sockets currently open, sorted by id.
func (m *Manager) Sockets() []SocketID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]SocketID, 0, len(m.sockets))
	for id := range m.sockets {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// SendMSearch sends an M-SEARCH for searchTarget from the search socket of
// the given family.
func (m *Manager) SendMSearch(ctx context.Context, searchTarget string, family netif.Family) error {
	var (
		id   SocketID
		host string
	)

	switch family {
	case netif.IPv4:
		id, host = SearchV4, ssdp.IPv4Host
	case netif.IPv6:
		id, host = SearchV6, ssdp.IPv6Host
	default:
		return fmt.Errorf("%w: %d", errUnsupportedFamily, family)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s := m.get(id)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSocketUnavailable, id)
	}

	payload := ssdp.BuildMSearch(host, searchTarget, m.opts.MX, m.opts.UserAgent)

	if err := s.send(payload); err != nil {
		return err
	}

	m.logger.Debug().Str("socket", string(id)).Str("st", searchTarget).Msg("Sent M-SEARCH")

	return nil
}

// CloseAll closes every socket and waits for the read goroutines to exit.
// Individual close failures are returned, never fatal.
func (m *Manager) CloseAll() []CloseResult {
	m.mu.Lock()
	sockets := make([]*socket, 0, len(m.sockets))

	for _, s := range m.sockets {
		sockets = append(sockets, s)
	}

	m.sockets = make(map[SocketID]*socket)
	m.mu.Unlock()

	sort.Slice(sockets, func(i, j int) bool { return sockets[i].id < sockets[j].id })

	results := make([]CloseResult, 0, len(sockets))

	for _, s := range sockets {
		err := s.close()
		if err != nil {
			m.logger.Warn().Err(err).Str("socket", string(s.id)).Msg("Failed to close SSDP socket")
		}

		results = append(results, CloseResult{Socket: s.id, Err: err})
	}

	m.wg.Wait()

	return results
}

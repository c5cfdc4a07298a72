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

// Package registry tracks the SSDP devices announcing themselves on the
// local network. It drives periodic searches, admits NOTIFY and search
// responses into an expiring map keyed by UDN, and reports changes to
// subscribed listeners.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/netif"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
)

const tracerName = "ssdpradar.registry"

// DeviceRegistry is the live map of reachable SSDP root devices.
type DeviceRegistry struct {
	cfg      Config
	enricher Enricher
	opener   SocketOpener
	clock    Clock
	logger   logger.Logger
	parser   *ssdp.Parser
	tracer   trace.Tracer
	metrics  *registryMetrics

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex

	mu      sync.RWMutex
	devices map[string]*models.RegisteredDevice
	running bool
	// generation changes on every Start and Stop so that handlers still
	// in flight from an earlier run can tell their result is stale.
	generation uint64
	runCtx     context.Context
	cancel     context.CancelFunc
	sockets    SocketManager

	wg sync.WaitGroup

	listenersMu    sync.RWMutex
	listeners      []subscription
	nextListenerID uint64

	// Device events are delivered in the order their map mutations
	// happened. A ticket is drawn under mu; delivery waits on deliverCond
	// until every earlier ticket is done.
	lastTicket  uint64
	deliverMu   sync.Mutex
	deliverCond *sync.Cond
	delivered   uint64
}

// Option customizes a DeviceRegistry.
type Option func(*DeviceRegistry)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(r *DeviceRegistry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSocketOpener replaces the multicast transport.
func WithSocketOpener(o SocketOpener) Option {
	return func(r *DeviceRegistry) {
		if o != nil {
			r.opener = o
		}
	}
}

// WithTracer sets the tracer used for enrichment spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *DeviceRegistry) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewDeviceRegistry validates cfg and builds a stopped registry. A nil
// enricher is allowed; every enrichment then fails, which still tracks
// devices when the target level is basic.
func NewDeviceRegistry(cfg Config, enricher Enricher, log logger.Logger, opts ...Option) (*DeviceRegistry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry config: %w", err)
	}

	if enricher == nil {
		enricher = unavailableEnricher{}
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	r := &DeviceRegistry{
		cfg:      cfg,
		enricher: enricher,
		opener:   openTransport,
		clock:    realClock{},
		logger:   log,
		parser:   ssdp.NewParser(log),
		tracer:   otel.Tracer(tracerName),
		metrics:  newRegistryMetrics(),
		devices:  make(map[string]*models.RegisteredDevice),
	}
	r.deliverCond = sync.NewCond(&r.deliverMu)

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Config returns the effective configuration.
func (r *DeviceRegistry) Config() Config {
	return r.cfg
}

// IsRunning reports whether Start has succeeded and Stop has not been called since.
func (r *DeviceRegistry) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.running
}

// Start opens the sockets, sends the first search and arms the refresh and
// cleanup timers. Calling Start on a running registry logs a warning and
// does nothing. On failure everything opened so far is torn down, an error
// event is emitted and the error is returned.
func (r *DeviceRegistry) Start(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.IsRunning() {
		r.logger.Warn().Msg("SSDP registry already running")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.running = true
	r.generation++
	r.runCtx = runCtx
	r.cancel = cancel
	r.mu.Unlock()

	sockets, err := r.opener(ctx, r.cfg.transportOptions(), r.handleDatagram, r.handleSocketError, r.logger)
	if err == nil {
		err = ctx.Err()
		if err != nil {
			r.closeSockets(sockets)
		}
	}

	if err != nil {
		r.teardown()
		cancel()

		r.logger.Error().Err(err).Msg("Failed to start SSDP registry")
		r.emit(Event{Type: EventError, Err: err})

		return fmt.Errorf("failed to start ssdp registry: %w", err)
	}

	r.mu.Lock()
	r.sockets = sockets
	r.mu.Unlock()

	r.search(runCtx)

	searchTicker := r.clock.Ticker(r.cfg.MSearchInterval.Duration())
	cleanupTicker := r.clock.Ticker(r.cfg.DeviceCleanupInterval.Duration())

	r.wg.Add(1)

	go r.runTimers(runCtx, searchTicker, cleanupTicker)

	r.metrics.observe(r.Len)

	r.logger.Info().
		Str("search_target", r.cfg.SearchTarget).
		Str("detail_level", r.cfg.DetailLevel.String()).
		Bool("ipv6", r.cfg.IncludeIPv6).
		Msg("SSDP registry started")

	r.emit(Event{Type: EventStarted})

	return nil
}

// Stop halts the timers, closes the sockets and clears the map. Calling
// Stop on a stopped registry logs a warning and does nothing. Stop waits
// for in-flight handlers until ctx is done.
func (r *DeviceRegistry) Stop(ctx context.Context) error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if !r.IsRunning() {
		r.logger.Warn().Msg("SSDP registry is not running")

		return nil
	}

	sockets, cancel := r.teardown()

	if cancel != nil {
		cancel()
	}

	r.closeSockets(sockets)
	r.metrics.close()

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn().Err(ctx.Err()).Msg("Timed out waiting for SSDP handlers to finish")
	}

	r.logger.Info().Msg("SSDP registry stopped")
	r.emit(Event{Type: EventStopped})

	return nil
}

// teardown marks the registry stopped and clears its state, returning what
// the caller still has to release.
func (r *DeviceRegistry) teardown() (SocketManager, context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sockets, cancel := r.sockets, r.cancel

	r.running = false
	r.generation++
	r.sockets = nil
	r.cancel = nil
	r.runCtx = nil
	r.devices = make(map[string]*models.RegisteredDevice)

	return sockets, cancel
}

func (r *DeviceRegistry) closeSockets(sockets SocketManager) {
	if sockets == nil {
		return
	}

	for _, res := range sockets.CloseAll() {
		if res.Err != nil {
			r.logger.Warn().Err(res.Err).Str("socket", string(res.Socket)).Msg("Error closing SSDP socket")
		}
	}
}

func (r *DeviceRegistry) runTimers(ctx context.Context, searchTicker, cleanupTicker Ticker) {
	defer r.wg.Done()
	defer searchTicker.Stop()
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-searchTicker.Chan():
			r.search(ctx)
		case <-cleanupTicker.Chan():
			r.sweep(ctx)
		}
	}
}

// search sends one M-SEARCH per enabled family. Failures are logged only.
func (r *DeviceRegistry) search(ctx context.Context) {
	r.mu.RLock()
	sockets := r.sockets
	r.mu.RUnlock()

	if sockets == nil {
		return
	}

	families := []netif.Family{netif.IPv4}
	if r.cfg.IncludeIPv6 {
		families = append(families, netif.IPv6)
	}

	for _, family := range families {
		if err := sockets.SendMSearch(ctx, r.cfg.SearchTarget, family); err != nil {
			r.logger.Warn().Err(err).Str("family", family.String()).Msg("Failed to send M-SEARCH")
		}
	}
}

// sweep removes every device whose deadline has passed.
func (r *DeviceRegistry) sweep(ctx context.Context) {
	now := r.clock.Now()

	var expired []*models.RegisteredDevice

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()

		return
	}

	for udn, dev := range r.devices {
		if dev.ExpiresAt.Before(now) {
			delete(r.devices, udn)
			expired = append(expired, dev)
		}
	}

	if len(expired) == 0 {
		r.mu.Unlock()

		return
	}

	ticket := r.nextTicket()
	r.mu.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].UDN < expired[j].UDN })

	events := make([]Event, 0, len(expired))

	for _, dev := range expired {
		r.logger.Info().Str("udn", dev.UDN).Time("expires_at", dev.ExpiresAt).Msg("SSDP device expired")
		r.metrics.lost(ctx, "expired")

		events = append(events, Event{Type: EventDeviceLost, UDN: dev.UDN, Device: dev})
	}

	r.emitInOrder(ticket, events...)
}

// Snapshot returns a copy of every tracked device keyed by UDN.
func (r *DeviceRegistry) Snapshot() map[string]*models.RegisteredDevice {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*models.RegisteredDevice, len(r.devices))
	for udn, dev := range r.devices {
		out[udn] = dev.Clone()
	}

	return out
}

// Get returns a copy of the device with the given UDN.
func (r *DeviceRegistry) Get(udn string) (*models.RegisteredDevice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[udn]
	if !ok {
		return nil, false
	}

	return dev.Clone(), true
}

// Len returns the number of tracked devices.
func (r *DeviceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.devices)
}

// session returns the context and generation of the current run.
func (r *DeviceRegistry) session() (context.Context, uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.running || r.runCtx == nil {
		return nil, 0, false
	}

	return r.runCtx, r.generation, true
}

// unavailableEnricher fails every call.
type unavailableEnricher struct{}

func (unavailableEnricher) EnrichDevice(context.Context, *models.Announcement, models.DetailLevel) (models.Details, error) {
	return nil, ErrEnricherUnavailable
}

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
	"context"
	"fmt"
	"net/netip"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/ssdp"
	"github.com/carverauto/ssdpradar/pkg/transport"
)

// Reasons a datagram is dropped before it reaches the device map.
const (
	dropUnparsable      = "unparsable"
	dropMSearch         = "msearch"
	dropMissingUSN      = "missing_usn"
	dropMissingTarget   = "missing_target"
	dropMissingLocation = "missing_location"
)

// handleDatagram is the transport callback. Each datagram is processed on
// its own goroutine so a slow enrichment never stalls the read loop.
func (r *DeviceRegistry) handleDatagram(data []byte, src netip.AddrPort, socket transport.SocketID) {
	if hook := r.cfg.OnRawMessage; hook != nil {
		r.callRawHook(hook, data, src, socket)
	}

	ctx, gen, ok := r.session()
	if !ok {
		return
	}

	r.metrics.received(ctx, string(socket))

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		defer r.recoverHandler(socket)

		r.processDatagram(ctx, gen, data, src)
	}()
}

func (r *DeviceRegistry) callRawHook(hook RawMessageHook, data []byte, src netip.AddrPort, socket transport.SocketID) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Raw SSDP message hook panicked")
		}
	}()

	hook(data, src, socket)
}

func (r *DeviceRegistry) recoverHandler(socket transport.SocketID) {
	if rec := recover(); rec != nil {
		r.logger.Error().Interface("panic", rec).Str("socket", string(socket)).
			Msg("SSDP message handler panicked")
	}
}

// handleSocketError is the transport error callback.
func (r *DeviceRegistry) handleSocketError(err error, socket transport.SocketID) {
	r.logger.Warn().Err(err).Str("socket", string(socket)).Msg("SSDP socket error")

	r.emit(Event{Type: EventError, Err: fmt.Errorf("%s: %w", socket, err)})
}

// processDatagram parses, admits and applies one datagram.
func (r *DeviceRegistry) processDatagram(ctx context.Context, gen uint64, data []byte, src netip.AddrPort) {
	msg := r.parser.Parse(data)
	if msg == nil {
		r.drop(ctx, dropUnparsable, nil)

		return
	}

	ann := ssdp.NewAnnouncement(msg, src, r.clock.Now())

	if reason, ok := admit(msg, ann); !ok {
		r.drop(ctx, reason, ann)

		return
	}

	r.apply(ctx, gen, ann)
}

// admit reports whether an announcement may change registry state.
func admit(msg *ssdp.Message, ann *models.Announcement) (string, bool) {
	switch {
	case msg.IsSearch():
		return dropMSearch, false
	case strings.TrimSpace(ann.USN) == "" || ann.UDN == "":
		return dropMissingUSN, false
	case ann.Target == "":
		return dropMissingTarget, false
	case !ann.IsByeBye() && ann.Location == "":
		return dropMissingLocation, false
	}

	return "", true
}

func (r *DeviceRegistry) drop(ctx context.Context, reason string, ann *models.Announcement) {
	r.metrics.dropped(ctx, reason)

	evt := r.logger.Debug().Str("reason", reason)
	if ann != nil {
		evt = evt.Str("usn", ann.USN).Str("remote_addr", ann.RemoteAddr)
	}

	evt.Msg("Dropping SSDP message")
}

// apply routes an admitted announcement to the matching transition.
func (r *DeviceRegistry) apply(ctx context.Context, gen uint64, ann *models.Announcement) {
	if ann.IsByeBye() {
		r.handleByeBye(ctx, gen, ann)

		return
	}

	r.mu.RLock()
	existing, ok := r.devices[ann.UDN]
	if ok {
		existing = existing.Clone()
	}
	r.mu.RUnlock()

	if !ok {
		r.handleNewDevice(ctx, gen, ann)

		return
	}

	r.handleExistingDevice(ctx, gen, ann, existing)
}

// handleNewDevice enriches and inserts a device not yet tracked.
func (r *DeviceRegistry) handleNewDevice(ctx context.Context, gen uint64, ann *models.Announcement) {
	target := r.cfg.DetailLevel

	details, ok := r.enrich(ctx, ann, target)
	if !ok {
		if target != models.DetailBasic {
			r.logger.Debug().Str("udn", ann.UDN).Str("target", target.String()).
				Msg("Not tracking device until enrichment succeeds")

			return
		}

		details = models.BasicDetails{}
	}

	dev := models.NewRegisteredDevice(ann, details, r.cfg.expiry(ann.Timestamp, ann.MaxAge))

	r.mu.Lock()
	if !r.current(gen) {
		r.mu.Unlock()
		r.logger.Debug().Str("udn", ann.UDN).Msg("Discarding SSDP result from a stopped run")

		return
	}

	// Another handler for the same UDN may have inserted meanwhile. The
	// later writer wins, but detail already gathered is kept.
	prev, existed := r.devices[ann.UDN]
	if existed {
		dev.FirstSeen = prev.FirstSeen

		if prev.DetailLevel() > dev.DetailLevel() {
			dev.Details = prev.Details
		}
	}

	r.devices[ann.UDN] = dev
	snapshot := dev.Clone()
	ticket := r.nextTicket()
	r.mu.Unlock()

	if existed {
		r.metrics.updated(ctx)
		r.emitInOrder(ticket, Event{Type: EventDeviceUpdated, UDN: ann.UDN, Device: snapshot})

		return
	}

	r.logger.Info().Str("udn", ann.UDN).Str("location", ann.Location).
		Str("detail_level", snapshot.DetailLevel().String()).Msg("SSDP device found")

	r.metrics.found(ctx)
	r.emitInOrder(ticket, Event{Type: EventDeviceFound, UDN: ann.UDN, Device: snapshot})
}

// handleExistingDevice refreshes a tracked device and re-enriches it when
// its location moved or its detail is below target.
func (r *DeviceRegistry) handleExistingDevice(
	ctx context.Context, gen uint64, ann *models.Announcement, prev *models.RegisteredDevice,
) {
	target := r.cfg.DetailLevel
	locationChanged := ann.Location != prev.Location

	var (
		details  models.Details
		enriched bool
	)

	if locationChanged || prev.DetailLevel() < target {
		details, enriched = r.enrich(ctx, ann, target)
		if !enriched {
			r.logger.Warn().Str("udn", ann.UDN).Str("location", ann.Location).
				Msg("Keeping previous device detail after failed enrichment")
		}
	}

	r.mu.Lock()
	if !r.current(gen) {
		r.mu.Unlock()
		r.logger.Debug().Str("udn", ann.UDN).Msg("Discarding SSDP result from a stopped run")

		return
	}

	dev, tracked := r.devices[ann.UDN]
	if !tracked {
		// Removed by a byebye or a sweep while we were enriching; this
		// announcement brings it back.
		dev = prev
		dev.FirstSeen = ann.Timestamp
	}

	dev.LastSeen = ann.Timestamp
	dev.ExpiresAt = r.cfg.expiry(ann.Timestamp, ann.MaxAge)
	dev.Server = ann.Server
	dev.RemoteAddr = ann.RemoteAddr
	dev.RemotePort = ann.RemotePort

	if ssdp.IsRootDevice(ann.Target, ann.USN, ann.UDN) {
		dev.USN = ann.USN
		dev.Target = ann.Target
		dev.Headers = ann.Headers
	}

	switch {
	case enriched:
		dev.Location = ann.Location
		if details.Level() >= dev.DetailLevel() {
			dev.Details = details
		}
	case locationChanged && target == models.DetailBasic:
		dev.Location = ann.Location
	}

	r.devices[ann.UDN] = dev
	snapshot := dev.Clone()
	ticket := r.nextTicket()
	r.mu.Unlock()

	if !tracked {
		r.metrics.found(ctx)
		r.emitInOrder(ticket, Event{Type: EventDeviceFound, UDN: ann.UDN, Device: snapshot})

		return
	}

	r.metrics.updated(ctx)
	r.emitInOrder(ticket, Event{Type: EventDeviceUpdated, UDN: ann.UDN, Device: snapshot})
}

// handleByeBye removes a device when its root device says goodbye.
func (r *DeviceRegistry) handleByeBye(ctx context.Context, gen uint64, ann *models.Announcement) {
	r.mu.Lock()
	if !r.current(gen) {
		r.mu.Unlock()

		return
	}

	dev, ok := r.devices[ann.UDN]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug().Str("udn", ann.UDN).Msg("Ignoring byebye for unknown device")

		return
	}

	if !ssdp.IsRootDevice(ann.Target, ann.USN, ann.UDN) {
		r.mu.Unlock()
		r.logger.Debug().Str("udn", ann.UDN).Str("usn", ann.USN).Msg("Ignoring byebye for embedded device or service")

		return
	}

	delete(r.devices, ann.UDN)
	ticket := r.nextTicket()
	r.mu.Unlock()

	r.logger.Info().Str("udn", ann.UDN).Msg("SSDP device left")

	r.metrics.lost(ctx, "byebye")
	r.emitInOrder(ticket, Event{Type: EventDeviceLost, UDN: ann.UDN, Device: dev})
}

// current reports whether gen is still the active run. r.mu must be held.
func (r *DeviceRegistry) current(gen uint64) bool {
	return r.running && r.generation == gen
}

// enrich calls the enricher inside a span. The bool is false on any
// failure, including a nil result or a panic.
func (r *DeviceRegistry) enrich(
	ctx context.Context, ann *models.Announcement, level models.DetailLevel,
) (models.Details, bool) {
	ctx, span := r.tracer.Start(ctx, "registry.EnrichDevice", trace.WithAttributes(
		attribute.String("ssdp.udn", ann.UDN),
		attribute.String("ssdp.location", ann.Location),
		attribute.String("ssdp.detail_level", level.String()),
	))
	defer span.End()

	details, err := r.callEnricher(ctx, ann, level)
	if err == nil && details == nil {
		err = ErrNoDetails
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		r.metrics.enrichmentFailed(ctx)
		r.logger.Warn().Err(err).Str("udn", ann.UDN).Str("location", ann.Location).
			Str("target", level.String()).Msg("Device enrichment failed")

		return nil, false
	}

	span.SetAttributes(attribute.String("ssdp.detail_level_achieved", details.Level().String()))

	return details, true
}

func (r *DeviceRegistry) callEnricher(
	ctx context.Context, ann *models.Announcement, level models.DetailLevel,
) (details models.Details, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			details, err = nil, fmt.Errorf("%w: %v", ErrEnricherPanic, rec)
		}
	}()

	// The enricher gets its own copy so it cannot alter what we store.
	cp := *ann
	cp.Headers = make(map[string]string, len(ann.Headers))

	for k, v := range ann.Headers {
		cp.Headers[k] = v
	}

	return r.enricher.EnrichDevice(ctx, &cp, level)
}

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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	registryMeterName = "ssdpradar.registry"

	metricDatagramsReceivedName  = "ssdp_datagrams_received"
	metricDatagramsDroppedName   = "ssdp_datagrams_dropped"
	metricDevicesFoundName       = "ssdp_devices_found"
	metricDevicesUpdatedName     = "ssdp_devices_updated"
	metricDevicesLostName        = "ssdp_devices_lost"
	metricEnrichmentFailuresName = "ssdp_enrichment_failures"
	metricActiveDevicesName      = "ssdp_active_devices"

	dropReasonAttr = "reason"
	lostCauseAttr  = "cause"
	socketAttr     = "socket"
)

// registryMetrics holds the instruments of one registry.
type registryMetrics struct {
	datagramsReceived  metric.Int64Counter
	datagramsDropped   metric.Int64Counter
	devicesFound       metric.Int64Counter
	devicesUpdated     metric.Int64Counter
	devicesLost        metric.Int64Counter
	enrichmentFailures metric.Int64Counter
	activeDevices      metric.Int64ObservableGauge

	meter        metric.Meter
	registration metric.Registration
}

func newRegistryMetrics() *registryMetrics {
	meter := otel.Meter(registryMeterName)
	fallback := noop.NewMeterProvider().Meter(registryMeterName)

	m := &registryMetrics{
		datagramsReceived: counter(meter, fallback, metricDatagramsReceivedName,
			"SSDP datagrams read from any socket"),
		datagramsDropped: counter(meter, fallback, metricDatagramsDroppedName,
			"SSDP datagrams discarded by parsing or admission"),
		devicesFound: counter(meter, fallback, metricDevicesFoundName,
			"Devices added to the registry"),
		devicesUpdated: counter(meter, fallback, metricDevicesUpdatedName,
			"Accepted announcements for already tracked devices"),
		devicesLost: counter(meter, fallback, metricDevicesLostName,
			"Devices removed by byebye or expiry"),
		enrichmentFailures: counter(meter, fallback, metricEnrichmentFailuresName,
			"Enrichment attempts that returned an error or no details"),
	}

	var err error

	m.activeDevices, err = meter.Int64ObservableGauge(
		metricActiveDevicesName,
		metric.WithDescription("Devices currently tracked by the registry"),
	)
	if err != nil {
		otel.Handle(err)

		m.activeDevices, _ = fallback.Int64ObservableGauge(metricActiveDevicesName)
	}

	m.meter = meter

	return m
}

// observe starts reporting active() through the gauge until close.
func (m *registryMetrics) observe(active func() int) {
	m.close()

	registration, err := m.meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(m.activeDevices, int64(active()))

		return nil
	}, m.activeDevices)
	if err != nil {
		otel.Handle(err)

		return
	}

	m.registration = registration
}

func counter(meter, fallback metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err == nil {
		return c
	}

	otel.Handle(err)

	c, _ = fallback.Int64Counter(name)

	return c
}

func (m *registryMetrics) received(ctx context.Context, socket string) {
	m.datagramsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String(socketAttr, socket)))
}

func (m *registryMetrics) dropped(ctx context.Context, reason string) {
	m.datagramsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String(dropReasonAttr, reason)))
}

func (m *registryMetrics) found(ctx context.Context) {
	m.devicesFound.Add(ctx, 1)
}

func (m *registryMetrics) updated(ctx context.Context) {
	m.devicesUpdated.Add(ctx, 1)
}

func (m *registryMetrics) lost(ctx context.Context, cause string) {
	m.devicesLost.Add(ctx, 1, metric.WithAttributes(attribute.String(lostCauseAttr, cause)))
}

func (m *registryMetrics) enrichmentFailed(ctx context.Context) {
	m.enrichmentFailures.Add(ctx, 1)
}

func (m *registryMetrics) close() {
	if m.registration == nil {
		return
	}

	if err := m.registration.Unregister(); err != nil {
		otel.Handle(err)
	}

	m.registration = nil
}

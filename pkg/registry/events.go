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
	"time"

	"github.com/carverauto/ssdpradar/pkg/models"
)

// EventType identifies a registry lifecycle event.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventError         EventType = "error"
	EventDeviceFound   EventType = "devicefound"
	EventDeviceUpdated EventType = "deviceupdated"
	EventDeviceLost    EventType = "devicelost"
)

// IsDeviceEvent reports whether the event carries a device.
func (t EventType) IsDeviceEvent() bool {
	return t == EventDeviceFound || t == EventDeviceUpdated || t == EventDeviceLost
}

// Event is delivered to listeners. Device is a copy owned by the listener;
// for devicelost it is the last known state.
type Event struct {
	Type   EventType
	UDN    string
	Device *models.RegisteredDevice
	Err    error
	Time   time.Time
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(evt Event)

// HandleEvent calls f(evt).
func (f ListenerFunc) HandleEvent(evt Event) {
	f(evt)
}

type subscription struct {
	id       uint64
	listener Listener
}

// Subscribe registers l for every subsequent event. Events are delivered
// synchronously on the goroutine that produced them, so l must not block.
// The returned func removes the subscription.
func (r *DeviceRegistry) Subscribe(l Listener) (unsubscribe func()) {
	if l == nil {
		return func() {}
	}

	r.listenersMu.Lock()
	r.nextListenerID++
	id := r.nextListenerID
	r.listeners = append(r.listeners, subscription{id: id, listener: l})
	r.listenersMu.Unlock()

	return func() {
		r.listenersMu.Lock()
		defer r.listenersMu.Unlock()

		for i, sub := range r.listeners {
			if sub.id == id {
				r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)

				return
			}
		}
	}
}

func (r *DeviceRegistry) emit(evt Event) {
	if evt.Time.IsZero() {
		evt.Time = r.clock.Now()
	}

	r.listenersMu.RLock()
	subs := make([]subscription, len(r.listeners))
	copy(subs, r.listeners)
	r.listenersMu.RUnlock()

	for _, sub := range subs {
		r.deliver(sub.listener, evt)
	}
}

// nextTicket reserves the delivery slot of a map mutation. r.mu must be
// held for writing.
func (r *DeviceRegistry) nextTicket() uint64 {
	r.lastTicket++

	return r.lastTicket
}

// emitInOrder delivers events once all earlier tickets are delivered, so
// listeners see device events in the order the map changed. Every ticket
// must be passed here exactly once.
func (r *DeviceRegistry) emitInOrder(ticket uint64, events ...Event) {
	r.deliverMu.Lock()
	for r.delivered+1 != ticket {
		r.deliverCond.Wait()
	}
	r.deliverMu.Unlock()

	defer func() {
		r.deliverMu.Lock()
		r.delivered = ticket
		r.deliverCond.Broadcast()
		r.deliverMu.Unlock()
	}()

	for _, evt := range events {
		r.emit(evt)
	}
}

func (r *DeviceRegistry) deliver(l Listener, evt Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("event", string(evt.Type)).
				Msg("Registry listener panicked")
		}
	}()

	l.HandleEvent(evt)
}

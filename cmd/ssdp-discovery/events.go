package main

import (
	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/registry"
)

// newEventPrinter logs every registry event.
func newEventPrinter(log logger.Logger) registry.Listener {
	return registry.ListenerFunc(func(evt registry.Event) {
		switch evt.Type {
		case registry.EventDeviceFound, registry.EventDeviceUpdated:
			e := log.Info()
			if evt.Type == registry.EventDeviceUpdated {
				e = log.Debug()
			}

			dev := evt.Device
			e.Str("event", string(evt.Type)).
				Str("udn", evt.UDN).
				Str("name", dev.FriendlyName()).
				Str("location", dev.Location).
				Str("server", dev.Server).
				Str("remote_addr", dev.RemoteAddr).
				Str("detail_level", dev.DetailLevel().String()).
				Time("expires_at", dev.ExpiresAt).
				Msg("SSDP device")
		case registry.EventDeviceLost:
			log.Info().Str("event", string(evt.Type)).Str("udn", evt.UDN).Msg("SSDP device")
		case registry.EventError:
			log.Error().Err(evt.Err).Msg("SSDP registry error")
		case registry.EventStarted, registry.EventStopped:
			log.Info().Str("event", string(evt.Type)).Msg("SSDP registry")
		}
	})
}

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/registry"
)

var errTestFixture = errors.New("fixture error")

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
	sent chan struct{}
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{sent: make(chan struct{}, 16)}
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	defer func() { f.sent <- struct{}{} }()

	if f.err != nil {
		return nil, f.err
	}

	f.msgs = append(f.msgs, published{subject: subject, data: data})

	return &jetstream.PubAck{Stream: "events", Sequence: uint64(len(f.msgs))}, nil
}

func (f *fakePublisher) messages() []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]published(nil), f.msgs...)
}

type decodedEvent struct {
	models.CloudEvent
	Data models.DeviceEventData `json:"data"`
}

func decode(t *testing.T, raw []byte) decodedEvent {
	t.Helper()

	var evt decodedEvent
	require.NoError(t, json.Unmarshal(raw, &evt))

	return evt
}

func testDevice() *models.RegisteredDevice {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	return &models.RegisteredDevice{
		UDN:        "dev1",
		USN:        "uuid:dev1::upnp:rootdevice",
		Location:   "http://10.0.0.5/desc.xml",
		Server:     "Linux UPnP/1.0 Test/1.0",
		RemoteAddr: "10.0.0.5",
		RemotePort: 1900,
		Details: models.DescriptionDetails{
			Desc: models.DeviceDescription{FriendlyName: "Kitchen Speaker"},
		},
		FirstSeen: now,
		LastSeen:  now,
		ExpiresAt: now.Add(time.Minute),
	}
}

func TestPublishDeviceFound(t *testing.T) {
	js := newFakePublisher()
	p := NewEventPublisher(js, "events", logger.NewTestLogger(), WithSource("ssdpradar/lab"))

	when := time.Date(2025, 6, 1, 12, 0, 1, 0, time.UTC)

	err := p.PublishDeviceEvent(context.Background(), registry.Event{
		Type: registry.EventDeviceFound, UDN: "dev1", Device: testDevice(), Time: when,
	})
	require.NoError(t, err)

	msgs := js.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "events.ssdp.devicefound", msgs[0].subject)

	evt := decode(t, msgs[0].data)
	assert.Equal(t, "1.0", evt.SpecVersion)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "ssdpradar/lab", evt.Source)
	assert.Equal(t, "com.carverauto.ssdpradar.device.devicefound", evt.Type)
	assert.Equal(t, "application/json", evt.DataContentType)
	require.NotNil(t, evt.Time)
	assert.True(t, when.Equal(*evt.Time))

	assert.Equal(t, "devicefound", evt.Data.Event)
	assert.Equal(t, "dev1", evt.Data.UDN)
	assert.Equal(t, "http://10.0.0.5/desc.xml", evt.Data.Location)
	assert.Equal(t, "Kitchen Speaker", evt.Data.Name)
	assert.Equal(t, models.DetailDescription, evt.Data.DetailLevel)
	require.NotNil(t, evt.Data.ExpiresAt)
	require.NotNil(t, evt.Data.Device)
	assert.IsType(t, models.DescriptionDetails{}, evt.Data.Device.Details)
	assert.Equal(t, "Kitchen Speaker", evt.Data.Device.FriendlyName())
}

func TestPublishDeviceLostOmitsDevice(t *testing.T) {
	js := newFakePublisher()
	p := NewEventPublisher(js, "events", nil)

	require.NoError(t, p.PublishDeviceEvent(context.Background(), registry.Event{
		Type: registry.EventDeviceLost, UDN: "dev1", Device: testDevice(),
	}))

	evt := decode(t, js.messages()[0].data)
	assert.Equal(t, "events.ssdp.devicelost", evt.Subject)
	assert.Equal(t, "uuid:dev1::upnp:rootdevice", evt.Data.USN)
	assert.Nil(t, evt.Data.ExpiresAt)
	assert.Nil(t, evt.Data.Device)
}

func TestPublishRegistryError(t *testing.T) {
	js := newFakePublisher()
	p := NewEventPublisher(js, "events", nil)

	require.NoError(t, p.PublishDeviceEvent(context.Background(), registry.Event{
		Type: registry.EventError, Err: errTestFixture,
	}))

	evt := decode(t, js.messages()[0].data)
	assert.Equal(t, "com.carverauto.ssdpradar.registry.error", evt.Type)
	assert.Equal(t, "fixture error", evt.Data.Error)
	assert.Empty(t, evt.Data.UDN)
}

func TestPublishFailure(t *testing.T) {
	js := newFakePublisher()
	js.err = nats.ErrConnectionClosed

	p := NewEventPublisher(js, "events", nil)

	err := p.PublishDeviceEvent(context.Background(), registry.Event{Type: registry.EventStarted})
	require.ErrorIs(t, err, nats.ErrConnectionClosed)
}

func TestRunPublishesQueuedEvents(t *testing.T) {
	js := newFakePublisher()
	p := NewEventPublisher(js, "events", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.HandleEvent(registry.Event{Type: registry.EventStarted})
	p.HandleEvent(registry.Event{Type: registry.EventDeviceFound, UDN: "dev1", Device: testDevice()})

	for i := 0; i < 2; i++ {
		select {
		case <-js.sent:
		case <-time.After(2 * time.Second):
			t.Fatal("event was not published")
		}
	}

	cancel()
	<-done

	msgs := js.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "events.ssdp.started", msgs[0].subject)
	assert.Equal(t, "events.ssdp.devicefound", msgs[1].subject)
}

func TestRunFlushesOnShutdown(t *testing.T) {
	js := newFakePublisher()
	p := NewEventPublisher(js, "events", nil)

	p.HandleEvent(registry.Event{Type: registry.EventStopped})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Run(ctx)

	// Either the loop or the flush publishes it.
	require.Len(t, js.messages(), 1)
}

func TestHandleEventDropsWhenQueueFull(t *testing.T) {
	p := NewEventPublisher(newFakePublisher(), "events", nil, WithQueueSize(1))

	p.HandleEvent(registry.Event{Type: registry.EventStarted})
	p.HandleEvent(registry.Event{Type: registry.EventDeviceFound, UDN: "dev1"})
	p.HandleEvent(registry.Event{Type: registry.EventDeviceFound, UDN: "dev2"})

	assert.Equal(t, uint64(2), p.Dropped())
	assert.Equal(t, "events", p.Stream())
}

func TestPublisherSatisfiesListener(t *testing.T) {
	var _ registry.Listener = NewEventPublisher(nil, "events", nil)
}

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "events.ssdp.deviceupdated", SubjectFor(registry.EventDeviceUpdated))
}

package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/registry"
)

const (
	// SubjectPrefix is the subject namespace of registry events.
	SubjectPrefix = "events.ssdp"

	eventTypePrefix       = "com.carverauto.ssdpradar."
	defaultSource         = "ssdpradar/registry"
	defaultQueueSize      = 256
	defaultPublishTimeout = 5 * time.Second
)

// Publisher is the part of jetstream.JetStream the event publisher needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// EventPublisher turns registry events into CloudEvents on JetStream. It
// implements registry.Listener: HandleEvent only queues, Run publishes.
type EventPublisher struct {
	js      Publisher
	stream  string
	source  string
	logger  logger.Logger
	timeout time.Duration
	queue   chan registry.Event
	dropped atomic.Uint64
}

// PublisherOption configures an EventPublisher.
type PublisherOption func(*EventPublisher)

// WithSource sets the CloudEvent source attribute.
func WithSource(source string) PublisherOption {
	return func(p *EventPublisher) {
		if source != "" {
			p.source = source
		}
	}
}

// WithQueueSize sets how many events may wait for Run before new ones are dropped.
func WithQueueSize(n int) PublisherOption {
	return func(p *EventPublisher) {
		if n > 0 {
			p.queue = make(chan registry.Event, n)
		}
	}
}

// WithPublishTimeout bounds each JetStream publish.
func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *EventPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewEventPublisher creates a new EventPublisher for the specified stream.
func NewEventPublisher(js Publisher, streamName string, log logger.Logger, opts ...PublisherOption) *EventPublisher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	p := &EventPublisher{
		js:      js,
		stream:  streamName,
		source:  defaultSource,
		logger:  log,
		timeout: defaultPublishTimeout,
		queue:   make(chan registry.Event, defaultQueueSize),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Stream returns the stream the publisher writes to.
func (p *EventPublisher) Stream() string {
	return p.stream
}

// Dropped returns how many events were discarded because the queue was full.
func (p *EventPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// HandleEvent queues evt without blocking the registry.
func (p *EventPublisher) HandleEvent(evt registry.Event) {
	select {
	case p.queue <- evt:
	default:
		p.dropped.Add(1)
		p.logger.Warn().Str("event", string(evt.Type)).Str("udn", evt.UDN).
			Msg("Event queue full, dropping registry event")
	}
}

// Run publishes queued events until ctx is done, then flushes what is left.
func (p *EventPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.flush()

			return
		case evt := <-p.queue:
			p.publishQueued(ctx, evt)
		}
	}
}

func (p *EventPublisher) flush() {
	ctx := context.Background()

	for {
		select {
		case evt := <-p.queue:
			p.publishQueued(ctx, evt)
		default:
			return
		}
	}
}

func (p *EventPublisher) publishQueued(ctx context.Context, evt registry.Event) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.PublishDeviceEvent(ctx, evt); err != nil {
		p.logger.Warn().Err(err).Str("event", string(evt.Type)).Str("udn", evt.UDN).
			Msg("Failed to publish registry event")
	}
}

// PublishDeviceEvent publishes one registry event synchronously.
func (p *EventPublisher) PublishDeviceEvent(ctx context.Context, evt registry.Event) error {
	event := newCloudEvent(evt, p.source)

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", evt.Type, err)
	}

	ack, err := p.js.Publish(ctx, event.Subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", evt.Type, err)
	}

	p.logger.Debug().Str("id", event.ID).Str("subject", event.Subject).Uint64("seq", ack.Sequence).
		Msg("Published registry event")

	return nil
}

// SubjectFor returns the subject an event type is published on.
func SubjectFor(t registry.EventType) string {
	return SubjectPrefix + "." + string(t)
}

func newCloudEvent(evt registry.Event, source string) models.CloudEvent {
	ts := evt.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	data := models.DeviceEventData{
		Event:     string(evt.Type),
		UDN:       evt.UDN,
		Timestamp: ts,
	}

	if evt.Err != nil {
		data.Error = evt.Err.Error()
	}

	if dev := evt.Device; dev != nil {
		data.USN = dev.USN
		data.Location = dev.Location
		data.Server = dev.Server
		data.RemoteAddr = dev.RemoteAddr
		data.DetailLevel = dev.DetailLevel()
		data.Name = dev.FriendlyName()

		if evt.Type != registry.EventDeviceLost {
			expires := dev.ExpiresAt
			data.ExpiresAt = &expires
			data.Device = dev
		}
	}

	typ := "registry." + string(evt.Type)
	if evt.Type.IsDeviceEvent() {
		typ = "device." + string(evt.Type)
	}

	return models.CloudEvent{
		SpecVersion:     models.CloudEventsSpecVersion,
		ID:              uuid.New().String(),
		Source:          source,
		Type:            eventTypePrefix + typ,
		DataContentType: models.CloudEventsContentType,
		Subject:         SubjectFor(evt.Type),
		Time:            &ts,
		Data:            data,
	}
}

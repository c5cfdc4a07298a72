package natsutil

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/registry"
)

const clientName = "ssdpradar"

// StreamManager is the part of jetstream.JetStream used to ensure a stream exists.
type StreamManager interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// Connect creates a NATS connection from cfg. TLS and credentials are added
// when configured; connection state changes are logged.
func Connect(ctx context.Context, cfg *models.NATSConfig, log logger.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	if cfg == nil {
		return nil, errNATSConfigRequired
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	opts := []nats.Option{nats.Name(clientName)}

	if cfg.TLS != nil {
		tlsConf, err := TLSConfig(cfg.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts, nats.Secure(tlsConf))
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	opts = append(opts, connectionHandlers(log)...)
	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

func connectionHandlers(log logger.Logger) []nats.Option {
	return []nats.Option{
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
}

// CreateEventPublisher creates an EventPublisher on an existing connection,
// creating or extending the events stream so it covers the registry subjects.
func CreateEventPublisher(
	ctx context.Context, nc *nats.Conn, domain string, events models.EventsConfig, log logger.Logger, opts ...PublisherOption,
) (*EventPublisher, error) {
	var (
		js  jetstream.JetStream
		err error
	)

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if err := events.Validate(); err != nil {
		return nil, err
	}

	if err := EnsureStream(ctx, js, events.StreamName, events.Subjects, log); err != nil {
		return nil, err
	}

	return NewEventPublisher(js, events.StreamName, log, opts...), nil
}

// EnsureStream makes sure streamName exists and captures the registry
// subjects. A missing stream is created; an existing one is extended.
func EnsureStream(ctx context.Context, js StreamManager, streamName string, subjects []string, log logger.Logger) error {
	if log == nil {
		log = logger.NewTestLogger()
	}

	probe := SubjectFor(registry.EventDeviceFound)

	stream, err := js.Stream(ctx, streamName)
	if err != nil {
		if !isStreamMissingErr(err) {
			return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
		}

		cfg := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: ensureSubjectList(append([]string(nil), subjects...), SubjectPrefix+".*"),
		}

		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Strs("subjects", cfg.Subjects).Msg("Created NATS JetStream stream")

		return nil
	}

	info := stream.CachedInfo()
	if info == nil {
		return nil
	}

	current := info.Config.Subjects
	for _, s := range current {
		if matchesSubject(s, probe) {
			return nil
		}
	}

	cfg := info.Config
	cfg.Subjects = ensureSubjectList(append([]string(nil), current...), SubjectPrefix+".*")

	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to update stream %s: %w", streamName, err)
	}

	log.Info().Str("stream", streamName).Strs("subjects", cfg.Subjects).Msg("Extended NATS JetStream stream subjects")

	return nil
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, s := range subjects {
		if matchesSubject(s, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern, which may use the NATS '*' and
// '>' wildcards, matches subject.
func matchesSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}

	pTokens := strings.Split(pattern, ".")
	sTokens := strings.Split(subject, ".")

	for i, tok := range pTokens {
		if tok == ">" {
			return i < len(sTokens)
		}

		if i >= len(sTokens) {
			return false
		}

		if tok != "*" && tok != sTokens[i] {
			return false
		}
	}

	return len(pTokens) == len(sTokens)
}

func isStreamMissingErr(err error) bool {
	return errors.Is(err, jetstream.ErrStreamNotFound) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrStreamNotFound) ||
		errors.Is(err, nats.ErrNoStreamResponse) ||
		errors.Is(err, nats.ErrNoResponders)
}

package natsutil

import (
	"context"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssdpradar/pkg/models"
)

type fakeStream struct {
	jetstream.Stream
	info *jetstream.StreamInfo
}

func (s *fakeStream) CachedInfo() *jetstream.StreamInfo {
	return s.info
}

type fakeStreamManager struct {
	stream    jetstream.Stream
	lookupErr error
	createErr error
	created   []jetstream.StreamConfig
}

func (f *fakeStreamManager) Stream(context.Context, string) (jetstream.Stream, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}

	return f.stream, nil
}

func (f *fakeStreamManager) CreateOrUpdateStream(_ context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}

	f.created = append(f.created, cfg)

	return &fakeStream{info: &jetstream.StreamInfo{Config: cfg}}, nil
}

func TestEnsureStreamCreatesMissingStream(t *testing.T) {
	js := &fakeStreamManager{lookupErr: jetstream.ErrStreamNotFound}

	require.NoError(t, EnsureStream(context.Background(), js, "events", []string{"events.syslog.*"}, nil))

	require.Len(t, js.created, 1)
	assert.Equal(t, "events", js.created[0].Name)
	assert.Equal(t, []string{"events.syslog.*", "events.ssdp.*"}, js.created[0].Subjects)
}

func TestEnsureStreamKeepsCoveringStream(t *testing.T) {
	js := &fakeStreamManager{stream: &fakeStream{info: &jetstream.StreamInfo{
		Config: jetstream.StreamConfig{Name: "events", Subjects: []string{"events.>"}},
	}}}

	require.NoError(t, EnsureStream(context.Background(), js, "events", nil, nil))
	assert.Empty(t, js.created)
}

func TestEnsureStreamExtendsSubjects(t *testing.T) {
	js := &fakeStreamManager{stream: &fakeStream{info: &jetstream.StreamInfo{
		Config: jetstream.StreamConfig{Name: "events", Subjects: []string{"events.poller.*"}, MaxMsgs: 10},
	}}}

	require.NoError(t, EnsureStream(context.Background(), js, "events", nil, nil))

	require.Len(t, js.created, 1)
	assert.Equal(t, []string{"events.poller.*", "events.ssdp.*"}, js.created[0].Subjects)
	assert.Equal(t, int64(10), js.created[0].MaxMsgs)
}

func TestEnsureStreamErrors(t *testing.T) {
	err := EnsureStream(context.Background(), &fakeStreamManager{lookupErr: errTestFixture}, "events", nil, nil)
	require.ErrorIs(t, err, errTestFixture)

	err = EnsureStream(context.Background(), &fakeStreamManager{
		lookupErr: nats.ErrNoResponders,
		createErr: errTestFixture,
	}, "events", nil, nil)
	require.ErrorIs(t, err, errTestFixture)
}

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{"adds subject when list empty", nil, "events.ssdp.*", []string{"events.ssdp.*"}},
		{"keeps list when wildcard matches", []string{"events.*.*"}, "events.ssdp.*", []string{"events.*.*"}},
		{"keeps list when greater wildcard matches", []string{"events.>"}, "events.ssdp.*", []string{"events.>"}},
		{"appends when unmatched", []string{"logs.syslog.*"}, "events.ssdp.*", []string{"logs.syslog.*", "events.ssdp.*"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "events.ssdp.devicefound", "events.ssdp.devicefound", true},
		{"single wildcard", "events.*.devicefound", "events.ssdp.devicefound", true},
		{"greater wildcard", "events.>", "events.ssdp.devicefound", true},
		{"greater wildcard needs a token", "events.ssdp.>", "events.ssdp", false},
		{"no match length", "events.*", "events.ssdp.devicefound", false},
		{"no match tokens", "logs.syslog.*", "events.ssdp.devicefound", false},
		{"pattern longer than subject", "events.ssdp.*.x", "events.ssdp.devicefound", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats no stream response", nats.ErrNoStreamResponse, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestConnectValidatesConfig(t *testing.T) {
	_, err := Connect(context.Background(), nil, nil)
	require.ErrorIs(t, err, errNATSConfigRequired)

	_, err = Connect(context.Background(), &models.NATSConfig{}, nil)
	require.Error(t, err)

	_, err = Connect(context.Background(), &models.NATSConfig{
		URL: "nats://127.0.0.1:4222",
		TLS: &models.NATSTLSConfig{CertFile: "client.pem"},
	}, nil)
	require.ErrorIs(t, err, ErrIncompleteKeyPair)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Connect(ctx, &models.NATSConfig{URL: "nats://127.0.0.1:4222"}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

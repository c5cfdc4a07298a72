package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   zerolog.Level
	}{
		{name: "default", config: Config{}, want: zerolog.InfoLevel},
		{name: "explicit", config: Config{Level: "warn"}, want: zerolog.WarnLevel},
		{name: "debug flag wins", config: Config{Level: "error", Debug: true}, want: zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			require.NoError(t, Init(context.Background(), &cfg))
			assert.Equal(t, tt.want, GetLogger().GetLevel())
		})
	}
}

func TestInitInvalidLevel(t *testing.T) {
	err := Init(context.Background(), &Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}

func TestInitOTelEnabledWithoutEndpointStaysLocal(t *testing.T) {
	cfg := &Config{Level: "info", OTel: OTelConfig{Enabled: true}}

	require.NoError(t, Init(context.Background(), cfg))
	l := GetLogger()
	l.Info().Msg("local only")
}

func TestSetDebug(t *testing.T) {
	require.NoError(t, Init(context.Background(), &Config{}))

	SetDebug(true)
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	SetDebug(false)
	assert.Equal(t, zerolog.InfoLevel, GetLogger().GetLevel())
}

func TestWithComponent(t *testing.T) {
	assert.NotEqual(t, zerolog.Disabled, WithComponent("registry").GetLevel())
}

func TestScopedAddsComponentField(t *testing.T) {
	var buf bytes.Buffer

	Scoped(New(zerolog.New(&buf)), "registry").Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"registry"`)
	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestScopedNilParent(t *testing.T) {
	l := Scoped(nil, "registry")
	require.NotNil(t, l)

	l.Info().Msg("discarded")
}

func TestHandleSetLevel(t *testing.T) {
	var buf bytes.Buffer

	l := New(zerolog.New(&buf))
	l.SetLevel(zerolog.WarnLevel)
	l.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	l.SetDebug(true)
	l.Debug().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer

	l := New(zerolog.New(&buf)).WithFields(map[string]interface{}{"udn": "uuid:dev1"})
	l.Info().Msg("x")

	assert.Contains(t, buf.String(), `"udn":"uuid:dev1"`)
}

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer

	n, err := NewMultiWriter(&a, &b).Write([]byte("line\n"))
	require.NoError(t, err)

	assert.Equal(t, 5, n)
	assert.Equal(t, "line\n", a.String())
	assert.Equal(t, "line\n", b.String())
}

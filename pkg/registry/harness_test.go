package registry

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/transport"
)

var testSource = netip.MustParseAddrPort("10.0.0.5:1900")

// harness wires a DeviceRegistry to mocks with a controllable clock.
type harness struct {
	t        *testing.T
	ctrl     *gomock.Controller
	reg      *DeviceRegistry
	enricher *MockEnricher
	sockets  *MockSocketManager
	clock    *MockClock

	searchC  chan time.Time
	cleanupC chan time.Time
	events   chan Event

	mu        sync.Mutex
	now       time.Time
	opens     int
	openErr   error
	onMessage transport.MessageHandler
	onError   transport.ErrorHandler
	opts      transport.Options
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)

	h := &harness{
		t:        t,
		ctrl:     ctrl,
		enricher: NewMockEnricher(ctrl),
		sockets:  NewMockSocketManager(ctrl),
		clock:    NewMockClock(ctrl),
		searchC:  make(chan time.Time),
		cleanupC: make(chan time.Time),
		events:   make(chan Event, 64),
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	cfg.ApplyDefaults()

	searchTicker := NewMockTicker(ctrl)
	searchTicker.EXPECT().Chan().Return((<-chan time.Time)(h.searchC)).AnyTimes()
	searchTicker.EXPECT().Stop().AnyTimes()

	cleanupTicker := NewMockTicker(ctrl)
	cleanupTicker.EXPECT().Chan().Return((<-chan time.Time)(h.cleanupC)).AnyTimes()
	cleanupTicker.EXPECT().Stop().AnyTimes()

	h.clock.EXPECT().Now().DoAndReturn(h.Now).AnyTimes()
	h.clock.EXPECT().Ticker(cfg.MSearchInterval.Duration()).Return(searchTicker).AnyTimes()
	h.clock.EXPECT().Ticker(cfg.DeviceCleanupInterval.Duration()).Return(cleanupTicker).AnyTimes()

	reg, err := NewDeviceRegistry(cfg, h.enricher, logger.NewTestLogger(),
		WithClock(h.clock), WithSocketOpener(h.open))
	require.NoError(t, err)

	h.reg = reg
	reg.Subscribe(ListenerFunc(func(evt Event) { h.events <- evt }))

	return h
}

func (h *harness) Now() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	h.now = h.now.Add(d)
	h.mu.Unlock()
}

func (h *harness) open(
	_ context.Context, opts transport.Options, onMessage transport.MessageHandler, onError transport.ErrorHandler, _ logger.Logger,
) (SocketManager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.opens++
	h.opts = opts

	if h.openErr != nil {
		return nil, h.openErr
	}

	h.onMessage = onMessage
	h.onError = onError

	return h.sockets, nil
}

// start starts the registry, accepting any number of searches.
func (h *harness) start() {
	h.t.Helper()

	h.sockets.EXPECT().SendMSearch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	require.NoError(h.t, h.reg.Start(context.Background()))
	require.Equal(h.t, EventStarted, h.nextEvent().Type)
}

func (h *harness) stop() {
	h.t.Helper()

	h.sockets.EXPECT().CloseAll().Return(nil)

	require.NoError(h.t, h.reg.Stop(context.Background()))
	require.Equal(h.t, EventStopped, h.nextEvent().Type)
}

// feed processes a datagram synchronously on the calling goroutine.
func (h *harness) feed(raw string) {
	h.t.Helper()

	ctx, gen, ok := h.reg.session()
	require.True(h.t, ok, "registry must be running")

	h.reg.processDatagram(ctx, gen, []byte(raw), testSource)
}

func (h *harness) nextEvent() Event {
	h.t.Helper()

	select {
	case evt := <-h.events:
		return evt
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for registry event")
	}

	return Event{}
}

func (h *harness) requireNoEvent() {
	h.t.Helper()

	select {
	case evt := <-h.events:
		h.t.Fatalf("unexpected %s event for %q", evt.Type, evt.UDN)
	default:
	}
}

func notifyMsg(nts, nt, usn, location string, maxAge int) string {
	var b strings.Builder

	b.WriteString("NOTIFY * HTTP/1.1\r\nHOST: 239.255.255.250:1900\r\n")

	if maxAge > 0 {
		fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", maxAge)
	}

	if location != "" {
		b.WriteString("LOCATION: " + location + "\r\n")
	}

	if nt != "" {
		b.WriteString("NT: " + nt + "\r\n")
	}

	b.WriteString("NTS: " + nts + "\r\n")
	b.WriteString("SERVER: Linux/5.10 UPnP/1.0 Test/1.0\r\n")

	if usn != "" {
		b.WriteString("USN: " + usn + "\r\n")
	}

	b.WriteString("\r\n")

	return b.String()
}

func aliveMsg(usn, location string, maxAge int) string {
	return notifyMsg("ssdp:alive", "upnp:rootdevice", usn, location, maxAge)
}

func byebyeMsg(nt, usn string) string {
	return notifyMsg("ssdp:byebye", nt, usn, "", 0)
}

func responseMsg(st, usn, location string, maxAge int) string {
	var b strings.Builder

	b.WriteString("HTTP/1.1 200 OK\r\n")

	if maxAge > 0 {
		fmt.Fprintf(&b, "CACHE-CONTROL: max-age=%d\r\n", maxAge)
	}

	b.WriteString("EXT:\r\n")
	b.WriteString("LOCATION: " + location + "\r\n")
	b.WriteString("SERVER: Linux UPnP/1.0 Test/1.0\r\n")
	b.WriteString("ST: " + st + "\r\n")
	b.WriteString("USN: " + usn + "\r\n\r\n")

	return b.String()
}

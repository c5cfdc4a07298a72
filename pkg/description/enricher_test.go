package description

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
)

const deviceXML = `<?xml version="1.0" encoding="utf-8"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:MediaRenderer:1</deviceType>
    <friendlyName> Living Room TV </friendlyName>
    <manufacturer>Acme</manufacturer>
    <modelName>Screen 9000</modelName>
    <modelNumber>9000</modelNumber>
    <serialNumber>SN-1</serialNumber>
    <UDN>uuid:dev1</UDN>
    <presentationURL>/web/</presentationURL>
    <serviceList>
      <service>
        <serviceType>urn:schemas-upnp-org:service:AVTransport:1</serviceType>
        <serviceId>urn:upnp-org:serviceId:AVTransport</serviceId>
        <SCPDURL>avt.xml</SCPDURL>
        <controlURL>/ctl/avt</controlURL>
        <eventSubURL>/evt/avt</eventSubURL>
      </service>
    </serviceList>
    <deviceList>
      <device>
        <deviceType>urn:schemas-upnp-org:device:Embedded:1</deviceType>
        <UDN>uuid:dev1-sub</UDN>
        <serviceList>
          <service>
            <serviceType>urn:schemas-upnp-org:service:RenderingControl:1</serviceType>
            <serviceId>urn:upnp-org:serviceId:RenderingControl</serviceId>
            <SCPDURL>/rc.xml</SCPDURL>
            <controlURL>/ctl/rc</controlURL>
            <eventSubURL></eventSubURL>
          </service>
        </serviceList>
      </device>
    </deviceList>
  </device>
</root>`

const avtSCPD = `<?xml version="1.0"?>
<scpd xmlns="urn:schemas-upnp-org:service-1-0">
  <actionList>
    <action>
      <name>Play</name>
      <argumentList>
        <argument><name>InstanceID</name><direction>in</direction><relatedStateVariable>A_ARG_TYPE_InstanceID</relatedStateVariable></argument>
        <argument><name>Speed</name><direction>IN</direction><relatedStateVariable>TransportPlaySpeed</relatedStateVariable></argument>
      </argumentList>
    </action>
    <action><name>Stop</name></action>
  </actionList>
</scpd>`

const rcSCPD = `<scpd><actionList><action><name>GetVolume</name></action></actionList></scpd>`

type fixture struct {
	server   *httptest.Server
	requests atomic.Int32
	agent    atomic.Value
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()

	f := &fixture{}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		f.agent.Store(r.Header.Get("User-Agent"))

		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fixture) announcement(path string) *models.Announcement {
	return &models.Announcement{UDN: "dev1", USN: "uuid:dev1::upnp:rootdevice", Location: f.server.URL + path}
}

func TestEnrichBasicDoesNotFetch(t *testing.T) {
	f := newFixture(t, nil)

	details, err := NewEnricher(logger.NewTestLogger()).
		EnrichDevice(context.Background(), f.announcement("/desc.xml"), models.DetailBasic)
	require.NoError(t, err)

	assert.Equal(t, models.DetailBasic, details.Level())
	assert.Zero(t, f.requests.Load())
}

func TestEnrichDescription(t *testing.T) {
	f := newFixture(t, map[string]string{"/dev/desc.xml": deviceXML})

	e := NewEnricher(logger.NewTestLogger(), WithUserAgent("Linux/1 UPnP/1.1 ssdpradar/1"))

	details, err := e.EnrichDevice(context.Background(), f.announcement("/dev/desc.xml"), models.DetailDescription)
	require.NoError(t, err)
	require.Equal(t, models.DetailDescription, details.Level())

	desc, ok := details.Description()
	require.True(t, ok)
	assert.Equal(t, "Living Room TV", desc.FriendlyName)
	assert.Equal(t, "urn:schemas-upnp-org:device:MediaRenderer:1", desc.DeviceType)
	assert.Equal(t, "Acme", desc.Manufacturer)
	assert.Equal(t, "uuid:dev1", desc.UDN)
	assert.Equal(t, f.server.URL+"/dev/desc.xml", desc.URLBase)

	_, ok = details.Services()
	assert.False(t, ok)

	assert.Equal(t, int32(1), f.requests.Load())
	assert.Equal(t, "Linux/1 UPnP/1.1 ssdpradar/1", f.agent.Load())
}

func TestEnrichServicesResolvesURLs(t *testing.T) {
	f := newFixture(t, map[string]string{"/dev/desc.xml": deviceXML})

	details, err := NewEnricher(nil).
		EnrichDevice(context.Background(), f.announcement("/dev/desc.xml"), models.DetailServices)
	require.NoError(t, err)
	require.Equal(t, models.DetailServices, details.Level())

	services, ok := details.Services()
	require.True(t, ok)
	require.Len(t, services, 2)

	avt := services[0]
	assert.Equal(t, "urn:upnp-org:serviceId:AVTransport", avt.ServiceID)
	assert.Equal(t, f.server.URL+"/dev/avt.xml", avt.SCPDURL)
	assert.Equal(t, f.server.URL+"/ctl/avt", avt.ControlURL)
	assert.Equal(t, f.server.URL+"/evt/avt", avt.EventSubURL)
	assert.Empty(t, avt.Actions)

	rc := services[1]
	assert.Equal(t, f.server.URL+"/rc.xml", rc.SCPDURL)
	assert.Empty(t, rc.EventSubURL)

	assert.Equal(t, int32(1), f.requests.Load())
}

func TestEnrichFull(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/dev/desc.xml": deviceXML,
		"/dev/avt.xml":  avtSCPD,
		"/rc.xml":       rcSCPD,
	})

	details, err := NewEnricher(nil).
		EnrichDevice(context.Background(), f.announcement("/dev/desc.xml"), models.DetailFull)
	require.NoError(t, err)
	require.Equal(t, models.DetailFull, details.Level())

	services, _ := details.Services()
	require.Len(t, services, 2)

	require.Len(t, services[0].Actions, 2)
	play := services[0].Actions[0]
	assert.Equal(t, "Play", play.Name)
	require.Len(t, play.Arguments, 2)
	assert.Equal(t, models.Argument{Name: "Speed", Direction: "in", RelatedStateVariable: "TransportPlaySpeed"}, play.Arguments[1])
	assert.Equal(t, "Stop", services[0].Actions[1].Name)

	require.Len(t, services[1].Actions, 1)
	assert.Equal(t, "GetVolume", services[1].Actions[0].Name)

	assert.Equal(t, int32(3), f.requests.Load())
}

func TestEnrichFullFallsBackWhenSCPDMissing(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/dev/desc.xml": deviceXML,
		"/dev/avt.xml":  avtSCPD,
	})

	details, err := NewEnricher(nil).
		EnrichDevice(context.Background(), f.announcement("/dev/desc.xml"), models.DetailFull)
	require.NoError(t, err)

	assert.Equal(t, models.DetailServices, details.Level())
}

func TestEnrichHonorsURLBase(t *testing.T) {
	doc := strings.Replace(deviceXML, "<specVersion>",
		"<URLBase>http://192.0.2.10:49152/base/</URLBase><specVersion>", 1)
	f := newFixture(t, map[string]string{"/desc.xml": doc})

	details, err := NewEnricher(nil).
		EnrichDevice(context.Background(), f.announcement("/desc.xml"), models.DetailServices)
	require.NoError(t, err)

	services, _ := details.Services()
	require.NotEmpty(t, services)
	assert.Equal(t, "http://192.0.2.10:49152/base/avt.xml", services[0].SCPDURL)
	assert.Equal(t, "http://192.0.2.10:49152/ctl/avt", services[0].ControlURL)

	desc, _ := details.Description()
	assert.Equal(t, "http://192.0.2.10:49152/base/", desc.URLBase)
	assert.Equal(t, int32(1), f.requests.Load())
}

func TestEnrichErrors(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/bad.xml":   "<root><device>",
		"/empty.xml": `<root xmlns="urn:schemas-upnp-org:device-1-0"></root>`,
		"/other.xml": `<html></html>`,
	})

	e := NewEnricher(nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		location string
		target   error
	}{
		{"no location", "", ErrNoLocation},
		{"unsupported scheme", "ftp://10.0.0.5/desc.xml", ErrUnsupportedScheme},
		{"no host", "http:///desc.xml", errInvalidURL},
		{"not found", f.server.URL + "/missing.xml", ErrUnexpectedStatus},
		{"no device", f.server.URL + "/empty.xml", ErrNoDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EnrichDevice(ctx, &models.Announcement{UDN: "dev1", Location: tt.location}, models.DetailDescription)
			require.ErrorIs(t, err, tt.target)
		})
	}

	for _, path := range []string{"/bad.xml", "/other.xml"} {
		_, err := e.EnrichDevice(ctx, f.announcement(path), models.DetailDescription)
		require.Error(t, err, path)
	}

	_, err := e.EnrichDevice(ctx, nil, models.DetailDescription)
	require.ErrorIs(t, err, ErrNoLocation)
}

func TestEnrichTimesOut(t *testing.T) {
	release := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	e := NewEnricher(nil, WithTimeout(50*time.Millisecond))

	_, err := e.EnrichDevice(context.Background(), &models.Announcement{Location: srv.URL + "/desc.xml"}, models.DetailDescription)
	require.Error(t, err)
}

func TestEnrichRespectsContext(t *testing.T) {
	f := newFixture(t, map[string]string{"/desc.xml": deviceXML})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEnricher(nil).EnrichDevice(ctx, f.announcement("/desc.xml"), models.DetailDescription)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEnrichLimitsBodySize(t *testing.T) {
	f := newFixture(t, map[string]string{"/desc.xml": deviceXML})

	_, err := NewEnricher(nil, WithMaxBodyBytes(64)).
		EnrichDevice(context.Background(), f.announcement("/desc.xml"), models.DetailDescription)
	require.Error(t, err)
}

func TestResolve(t *testing.T) {
	base, err := url.Parse("http://10.0.0.5:8080/dev/desc.xml")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8080/dev/scpd.xml", resolve(base, "scpd.xml"))
	assert.Equal(t, "http://10.0.0.5:8080/scpd.xml", resolve(base, "/scpd.xml"))
	assert.Equal(t, "http://other/scpd.xml", resolve(base, "http://other/scpd.xml"))
	assert.Empty(t, resolve(base, "  "))
}

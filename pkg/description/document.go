package description

import (
	"encoding/xml"
	"strings"

	"github.com/carverauto/ssdpradar/pkg/models"
)

// rootDocument is the UPnP device description served at LOCATION.
type rootDocument struct {
	XMLName xml.Name       `xml:"root"`
	URLBase string         `xml:"URLBase"`
	Device  *deviceElement `xml:"device"`
}

type deviceElement struct {
	DeviceType      string           `xml:"deviceType"`
	FriendlyName    string           `xml:"friendlyName"`
	Manufacturer    string           `xml:"manufacturer"`
	ModelName       string           `xml:"modelName"`
	ModelNumber     string           `xml:"modelNumber"`
	SerialNumber    string           `xml:"serialNumber"`
	UDN             string           `xml:"UDN"`
	PresentationURL string           `xml:"presentationURL"`
	Services        []serviceElement `xml:"serviceList>service"`
	Devices         []deviceElement  `xml:"deviceList>device"`
}

type serviceElement struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// scpdDocument is a service control protocol description.
type scpdDocument struct {
	XMLName xml.Name        `xml:"scpd"`
	Actions []actionElement `xml:"actionList>action"`
}

type actionElement struct {
	Name      string            `xml:"name"`
	Arguments []argumentElement `xml:"argumentList>argument"`
}

type argumentElement struct {
	Name                 string `xml:"name"`
	Direction            string `xml:"direction"`
	RelatedStateVariable string `xml:"relatedStateVariable"`
}

func (d *deviceElement) description(urlBase string) models.DeviceDescription {
	return models.DeviceDescription{
		DeviceType:      strings.TrimSpace(d.DeviceType),
		FriendlyName:    strings.TrimSpace(d.FriendlyName),
		Manufacturer:    strings.TrimSpace(d.Manufacturer),
		ModelName:       strings.TrimSpace(d.ModelName),
		ModelNumber:     strings.TrimSpace(d.ModelNumber),
		SerialNumber:    strings.TrimSpace(d.SerialNumber),
		UDN:             strings.TrimSpace(d.UDN),
		PresentationURL: strings.TrimSpace(d.PresentationURL),
		URLBase:         urlBase,
	}
}

// allServices returns the services of the device and of every embedded
// device, depth first.
func (d *deviceElement) allServices() []serviceElement {
	out := append([]serviceElement(nil), d.Services...)

	for i := range d.Devices {
		out = append(out, d.Devices[i].allServices()...)
	}

	return out
}

func (a *actionElement) action() models.Action {
	act := models.Action{Name: strings.TrimSpace(a.Name)}

	for _, arg := range a.Arguments {
		act.Arguments = append(act.Arguments, models.Argument{
			Name:                 strings.TrimSpace(arg.Name),
			Direction:            strings.ToLower(strings.TrimSpace(arg.Direction)),
			RelatedStateVariable: strings.TrimSpace(arg.RelatedStateVariable),
		})
	}

	return act
}

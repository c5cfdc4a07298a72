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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var errUnknownDetailLevel = errors.New("unknown detail level")

// DetailLevel is the enrichment tier reached for a device. Levels are
// ordered; a higher level carries everything a lower one does.
type DetailLevel int

const (
	DetailBasic DetailLevel = iota
	DetailDescription
	DetailServices
	DetailFull
)

var detailLevelNames = map[DetailLevel]string{
	DetailBasic:       "basic",
	DetailDescription: "description",
	DetailServices:    "services",
	DetailFull:        "full",
}

func (l DetailLevel) String() string {
	if name, ok := detailLevelNames[l]; ok {
		return name
	}

	return fmt.Sprintf("DetailLevel(%d)", int(l))
}

// Valid reports whether l is one of the defined levels.
func (l DetailLevel) Valid() bool {
	_, ok := detailLevelNames[l]

	return ok
}

// ParseDetailLevel parses a level name case-insensitively.
func ParseDetailLevel(s string) (DetailLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))

	for level, n := range detailLevelNames {
		if n == name {
			return level, nil
		}
	}

	return DetailBasic, fmt.Errorf("%w: %q", errUnknownDetailLevel, s)
}

func (l DetailLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *DetailLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", errUnknownDetailLevel, string(b))
	}

	parsed, err := ParseDetailLevel(s)
	if err != nil {
		return err
	}

	*l = parsed

	return nil
}

// DeviceDescription holds the fields read from a device description document.
type DeviceDescription struct {
	DeviceType      string `json:"device_type"`
	FriendlyName    string `json:"friendly_name"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	ModelName       string `json:"model_name,omitempty"`
	ModelNumber     string `json:"model_number,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	UDN             string `json:"udn,omitempty"`
	PresentationURL string `json:"presentation_url,omitempty"`
	URLBase         string `json:"url_base,omitempty"`
}

// Argument is one argument of a service action.
type Argument struct {
	Name                 string `json:"name"`
	Direction            string `json:"direction"`
	RelatedStateVariable string `json:"related_state_variable,omitempty"`
}

// Action is a SOAP action declared in a service's SCPD.
type Action struct {
	Name      string     `json:"name"`
	Arguments []Argument `json:"arguments,omitempty"`
}

// ServiceDescription is one entry of a device's service list. Actions are
// only populated at DetailFull.
type ServiceDescription struct {
	ServiceType string   `json:"service_type"`
	ServiceID   string   `json:"service_id"`
	SCPDURL     string   `json:"scpd_url"`
	ControlURL  string   `json:"control_url"`
	EventSubURL string   `json:"event_sub_url"`
	Actions     []Action `json:"actions,omitempty"`
}

// Details is the enrichment payload of a device. The concrete type
// determines which fields are guaranteed to be present.
type Details interface {
	Level() DetailLevel
	Description() (DeviceDescription, bool)
	Services() ([]ServiceDescription, bool)
	clone() Details
}

// BasicDetails carries nothing beyond the announcement itself.
type BasicDetails struct{}

func (BasicDetails) Level() DetailLevel { return DetailBasic }
func (BasicDetails) Description() (DeviceDescription, bool) { return DeviceDescription{}, false }
func (BasicDetails) Services() ([]ServiceDescription, bool) { return nil, false }
func (d BasicDetails) clone() Details { return d }

// DescriptionDetails carries the parsed device description.
type DescriptionDetails struct {
	Desc DeviceDescription `json:"description"`
}

func (DescriptionDetails) Level() DetailLevel { return DetailDescription }
func (d DescriptionDetails) Description() (DeviceDescription, bool) { return d.Desc, true }
func (DescriptionDetails) Services() ([]ServiceDescription, bool) { return nil, false }
func (d DescriptionDetails) clone() Details { return d }

// ServicesDetails adds the service list of the root device.
type ServicesDetails struct {
	Desc        DeviceDescription    `json:"description"`
	ServiceList []ServiceDescription `json:"services"`
}

func (ServicesDetails) Level() DetailLevel { return DetailServices }
func (d ServicesDetails) Description() (DeviceDescription, bool) { return d.Desc, true }
func (d ServicesDetails) Services() ([]ServiceDescription, bool) { return d.ServiceList, true }
func (d ServicesDetails) clone() Details {
	d.ServiceList = cloneServices(d.ServiceList)

	return d
}

// FullDetails is ServicesDetails with every service's actions resolved.
type FullDetails struct {
	Desc        DeviceDescription    `json:"description"`
	ServiceList []ServiceDescription `json:"services"`
}

func (FullDetails) Level() DetailLevel { return DetailFull }
func (d FullDetails) Description() (DeviceDescription, bool) { return d.Desc, true }
func (d FullDetails) Services() ([]ServiceDescription, bool) { return d.ServiceList, true }
func (d FullDetails) clone() Details {
	d.ServiceList = cloneServices(d.ServiceList)

	return d
}

func cloneServices(in []ServiceDescription) []ServiceDescription {
	if in == nil {
		return nil
	}

	out := make([]ServiceDescription, len(in))

	for i, svc := range in {
		out[i] = svc

		if svc.Actions != nil {
			out[i].Actions = make([]Action, len(svc.Actions))

			for j, action := range svc.Actions {
				out[i].Actions[j] = action
				out[i].Actions[j].Arguments = append([]Argument(nil), action.Arguments...)
			}
		}
	}

	return out
}

// CloneDetails returns a deep copy of d. A nil value yields BasicDetails.
func CloneDetails(d Details) Details {
	if d == nil {
		return BasicDetails{}
	}

	return d.clone()
}

// RegisteredDevice is a tracked root device, keyed by UDN.
type RegisteredDevice struct {
	UDN        string            `json:"udn"`
	USN        string            `json:"usn"`
	Location   string            `json:"location,omitempty"`
	Server     string            `json:"server,omitempty"`
	Target     string            `json:"target"`
	RemoteAddr string            `json:"remote_addr"`
	RemotePort int               `json:"remote_port"`
	Headers    map[string]string `json:"headers,omitempty"`
	Details    Details           `json:"details"`
	FirstSeen  time.Time         `json:"first_seen"`
	LastSeen   time.Time         `json:"last_seen"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewRegisteredDevice builds a device record from an announcement.
func NewRegisteredDevice(a *Announcement, details Details, expiresAt time.Time) *RegisteredDevice {
	if details == nil {
		details = BasicDetails{}
	}

	return &RegisteredDevice{
		UDN:        a.UDN,
		USN:        a.USN,
		Location:   a.Location,
		Server:     a.Server,
		Target:     a.Target,
		RemoteAddr: a.RemoteAddr,
		RemotePort: a.RemotePort,
		Headers:    cloneHeaders(a.Headers),
		Details:    details,
		FirstSeen:  a.Timestamp,
		LastSeen:   a.Timestamp,
		ExpiresAt:  expiresAt,
	}
}

// DetailLevel returns the level of the stored details.
func (d *RegisteredDevice) DetailLevel() DetailLevel {
	if d == nil || d.Details == nil {
		return DetailBasic
	}

	return d.Details.Level()
}

// FriendlyName returns the description's friendly name, if known.
func (d *RegisteredDevice) FriendlyName() string {
	if d == nil || d.Details == nil {
		return ""
	}

	desc, ok := d.Details.Description()
	if !ok {
		return ""
	}

	return desc.FriendlyName
}

// Clone returns a deep copy safe to hand to callers.
func (d *RegisteredDevice) Clone() *RegisteredDevice {
	if d == nil {
		return nil
	}

	out := *d
	out.Headers = cloneHeaders(d.Headers)
	out.Details = CloneDetails(d.Details)

	return &out
}

// MarshalJSON adds the detail level alongside the details payload.
func (d *RegisteredDevice) MarshalJSON() ([]byte, error) {
	type Alias RegisteredDevice

	return json.Marshal(&struct {
		*Alias
		DetailLevel DetailLevel `json:"detail_level"`
	}{
		Alias:       (*Alias)(d),
		DetailLevel: d.DetailLevel(),
	})
}

// UnmarshalJSON restores the concrete details type named by detail_level.
func (d *RegisteredDevice) UnmarshalJSON(b []byte) error {
	type Alias RegisteredDevice

	aux := struct {
		*Alias
		Details     json.RawMessage `json:"details"`
		DetailLevel DetailLevel     `json:"detail_level"`
	}{
		Alias: (*Alias)(d),
	}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	details, err := decodeDetails(aux.DetailLevel, aux.Details)
	if err != nil {
		return err
	}

	d.Details = details

	return nil
}

func decodeDetails(level DetailLevel, raw json.RawMessage) (Details, error) {
	var (
		details Details
		err     error
	)

	switch level {
	case DetailBasic:
		return BasicDetails{}, nil
	case DetailDescription:
		var v DescriptionDetails
		err = unmarshalDetails(raw, &v)
		details = v
	case DetailServices:
		var v ServicesDetails
		err = unmarshalDetails(raw, &v)
		details = v
	case DetailFull:
		var v FullDetails
		err = unmarshalDetails(raw, &v)
		details = v
	default:
		return nil, fmt.Errorf("%w: %d", errUnknownDetailLevel, int(level))
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", level, err)
	}

	return details, nil
}

func unmarshalDetails(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	return json.Unmarshal(raw, v)
}

func cloneHeaders(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}

	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}

	return out
}

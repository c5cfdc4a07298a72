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

import "time"

// CloudEvents attribute values used for every published event.
const (
	CloudEventsSpecVersion = "1.0"
	CloudEventsContentType = "application/json"
)

// CloudEvent is the structured-mode JSON envelope of a CloudEvents 1.0
// event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// DeviceEventData is the payload of a device lifecycle CloudEvent.
type DeviceEventData struct {
	Event       string            `json:"event"`
	UDN         string            `json:"udn"`
	USN         string            `json:"usn,omitempty"`
	Location    string            `json:"location,omitempty"`
	Server      string            `json:"server,omitempty"`
	RemoteAddr  string            `json:"remote_addr,omitempty"`
	DetailLevel DetailLevel       `json:"detail_level"`
	Name        string            `json:"friendly_name,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Error       string            `json:"error,omitempty"`
	Device      *RegisteredDevice `json:"device,omitempty"`
}

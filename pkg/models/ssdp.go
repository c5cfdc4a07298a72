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

// MessageKind distinguishes SSDP requests (NOTIFY, M-SEARCH) from
// unicast search responses.
type MessageKind string

const (
	MessageKindRequest  MessageKind = "request"
	MessageKindResponse MessageKind = "response"
)

// Notification sub-types carried in the NTS header.
const (
	NTSAlive  = "ssdp:alive"
	NTSByeBye = "ssdp:byebye"
	NTSUpdate = "ssdp:update"
)

// Announcement is the normalized form of one accepted SSDP datagram.
type Announcement struct {
	USN        string            `json:"usn"`
	UDN        string            `json:"udn"`
	Location   string            `json:"location,omitempty"`
	Server     string            `json:"server,omitempty"`
	Target     string            `json:"target"` // ST for responses, NT for notifications
	RemoteAddr string            `json:"remote_addr"`
	RemotePort int               `json:"remote_port"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Kind       MessageKind       `json:"kind"`
	Method     string            `json:"method,omitempty"`
	NTS        string            `json:"nts,omitempty"`
	MaxAge     int               `json:"max_age,omitempty"` // seconds, 0 when absent
}

// IsByeBye reports whether the announcement is a byebye notification.
func (a *Announcement) IsByeBye() bool {
	return a != nil && a.NTS == NTSByeBye
}

// Header returns a header value by its lower-cased name.
func (a *Announcement) Header(name string) string {
	if a == nil || a.Headers == nil {
		return ""
	}

	return a.Headers[name]
}

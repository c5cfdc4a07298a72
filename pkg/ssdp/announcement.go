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

package ssdp

import (
	"net/netip"
	"strings"
	"time"

	"github.com/carverauto/ssdpradar/pkg/models"
)

// NewAnnouncement normalizes a parsed message received from src.
func NewAnnouncement(msg *Message, src netip.AddrPort, now time.Time) *models.Announcement {
	if msg == nil {
		return nil
	}

	usn := strings.TrimSpace(msg.Header("usn"))

	primary, fallback := "st", "nt"
	if msg.Method == MethodNotify {
		primary, fallback = "nt", "st"
	}

	target := msg.Header(primary)
	if strings.TrimSpace(target) == "" {
		target = msg.Header(fallback)
	}

	headers := make(map[string]string, len(msg.Headers))
	for k, v := range msg.Headers {
		headers[k] = v
	}

	var remote string
	if src.Addr().IsValid() {
		remote = src.Addr().Unmap().WithZone("").String()
	}

	return &models.Announcement{
		USN:        usn,
		UDN:        DeriveUDN(usn),
		Location:   strings.TrimSpace(msg.Header("location")),
		Server:     msg.Header("server"),
		Target:     strings.TrimSpace(target),
		RemoteAddr: remote,
		RemotePort: int(src.Port()),
		Headers:    headers,
		Timestamp:  now,
		Kind:       msg.Kind,
		Method:     msg.Method,
		NTS:        strings.ToLower(strings.TrimSpace(msg.Header("nts"))),
		MaxAge:     ParseMaxAge(msg.Header("cache-control")),
	}
}

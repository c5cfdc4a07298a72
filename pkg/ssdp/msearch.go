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
	"strconv"
	"strings"
)

// BuildMSearch renders the M-SEARCH request sent to host.
func BuildMSearch(host, searchTarget string, mx int, userAgent string) []byte {
	if mx <= 0 {
		mx = DefaultMX
	}

	var b strings.Builder

	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + host + "\r\n")
	b.WriteString("MAN: " + discoverMAN + "\r\n")
	b.WriteString("MX: " + strconv.Itoa(mx) + "\r\n")
	b.WriteString("ST: " + searchTarget + "\r\n")
	b.WriteString("USER-AGENT: " + userAgent + "\r\n")
	b.WriteString("\r\n")

	return []byte(b.String())
}

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

const (
	usnSeparator = "::"
	uuidPrefix   = "uuid:"
)

// DeriveUDN extracts the device identifier from a USN: the part before the
// first "::" without its "uuid:" prefix. "uuid:abc::upnp:rootdevice" and
// "uuid:abc" both yield "abc".
func DeriveUDN(usn string) string {
	udn := strings.TrimSpace(usn)

	if i := strings.Index(udn, usnSeparator); i >= 0 {
		udn = udn[:i]
	}

	return strings.TrimPrefix(udn, uuidPrefix)
}

// IsRootDevice reports whether a message with the given target and USN
// speaks for the root device identified by udn.
func IsRootDevice(target, usn, udn string) bool {
	if target == RootDevice {
		return true
	}

	if usn == udn {
		return true
	}

	return strings.HasPrefix(usn, udn) && strings.Contains(usn, usnSeparator+RootDevice)
}

// ParseMaxAge returns the max-age directive of a CACHE-CONTROL value in
// seconds, or 0 when it is absent or malformed.
func ParseMaxAge(cacheControl string) int {
	for _, directive := range strings.Split(cacheControl, ",") {
		key, value, ok := strings.Cut(directive, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "max-age") {
			continue
		}

		n, err := strconv.Atoi(strings.Trim(strings.TrimSpace(value), `"`))
		if err != nil || n < 0 {
			return 0
		}

		return n
	}

	return 0
}

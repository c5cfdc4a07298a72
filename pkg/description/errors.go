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


package description

import "errors"

var (
	// ErrNoLocation is returned when an announcement carries no description URL.
	ErrNoLocation = errors.New("announcement has no location")
	// ErrUnsupportedScheme is returned for description URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported description url scheme")
	// ErrUnexpectedStatus is returned for non-2xx HTTP responses.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrNoDevice is returned when a description document has no root device.
	ErrNoDevice = errors.New("description has no device element")

	errInvalidURL = errors.New("invalid url")
)

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

package registry

import "errors"

var (
	// ErrNoDetails is reported when an enricher returns neither details nor an error.
	ErrNoDetails = errors.New("enricher returned no details")
	// ErrEnricherUnavailable is returned by the placeholder used when no enricher is configured.
	ErrEnricherUnavailable = errors.New("no enricher configured")
	// ErrEnricherPanic wraps a recovered enricher panic.
	ErrEnricherPanic = errors.New("enricher panicked")

	errInvalidInterval    = errors.New("interval must be positive")
	errInvalidDetailLevel = errors.New("invalid detail level")
	errInvalidMX          = errors.New("mx must be between 1 and 120")
	errInvalidTTL         = errors.New("multicast_ttl must be between 1 and 255")
	errBadSearchTarget    = errors.New("search_target must be a single line")
)

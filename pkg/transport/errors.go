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

package transport

import "errors"

var (
	// ErrNoSockets is returned by Open when no IPv4 socket could be created.
	ErrNoSockets = errors.New("no usable ssdp sockets")
	// ErrSocketUnavailable is returned when a send targets a socket that was never created.
	ErrSocketUnavailable = errors.New("ssdp socket unavailable")
	// ErrNoInterfaces means no interface qualified for a socket's address family.
	ErrNoInterfaces = errors.New("no usable network interfaces")
	// ErrJoinFailed means the socket could not join its group on any interface.
	ErrJoinFailed = errors.New("failed to join multicast group on any interface")
	// ErrSendFailed means a datagram could not be sent on any interface.
	ErrSendFailed = errors.New("failed to send on any interface")

	errUnsupportedFamily = errors.New("unsupported address family")
)

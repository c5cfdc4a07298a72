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


package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Logger is the handle injected into every component. Components scope it
// with WithComponent instead of reaching for the package-level logger.
type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	WithFields(fields map[string]interface{}) zerolog.Logger
	SetLevel(level zerolog.Level)
	SetDebug(debug bool)
}

// handle satisfies Logger through the embedded zerolog methods.
type handle struct {
	zerolog.Logger
}

var _ Logger = (*handle)(nil)

// New wraps an existing zerolog logger.
func New(l zerolog.Logger) Logger {
	return &handle{Logger: l}
}

// NewTestLogger returns a Logger that drops everything.
func NewTestLogger() Logger {
	return New(zerolog.New(io.Discard).Level(zerolog.Disabled))
}

// Scoped returns parent tagged with a component field. A nil parent yields
// a discarding logger.
func Scoped(parent Logger, component string) Logger {
	if parent == nil {
		return NewTestLogger()
	}

	return New(parent.WithComponent(component))
}

func (h *handle) WithComponent(component string) zerolog.Logger {
	return h.Logger.With().Str(componentField, component).Logger()
}

func (h *handle) WithFields(fields map[string]interface{}) zerolog.Logger {
	return h.Logger.With().Fields(fields).Logger()
}

func (h *handle) SetLevel(level zerolog.Level) {
	h.Logger = h.Logger.Level(level)
}

func (h *handle) SetDebug(debug bool) {
	h.SetLevel(debugLevel(debug))
}

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


// Package logger provides JSON structured logging using zerolog, with
// optional OTLP export of logs, metrics and traces.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const componentField = "component"

//nolint:gochecknoglobals // process-wide default logger
var (
	rootMu sync.RWMutex
	root   = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Config selects the level, destination and OTel export of the process logger.
type Config struct {
	Level      string     `json:"level" yaml:"level"`
	Debug      bool       `json:"debug" yaml:"debug"`
	Output     string     `json:"output" yaml:"output"`
	TimeFormat string     `json:"time_format" yaml:"time_format"`
	OTel       OTelConfig `json:"otel" yaml:"otel"`
}

// level resolves the effective level. Debug wins over Level.
func (c *Config) level() (zerolog.Level, error) {
	switch {
	case c.Debug:
		return zerolog.DebugLevel, nil
	case c.Level == "":
		return zerolog.InfoLevel, nil
	}

	lvl, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	return lvl, nil
}

// writer returns the local destination, teed into an OTLP log exporter when
// OTel logging is configured.
func (c *Config) writer(ctx context.Context) (io.Writer, error) {
	var out io.Writer = os.Stdout
	if c.Output == "stderr" {
		out = os.Stderr
	}

	if !c.OTel.exporting() {
		return out, nil
	}

	otelWriter, err := NewOTelWriter(ctx, c.OTel)
	if err != nil {
		return nil, err
	}

	return NewMultiWriter(out, otelWriter), nil
}

// Init replaces the process-wide logger. A nil config falls back to
// DefaultConfig.
func Init(ctx context.Context, config *Config) error {
	if config == nil {
		config = DefaultConfig()
	}

	lvl, err := config.level()
	if err != nil {
		return err
	}

	out, err := config.writer(ctx)
	if err != nil {
		return err
	}

	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}

	replaceRoot(zerolog.New(out).Level(lvl).With().Timestamp().Logger())

	return nil
}

func replaceRoot(l zerolog.Logger) {
	rootMu.Lock()
	root = l
	log.Logger = l
	rootMu.Unlock()
}

// SetLevel changes the level of the process-wide logger.
func SetLevel(level zerolog.Level) {
	replaceRoot(GetLogger().Level(level))
}

// SetDebug toggles between debug and info.
func SetDebug(debug bool) {
	SetLevel(debugLevel(debug))
}

func debugLevel(debug bool) zerolog.Level {
	if debug {
		return zerolog.DebugLevel
	}

	return zerolog.InfoLevel
}

// GetLogger returns the process-wide logger.
func GetLogger() zerolog.Logger {
	rootMu.RLock()
	defer rootMu.RUnlock()

	return root
}

// WithComponent returns the process-wide logger tagged with a component field.
func WithComponent(component string) zerolog.Logger {
	return GetLogger().With().Str(componentField, component).Logger()
}

// Shutdown flushes any OTel pipelines started by this package.
func Shutdown() error {
	return ShutdownOTel()
}

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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/ssdpradar/pkg/models"
)

// Environment variables consulted by DefaultConfig and DefaultOTelConfig.
// The signal-specific OTLP variables win over the generic ones.
const (
	envLogLevel      = "LOG_LEVEL"
	envDebug         = "DEBUG"
	envLogOutput     = "LOG_OUTPUT"
	envLogTimeFormat = "LOG_TIME_FORMAT"

	envOTelLogsEnabled = "OTEL_LOGS_ENABLED"
	envOTelServiceName = "OTEL_SERVICE_NAME"
	envOTLPEndpoint    = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOTLPLogsEnd     = "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"
	envOTLPHeaders     = "OTEL_EXPORTER_OTLP_HEADERS"
	envOTLPLogsHeaders = "OTEL_EXPORTER_OTLP_LOGS_HEADERS"
	envOTLPInsecure    = "OTEL_EXPORTER_OTLP_INSECURE"
	envOTLPLogsInsec   = "OTEL_EXPORTER_OTLP_LOGS_INSECURE"
	envOTLPLogsTimeout = "OTEL_EXPORTER_OTLP_LOGS_TIMEOUT"

	defaultBatchTimeout = 5 * time.Second
)

// DefaultConfig builds a Config from the environment.
func DefaultConfig() *Config {
	return &Config{
		Level:      envString("info", envLogLevel),
		Debug:      envBool(false, envDebug),
		Output:     envString("stdout", envLogOutput),
		TimeFormat: envString("", envLogTimeFormat),
		OTel:       DefaultOTelConfig(),
	}
}

// DefaultOTelConfig builds the OTLP export settings from the standard
// OTEL_* variables. Export stays off unless OTEL_LOGS_ENABLED is set.
func DefaultOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      envBool(false, envOTelLogsEnabled),
		Endpoint:     envString("", envOTLPLogsEnd, envOTLPEndpoint),
		Headers:      parseHeaders(envString("", envOTLPLogsHeaders, envOTLPHeaders)),
		ServiceName:  envString(defaultServiceName, envOTelServiceName),
		BatchTimeout: models.Duration(envDuration(defaultBatchTimeout, envOTLPLogsTimeout)),
		Insecure:     envBool(false, envOTLPLogsInsec, envOTLPInsecure),
	}
}

// envString returns the first non-empty variable among keys.
func envString(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}

	return fallback
}

func envBool(fallback bool, keys ...string) bool {
	raw := strings.ToLower(envString("", keys...))

	switch raw {
	case "":
		return fallback
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}

	return b
}

func envDuration(fallback time.Duration, keys ...string) time.Duration {
	raw := envString("", keys...)
	if raw == "" {
		return fallback
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}

	// OTLP timeouts are specified in milliseconds.
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}

	return fallback
}

// parseHeaders reads the "k1=v1,k2=v2" OTLP header format.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if key = strings.TrimSpace(key); key != "" {
			headers[key] = strings.TrimSpace(value)
		}
	}

	return headers
}

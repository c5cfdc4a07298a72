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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var ErrOTelLoggingDisabled = errors.New("OTel logging is disabled")

const (
	maxAttributeValueLength = 4096
	defaultScopeName        = "ssdpradar-logger"
	shutdownTimeout         = 10 * time.Second
)

//nolint:gochecknoglobals // tracked for shutdown
var (
	logProvider   *sdklog.LoggerProvider
	logProviderMu sync.Mutex
)

// OTelWriter turns zerolog JSON lines into OTel log records, one
// instrumentation scope per component.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]otellog.Logger
}

// NewOTelWriter starts an OTLP log pipeline and installs it as the global
// LoggerProvider.
func NewOTelWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	opts, err := grpcOptions(&config,
		otlploggrpc.WithEndpoint, otlploggrpc.WithInsecure, otlploggrpc.WithTLSCredentials, otlploggrpc.WithHeaders)
	if err != nil {
		return nil, err
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, "")
	if err != nil {
		return nil, err
	}

	timeout := config.BatchTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(timeout))),
	)

	logProviderMu.Lock()
	logProvider = provider
	logProviderMu.Unlock()

	global.SetLoggerProvider(provider)

	return &OTelWriter{ctx: ctx, provider: provider, scopes: make(map[string]otellog.Logger)}, nil
}

// Write never fails. Lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(p))
	dec.UseNumber()

	var entry map[string]interface{}
	if err := dec.Decode(&entry); err != nil {
		return len(p), nil
	}

	var record otellog.Record

	if ts, ok := take(entry, zerolog.TimestampFieldName); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			record.SetTimestamp(parsed)
		}
	}

	if lvl, ok := take(entry, zerolog.LevelFieldName); ok {
		record.SetSeverity(mapZerologLevelToOTel(lvl))
		record.SetSeverityText(lvl)
	}

	if msg, ok := take(entry, zerolog.MessageFieldName); ok {
		record.SetBody(otellog.StringValue(msg))
	}

	scope, ok := take(entry, componentField)
	if !ok || scope == "" {
		scope = defaultScopeName
	}

	for key, value := range entry {
		record.AddAttributes(otellog.KeyValue{Key: key, Value: attributeValue(value)})
	}

	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scope(name string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[name]
	if !ok {
		l = w.provider.Logger(name)
		w.scopes[name] = l
	}

	return l
}

// take removes a string field from entry.
func take(entry map[string]interface{}, key string) (string, bool) {
	s, ok := entry[key].(string)
	if ok {
		delete(entry, key)
	}

	return s, ok
}

func attributeValue(value interface{}) otellog.Value {
	switch v := value.(type) {
	case string:
		return otellog.StringValue(truncate(v))
	case bool:
		return otellog.BoolValue(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return otellog.Int64Value(i)
		}

		if f, err := v.Float64(); err == nil {
			return otellog.Float64Value(f)
		}

		return otellog.StringValue(v.String())
	case nil:
		return otellog.StringValue("null")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return otellog.StringValue(truncate(fmt.Sprint(value)))
	}

	return otellog.StringValue(truncate(string(raw)))
}

func truncate(s string) string {
	if len(s) <= maxAttributeValueLength {
		return s
	}

	return strings.ToValidUTF8(s[:maxAttributeValueLength-3], "") + "..."
}

func mapZerologLevelToOTel(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

// ShutdownOTel flushes the log, metric and trace providers created here.
func ShutdownOTel() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logProviderMu.Lock()
	provider := logProvider
	logProvider = nil
	logProviderMu.Unlock()

	var errs []error

	if provider != nil {
		errs = append(errs, provider.Shutdown(ctx))
	}

	errs = append(errs, shutdownMeterProvider(ctx), shutdownTracerProvider(ctx))

	return errors.Join(errs...)
}

// MultiWriter fans a log line out to several writers, stopping at the first
// failure.
type MultiWriter struct {
	writers []io.Writer
}

func NewMultiWriter(writers ...io.Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (mw *MultiWriter) Write(p []byte) (int, error) {
	for _, w := range mw.writers {
		n, err := w.Write(p)
		if err != nil {
			return n, err
		}

		if n != len(p) {
			return n, io.ErrShortWrite
		}
	}

	return len(p), nil
}

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


// Package description is the default device enricher. It fetches the UPnP
// device description from an announcement's LOCATION and, for deeper detail
// levels, each service's SCPD document.
package description

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
)

const (
	tracerName = "ssdpradar.description"

	defaultTimeout      = 5 * time.Second
	defaultMaxBodyBytes = 1 << 20
)

// Enricher fetches device descriptions over HTTP.
type Enricher struct {
	client       *http.Client
	logger       logger.Logger
	tracer       trace.Tracer
	userAgent    string
	maxBodyBytes int64
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithHTTPClient replaces the HTTP client. Its timeout bounds each request.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Enricher) {
		if c != nil {
			e.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(e *Enricher) {
		if d > 0 {
			e.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(e *Enricher) {
		e.userAgent = ua
	}
}

// WithMaxBodyBytes caps how much of each document is read.
func WithMaxBodyBytes(n int64) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.maxBodyBytes = n
		}
	}
}

// NewEnricher returns an Enricher with a 5s request timeout.
func NewEnricher(log logger.Logger, opts ...Option) *Enricher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	e := &Enricher{
		client:       &http.Client{Timeout: defaultTimeout},
		logger:       log,
		tracer:       otel.Tracer(tracerName),
		maxBodyBytes: defaultMaxBodyBytes,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// EnrichDevice fetches as much detail as level asks for. Basic needs no
// fetch. At DetailFull a service whose SCPD cannot be read makes the result
// fall back to DetailServices, so the caller can retry later.
func (e *Enricher) EnrichDevice(
	ctx context.Context, ann *models.Announcement, level models.DetailLevel,
) (models.Details, error) {
	if level <= models.DetailBasic {
		return models.BasicDetails{}, nil
	}

	if ann == nil || ann.Location == "" {
		return nil, ErrNoLocation
	}

	location, err := parseHTTPURL(ann.Location)
	if err != nil {
		return nil, err
	}

	var doc rootDocument
	if err := e.fetchXML(ctx, location.String(), &doc); err != nil {
		return nil, fmt.Errorf("device description %s: %w", location, err)
	}

	if doc.Device == nil {
		return nil, fmt.Errorf("device description %s: %w", location, ErrNoDevice)
	}

	base := location
	if doc.URLBase != "" {
		if b, err := parseHTTPURL(strings.TrimSpace(doc.URLBase)); err == nil {
			base = b
		} else {
			e.logger.Debug().Err(err).Str("url_base", doc.URLBase).Msg("Ignoring invalid URLBase")
		}
	}

	desc := doc.Device.description(base.String())

	if level == models.DetailDescription {
		return models.DescriptionDetails{Desc: desc}, nil
	}

	services := e.services(base, doc.Device.allServices())

	if level == models.DetailServices {
		return models.ServicesDetails{Desc: desc, ServiceList: services}, nil
	}

	if !e.resolveActions(ctx, services) {
		return models.ServicesDetails{Desc: desc, ServiceList: services}, nil
	}

	return models.FullDetails{Desc: desc, ServiceList: services}, nil
}

func (e *Enricher) services(base *url.URL, elems []serviceElement) []models.ServiceDescription {
	out := make([]models.ServiceDescription, 0, len(elems))

	for _, s := range elems {
		out = append(out, models.ServiceDescription{
			ServiceType: strings.TrimSpace(s.ServiceType),
			ServiceID:   strings.TrimSpace(s.ServiceID),
			SCPDURL:     resolve(base, s.SCPDURL),
			ControlURL:  resolve(base, s.ControlURL),
			EventSubURL: resolve(base, s.EventSubURL),
		})
	}

	return out
}

// resolveActions fills in the actions of every service, reporting whether
// all SCPD documents were read.
func (e *Enricher) resolveActions(ctx context.Context, services []models.ServiceDescription) bool {
	complete := true

	for i := range services {
		svc := &services[i]

		if svc.SCPDURL == "" {
			continue
		}

		var doc scpdDocument
		if err := e.fetchXML(ctx, svc.SCPDURL, &doc); err != nil {
			e.logger.Warn().Err(err).Str("service", svc.ServiceType).Str("scpd_url", svc.SCPDURL).
				Msg("Failed to fetch service description")

			complete = false

			continue
		}

		svc.Actions = make([]models.Action, 0, len(doc.Actions))
		for j := range doc.Actions {
			svc.Actions = append(svc.Actions, doc.Actions[j].action())
		}
	}

	return complete
}

func (e *Enricher) fetchXML(ctx context.Context, rawURL string, dst interface{}) (err error) {
	ctx, span := e.tracer.Start(ctx, "description.Fetch", trace.WithAttributes(
		attribute.String("http.url", rawURL),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, e.maxBodyBytes))

		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	dec := xml.NewDecoder(io.LimitReader(resp.Body, e.maxBodyBytes))
	dec.CharsetReader = passThroughCharset

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("failed to decode xml: %w", err)
	}

	return nil
}

// passThroughCharset accepts the charsets devices commonly declare. Bodies
// are read as-is; UPnP documents are UTF-8 in practice.
func passThroughCharset(_ string, input io.Reader) (io.Reader, error) {
	return input, nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errInvalidURL, raw, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w %q: missing host", errInvalidURL, raw)
	}

	return u, nil
}

// resolve makes ref absolute against base. Empty refs stay empty and
// unparsable ones are returned unchanged.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}

	return base.ResolveReference(u).String()
}

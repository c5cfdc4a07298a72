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


package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/carverauto/ssdpradar/pkg/config"
	"github.com/carverauto/ssdpradar/pkg/description"
	"github.com/carverauto/ssdpradar/pkg/lifecycle"
	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/natsutil"
	"github.com/carverauto/ssdpradar/pkg/registry"
	"github.com/carverauto/ssdpradar/pkg/version"
)

const serviceName = "ssdp-discovery"

var (
	configFile   = flag.String("config", "", "Path to config file")
	searchTarget = flag.String("search-target", "", "M-SEARCH target (default ssdp:all)")
	includeIPv6  = flag.Bool("ipv6", false, "Also search and listen on IPv6 link-local")
	detailLevel  = flag.String("detail-level", "", "Enrichment target: basic, description, services or full")
	interfaces   = flag.String("interfaces", "", "Comma-separated interface names to use")
	natsURL      = flag.String("nats-url", "", "Publish registry events to this NATS server")
	natsStream   = flag.String("nats-stream", "", "JetStream stream for registry events")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetFullVersion())

		return nil
	}

	ctx := context.Background()

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, serviceName, cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	initTelemetry(ctx, cfg, mainLogger)

	enricher := description.NewEnricher(logger.Scoped(mainLogger, "description"),
		description.WithTimeout(cfg.DescriptionTimeout.Duration()),
		description.WithUserAgent(cfg.Registry.UserAgent))

	reg, err := registry.NewDeviceRegistry(cfg.Registry, enricher, logger.Scoped(mainLogger, "registry"))
	if err != nil {
		return err
	}

	reg.Subscribe(newEventPrinter(mainLogger))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Events.Enabled {
		closeEvents, err := startEventPublisher(runCtx, cfg, reg, logger.Scoped(mainLogger, "events"))
		if err != nil {
			return err
		}

		defer closeEvents()
	}

	mainLogger.Info().Str("version", version.GetFullVersion()).Msg("Starting SSDP discovery")

	err = lifecycle.RunService(runCtx, &lifecycle.ServiceOptions{
		ServiceName:     serviceName,
		Service:         reg,
		Logger:          mainLogger,
		ShutdownTimeout: cfg.ShutdownTimeout.Duration(),
	})
	if err != nil {
		return err
	}

	mainLogger.Info().Msg("SSDP discovery stopped")

	return nil
}

// loadConfig reads the config file or environment when one is selected,
// then applies command-line overrides.
func loadConfig(ctx context.Context) (*Config, error) {
	cfg := defaultConfig()

	if *configFile != "" || config.SourceFromEnv() == config.SourceEnv {
		if err := config.NewConfig(nil).LoadAndValidate(ctx, *configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if err := applyFlags(&cfg); err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyFlags overrides cfg with the flags given on the command line.
func applyFlags(cfg *Config) error {
	var err error

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "search-target":
			cfg.Registry.SearchTarget = *searchTarget
		case "ipv6":
			cfg.Registry.IncludeIPv6 = *includeIPv6
		case "detail-level":
			var level models.DetailLevel

			level, err = models.ParseDetailLevel(*detailLevel)
			cfg.Registry.DetailLevel = level
		case "interfaces":
			cfg.Registry.NetworkInterfaces = splitList(*interfaces)
		case "nats-url":
			if cfg.NATS == nil {
				cfg.NATS = &models.NATSConfig{}
			}

			cfg.NATS.URL = *natsURL
			cfg.Events.Enabled = true
		case "nats-stream":
			cfg.Events.StreamName = *natsStream
		}
	})

	return err
}

func splitList(s string) []string {
	var out []string

	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

func initTelemetry(ctx context.Context, cfg *Config, log logger.Logger) {
	otelCfg := cfg.Logging.OTel

	if _, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		Logger:         log,
		OTel:           &otelCfg,
	}); err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing")
	}

	_, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetVersion(),
		OTel:           &otelCfg,
	})
	if err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		log.Warn().Err(err).Msg("Failed to initialize metrics")
	}
}

// startEventPublisher connects to NATS and subscribes a publisher to the
// registry. The returned func flushes pending events and drains the
// connection.
func startEventPublisher(
	ctx context.Context, cfg *Config, reg *registry.DeviceRegistry, log logger.Logger,
) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	nc, err := natsutil.Connect(ctx, cfg.NATS, log)
	if err != nil {
		cancel()

		return nil, err
	}

	publisher, err := natsutil.CreateEventPublisher(ctx, nc, cfg.NATS.Domain, cfg.Events, log,
		natsutil.WithSource(serviceName+"/"+hostname()))
	if err != nil {
		cancel()
		nc.Close()

		return nil, err
	}

	unsubscribe := reg.Subscribe(publisher)
	done := make(chan struct{})

	go func() {
		defer close(done)

		publisher.Run(ctx)
	}()

	return func() {
		unsubscribe()
		cancel()
		<-done

		if err := nc.Drain(); err != nil {
			log.Warn().Err(err).Msg("Failed to drain NATS connection")
		}
	}, nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}

	return name
}

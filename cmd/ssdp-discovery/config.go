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
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/ssdpradar/pkg/logger"
	"github.com/carverauto/ssdpradar/pkg/models"
	"github.com/carverauto/ssdpradar/pkg/registry"
)

const (
	defaultDescriptionTimeout = 5 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
)

var errNATSRequired = errors.New("events enabled but nats is not configured")

// Config is the on-disk configuration of the ssdp-discovery command.
type Config struct {
	Registry           registry.Config     `json:"registry"`
	Logging            *logger.Config      `json:"logging,omitempty"`
	NATS               *models.NATSConfig  `json:"nats,omitempty"`
	Events             models.EventsConfig `json:"events"`
	DescriptionTimeout models.Duration     `json:"description_timeout"`
	ShutdownTimeout    models.Duration     `json:"shutdown_timeout"`
}

func defaultConfig() Config {
	return Config{
		Registry:           registry.DefaultConfig(),
		Logging:            logger.DefaultConfig(),
		DescriptionTimeout: models.Duration(defaultDescriptionTimeout),
		ShutdownTimeout:    models.Duration(defaultShutdownTimeout),
	}
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if err := c.Registry.Validate(); err != nil {
		return fmt.Errorf("registry: %w", err)
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}

	if c.DescriptionTimeout <= 0 {
		c.DescriptionTimeout = models.Duration(defaultDescriptionTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = models.Duration(defaultShutdownTimeout)
	}

	if !c.Events.Enabled {
		return nil
	}

	if c.NATS == nil {
		return errNATSRequired
	}

	if err := c.NATS.Validate(); err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	return c.Events.Validate()
}

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


// Package config loads JSON service configuration from a file or from
// environment variables, selected by CONFIG_SOURCE.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/carverauto/ssdpradar/pkg/logger"
)

var (
	errInvalidConfigSource = errors.New("invalid CONFIG_SOURCE value")
	errInvalidConfigPtr    = errors.New("config must be a non-nil pointer")
)

// Source names where LoadAndValidate reads configuration from.
type Source string

const (
	SourceFile Source = "file"
	SourceEnv  Source = "env"

	// DefaultEnvPrefix prefixes every variable read by the env loader.
	DefaultEnvPrefix = "SSDPRADAR_"

	envConfigSource = "CONFIG_SOURCE"
	envConfigPrefix = "CONFIG_ENV_PREFIX"
)

// SourceFromEnv reads CONFIG_SOURCE. Unset means SourceFile.
func SourceFromEnv() Source {
	s := Source(strings.ToLower(strings.TrimSpace(os.Getenv(envConfigSource))))
	if s == "" {
		return SourceFile
	}

	return s
}

// Config loads and validates service configuration.
type Config struct {
	file   ConfigLoader
	logger logger.Logger
}

// NewConfig returns a Config. A nil logger discards loader output.
func NewConfig(log logger.Logger) *Config {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Config{file: &FileConfigLoader{logger: log}, logger: log}
}

// LoadAndValidate fills cfg from the source named by CONFIG_SOURCE, then
// runs its Validate method when it has one.
func (c *Config) LoadAndValidate(ctx context.Context, path string, cfg interface{}) error {
	if cfg == nil {
		return errInvalidConfigPtr
	}

	loader, err := c.loader(SourceFromEnv())
	if err != nil {
		return err
	}

	if err := loader.Load(ctx, path, cfg); err != nil {
		return err
	}

	return ValidateConfig(cfg)
}

func (c *Config) loader(src Source) (ConfigLoader, error) {
	switch src {
	case SourceFile:
		return c.file, nil
	case SourceEnv:
		prefix := os.Getenv(envConfigPrefix)
		if prefix == "" {
			prefix = DefaultEnvPrefix
		}

		return NewEnvConfigLoader(c.logger, prefix), nil
	}

	return nil, fmt.Errorf("%w: %q (expected %q or %q)", errInvalidConfigSource, src, SourceFile, SourceEnv)
}

// ValidateConfig runs cfg's Validate method when it implements Validator.
func ValidateConfig(cfg interface{}) error {
	if v, ok := cfg.(Validator); ok {
		return v.Validate()
	}

	return nil
}

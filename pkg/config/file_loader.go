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


package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/carverauto/ssdpradar/pkg/logger"
)

var errConfigPathRequired = errors.New("config file path is required")

//nolint:gochecknoglobals // constant byte sequence
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileConfigLoader reads a JSON document from disk.
type FileConfigLoader struct {
	logger logger.Logger
}

// Load implements ConfigLoader. A leading UTF-8 byte order mark is ignored.
func (f *FileConfigLoader) Load(_ context.Context, path string, dst interface{}) error {
	if path == "" {
		return errConfigPathRequired
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file '%s': %w", path, err)
	}

	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), dst); err != nil {
		return fmt.Errorf("failed to unmarshal JSON from '%s': %w", path, err)
	}

	if f.logger != nil {
		f.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Loaded configuration file")
	}

	return nil
}

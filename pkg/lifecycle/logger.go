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


package lifecycle

import (
	"context"
	"fmt"

	"github.com/carverauto/ssdpradar/pkg/logger"
)

// CreateComponentLogger initializes the process logger from config (the
// environment defaults when nil) and returns a handle tagged with component.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	if err := logger.Init(ctx, config); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return logger.New(logger.WithComponent(component)), nil
}

// ShutdownLogger flushes pending OTel logs, metrics and spans.
func ShutdownLogger() error {
	return logger.Shutdown()
}

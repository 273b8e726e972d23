// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"net/url"
	"strings"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

var validLogLevels = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks that the configuration is usable. All problems are
// reported together in one *errors.ConfigError.
func (c *Config) Validate() error {
	var errs []string

	switch c.Broker.Kind {
	case BrokerAMQP:
		if !strings.HasPrefix(c.Broker.URL, "amqp://") && !strings.HasPrefix(c.Broker.URL, "amqps://") {
			errs = append(errs, fmt.Sprintf("broker.url must be an amqp:// or amqps:// URI, got %q", redact(c.Broker.URL)))
		}
	case BrokerMemory:
	default:
		errs = append(errs, fmt.Sprintf("broker.kind must be one of [amqp, memory], got %q", c.Broker.Kind))
	}
	if c.Broker.Queue == "" {
		errs = append(errs, "broker.queue is required")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		errs = append(errs, fmt.Sprintf("worker.heartbeat_interval must be positive, got %v", c.Worker.HeartbeatInterval))
	}
	if c.Worker.Retention < 0 {
		errs = append(errs, fmt.Sprintf("worker.retention must not be negative, got %v", c.Worker.Retention))
	}
	if c.API.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.shutdown_timeout must be positive, got %v", c.API.ShutdownTimeout))
	}

	if c.Client.Retries < 0 {
		errs = append(errs, fmt.Sprintf("client.retries must not be negative, got %d", c.Client.Retries))
	}
	if c.Client.Interval < 0 {
		errs = append(errs, fmt.Sprintf("client.interval must not be negative, got %v", c.Client.Interval))
	}
	if u, err := url.Parse(c.Client.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Sprintf("client.url must be an http(s) URL, got %q", c.Client.URL))
	}

	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Tracing.Sampling.Rate < 0 || c.Tracing.Sampling.Rate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sampling.rate must be between 0 and 1, got %v", c.Tracing.Sampling.Rate))
	}
	prop := c.Tracing.Propagation
	if prop.TraceParentHeader == "" {
		errs = append(errs, "tracing.propagation.traceparent_header is required")
	}
	if prop.TraceParentHeader != "" && strings.EqualFold(prop.TraceParentHeader, prop.BaggageHeader) {
		errs = append(errs, "tracing.propagation headers must differ")
	}
	for i, exp := range c.Tracing.Exporters {
		switch exp.Type {
		case "otlp", "otlp_http", "otlp-http":
			if exp.Endpoint == "" {
				errs = append(errs, fmt.Sprintf("tracing.exporters[%d].endpoint is required for %s", i, exp.Type))
			}
		case "console", "none":
		default:
			errs = append(errs, fmt.Sprintf("tracing.exporters[%d].type %q is not supported", i, exp.Type))
		}
	}

	if len(errs) > 0 {
		return &tallyerrors.ConfigError{
			Key:    "validation",
			Reason: strings.Join(errs, "; "),
		}
	}
	return nil
}

// redact hides the password of a broker URL.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

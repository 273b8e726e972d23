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

package tracing

import (
	"time"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported. Propagation headers are
	// written and read regardless.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"service_version"`

	// Sampling configures trace sampling.
	Sampling SamplingConfig `yaml:"sampling"`

	// Exporters configures span export destinations.
	Exporters []ExporterConfig `yaml:"exporters"`

	// Propagation names the reserved header keys.
	Propagation PropagationConfig `yaml:"propagation"`

	// BatchSize is the maximum number of spans per export batch (default: 512).
	BatchSize int `yaml:"batch_size"`

	// BatchInterval is how often to flush spans (default: 5s).
	BatchInterval time.Duration `yaml:"batch_interval"`
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Rate is the fraction of new traces to sample (0.0 - 1.0).
	// Propagated traces follow the sampling decision of their parent.
	Rate float64 `yaml:"rate"`
}

// PropagationConfig names the message headers that carry the trace context.
type PropagationConfig struct {
	TraceParentHeader string `yaml:"traceparent_header"`
	BaggageHeader     string `yaml:"baggage_header"`
}

// Propagator returns the Propagator for these header keys.
func (c PropagationConfig) Propagator() Propagator {
	return NewPropagator(c.TraceParentHeader, c.BaggageHeader)
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is the exporter type: "otlp", "otlp-http", "console" or "none".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint"`

	// Headers are additional headers for authentication.
	Headers map[string]string `yaml:"headers"`

	// Insecure disables TLS.
	Insecure bool `yaml:"insecure"`

	// CACertPath is an optional CA bundle for verifying the endpoint.
	CACertPath string `yaml:"ca_cert_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "tally",
		ServiceVersion: "unknown",
		Sampling:       SamplingConfig{Rate: 1.0},
		Propagation: PropagationConfig{
			TraceParentHeader: DefaultTraceParentKey,
			BaggageHeader:     DefaultBaggageKey,
		},
		BatchSize:     512,
		BatchInterval: 5 * time.Second,
	}
}

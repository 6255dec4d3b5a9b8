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
	"io"
	"time"
)

// Config holds tracing and metrics configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// SampleRate is the fraction of traces to record (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate,omitempty"`

	// Exporter configures where spans go.
	Exporter ExporterConfig `yaml:"exporter,omitempty"`

	// BatchInterval is how often to flush spans to remote exporters.
	BatchInterval time.Duration `yaml:"batch_interval,omitempty"`
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is the exporter type: "stdout", "otlp", "otlp-http" or "none".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Insecure disables TLS for OTLP exporters.
	Insecure bool `yaml:"insecure,omitempty"`

	// CACertPath is an optional CA bundle for OTLP over TLS.
	CACertPath string `yaml:"ca_cert_path,omitempty"`

	// Writer receives stdout exporter output. Default: os.Stderr, since
	// stdout carries compiled documents.
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "wic",
		ServiceVersion: "unknown",
		SampleRate:     1.0,
		Exporter:       ExporterConfig{Type: "stdout"},
		BatchInterval:  5 * time.Second,
	}
}

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
	"context"
	"errors"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns the tracer and meter providers installed by Setup.
type Provider struct {
	tp       *sdktrace.TracerProvider
	previous trace.TracerProvider
	mp       *sdkmetric.MeterProvider
	registry *promclient.Registry
	metrics  *MetricsCollector
}

// Setup builds the providers described by cfg. When cfg.Enabled is set the
// tracer provider is installed as the global one, so spans started through
// otel.Tracer are exported; Shutdown restores the previous global. Extra
// options are appended to the tracer provider options.
func Setup(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaults.ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = defaults.ServiceVersion
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = defaults.SampleRate
	}
	if cfg.BatchInterval <= 0 {
		cfg.BatchInterval = defaults.BatchInterval
	}

	// Empty schema URL avoids conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{registry: promclient.NewRegistry()}

	if cfg.Enabled {
		exporter, err := CreateExporter(ctx, cfg.Exporter)
		if err != nil {
			return nil, err
		}
		tpOpts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(NewSampler(cfg.SampleRate)),
		}
		if exporter != nil {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchInterval)))
		}
		p.tp = sdktrace.NewTracerProvider(append(tpOpts, opts...)...)
		p.previous = otel.GetTracerProvider()
		otel.SetTracerProvider(p.tp)
	}

	promExporter, err := otelprom.New(otelprom.WithRegisterer(p.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	p.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)

	p.metrics, err = NewMetricsCollector(p.mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return p, nil
}

// Metrics returns the collector for compiler metrics.
func (p *Provider) Metrics() *MetricsCollector {
	return p.metrics
}

// MetricsHandler returns an HTTP handler exposing the Prometheus registry.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// TracingEnabled reports whether spans are being exported.
func (p *Provider) TracingEnabled() bool {
	return p.tp != nil
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and metrics and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tp != nil {
		errs = append(errs, p.tp.Shutdown(ctx))
		otel.SetTracerProvider(p.previous)
	}
	if p.mp != nil {
		errs = append(errs, p.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

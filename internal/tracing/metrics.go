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
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Compile results recorded by RecordCompile. Failures use the error
// category reported by the compiler (schema, resolution, merge, ...).
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// MetricsCollector records compiler metrics.
type MetricsCollector struct {
	meter metric.Meter

	compilesTotal    metric.Int64Counter
	toolsSynthesized metric.Int64Counter
	compileDuration  metric.Float64Histogram
	passDuration     metric.Float64Histogram

	registryTools atomic.Int64
}

// NewMetricsCollector creates a new metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("wic")
	mc := &MetricsCollector{meter: meter}

	var err error
	mc.compilesTotal, err = meter.Int64Counter(
		"wic_compiles_total",
		metric.WithDescription("Total number of document compilations"),
		metric.WithUnit("{compile}"),
	)
	if err != nil {
		return nil, err
	}

	mc.toolsSynthesized, err = meter.Int64Counter(
		"wic_tools_synthesized_total",
		metric.WithDescription("Total number of tools generated from inline scripts"),
		metric.WithUnit("{tool}"),
	)
	if err != nil {
		return nil, err
	}

	mc.compileDuration, err = meter.Float64Histogram(
		"wic_compile_duration_seconds",
		metric.WithDescription("Document compilation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.passDuration, err = meter.Float64Histogram(
		"wic_pass_duration_seconds",
		metric.WithDescription("Compiler pass duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"wic_registry_tools",
		metric.WithDescription("Number of tools in the registry"),
		metric.WithUnit("{tool}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(mc.registryTools.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordCompile records one compilation of document.
func (mc *MetricsCollector) RecordCompile(ctx context.Context, document, result string, d time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("document", document),
		attribute.String("result", result),
	)
	mc.compilesTotal.Add(ctx, 1, attrs)
	mc.compileDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordPass records the duration of a single compiler pass.
func (mc *MetricsCollector) RecordPass(ctx context.Context, pass string, d time.Duration) {
	mc.passDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("pass", pass)))
}

// RecordSynthesized adds n generated tools.
func (mc *MetricsCollector) RecordSynthesized(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	mc.toolsSynthesized.Add(ctx, int64(n))
}

// SetRegistrySize updates the registry gauge.
func (mc *MetricsCollector) SetRegistrySize(n int) {
	mc.registryTools.Store(int64(n))
}

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

/*
Package tracing wires OpenTelemetry into the compiler.

Passes in pkg/ast and pkg/compiler start spans on the global tracer provider.
Setup installs an SDK provider with the configured exporter so those spans
leave the process, and a meter provider backed by a Prometheus registry so
compile counters can be scraped while `wic watch` runs.

	provider, err := tracing.Setup(ctx, tracing.Config{
	    Enabled:  true,
	    Exporter: tracing.ExporterConfig{Type: "stdout"},
	})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	provider.Metrics().RecordCompile(ctx, "root", tracing.ResultOK, elapsed)

With tracing disabled Setup still returns a usable Provider; spans go to the
no-op tracer and metrics are collected but never exported.
*/
package tracing

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
Package tracing provides distributed tracing and metrics for the tally pipeline.

# Propagation

A trace crosses the broker inside the message headers. [Propagator] converts
between a [TraceContext] and a plain header map without touching any global
state:

	prop := tracing.NewPropagator("traceparent", "baggage")
	tc, _ := tracing.FromContext(ctx)
	headers := prop.Inject(tc, appHeaders)

	// on the worker
	remote, ok := prop.Decode(delivery.Headers)

The traceparent header follows the W3C Trace Context format

	00-<32 hex trace id>-<16 hex span id>-<2 hex flags>

and baggage, when present, follows the W3C Baggage format. A missing or
malformed traceparent decodes to "no context" and never fails the message.

# Spans

[StartProducerSpan] opens the "<routing key> send" span around a publish.
[StartConsumerSpan] opens the "<routing key> receive" span around handling
one delivery, as a child of the decoded remote context or as a new root.

# Provider

[NewProvider] wires the OpenTelemetry SDK: resource, sampler, configured
exporters (console, OTLP gRPC, OTLP HTTP) and a Prometheus meter provider
whose registry is served by [Provider.MetricsHandler].
*/
package tracing

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

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// MetricsCollector records pipeline metrics. A nil *MetricsCollector is
// valid and records nothing.
type MetricsCollector struct {
	meter metric.Meter

	// Counters
	published       metric.Int64Counter
	publishFailures metric.Int64Counter
	consumed        metric.Int64Counter

	// Histograms
	persistDuration metric.Float64Histogram

	// Last value handed out by the producer's counter.
	counterValue atomic.Int64
}

// NewMetricsCollector creates a new metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	mc := &MetricsCollector{meter: meterProvider.Meter("tally")}

	var err error

	mc.published, err = mc.meter.Int64Counter(
		"tally_published_total",
		metric.WithDescription("Total number of messages handed to the broker"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mc.publishFailures, err = mc.meter.Int64Counter(
		"tally_publish_failures_total",
		metric.WithDescription("Total number of publish attempts that failed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mc.consumed, err = mc.meter.Int64Counter(
		"tally_consumed_total",
		metric.WithDescription("Total number of deliveries handled, by outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	mc.persistDuration, err = mc.meter.Float64Histogram(
		"tally_persist_duration_seconds",
		metric.WithDescription("Time spent saving a result to the store"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = mc.meter.Int64ObservableGauge(
		"tally_counter_value",
		metric.WithDescription("Current value of the producer counter"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(mc.counterValue.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordPublish records one publish attempt.
func (mc *MetricsCollector) RecordPublish(ctx context.Context, exchange string, err error) {
	if mc == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("exchange", exchange))
	if err != nil {
		mc.publishFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("exchange", exchange),
			attribute.String("error_type", tallyerrors.TypeOf(err)),
		))
		return
	}
	mc.published.Add(ctx, 1, attrs)
}

// RecordConsumed records the terminal outcome of one delivery.
func (mc *MetricsCollector) RecordConsumed(ctx context.Context, queue, outcome string) {
	if mc == nil {
		return
	}
	mc.consumed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.String("outcome", outcome),
	))
}

// RecordPersist records the duration of one save.
func (mc *MetricsCollector) RecordPersist(ctx context.Context, d time.Duration, err error) {
	if mc == nil {
		return
	}
	mc.persistDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("error", err != nil)))
}

// SetCounterValue updates the observed counter value.
func (mc *MetricsCollector) SetCounterValue(v int64) {
	if mc == nil {
		return
	}
	mc.counterValue.Store(v)
}

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

// Package publisher sends counter results to the broker inside a producer span.
package publisher

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/broker"
	"github.com/tombee/tally/internal/envelope"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// Options configures a Publisher.
type Options struct {
	// Exchange and RoutingKey address every published message.
	Exchange   string
	RoutingKey string

	// Propagator encodes the trace context into message headers.
	Propagator tracing.Propagator

	// Metrics is optional.
	Metrics *tracing.MetricsCollector

	// Logger is optional.
	Logger *slog.Logger
}

// Publisher wraps a broker transport with trace propagation.
// It is safe for concurrent use if the transport is.
type Publisher struct {
	transport broker.Publisher
	tracer    trace.Tracer
	prop      tracing.Propagator
	dest      tracing.Destination
	metrics   *tracing.MetricsCollector
	logger    *slog.Logger
}

// New creates a Publisher.
func New(transport broker.Publisher, tracer trace.Tracer, opts Options) *Publisher {
	logger := opts.Logger
	if logger == nil {
		logger = tallylog.Discard()
	}
	return &Publisher{
		transport: transport,
		tracer:    tracer,
		prop:      opts.Propagator,
		dest:      tracing.Destination{Exchange: opts.Exchange, RoutingKey: opts.RoutingKey},
		metrics:   opts.Metrics,
		logger:    tallylog.WithDestination(tallylog.WithComponent(logger, "publisher"), opts.Exchange, opts.RoutingKey),
	}
}

// Publish sends r to the configured destination. The producer span is a
// child of the span active in ctx and its identity travels in the message
// headers. Failures are returned as *errors.TransportError and are not
// retried.
func (p *Publisher) Publish(ctx context.Context, r envelope.Result) error {
	body, err := envelope.EncodeBody(r)
	if err != nil {
		return tallyerrors.Wrap(err, "encoding result")
	}

	ctx, span := tracing.StartProducerSpan(ctx, p.tracer, p.dest)
	defer span.End()
	span.SetAttributes(tracing.AttrValue.Int64(r.Value))

	var headers map[string]string
	if tc, ok := tracing.FromContext(ctx); ok {
		headers = p.prop.Encode(tc)
	}

	env := envelope.Envelope{
		ID:         envelope.NewID(),
		Body:       body,
		Headers:    headers,
		Exchange:   p.dest.Exchange,
		RoutingKey: p.dest.RoutingKey,
	}
	env.PublishedAt = envelope.Now()

	logger := tallylog.WithTrace(ctx, p.logger)
	err = p.transport.Publish(ctx, env)
	tracing.AnnotateMessage(span, env.ID, env.Body)
	p.metrics.RecordPublish(ctx, p.dest.Exchange, err)

	if err != nil {
		tracing.RecordError(span, err)
		logger.Error("failed to publish result",
			slog.Int64(tallylog.ValueKey, r.Value),
			tallylog.Error(err),
		)
		var transportErr *tallyerrors.TransportError
		if !tallyerrors.As(err, &transportErr) {
			err = &tallyerrors.TransportError{Op: "publish", Target: p.dest.Exchange, Cause: err}
		}
		return err
	}

	logger.Debug("result published",
		slog.Int64(tallylog.ValueKey, r.Value),
		slog.String(tallylog.MessageIDKey, env.ID),
	)
	return nil
}

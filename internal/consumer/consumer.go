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

// Package consumer implements the worker side of the pipeline.
//
// Each delivery moves through a fixed sequence of states:
//
//	Received -> ContextExtracted -> SpanStarted -> Decoded -> Persisted -> Done
//
// with DecodeFailed and PersistFailed as the alternatives to Decoded and
// Persisted. Deliveries are auto-acknowledged by the broker, so a failed
// message is logged and dropped; it is never redelivered and never stops
// the receive loop.
package consumer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/broker"
	"github.com/tombee/tally/internal/envelope"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/store"
	"github.com/tombee/tally/internal/tracing"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// State is a step in the handling of one delivery.
type State int

const (
	StateReceived State = iota
	StateContextExtracted
	StateSpanStarted
	StateDecoded
	StatePersisted
	StateDecodeFailed
	StatePersistFailed
	StateDone
)

var stateNames = [...]string{
	StateReceived:         "received",
	StateContextExtracted: "context_extracted",
	StateSpanStarted:      "span_started",
	StateDecoded:          "decoded",
	StatePersisted:        "persisted",
	StateDecodeFailed:     "decode_failed",
	StatePersistFailed:    "persist_failed",
	StateDone:             "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Outcome is the terminal result of handling one delivery.
type Outcome string

const (
	OutcomePersisted     Outcome = "persisted"
	OutcomeDecodeFailed  Outcome = "decode_failed"
	OutcomePersistFailed Outcome = "persist_failed"
)

// DefaultHeartbeatInterval is used when Options.HeartbeatInterval is zero.
const DefaultHeartbeatInterval = 5 * time.Second

// ErrDeliveriesClosed is the cause reported when the broker stops delivering.
var ErrDeliveriesClosed = tallyerrors.New("delivery channel closed")

// Options configures a Consumer.
type Options struct {
	// Queue and Exchange describe where deliveries come from.
	Queue    string
	Exchange string

	// Identity names this worker instance in persisted records.
	Identity string

	// HeartbeatInterval is the period of the liveness log.
	HeartbeatInterval time.Duration

	// Propagator decodes the trace context from message headers.
	Propagator tracing.Propagator

	// Metrics is optional.
	Metrics *tracing.MetricsCollector

	// Logger is optional.
	Logger *slog.Logger

	// OnTransition, when set, is called for every state change.
	OnTransition func(messageID string, s State)

	// NewTicker overrides the heartbeat clock.
	NewTicker func(time.Duration) Ticker
}

// Consumer handles deliveries from one subscriber, one at a time.
type Consumer struct {
	sub     broker.Subscriber
	sink    store.Sink
	tracer  trace.Tracer
	opts    Options
	logger  *slog.Logger
	metrics *tracing.MetricsCollector
	now     func() time.Time
}

// New creates a Consumer.
func New(sub broker.Subscriber, sink store.Sink, tracer trace.Tracer, opts Options) *Consumer {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	logger := opts.Logger
	if logger == nil {
		logger = tallylog.Discard()
	}
	return &Consumer{
		sub:     sub,
		sink:    sink,
		tracer:  tracer,
		opts:    opts,
		logger:  tallylog.WithComponent(logger, "worker").With(slog.String(tallylog.QueueKey, opts.Queue)),
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// Run consumes deliveries and logs a heartbeat until ctx is cancelled.
// The message in flight when ctx is cancelled is finished first. Run
// returns nil after cancellation and a *errors.TransportError if the
// subscription cannot be started or the broker stops delivering.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.sub.Consume(ctx)
	if err != nil {
		return err
	}

	c.logger.Info("worker started", slog.String(tallylog.ExchangeKey, c.opts.Exchange))
	c.logger.Info("waiting for messages")

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.Heartbeat(hbCtx)
	}()
	defer func() {
		stopHeartbeat()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("worker stopping")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					c.logger.Info("worker stopping")
					return nil
				}
				return &tallyerrors.TransportError{Op: "consume", Target: c.opts.Queue, Cause: ErrDeliveriesClosed}
			}
			c.HandleDelivery(context.WithoutCancel(ctx), d)
		}
	}
}

// HandleDelivery processes one delivery to completion and returns its
// outcome. It never panics on bad input and never returns an error: all
// failures are logged, traced and counted.
func (c *Consumer) HandleDelivery(ctx context.Context, d broker.Delivery) Outcome {
	c.transition(d.MessageID, StateReceived)
	logger := c.logger.With(slog.String(tallylog.MessageIDKey, d.MessageID))
	tallylog.Trace(ctx, logger, "message received", slog.String("body", string(d.Body)))

	remote, err := c.opts.Propagator.DecodeStrict(d.Headers)
	if err != nil {
		logger.Debug("ignoring malformed trace headers", tallylog.Error(err))
	}
	c.transition(d.MessageID, StateContextExtracted)

	routingKey := d.RoutingKey
	if routingKey == "" {
		routingKey = c.opts.Queue
	}
	dest := tracing.Destination{Exchange: d.Exchange, RoutingKey: routingKey}
	ctx, span := tracing.StartConsumerSpan(ctx, c.tracer, dest, remote)
	defer span.End()
	tracing.AnnotateMessage(span, d.MessageID, d.Body)
	c.transition(d.MessageID, StateSpanStarted)

	logger = tallylog.WithTrace(ctx, logger)
	outcome := c.process(ctx, logger, span, d)

	span.SetAttributes(tracing.AttrOutcome.String(string(outcome)))
	c.metrics.RecordConsumed(ctx, c.opts.Queue, string(outcome))
	c.transition(d.MessageID, StateDone)
	return outcome
}

func (c *Consumer) process(ctx context.Context, logger *slog.Logger, span trace.Span, d broker.Delivery) Outcome {
	result, err := envelope.DecodeBody(d.Body)
	if err != nil {
		c.transition(d.MessageID, StateDecodeFailed)
		tracing.RecordError(span, err)
		logger.Error("failed to decode message", tallylog.Error(err))
		return OutcomeDecodeFailed
	}
	c.transition(d.MessageID, StateDecoded)
	span.SetAttributes(tracing.AttrValue.Int64(result.Value))

	rec := store.Record{
		Result:      result,
		Consumer:    c.opts.Identity,
		Queue:       c.opts.Queue,
		ProcessedAt: c.now().UTC(),
	}

	start := time.Now()
	err = c.sink.Save(ctx, rec)
	c.metrics.RecordPersist(ctx, time.Since(start), err)
	if err != nil {
		c.transition(d.MessageID, StatePersistFailed)
		tracing.RecordError(span, err)
		logger.Error("failed to persist result",
			slog.Int64(tallylog.ValueKey, result.Value),
			tallylog.Error(err),
		)
		return OutcomePersistFailed
	}
	c.transition(d.MessageID, StatePersisted)

	logger.Info("message processed",
		slog.Int64(tallylog.ValueKey, result.Value),
		slog.String("producer", result.Producer),
	)
	return OutcomePersisted
}

func (c *Consumer) transition(messageID string, s State) {
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(messageID, s)
	}
}

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on messaging spans that have no semantic
// convention constructor.
const (
	AttrValue           = attribute.Key("valorAtual")
	AttrMessage         = attribute.Key("message")
	AttrDestinationKind = attribute.Key("messaging.destination_kind")
	AttrOperation       = attribute.Key("messaging.operation")
	AttrOutcome         = attribute.Key("tally.outcome")
)

// Destination addresses a broker message. It is fixed by configuration and
// identical for every message.
type Destination struct {
	Exchange   string
	RoutingKey string
}

// StartProducerSpan starts the span that covers publishing one message.
// The span is a child of whatever span is active in ctx.
func StartProducerSpan(ctx context.Context, tracer trace.Tracer, dest Destination) (context.Context, trace.Span) {
	return tracer.Start(ctx, dest.RoutingKey+" send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(destinationAttributes(dest, "publish")...),
	)
}

// StartConsumerSpan starts the span that covers handling one delivery. When
// remote is valid the span is its child; otherwise the span starts a new trace.
func StartConsumerSpan(ctx context.Context, tracer trace.Tracer, dest Destination, remote TraceContext) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(destinationAttributes(dest, "receive")...),
	}
	if remote.IsValid() {
		ctx = ContextWith(ctx, remote)
	} else {
		opts = append(opts, trace.WithNewRoot())
	}
	return tracer.Start(ctx, dest.RoutingKey+" receive", opts...)
}

// AnnotateMessage records the message identity and body on span.
func AnnotateMessage(span trace.Span, messageID string, body []byte) {
	span.SetAttributes(
		semconv.MessagingMessageID(messageID),
		semconv.MessagingMessageBodySize(len(body)),
		AttrMessage.String(string(body)),
	)
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func destinationAttributes(dest Destination, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		semconv.MessagingSystemRabbitmq,
		AttrDestinationKind.String("queue"),
		semconv.MessagingDestinationName(dest.Exchange),
		semconv.MessagingRabbitmqDestinationRoutingKey(dest.RoutingKey),
		AttrOperation.String(operation),
	}
}

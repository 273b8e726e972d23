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

package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/broker"
	"github.com/tombee/tally/internal/counter"
	"github.com/tombee/tally/internal/envelope"
	"github.com/tombee/tally/internal/tracing"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

func newTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("publisher-test"), exporter
}

func testOptions() Options {
	return Options{Exchange: "contagem", RoutingKey: "queue-contagem"}
}

type failingTransport struct{ err error }

func (f failingTransport) Publish(context.Context, envelope.Envelope) error { return f.err }
func (f failingTransport) Close() error                                     { return nil }

func TestPublish_SequentialIncrements(t *testing.T) {
	tracer, exporter := newTracer(t)
	mem := broker.NewMemory()
	defer mem.Close()

	c := counter.New(counter.Options{Origin: "host-a"})
	pub := New(mem, tracer, testOptions())

	var published []envelope.Result
	for i := 0; i < 3; i++ {
		r := c.Next()
		published = append(published, r)
		require.NoError(t, pub.Publish(context.Background(), r))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deliveries, err := mem.Consume(ctx)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	for i, want := range published {
		assert.Equal(t, int64(i+1), want.Value)

		var d broker.Delivery
		select {
		case d = <-deliveries:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for delivery")
		}
		got, err := envelope.DecodeBody(d.Body)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, "contagem", d.Exchange)
		assert.Equal(t, "queue-contagem", d.RoutingKey)

		tc, ok := tracing.Propagator{}.Decode(d.Headers)
		require.True(t, ok, "published message must carry a trace context")
		assert.Equal(t, spans[i].SpanContext.TraceID(), tc.TraceID)
		assert.Equal(t, spans[i].SpanContext.SpanID(), tc.SpanID)
		assert.Equal(t, "queue-contagem send", spans[i].Name)
	}
}

func TestPublish_ChildOfCallerSpan(t *testing.T) {
	tracer, exporter := newTracer(t)
	mem := broker.NewMemory()
	defer mem.Close()

	pub := New(mem, tracer, testOptions())

	ctx, parent := tracer.Start(context.Background(), "GET /contador")
	require.NoError(t, pub.Publish(ctx, envelope.Result{Value: 1}))
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	send := spans[0]
	assert.Equal(t, trace.SpanKindProducer, send.SpanKind)
	assert.Equal(t, parent.SpanContext().SpanID(), send.Parent.SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), send.SpanContext.TraceID())
}

func TestPublish_TransportFailure(t *testing.T) {
	tracer, exporter := newTracer(t)
	cause := errors.New("connection refused")
	pub := New(failingTransport{err: cause}, tracer, testOptions())

	err := pub.Publish(context.Background(), envelope.Result{Value: 4})
	require.Error(t, err)

	var transportErr *tallyerrors.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "publish", transportErr.Op)
	assert.ErrorIs(t, err, cause)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1, "span must end on the failure path")
	assert.Equal(t, codes.Error, spans[0].Status.Code)
}

func TestPublish_KeepsTransportError(t *testing.T) {
	tracer, _ := newTracer(t)
	mem := broker.NewMemory()
	require.NoError(t, mem.Close())

	pub := New(mem, tracer, testOptions())
	err := pub.Publish(context.Background(), envelope.Result{Value: 1})

	var transportErr *tallyerrors.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.ErrorIs(t, err, broker.ErrClosed)
}

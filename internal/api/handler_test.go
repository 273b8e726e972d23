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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
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
	"github.com/tombee/tally/internal/publisher"
	"github.com/tombee/tally/internal/tracing"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

type stubPublisher struct {
	err   error
	calls []envelope.Result
}

func (s *stubPublisher) Publish(_ context.Context, r envelope.Result) error {
	s.calls = append(s.calls, r)
	return s.err
}

func newTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("api-test"), exporter
}

func newCounter() *counter.Counter {
	return counter.New(counter.Options{
		Origin:      "api-1",
		Environment: counter.Environment{Kernel: "linux", Runtime: "Go 1.25"},
		Message:     "Teste",
	})
}

func get(t *testing.T, h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleCount_ReturnsAndPublishes(t *testing.T) {
	tracer, _ := newTracer(t)
	pub := &stubPublisher{}
	h := NewHandler(newCounter(), pub, tracer, Options{}).Routes()

	for want := int64(1); want <= 3; want++ {
		rec := get(t, h, "/contador", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(want), body["valorAtual"])
		assert.Equal(t, "api-1", body["producer"])
		assert.Equal(t, "linux", body["kernel"])
		assert.Equal(t, "Go 1.25", body["framework"])
		assert.Equal(t, "Teste", body["mensagem"])
	}

	require.Len(t, pub.calls, 3)
	for i, r := range pub.calls {
		assert.Equal(t, int64(i+1), r.Value)
	}
}

func TestHandleCount_PublishFailure(t *testing.T) {
	tracer, exporter := newTracer(t)
	pub := &stubPublisher{err: &tallyerrors.TransportError{Op: "publish", Cause: errors.New("down")}}
	c := newCounter()
	h := NewHandler(c, pub, tracer, Options{}).Routes()

	rec := get(t, h, "/contador", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to publish result")

	// The increment is not rolled back.
	assert.Equal(t, int64(1), c.Value())
	pub.err = nil
	rec = get(t, h, "/contador", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valorAtual":2`)

	var failed int
	for _, s := range exporter.GetSpans() {
		if s.Status.Code == codes.Error {
			failed++
		}
	}
	assert.Equal(t, 2, failed, "inner span and server span are both marked failed")
}

func TestHandleCount_OtherFailure(t *testing.T) {
	tracer, _ := newTracer(t)
	h := NewHandler(newCounter(), &stubPublisher{err: errors.New("encode")}, tracer, Options{}).Routes()

	rec := get(t, h, "/contador", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleCount_TraceChain(t *testing.T) {
	tracer, exporter := newTracer(t)
	mem := broker.NewMemory()
	defer mem.Close()

	pub := publisher.New(mem, tracer, publisher.Options{Exchange: "contagem", RoutingKey: "queue-contagem"})
	h := NewHandler(newCounter(), pub, tracer, Options{}).Routes()

	header := http.Header{}
	header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	rec := get(t, h, "/contador", header)
	require.Equal(t, http.StatusOK, rec.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	server, inner, send := byName["GET /contador"], byName["counter.increment"], byName["queue-contagem send"]
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", server.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", server.Parent.SpanID().String())
	assert.Equal(t, server.SpanContext.SpanID(), inner.Parent.SpanID())
	assert.Equal(t, inner.SpanContext.SpanID(), send.Parent.SpanID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deliveries, err := mem.Consume(ctx)
	require.NoError(t, err)
	d := <-deliveries

	tc, ok := tracing.Propagator{}.Decode(d.Headers)
	require.True(t, ok)
	assert.Equal(t, send.SpanContext.SpanID(), tc.SpanID)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", tc.TraceID.String())
}

func TestHealthAndMetrics(t *testing.T) {
	tracer, _ := newTracer(t)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "tally_counter_value 0\n")
	})
	h := NewHandler(newCounter(), &stubPublisher{}, tracer, Options{MetricsHandler: metrics}).Routes()

	rec := get(t, h, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","value":0}`, rec.Body.String())

	rec = get(t, h, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tally_counter_value")

	rec = get(t, NewHandler(newCounter(), &stubPublisher{}, tracer, Options{}).Routes(), "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	require.NoError(t, <-errCh)

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, srv.Shutdown(shutdownCtx))
}

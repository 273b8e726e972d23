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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/envelope"
	"github.com/tombee/tally/internal/tracing"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTracer(t *testing.T) (trace.Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp.Tracer("client-test"), exporter
}

// producer serves incrementing snapshots and records the traceparent of each request.
func producer(t *testing.T, name string) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		n       atomic.Int64
		mu      sync.Mutex
		parents []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		parents = append(parents, r.Header.Get("traceparent"))
		mu.Unlock()
		json.NewEncoder(w).Encode(envelope.Result{Value: n.Add(1), Producer: name})
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), parents...)
	}
}

func TestNew_RequiresTargets(t *testing.T) {
	tracer, _ := newTracer(t)

	_, err := New(nil, tracer)
	assert.Error(t, err)

	_, err = New([]Target{{Label: "api"}}, tracer)
	assert.Error(t, err)

	_, err = New([]Target{{Label: "api", URL: "http://x"}}, tracer, WithTimeout(0))
	assert.Error(t, err)
}

func TestSendRequest_PrintsResult(t *testing.T) {
	tracer, exporter := newTracer(t)
	srv, parents := producer(t, "api-1")
	out := &lockedBuffer{}

	c, err := New([]Target{{Label: "Resultado", URL: srv.URL + "/contador"}}, tracer, WithOutput(out))
	require.NoError(t, err)

	result, err := c.SendRequest(context.Background(), c.targets[0])
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Value)
	assert.Contains(t, out.String(), "Resultado")
	assert.Contains(t, out.String(), "api-1 | Valor atual = 1")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	got := parents()
	require.Len(t, got, 1)
	assert.Equal(t,
		"00-"+spans[0].SpanContext.TraceID().String()+"-"+spans[0].SpanContext.SpanID().String()+"-01",
		got[0])
}

func TestSendRequests_RootSpanAndChildren(t *testing.T) {
	tracer, exporter := newTracer(t)
	a, _ := producer(t, "api-a")
	b, _ := producer(t, "api-b")
	out := &lockedBuffer{}

	c, err := New([]Target{
		{Label: "A", URL: a.URL},
		{Label: "B", URL: b.URL},
	}, tracer, WithOutput(out), WithStartPoint("console"))
	require.NoError(t, err)

	// An active caller span must not become the parent.
	ctx, caller := tracer.Start(context.Background(), "caller")
	require.NoError(t, c.SendRequests(ctx))
	caller.End()

	byName := map[string]tracetest.SpanStub{}
	for _, s := range exporter.GetSpans() {
		byName[s.Name] = s
	}
	root := byName["SendRequests"]
	assert.False(t, root.Parent.IsValid())
	assert.Contains(t, root.Attributes, AttrStartPoint.String("console"))
	for _, name := range []string{"GET A", "GET B"} {
		assert.Equal(t, root.SpanContext.SpanID(), byName[name].Parent.SpanID(), name)
	}

	assert.Contains(t, out.String(), "api-a | Valor atual = 1")
	assert.Contains(t, out.String(), "api-b | Valor atual = 1")
}

func TestSendRequests_FailureContinues(t *testing.T) {
	tracer, exporter := newTracer(t)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"failed to publish result"}`, http.StatusBadGateway)
	}))
	defer bad.Close()
	good, _ := producer(t, "api-ok")
	out := &lockedBuffer{}

	c, err := New([]Target{
		{Label: "bad", URL: bad.URL},
		{Label: "good", URL: good.URL},
	}, tracer, WithOutput(out))
	require.NoError(t, err)

	err = c.SendRequests(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, out.String(), "api-ok | Valor atual = 1")

	var failed []string
	for _, s := range exporter.GetSpans() {
		if s.Status.Code == codes.Error {
			failed = append(failed, s.Name)
		}
	}
	assert.ElementsMatch(t, []string{"GET bad", "SendRequests"}, failed)
}

func TestSendRequest_CustomHeader(t *testing.T) {
	tracer, _ := newTracer(t)
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("X-Trace")
		json.NewEncoder(w).Encode(envelope.Result{Value: 1})
	}))
	defer srv.Close()

	c, err := New([]Target{{Label: "api", URL: srv.URL}}, tracer,
		WithOutput(&lockedBuffer{}),
		WithPropagator(tracing.NewPropagator("X-Trace", "")))
	require.NoError(t, err)

	_, err = c.SendRequest(context.Background(), c.targets[0])
	require.NoError(t, err)
	got := <-headers
	assert.True(t, strings.HasPrefix(got, "00-"), got)
}

func TestRun_Interactive(t *testing.T) {
	tracer, _ := newTracer(t)
	srv, parents := producer(t, "api-1")
	out := &lockedBuffer{}

	c, err := New([]Target{{Label: "api", URL: srv.URL}}, tracer, WithOutput(out))
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), 0, strings.NewReader("\n\n")))
	assert.Len(t, parents(), 2)
	assert.Contains(t, out.String(), "Valor atual = 2")
	assert.Equal(t, 3, strings.Count(out.String(), prompt))
}

func TestRun_NoPrompt(t *testing.T) {
	tracer, _ := newTracer(t)
	srv, _ := producer(t, "api-1")
	out := &lockedBuffer{}

	c, err := New([]Target{{Label: "api", URL: srv.URL}}, tracer, WithOutput(out), WithPrompt(false))
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), 0, strings.NewReader("\n")))
	assert.NotContains(t, out.String(), prompt)
	assert.Contains(t, out.String(), "Valor atual = 1")
}

func TestRun_Paced(t *testing.T) {
	tracer, _ := newTracer(t)
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(envelope.Result{Value: hits.Add(1)})
	}))
	defer srv.Close()

	c, err := New([]Target{{Label: "api", URL: srv.URL}}, tracer, WithOutput(&lockedBuffer{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, 10*time.Millisecond, nil) }()

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

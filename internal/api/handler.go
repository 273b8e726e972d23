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

// Package api implements the producer HTTP API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/counter"
	"github.com/tombee/tally/internal/envelope"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// ResultPublisher sends a result to the broker.
type ResultPublisher interface {
	Publish(ctx context.Context, r envelope.Result) error
}

// Options configures a Handler.
type Options struct {
	// Propagator reads the caller's trace context from request headers.
	Propagator tracing.Propagator

	// Metrics is optional.
	Metrics *tracing.MetricsCollector

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// Logger is optional.
	Logger *slog.Logger
}

// Handler serves the counter endpoint.
type Handler struct {
	counter   *counter.Counter
	publisher ResultPublisher
	tracer    trace.Tracer
	opts      Options
	logger    *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(c *counter.Counter, pub ResultPublisher, tracer trace.Tracer, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = tallylog.Discard()
	}
	return &Handler{
		counter:   c,
		publisher: pub,
		tracer:    tracer,
		opts:      opts,
		logger:    tallylog.WithComponent(logger, "api"),
	}
}

// RegisterRoutes registers the API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	traced := tracing.HTTPMiddleware(h.tracer, h.opts.Propagator)

	mux.Handle("GET /contador", traced(http.HandlerFunc(h.handleCount)))
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", h.opts.MetricsHandler)
	}
}

// Routes returns the API routes wrapped with request logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return tallylog.NewHTTPMiddleware(h.logger).Wrap(mux)
}

// handleCount handles GET /contador: increment, publish, return the result.
// The counter is not rolled back when publishing fails.
func (h *Handler) handleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := tallylog.WithTrace(ctx, h.logger)

	logger.Info("generating value")
	result := h.counter.Next()
	h.opts.Metrics.SetCounterValue(result.Value)

	ctx, span := h.tracer.Start(ctx, "counter.increment")
	defer span.End()
	span.SetAttributes(tracing.AttrValue.Int64(result.Value))

	logger.Info("sending message", slog.Int64(tallylog.ValueKey, result.Value))
	if err := h.publisher.Publish(ctx, result); err != nil {
		tracing.RecordError(span, err)

		status := http.StatusInternalServerError
		var transportErr *tallyerrors.TransportError
		if tallyerrors.As(err, &transportErr) {
			status = http.StatusBadGateway
		}
		writeError(w, status, "failed to publish result")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"value":  h.counter.Value(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

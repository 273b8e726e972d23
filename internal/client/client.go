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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tally/internal/envelope"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// AttrStartPoint records where a batch of requests originated.
var AttrStartPoint = attribute.Key("startPoint")

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Target is one producer endpoint to poll.
type Target struct {
	Label string
	URL   string
}

// Client polls producer endpoints.
type Client struct {
	httpClient *http.Client
	targets    []Target
	tracer     trace.Tracer
	prop       tracing.Propagator
	out        io.Writer
	logger     *slog.Logger
	startPoint string
	prompt     bool
}

// New creates a client for targets with the given options.
func New(targets []Target, tracer trace.Tracer, opts ...Option) (*Client, error) {
	if len(targets) == 0 {
		return nil, errors.New("at least one target is required")
	}
	for _, t := range targets {
		if t.URL == "" {
			return nil, fmt.Errorf("target %q has no url", t.Label)
		}
	}

	c := &Client{
		targets:    targets,
		tracer:     tracer,
		out:        os.Stdout,
		logger:     tallylog.Discard(),
		startPoint: "client",
		prompt:     true,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	c.logger = tallylog.WithComponent(c.logger, "client")

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// WithPropagator sets the header names used to send the trace context.
func WithPropagator(p tracing.Propagator) Option {
	return func(c *Client) error {
		c.prop = p
		return nil
	}
}

// WithOutput sets where result lines are printed.
func WithOutput(w io.Writer) Option {
	return func(c *Client) error {
		c.out = w
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithStartPoint sets the value recorded on the SendRequests span.
func WithStartPoint(name string) Option {
	return func(c *Client) error {
		c.startPoint = name
		return nil
	}
}

// WithPrompt controls whether interactive mode prints a prompt before
// waiting for input.
func WithPrompt(enabled bool) Option {
	return func(c *Client) error {
		c.prompt = enabled
		return nil
	}
}

// SendRequests polls every target once under a new root span. A failing
// target does not stop the others; all failures are returned joined.
func (c *Client) SendRequests(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "SendRequests",
		trace.WithNewRoot(),
		trace.WithAttributes(AttrStartPoint.String(c.startPoint)),
	)
	defer span.End()

	var errs []error
	for _, t := range c.targets {
		if _, err := c.SendRequest(ctx, t); err != nil {
			fmt.Fprintln(c.out, errorStyle.Render(fmt.Sprintf("%s: %v", t.Label, err)))
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		tracing.RecordError(span, err)
		return err
	}
	return nil
}

// SendRequest polls a single target and prints the snapshot it returns.
func (c *Client) SendRequest(ctx context.Context, t Target) (envelope.Result, error) {
	ctx, span := c.tracer.Start(ctx, "GET "+t.Label,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(http.MethodGet),
			semconv.URLFull(t.URL),
		),
	)
	defer span.End()

	result, err := c.get(ctx, span, t)
	if err != nil {
		tracing.RecordError(span, err)
		c.logger.Warn("request failed", slog.String("target", t.Label), tallylog.Error(err))
		return envelope.Result{}, err
	}

	span.SetAttributes(tracing.AttrValue.Int64(result.Value))
	span.SetStatus(codes.Ok, "")
	fmt.Fprintf(c.out, "%s: %s | Valor atual = %d\n", labelStyle.Render(t.Label), result.Producer, result.Value)
	return result, nil
}

func (c *Client) get(ctx context.Context, span trace.Span, t Target) (envelope.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return envelope.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.prop.InjectHTTP(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope.Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return envelope.Result{}, fmt.Errorf("producer returned error %d: %s", resp.StatusCode, string(body))
	}

	var result envelope.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return envelope.Result{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

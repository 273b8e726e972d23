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

// Package api implements the "tally api" command.
package api

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	tallyapi "github.com/tombee/tally/internal/api"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/commands/worker"
	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/counter"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/publisher"
)

const tracerName = "github.com/tombee/tally/api"

type options struct {
	addr       string
	message    string
	instance   string
	memory     bool
	withWorker bool
}

func (o options) apply(cfg *config.Config) {
	if o.addr != "" {
		cfg.API.Addr = o.addr
	}
	if o.message != "" {
		cfg.API.Message = o.message
	}
	if o.instance != "" {
		cfg.API.Instance = o.instance
	}
	if o.memory {
		cfg.Broker.Kind = config.BrokerMemory
	}
}

// NewCommand creates the api command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use: "api",
		Annotations: map[string]string{
			"group": "pipeline",
		},
		Short: "Run the counter HTTP API",
		Long: `Serve GET /contador. Each request increments the counter, publishes the
new value to the broker with the request's trace context, and returns it.

With --memory --with-worker the API and a worker share an in-process broker,
which is useful for trying tally without RabbitMQ.`,
		Example: `  # Serve on the default address
  tally api

  # Include a message in every result
  tally api --addr :9000 --message "hello"

  # Everything in one process
  tally api --memory --with-worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default: :8080)")
	cmd.Flags().StringVar(&opts.message, "message", "", "Message included in every result")
	cmd.Flags().StringVar(&opts.instance, "instance", "", "Producer instance name (default: hostname)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Use the in-process broker instead of AMQP")
	cmd.Flags().BoolVar(&opts.withWorker, "with-worker", false, "Also run a worker in this process")

	return cmd
}

func run(ctx context.Context, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	opts.apply(cfg)

	ctx, stop := shared.SignalContext(ctx)
	defer stop()

	rt, err := shared.NewRuntime(ctx, cfg, "tally-api")
	if err != nil {
		return err
	}
	defer rt.Close(cfg.API.ShutdownTimeout)
	logger := rt.Logger

	conn, err := shared.OpenBroker(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	srv := tallyapi.NewServer(cfg.API.Addr, newHandler(rt, conn).Routes(), logger)

	errs := make(chan error, 2)
	running := 1
	go func() { errs <- srv.Start(ctx) }()
	if opts.withWorker {
		running++
		go func() { errs <- worker.Serve(ctx, rt, conn) }()
	}

	err = <-errs
	stop()
	for i := 1; i < running; i++ {
		if werr := <-errs; err == nil {
			err = werr
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("graceful shutdown failed", tallylog.Error(serr))
	}

	if err != nil {
		return shared.NewTransportError("api stopped", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func newHandler(rt *shared.Runtime, conn shared.Broker) *tallyapi.Handler {
	cfg := rt.Config
	tracer := rt.Provider.Tracer(tracerName)
	prop := cfg.Tracing.Propagation.Propagator()

	pub := publisher.New(conn, tracer, publisher.Options{
		Exchange:   cfg.Broker.Exchange,
		RoutingKey: cfg.Broker.Queue,
		Propagator: prop,
		Metrics:    rt.Provider.Metrics(),
		Logger:     rt.Logger,
	})

	c := counter.New(counter.Options{
		Origin:      config.Instance(cfg.API.Instance),
		Environment: counter.DetectEnvironment(),
		Message:     cfg.API.Message,
	})
	rt.Logger.Info("counter ready",
		slog.String("producer", c.Origin()),
		slog.String(tallylog.ExchangeKey, cfg.Broker.Exchange),
		slog.String(tallylog.RoutingKeyKey, cfg.Broker.Queue))

	return tallyapi.NewHandler(c, pub, tracer, tallyapi.Options{
		Propagator:     prop,
		Metrics:        rt.Provider.Metrics(),
		MetricsHandler: rt.Provider.MetricsHandler(),
		Logger:         rt.Logger,
	})
}

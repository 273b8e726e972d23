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

// Package worker implements the "tally worker" command.
package worker

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tally/internal/api"
	"github.com/tombee/tally/internal/broker"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/internal/consumer"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/store"
)

const tracerName = "github.com/tombee/tally/worker"

type options struct {
	heartbeat   time.Duration
	dbPath      string
	metricsAddr string
	instance    string
	retention   time.Duration
}

func (o options) apply(cfg *config.Config) {
	if o.heartbeat > 0 {
		cfg.Worker.HeartbeatInterval = o.heartbeat
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.metricsAddr != "" {
		cfg.Worker.MetricsAddr = o.metricsAddr
	}
	if o.instance != "" {
		cfg.Worker.Instance = o.instance
	}
	if o.retention > 0 {
		cfg.Worker.Retention = o.retention
	}
}

// NewCommand creates the worker command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use: "worker",
		Annotations: map[string]string{
			"group": "pipeline",
		},
		Short: "Consume counter results and record them",
		Long: `Consume counter results from the broker queue and append each one to the
history database. Every message continues the trace of the request that
produced it. A heartbeat is logged while the worker waits.`,
		Example: `  # Consume from the default queue
  tally worker

  # Log a heartbeat every 10 seconds and expose metrics
  tally worker --heartbeat 10s --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().DurationVar(&opts.heartbeat, "heartbeat", 0, "Heartbeat interval (default: 5s)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Path to the history database")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics on this address")
	cmd.Flags().StringVar(&opts.instance, "instance", "", "Worker instance name (default: hostname)")
	cmd.Flags().DurationVar(&opts.retention, "retention", 0, "Delete history older than this (default: keep forever)")

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

	rt, err := shared.NewRuntime(ctx, cfg, "tally-worker")
	if err != nil {
		return err
	}
	defer rt.Close(cfg.API.ShutdownTimeout)

	conn, err := shared.OpenBroker(cfg.Broker, rt.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if cfg.Worker.MetricsAddr != "" {
		srv := api.NewServer(cfg.Worker.MetricsAddr, metricsMux(rt), rt.Logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				rt.Logger.Error("metrics server failed", tallylog.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return Serve(ctx, rt, conn)
}

func metricsMux(rt *shared.Runtime) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", rt.Provider.MetricsHandler())
	return mux
}

// Serve opens the history store and consumes from sub until ctx is
// cancelled. It returns nil after cancellation.
func Serve(ctx context.Context, rt *shared.Runtime, sub broker.Subscriber) error {
	cfg := rt.Config
	logger := rt.Logger

	st, err := store.Open(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return shared.NewStorageError("failed to open history store", err)
	}
	defer st.Close()
	logger.Debug("history store opened", slog.String("path", cfg.Store.Path))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	retention := store.NewRetention(st, cfg.Worker.Retention, 0, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		retention.Run(ctx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	c := consumer.New(sub, st, rt.Provider.Tracer(tracerName), consumer.Options{
		Queue:             cfg.Broker.Queue,
		Exchange:          cfg.Broker.Exchange,
		Identity:          config.Instance(cfg.Worker.Instance),
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		Propagator:        cfg.Tracing.Propagation.Propagator(),
		Metrics:           rt.Provider.Metrics(),
		Logger:            logger,
	})
	return c.Run(ctx)
}

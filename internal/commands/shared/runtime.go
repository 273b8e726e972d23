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

package shared

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tombee/tally/internal/broker"
	"github.com/tombee/tally/internal/config"
	tallylog "github.com/tombee/tally/internal/log"
	"github.com/tombee/tally/internal/tracing"
)

// Broker is a connection that can both publish and consume.
type Broker interface {
	broker.Publisher
	broker.Subscriber
}

// Runtime holds the process-wide resources of a long-running command.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Provider *tracing.Provider
}

// LoadConfig loads configuration from --config (or the default location)
// and applies the global flags.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if GetVerbose() {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// NewLogger creates the process logger from configuration.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return tallylog.New(&tallylog.Config{
		Level:     cfg.Level,
		Format:    tallylog.Format(cfg.Format),
		Output:    w,
		AddSource: cfg.AddSource,
	})
}

// NewRuntime validates cfg and acquires the logger and telemetry provider.
// service names the process in traces unless a service name was configured.
func NewRuntime(ctx context.Context, cfg *config.Config, service string) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError("invalid configuration", err)
	}

	logger := NewLogger(cfg.Log, os.Stderr)

	v, _, _ := GetVersion()
	tcfg := cfg.Tracing
	if tcfg.ServiceName == "" || tcfg.ServiceName == tracing.DefaultConfig().ServiceName {
		tcfg.ServiceName = service
	}
	if tcfg.ServiceVersion == "" || tcfg.ServiceVersion == "unknown" {
		tcfg.ServiceVersion = v
	}

	provider, err := tracing.NewProvider(ctx, tcfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("tally starting",
		slog.String("service", tcfg.ServiceName),
		slog.String("version", v),
		slog.Bool("tracing", tcfg.Enabled))

	return &Runtime{Config: cfg, Logger: logger, Provider: provider}, nil
}

// Close flushes telemetry within timeout.
func (r *Runtime) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := r.Provider.Shutdown(ctx); err != nil {
		r.Logger.Warn("telemetry shutdown failed", tallylog.Error(err))
	}
}

// OpenBroker connects to the configured broker.
func OpenBroker(cfg config.BrokerConfig, logger *slog.Logger) (Broker, error) {
	if cfg.Kind == config.BrokerMemory {
		logger.Warn("using in-process memory broker")
		return broker.NewMemory(), nil
	}
	conn, err := broker.DialAMQP(broker.AMQPConfig{
		URL:      cfg.URL,
		Exchange: cfg.Exchange,
		Queue:    cfg.Queue,
		Declare:  cfg.Declare,
	}, logger)
	if err != nil {
		return nil, NewTransportError("failed to connect to broker", err)
	}
	return conn, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

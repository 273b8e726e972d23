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

// Package client implements the "tally client" command.
package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tally/internal/client"
	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/config"
	"github.com/tombee/tally/pkg/httpclient"
)

const tracerName = "github.com/tombee/tally/client"

type options struct {
	targets  []string
	interval time.Duration
	once     bool
}

// NewCommand creates the client command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use: "client",
		Annotations: map[string]string{
			"group": "pipeline",
		},
		Short: "Call the counter API and print the results",
		Long: `Call one or more counter endpoints and print each returned value.

By default a request is sent every time ENTER is pressed. Use --interval to
send requests on a fixed schedule, or --once to send a single round.
Every round of requests is one trace, continued by the API and the worker.`,
		Example: `  # Interactive, against the configured endpoint
  tally client

  # Poll two producers every second
  tally client --interval 1s \
    --target go=http://localhost:8080/contador \
    --target other=http://localhost:8081/contador`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringArrayVar(&opts.targets, "target", nil, "Endpoint as label=url (repeatable)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Send requests on this interval instead of waiting for ENTER")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Send one round of requests and exit")

	return cmd
}

func run(ctx context.Context, opts options, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	if opts.interval > 0 {
		cfg.Client.Interval = opts.interval
	}

	targets, err := parseTargets(opts.targets, cfg.Client)
	if err != nil {
		return shared.NewConfigError("invalid --target", err)
	}

	ctx, stop := shared.SignalContext(ctx)
	defer stop()

	rt, err := shared.NewRuntime(ctx, cfg, "tally-client")
	if err != nil {
		return err
	}
	defer rt.Close(cfg.Client.Timeout)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.Client.Timeout
	httpCfg.RetryAttempts = cfg.Client.Retries
	version, _, _ := shared.GetVersion()
	httpCfg.UserAgent = "tally-client/" + version
	httpCfg.Logger = rt.Logger
	httpClient, err := httpclient.New(httpCfg)
	if err != nil {
		return shared.NewConfigError("invalid client configuration", err)
	}

	c, err := client.New(targets, rt.Provider.Tracer(tracerName),
		client.WithHTTPClient(httpClient),
		client.WithPropagator(cfg.Tracing.Propagation.Propagator()),
		client.WithOutput(out),
		client.WithLogger(rt.Logger),
		client.WithStartPoint(config.Instance("")),
		client.WithPrompt(shared.IsTerminal(in)),
	)
	if err != nil {
		return shared.NewConfigError("invalid client configuration", err)
	}

	if in == nil {
		in = os.Stdin
	}
	if opts.once {
		if err := c.SendRequests(ctx); err != nil {
			return shared.NewTransportError("request failed", err)
		}
		return nil
	}
	return c.Run(ctx, cfg.Client.Interval, in)
}

// parseTargets turns label=url flags into targets. A value without a label
// uses the configured label; no flags means the configured endpoint.
func parseTargets(flags []string, cfg config.ClientConfig) ([]client.Target, error) {
	if len(flags) == 0 {
		return []client.Target{{Label: cfg.Label, URL: cfg.URL}}, nil
	}

	targets := make([]client.Target, 0, len(flags))
	for _, f := range flags {
		label, url, ok := strings.Cut(f, "=")
		if !ok {
			label, url = cfg.Label, f
		}
		label, url = strings.TrimSpace(label), strings.TrimSpace(url)
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			return nil, fmt.Errorf("%q: url must start with http:// or https://", f)
		}
		if label == "" {
			label = cfg.Label
		}
		targets = append(targets, client.Target{Label: label, URL: url})
	}
	return targets, nil
}

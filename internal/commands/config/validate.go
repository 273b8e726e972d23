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

package config

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/config"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	shared.JSONResponse
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func newConfigValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Long: `Load the configuration and report problems.

Errors make the configuration unusable. Warnings point at settings that
work but are probably not intended. With --strict, warnings are treated
as errors.`,
		Example: `  # Validate configuration
  tally config validate

  # Get validation result as JSON
  tally config validate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(w io.Writer, strict bool) error {
	result := ValidationResult{JSONResponse: shared.NewJSONResponse("config validate")}

	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.Warnings = warnings(cfg)
	}

	result.Valid = len(result.Errors) == 0 && (!strict || len(result.Warnings) == 0)
	result.Success = result.Valid

	if shared.GetJSON() {
		if err := shared.EmitJSON(w, result); err != nil {
			return err
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintln(w, shared.RenderError(e))
		}
		for _, warn := range result.Warnings {
			fmt.Fprintln(w, shared.RenderLabel("warning: ")+warn)
		}
		if result.Valid {
			fmt.Fprintln(w, shared.RenderOK("configuration is valid"))
		}
	}

	if !result.Valid {
		return &shared.ExitError{Code: shared.ExitConfig, Message: "configuration is invalid"}
	}
	return nil
}

// warnings reports settings that are legal but probably unintended.
func warnings(cfg *config.Config) []string {
	var out []string
	if cfg.Broker.Kind == config.BrokerMemory {
		out = append(out, "broker.kind is memory: only a worker in the same process receives results")
	}
	if cfg.Tracing.Enabled && len(cfg.Tracing.Exporters) == 0 {
		out = append(out, "tracing is enabled but no exporters are configured")
	}
	if !cfg.Tracing.Enabled && len(cfg.Tracing.Exporters) > 0 {
		out = append(out, "tracing exporters are configured but tracing is disabled")
	}
	if cfg.Tracing.Sampling.Rate == 0 {
		out = append(out, "tracing.sampling.rate is 0: new traces are never sampled")
	}
	return out
}

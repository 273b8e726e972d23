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

package main

import (
	"github.com/tombee/tally/internal/cli"
	"github.com/tombee/tally/internal/commands/api"
	"github.com/tombee/tally/internal/commands/client"
	"github.com/tombee/tally/internal/commands/completion"
	"github.com/tombee/tally/internal/commands/config"
	"github.com/tombee/tally/internal/commands/history"
	versioncmd "github.com/tombee/tally/internal/commands/version"
	"github.com/tombee/tally/internal/commands/worker"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Pipeline
	rootCmd.AddCommand(api.NewCommand())
	rootCmd.AddCommand(worker.NewCommand())
	rootCmd.AddCommand(client.NewCommand())

	// Inspection
	rootCmd.AddCommand(history.NewCommand())
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())
	rootCmd.AddCommand(completion.NewCommand())

	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}

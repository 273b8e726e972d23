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

/*
Package cli provides the root command and shared configuration for tally's CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	tally
	├── api          Serve the counter and publish results
	├── worker       Consume results and record them
	├── client       Call the counter API
	├── history      Show recorded results
	├── config       Show and validate configuration
	├── version      Show version
	├── completion   Generate shell completions
	└── help         Show help

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable debug logging
	--json           Output in JSON format
	--config         Path to config file

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: General error
  - Exit 2: Invalid configuration
  - Exit 3: Broker or network failure
  - Exit 4: History store failure
*/
package cli

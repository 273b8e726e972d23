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
	"errors"
	"fmt"
	"io"
	"os"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// Exit codes for tally commands
const (
	ExitSuccess   = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitTransport = 3
	ExitStorage   = 4
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for unusable configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Cause: cause}
}

// NewTransportError creates an error for broker or network failures
func NewTransportError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitTransport, Message: msg, Cause: cause}
}

// NewStorageError creates an error for history store failures
func NewStorageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitStorage, Message: msg, Cause: cause}
}

// ExitCode returns the process exit code for err. Errors without an explicit
// code are classified by the typed error they wrap.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		cfgErr       *tallyerrors.ConfigError
		transportErr *tallyerrors.TransportError
		persistErr   *tallyerrors.PersistError
	)
	switch {
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.As(err, &transportErr):
		return ExitTransport
	case errors.As(err, &persistErr):
		return ExitStorage
	}
	return ExitFailure
}

// HandleExitError prints err and exits with the matching code
func HandleExitError(err error) {
	if err == nil {
		return
	}
	printError(os.Stderr, err)
	os.Exit(ExitCode(err))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, RenderError("Error: "+err.Error()))
}

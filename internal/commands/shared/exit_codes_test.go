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
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"explicit", &ExitError{Code: 42, Message: "custom"}, 42},
		{"config helper", NewConfigError("bad", nil), ExitConfig},
		{"typed config", &tallyerrors.ConfigError{Key: "broker.url", Reason: "missing"}, ExitConfig},
		{"wrapped transport", fmt.Errorf("start: %w", &tallyerrors.TransportError{Op: "dial", Cause: errors.New("refused")}), ExitTransport},
		{"persist", &tallyerrors.PersistError{Op: "save", Cause: errors.New("locked")}, ExitStorage},
		{"explicit wins over cause", NewTransportError("connect", &tallyerrors.ConfigError{Key: "k", Reason: "r"}), ExitTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := NewStorageError("failed to open history", errors.New("disk full"))
	if err.Error() != "failed to open history: disk full" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, err.Cause) {
		t.Error("expected cause to be unwrappable")
	}

	bare := &ExitError{Code: ExitFailure, Message: "stopped"}
	if bare.Error() != "stopped" {
		t.Errorf("unexpected message: %q", bare.Error())
	}
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("queue missing"))
	if !strings.Contains(buf.String(), "Error: queue missing") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

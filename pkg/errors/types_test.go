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

package errors_test

import (
	"errors"
	"fmt"
	"testing"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

func TestTransportError_Error(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		name    string
		err     *tallyerrors.TransportError
		wantMsg string
	}{
		{
			name:    "with target",
			err:     &tallyerrors.TransportError{Op: "dial", Target: "amqp://localhost", Cause: cause},
			wantMsg: "transport dial failed (amqp://localhost): connection refused",
		},
		{
			name:    "without target",
			err:     &tallyerrors.TransportError{Op: "publish", Cause: cause},
			wantMsg: "transport publish failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("TransportError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("disk full")

	persistErr := tallyerrors.Persist("save", cause)
	if !errors.Is(persistErr, cause) {
		t.Error("PersistError should unwrap to its cause")
	}

	wrapped := fmt.Errorf("handling message: %w", persistErr)
	var target *tallyerrors.PersistError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find *PersistError through wrapping")
	}
	if target.Op != "save" {
		t.Errorf("Op = %q, want %q", target.Op, "save")
	}
}

func TestConstructors_NilCause(t *testing.T) {
	if err := tallyerrors.Transport("publish", "x", nil); err != nil {
		t.Errorf("Transport(nil) = %v, want nil", err)
	}
	if err := tallyerrors.Persist("save", nil); err != nil {
		t.Errorf("Persist(nil) = %v, want nil", err)
	}
	if err := tallyerrors.Wrap(nil, "ctx"); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&tallyerrors.DecodeError{Size: 3}, "decode"},
		{fmt.Errorf("wrapped: %w", &tallyerrors.TransportError{Op: "dial"}), "transport"},
		{&tallyerrors.PropagationError{Header: "traceparent"}, "propagation"},
		{&tallyerrors.ConfigError{Key: "broker.url"}, "config"},
		{errors.New("plain"), "internal"},
	}

	for _, tt := range tests {
		if got := tallyerrors.TypeOf(tt.err); got != tt.want {
			t.Errorf("TypeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

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

package errors

import (
	"fmt"
)

// TransportError represents a failure at the broker boundary.
// Use this for connection, publish and consume failures.
type TransportError struct {
	// Op is the broker operation that failed (e.g., "dial", "publish", "consume")
	Op string

	// Target identifies the exchange, queue or URL involved
	Target string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport %s failed", e.Op)
	if e.Target != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Target)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TransportError) ErrorType() string {
	return "transport"
}

// IsRetryable implements ErrorClassifier. The pipeline never retries, but a
// supervisor restarting the process may.
func (e *TransportError) IsRetryable() bool {
	return true
}

// DecodeError represents a message body that could not be decoded.
type DecodeError struct {
	// Size is the length of the rejected body in bytes
	Size int

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid message body (%d bytes): %v", e.Size, e.Cause)
	}
	return fmt.Sprintf("invalid message body (%d bytes)", e.Size)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *DecodeError) ErrorType() string {
	return "decode"
}

// IsRetryable implements ErrorClassifier.
func (e *DecodeError) IsRetryable() bool {
	return false
}

// PropagationError represents malformed trace propagation headers.
// It is always recovered where it occurs and never stops message handling.
type PropagationError struct {
	// Header is the header key that failed to parse
	Header string

	// Value is the raw header value
	Value string
}

// Error implements the error interface.
func (e *PropagationError) Error() string {
	return fmt.Sprintf("malformed propagation header %s: %q", e.Header, e.Value)
}

// ErrorType implements ErrorClassifier.
func (e *PropagationError) ErrorType() string {
	return "propagation"
}

// IsRetryable implements ErrorClassifier.
func (e *PropagationError) IsRetryable() bool {
	return false
}

// PersistError represents a failure of the downstream store.
type PersistError struct {
	// Op is the storage operation that failed (e.g., "save", "query")
	Op string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persist %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("persist %s failed", e.Op)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PersistError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *PersistError) ErrorType() string {
	return "persist"
}

// IsRetryable implements ErrorClassifier.
func (e *PersistError) IsRetryable() bool {
	return true
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "broker.url", "consumer.heartbeat_interval")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string {
	return "config"
}

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool {
	return false
}

var (
	_ ErrorClassifier = (*TransportError)(nil)
	_ ErrorClassifier = (*DecodeError)(nil)
	_ ErrorClassifier = (*PropagationError)(nil)
	_ ErrorClassifier = (*PersistError)(nil)
	_ ErrorClassifier = (*ConfigError)(nil)
)

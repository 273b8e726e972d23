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
	"errors"
	"fmt"
)

// Wrap creates a new error that wraps the given error with additional context.
// If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target type.
//
// Usage:
//
//	var transportErr *TransportError
//	if errors.As(err, &transportErr) {
//	    log.Printf("broker %s failed", transportErr.Op)
//	}
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Transport wraps cause as a *TransportError. Returns nil when cause is nil.
func Transport(op, target string, cause error) error {
	if cause == nil {
		return nil
	}
	return &TransportError{Op: op, Target: target, Cause: cause}
}

// Persist wraps cause as a *PersistError. Returns nil when cause is nil.
func Persist(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &PersistError{Op: op, Cause: cause}
}

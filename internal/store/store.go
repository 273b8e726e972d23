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

// Package store persists the results processed by the worker.
package store

import (
	"context"
	"time"

	"github.com/tombee/tally/internal/envelope"
)

// Record is one processed result together with the consumer metadata.
type Record struct {
	Result envelope.Result

	// Consumer identifies the worker instance that processed the result.
	Consumer string

	// Queue is the queue the result was received from.
	Queue string

	// ProcessedAt is the moment of consumption. Sinks store it in UTC.
	ProcessedAt time.Time
}

// Entry is a stored Record with its row id.
type Entry struct {
	ID int64
	Record
}

// Sink receives processed results. Failures are *errors.PersistError.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}

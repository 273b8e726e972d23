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

// Package broker provides the message transports between producer and worker.
//
// Deliveries are acknowledged when they are handed to the subscriber
// (auto-ack): once a Delivery is read from the channel it will not be
// redelivered, whatever the worker does with it.
package broker

import (
	"context"
	"time"

	"github.com/tombee/tally/internal/envelope"
)

// Delivery is a message as received from the broker.
type Delivery struct {
	MessageID  string
	Body       []byte
	Headers    map[string]string
	Exchange   string
	RoutingKey string
	ReceivedAt time.Time
}

// Publisher hands envelopes to the broker.
type Publisher interface {
	// Publish sends env to env.Exchange with env.RoutingKey. It blocks until
	// the broker accepted the message or the call failed. Failures are
	// *errors.TransportError.
	Publish(ctx context.Context, env envelope.Envelope) error

	// Close releases the underlying connection.
	Close() error
}

// Subscriber receives deliveries from a single queue.
type Subscriber interface {
	// Consume starts delivery. The returned channel is closed when ctx is
	// cancelled, the subscriber is closed, or the connection is lost.
	Consume(ctx context.Context) (<-chan Delivery, error)

	// Close releases the underlying connection.
	Close() error
}

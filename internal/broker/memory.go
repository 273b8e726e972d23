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

package broker

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/tombee/tally/internal/envelope"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// ErrClosed is returned when operations are performed on a closed broker.
var ErrClosed = tallyerrors.New("broker is closed")

// Memory is an in-process single-queue broker. Every published envelope is
// delivered once, in publish order, to the subscriber.
type Memory struct {
	mu       sync.Mutex
	messages []Delivery
	signal   chan struct{}
	closed   bool
	done     chan struct{}
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Publish appends env to the queue.
func (m *Memory) Publish(ctx context.Context, env envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return &tallyerrors.TransportError{Op: "publish", Target: env.Exchange, Cause: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return &tallyerrors.TransportError{Op: "publish", Target: env.Exchange, Cause: ErrClosed}
	}

	headers := make(map[string]string, len(env.Headers))
	maps.Copy(headers, env.Headers)
	m.messages = append(m.messages, Delivery{
		MessageID:  env.ID,
		Body:       append([]byte(nil), env.Body...),
		Headers:    headers,
		Exchange:   env.Exchange,
		RoutingKey: env.RoutingKey,
	})

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Consume streams queued and future messages until ctx is done or the
// broker is closed.
func (m *Memory) Consume(ctx context.Context) (<-chan Delivery, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, &tallyerrors.TransportError{Op: "consume", Cause: ErrClosed}
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		for {
			d, ok := m.next(ctx)
			if !ok {
				return
			}
			d.ReceivedAt = time.Now().UTC()
			select {
			case out <- d:
			case <-ctx.Done():
				return
			case <-m.done:
				return
			}
		}
	}()
	return out, nil
}

// next blocks until a message is available. It returns false when ctx is
// done or the broker is closed.
func (m *Memory) next(ctx context.Context) (Delivery, bool) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Delivery{}, false
		}
		if len(m.messages) > 0 {
			d := m.messages[0]
			m.messages = m.messages[1:]
			m.mu.Unlock()
			return d, true
		}
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Delivery{}, false
		case <-m.done:
			return Delivery{}, false
		case <-m.signal:
		}
	}
}

// Len returns the number of messages not yet handed to a subscriber.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// Close closes the broker. Pending messages are dropped.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

var (
	_ Publisher  = (*Memory)(nil)
	_ Subscriber = (*Memory)(nil)
)

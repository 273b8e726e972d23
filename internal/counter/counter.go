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

// Package counter holds the producer's in-memory counter.
package counter

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/tombee/tally/internal/envelope"
)

// Environment describes the process that owns a Counter. It is captured once
// at startup and never changes.
type Environment struct {
	Kernel  string
	Runtime string
}

// Options configures a Counter.
type Options struct {
	// Origin identifies the producing instance (hostname or process tag).
	Origin string

	// Environment is reported with every snapshot.
	Environment Environment

	// Message is an optional free-form text included in every snapshot.
	Message string
}

// Counter is a monotonically increasing value starting at zero.
// It is safe for concurrent use.
type Counter struct {
	mu    sync.Mutex
	value int64

	origin  string
	env     Environment
	message *string
}

// New creates a Counter at zero.
func New(opts Options) *Counter {
	c := &Counter{
		origin: opts.Origin,
		env:    opts.Environment,
	}
	if opts.Message != "" {
		msg := opts.Message
		c.message = &msg
	}
	return c
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value
}

// Value returns the current value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Snapshot returns the current value with the counter's origin metadata.
func (c *Counter) Snapshot() envelope.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resultLocked()
}

// Next increments the counter and returns the snapshot of the new value.
// The increment and the read happen under one lock, so concurrent callers
// never observe the same value.
func (c *Counter) Next() envelope.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.resultLocked()
}

// Origin returns the producing instance identifier.
func (c *Counter) Origin() string {
	return c.origin
}

func (c *Counter) resultLocked() envelope.Result {
	r := envelope.Result{
		Value:     c.value,
		Producer:  c.origin,
		Kernel:    c.env.Kernel,
		Framework: c.env.Runtime,
	}
	if c.message != nil {
		msg := *c.message
		r.Message = &msg
	}
	return r
}

// DetectEnvironment describes the running process: operating system,
// architecture and kernel release for Kernel, Go version for Runtime.
func DetectEnvironment() Environment {
	kernel := runtime.GOOS + "/" + runtime.GOARCH
	if data, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
		if release := strings.TrimSpace(string(data)); release != "" {
			kernel += " " + release
		}
	}
	return Environment{
		Kernel:  kernel,
		Runtime: "Go " + strings.TrimPrefix(runtime.Version(), "go"),
	}
}

// DefaultOrigin returns the hostname, or "unknown" if it cannot be read.
func DefaultOrigin() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	return host
}

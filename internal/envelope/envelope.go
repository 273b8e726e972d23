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

// Package envelope defines the broker message exchanged between producer and worker.
//
// An Envelope pairs a JSON body (a Result) with a string header map carrying
// the propagated trace context. The body is encoded independently of the
// headers, so a worker that cannot make sense of the headers can still decode
// the body.
package envelope

import (
	"bytes"
	"encoding/json"
	"maps"
	"time"

	"github.com/google/uuid"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// ContentType is the MIME type of encoded bodies.
const ContentType = "application/json"

// Result is a snapshot of the counter as it travels on the wire.
type Result struct {
	Value     int64   `json:"valorAtual"`
	Producer  string  `json:"producer"`
	Kernel    string  `json:"kernel"`
	Framework string  `json:"framework"`
	Message   *string `json:"mensagem"`
}

// Envelope is one broker message: an encoded body plus propagation headers.
type Envelope struct {
	// ID uniquely identifies the message for log and span correlation.
	ID string

	// Body is the UTF-8 JSON encoding of a Result.
	Body []byte

	// Headers carries the trace context under reserved keys and any
	// application headers alongside it.
	Headers map[string]string

	// Exchange and RoutingKey address the message.
	Exchange   string
	RoutingKey string

	// PublishedAt is set by the producer when the envelope is built.
	PublishedAt time.Time
}

// New builds an envelope for r with a fresh message id. headers is copied.
func New(r Result, headers map[string]string) (Envelope, error) {
	body, err := EncodeBody(r)
	if err != nil {
		return Envelope{}, err
	}
	h := make(map[string]string, len(headers))
	maps.Copy(h, headers)
	return Envelope{
		ID:          NewID(),
		Body:        body,
		Headers:     h,
		PublishedAt: Now(),
	}, nil
}

// NewID returns a fresh message id.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time in UTC, the zone used for every timestamp
// carried by an envelope.
func Now() time.Time {
	return time.Now().UTC()
}

// EncodeBody serialises r as JSON.
func EncodeBody(r Result) ([]byte, error) {
	return json.Marshal(r)
}

// DecodeBody parses a JSON body into a Result. Field names match
// case-insensitively. Any failure is returned as a *DecodeError.
func DecodeBody(body []byte) (Result, error) {
	var r Result
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Result{}, &tallyerrors.DecodeError{Size: len(body), Cause: errNotObject}
	}
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Result{}, &tallyerrors.DecodeError{Size: len(body), Cause: err}
	}
	return r, nil
}

var errNotObject = tallyerrors.New("body is not a JSON object")

// MessageOrEmpty returns the optional message text, or "" when absent.
func (r Result) MessageOrEmpty() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

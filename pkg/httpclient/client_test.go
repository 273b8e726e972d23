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


package httpclient

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestNew_Layers(t *testing.T) {
	cfg := DefaultConfig()
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if client.Timeout != cfg.Timeout {
		t.Errorf("timeout = %v, want %v", client.Timeout, cfg.Timeout)
	}
	if _, ok := client.Transport.(*retryTransport); !ok {
		t.Errorf("expected retry transport, got %T", client.Transport)
	}

	cfg.RetryAttempts = 0
	client, err = New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, ok := client.Transport.(*loggingTransport); !ok {
		t.Errorf("expected logging transport, got %T", client.Transport)
	}
}

func TestNew_DoesNotRetryServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Get(server.URL + "/contador")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}

func TestNew_SetsUserAgent(t *testing.T) {
	agents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.Header.Get("User-Agent")
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.UserAgent = "tally-client/1.2.3"
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := <-agents; got != "tally-client/1.2.3" {
		t.Errorf("User-Agent = %q", got)
	}
}

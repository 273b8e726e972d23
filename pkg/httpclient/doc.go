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


// Package httpclient builds the HTTP clients used to poll producers.
//
// Clients compose two transport layers over a pooled http.Transport:
//   - a logging layer that sets the User-Agent and logs every request with
//     its sanitized URL, status and duration
//   - an optional retry layer with exponential backoff and jitter
//
// Every poll of a producer increments its counter, so a request that reached
// the server is never repeated. Only failures to establish a connection are
// retried; status codes are returned to the caller as-is.
//
//	cfg := httpclient.DefaultConfig()
//	cfg.Logger = logger
//	client, err := httpclient.New(cfg)
package httpclient

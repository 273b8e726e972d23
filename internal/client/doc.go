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

/*
Package client polls the producer API and prints each counter snapshot.

A Client sends one traced GET per Target. Every batch of requests runs under
a root span named SendRequests, and every request is a client span whose
context travels to the producer in the traceparent header:

	c, err := client.New(targets, tracer, client.WithTimeout(10*time.Second))
	if err != nil {
	    return err
	}
	err = c.Run(ctx, 0, os.Stdin) // ENTER sends the next batch

With a positive interval Run sends a batch on every tick instead of waiting
for input.
*/
package client

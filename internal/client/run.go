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

package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	tallylog "github.com/tombee/tally/internal/log"
)

const prompt = "Press ENTER to send requests (Ctrl+C to quit)"

// Run sends batches until ctx is cancelled. With a positive interval a batch
// is sent every interval; otherwise one batch is sent per line read from in,
// and Run returns when in is exhausted. Request failures are printed and do
// not stop the loop.
func (c *Client) Run(ctx context.Context, interval time.Duration, in io.Reader) error {
	if interval > 0 {
		return c.runPaced(ctx, interval)
	}
	return c.runInteractive(ctx, in)
}

func (c *Client) runPaced(ctx context.Context, interval time.Duration) error {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.sendBatch(ctx)
	}
}

func (c *Client) runInteractive(ctx context.Context, in io.Reader) error {
	lines := make(chan struct{})
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		if c.prompt {
			fmt.Fprintln(c.out, prompt)
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil && !errors.Is(err, io.EOF) {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			c.sendBatch(ctx)
		}
	}
}

func (c *Client) sendBatch(ctx context.Context) {
	if err := c.SendRequests(ctx); err != nil {
		c.logger.Debug("batch finished with errors", tallylog.Error(err))
	}
}

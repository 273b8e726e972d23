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

package store

import (
	"context"
	"log/slog"
	"time"

	tallylog "github.com/tombee/tally/internal/log"
)

// Pruner deletes history rows older than a cutoff.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// Retention periodically removes history older than MaxAge.
type Retention struct {
	store    Pruner
	maxAge   time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewRetention creates a retention job. interval defaults to one hour.
func NewRetention(store Pruner, maxAge, interval time.Duration, logger *slog.Logger) *Retention {
	if interval == 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = tallylog.Discard()
	}
	return &Retention{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		logger:   tallylog.WithComponent(logger, "retention"),
		now:      time.Now,
	}
}

// Run prunes once immediately and then every interval until ctx is done.
// A zero maxAge disables pruning and Run returns at once.
func (r *Retention) Run(ctx context.Context) {
	if r.maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Prune(ctx)
	for {
		select {
		case <-ticker.C:
			r.Prune(ctx)
		case <-ctx.Done():
			r.logger.Debug("retention stopping")
			return
		}
	}
}

// Prune performs a single cleanup pass and returns the number of rows deleted.
func (r *Retention) Prune(ctx context.Context) int64 {
	before := r.now().Add(-r.maxAge)

	deleted, err := r.store.DeleteOlderThan(ctx, before)
	if err != nil {
		r.logger.Error("failed to prune history", tallylog.Error(err))
		return 0
	}
	if deleted > 0 {
		r.logger.Info("pruned history",
			slog.Int64("count", deleted),
			slog.String("before", before.UTC().Format(time.RFC3339)),
		)
	}
	return deleted
}

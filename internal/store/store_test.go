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
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tally/internal/envelope"
	tallyerrors "github.com/tombee/tally/pkg/errors"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	var persistErr *tallyerrors.PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, "open", persistErr.Op)
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := "Teste"
	brt := time.FixedZone("BRT", -3*3600)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, brt)

	for i := int64(1); i <= 3; i++ {
		r := envelope.Result{Value: i, Producer: "api-1", Kernel: "linux 6.1", Framework: "Go 1.25"}
		if i == 2 {
			r.Message = &msg
		}
		require.NoError(t, s.Save(ctx, Record{
			Result:      r,
			Consumer:    "worker-1",
			Queue:       "queue-contagem",
			ProcessedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, int64(3), entries[0].Result.Value)
	assert.Equal(t, int64(1), entries[2].Result.Value)
	assert.Nil(t, entries[0].Result.Message)
	require.NotNil(t, entries[1].Result.Message)
	assert.Equal(t, "Teste", *entries[1].Result.Message)

	e := entries[0]
	assert.Equal(t, "api-1", e.Result.Producer)
	assert.Equal(t, "worker-1", e.Consumer)
	assert.Equal(t, "queue-contagem", e.Queue)
	assert.Equal(t, time.UTC, e.ProcessedAt.Location())
	assert.True(t, base.Add(3*time.Minute).Equal(e.ProcessedAt))
	assert.Equal(t, 12, e.ProcessedAt.Hour(), "stored in UTC")

	limited, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSave_DefaultsProcessedAt(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Save(context.Background(), Record{Result: envelope.Result{Value: 1}}))

	entries, err := s.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.WithinDuration(t, time.Now(), entries[0].ProcessedAt, time.Minute)
	assert.Empty(t, entries[0].Result.Producer)
}

func TestSave_ClosedStore(t *testing.T) {
	s, err := Open(Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Save(context.Background(), Record{Result: envelope.Result{Value: 1}})
	var persistErr *tallyerrors.PersistError
	require.True(t, errors.As(err, &persistErr))
	assert.Equal(t, "save", persistErr.Op)
}

func TestRetention_Prune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{48 * time.Hour, 36 * time.Hour, time.Hour} {
		require.NoError(t, s.Save(ctx, Record{Result: envelope.Result{Value: 1}, ProcessedAt: now.Add(-age)}))
	}

	r := NewRetention(s, 24*time.Hour, time.Hour, nil)
	r.now = func() time.Time { return now }

	assert.Equal(t, int64(2), r.Prune(ctx))
	assert.Equal(t, int64(0), r.Prune(ctx))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRetention_DisabledReturns(t *testing.T) {
	r := NewRetention(openTestStore(t), 0, 0, nil)

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run must return when retention is disabled")
	}
}

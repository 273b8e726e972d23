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

// Package history implements the "tally history" command.
package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tally/internal/commands/shared"
	"github.com/tombee/tally/internal/store"
)

type options struct {
	limit  int
	utc    bool
	dbPath string
}

// NewCommand creates the history command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use: "history",
		Annotations: map[string]string{
			"group": "inspection",
		},
		Short: "Show recently recorded results",
		Long: `List the most recent results recorded by workers, newest first.

Times are stored in UTC and shown in local time unless --utc is given.`,
		Example: `  # Last 20 results
  tally history

  # Last 5 results as JSON
  tally history --limit 5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Number of results to show")
	cmd.Flags().BoolVar(&opts.utc, "utc", false, "Show times in UTC")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "Path to the history database")

	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.limit <= 0 {
		return shared.NewConfigError(fmt.Sprintf("--limit must be positive, got %d", opts.limit), nil)
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return err
	}
	if opts.dbPath != "" {
		cfg.Store.Path = opts.dbPath
	}

	st, err := store.Open(store.Config{Path: cfg.Store.Path})
	if err != nil {
		return shared.NewStorageError("failed to open history store", err)
	}
	defer st.Close()

	entries, err := st.Recent(ctx, opts.limit)
	if err != nil {
		return shared.NewStorageError("failed to read history", err)
	}

	loc := time.Local
	if opts.utc {
		loc = time.UTC
	}

	if shared.GetJSON() {
		return writeJSON(out, entries, loc)
	}
	writeTable(out, entries, loc)
	return nil
}

type entryJSON struct {
	ID          int64   `json:"id"`
	ProcessedAt string  `json:"processed_at"`
	Value       int64   `json:"valorAtual"`
	Producer    string  `json:"producer"`
	Consumer    string  `json:"consumer"`
	Queue       string  `json:"queue"`
	Kernel      string  `json:"kernel"`
	Framework   string  `json:"framework"`
	Message     *string `json:"mensagem"`
}

func writeJSON(out io.Writer, entries []store.Entry, loc *time.Location) error {
	type historyResponse struct {
		shared.JSONResponse
		Results []entryJSON `json:"results"`
	}

	resp := historyResponse{
		JSONResponse: shared.NewJSONResponse("history"),
		Results:      make([]entryJSON, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Results = append(resp.Results, entryJSON{
			ID:          e.ID,
			ProcessedAt: e.ProcessedAt.In(loc).Format(time.RFC3339Nano),
			Value:       e.Result.Value,
			Producer:    e.Result.Producer,
			Consumer:    e.Consumer,
			Queue:       e.Queue,
			Kernel:      e.Result.Kernel,
			Framework:   e.Result.Framework,
			Message:     e.Result.Message,
		})
	}
	return shared.EmitJSON(out, resp)
}

func writeTable(out io.Writer, entries []store.Entry, loc *time.Location) {
	if len(entries) == 0 {
		fmt.Fprintln(out, shared.RenderLabel("No results recorded yet."))
		return
	}

	fmt.Fprintln(out, shared.Header.Render(fmt.Sprintf("%-20s  %8s  %-16s  %-16s  %s", "PROCESSED", "VALUE", "PRODUCER", "CONSUMER", "MESSAGE")))
	for _, e := range entries {
		fmt.Fprintf(out, "%-20s  %8s  %-16s  %-16s  %s\n",
			e.ProcessedAt.In(loc).Format("2006-01-02 15:04:05"),
			shared.Value.Render(fmt.Sprintf("%8d", e.Result.Value)),
			truncate(e.Result.Producer, 16),
			truncate(e.Consumer, 16),
			e.Result.MessageOrEmpty(),
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/pinmap/pinmap/internal/output"
)

var (
	rateLimitListOutput string
	rateLimitListOut    string
)

var rateLimitListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rate limit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(rateLimitListOutput)
		if err != nil {
			return err
		}
		if format != output.FormatJSON && format != output.FormatTable {
			return fmt.Errorf("unsupported output format: %s", format)
		}

		db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		states, err := db.ListRateLimits(cmd.Context())
		if err != nil {
			return err
		}

		sink, err := openSink(rateLimitListOut)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if format == output.FormatJSON {
			payload, err := json.MarshalIndent(states, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(sink.writer, string(payload))
			return err
		}

		endpoints := make([]string, 0, len(states))
		for endpoint := range states {
			endpoints = append(endpoints, endpoint)
		}
		sort.Strings(endpoints)

		lines := []string{"Rate Limits", ""}
		if len(endpoints) == 0 {
			lines = append(lines, "(no stored rate limit state)")
			_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
			return nil
		}

		for _, endpoint := range endpoints {
			state := states[endpoint]
			backoff := "-"
			if state.BackoffUntil != nil {
				backoff = state.BackoffUntil.UTC().Format(time.RFC3339)
			}
			lines = append(lines, fmt.Sprintf("%s: count=%d last=%s backoff_until=%s",
				endpoint, state.RequestCount, state.LastRequestAt.UTC().Format(time.RFC3339), backoff))
		}

		_, _ = fmt.Fprint(sink.writer, ascii.DrawBox(strings.Join(lines, "\n"), 0))
		return nil
	},
}

func init() {
	rateLimitListCmd.Flags().StringVar(&rateLimitListOutput, "output-format", string(output.FormatTable), "Output format: table|json")
	rateLimitListCmd.Flags().StringVar(&rateLimitListOut, "out", "", "Write output to a file (default stdout)")
}

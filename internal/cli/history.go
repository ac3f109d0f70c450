package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/runner"
	"github.com/roach88/vmparity/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Session string // session id, or empty for the latest
}

// HistoryRun is one recorded backend run.
type HistoryRun struct {
	Seq       int64                  `json:"seq"`
	Version   config.ProtocolVersion `json:"protocol_version"`
	Kind      runner.Kind            `json:"backend"`
	Method    string                 `json:"method"`
	CodeHash  string                 `json:"code_hash"`
	Aborted   bool                   `json:"aborted"`
	Rendering string                 `json:"rendering"`
}

// HistoryResult holds the runs of one session.
type HistoryResult struct {
	Session  string                 `json:"session,omitempty"`
	Runs     []HistoryRun           `json:"runs"`
	Backends []store.BackendSummary `json:"backends,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <database>",
		Short: "List the runs recorded by check --db",
		Long: `List every backend run of one session recorded in a run database,
in the order the runs happened. Without --session, the latest session that
recorded anything is shown.

Examples:
  vmparity history ./runs.db
  vmparity history ./runs.db --session 0b6f... --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session to list (default latest)")

	return cmd
}

func runHistory(ctx context.Context, opts *HistoryOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	st, err := store.Inspect(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	session := opts.Session
	if session == "" {
		if session, err = st.LatestSession(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest session", err)
		}
	}
	logger.Debug("listing runs", "path", path, "session", session)

	result := HistoryResult{Session: session, Runs: []HistoryRun{}}
	if session != "" {
		runs, err := st.ListRuns(ctx, session)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		for _, r := range runs {
			result.Runs = append(result.Runs, HistoryRun{
				Seq:       r.Seq,
				Version:   r.Version,
				Kind:      r.Kind,
				Method:    r.Method,
				CodeHash:  r.CodeHash,
				Aborted:   r.Aborted,
				Rendering: r.Rendering,
			})
		}
		if result.Backends, err = st.Summarize(ctx, session); err != nil {
			return WrapExitError(ExitCommandError, "failed to summarize runs", err)
		}
	}

	return out.Success(result, func(w io.Writer) { writeHistoryText(w, result) })
}

func writeHistoryText(w io.Writer, result HistoryResult) {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "session %s\n", result.Session)
	for _, r := range result.Runs {
		status := "ok"
		if r.Aborted {
			status = "aborted"
		}
		fmt.Fprintf(w, "%d %s protocol=%s %s %s\n", r.Seq, r.Kind, r.Version, r.Method, status)
		for _, line := range strings.Split(strings.TrimRight(r.Rendering, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	for _, b := range result.Backends {
		fmt.Fprintf(w, "%s: %d runs, %d aborted\n", b.Kind, b.Runs, b.Aborted)
	}
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/vmparity/internal/harness"
	"github.com/roach88/vmparity/internal/runner"
	"github.com/roach88/vmparity/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Filter   string   // scenario name glob
	Database string   // optional run log
	Skip     []string // backends to exclude
}

// ScenarioResult holds the result of a single scenario.
type ScenarioResult struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Pass  bool   `json:"pass"`
	Error string `json:"error,omitempty"`
}

// CheckResult holds the overall check result.
type CheckResult struct {
	Scenarios []ScenarioResult       `json:"scenarios"`
	Passed    int                    `json:"passed"`
	Failed    int                    `json:"failed"`
	Total     int                    `json:"total"`
	Session   string                 `json:"session,omitempty"`
	Backends  []store.BackendSummary `json:"backends,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <scenarios-dir>",
		Short: "Run scenario files on every backend",
		Long: `Run every YAML scenario in a directory on every applicable backend and
check that the backends agree with each other and with the scenario's
expected renderings.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  vmparity check ./scenarios
  vmparity check ./scenarios --filter "trap-*"
  vmparity check ./scenarios --skip wasmer --db ./runs.db
  VMPARITY_FORMAT=json vmparity check ./scenarios`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record every backend run in this SQLite database")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "backends to exclude")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions)
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	var skip []runner.Kind
	for _, name := range opts.Skip {
		k, err := runner.ParseKind(strings.TrimSpace(name))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --skip", err)
		}
		skip = append(skip, k)
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	base := harness.New().WithLogger(logger).Skip(skip...)

	result := CheckResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		base = base.WithRecorder(st)
		result.Session = st.Session()
		logger.Debug("recording runs", "path", opts.Database, "session", st.Session())
	}

	for _, file := range files {
		r := checkScenario(file, base)
		logger.Debug("scenario done", "name", r.Name, "pass", r.Pass)
		result.Scenarios = append(result.Scenarios, r)
		if r.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if st != nil {
		result.Backends, err = st.Summarize(ctx, st.Session())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to summarize runs", err)
		}
	}

	if result.Failed == 0 {
		return out.Success(result, func(w io.Writer) { writeCheckText(w, result) })
	}

	msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
	if err := out.Failure(CodeScenarioFailed, msg, result, func(w io.Writer) { writeCheckText(w, result) }); err != nil {
		return err
	}
	return NewExitError(ExitFailure, msg)
}

// findScenarioFiles finds all YAML scenario files under dir, in walk order.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

func checkScenario(file string, base harness.Config) ScenarioResult {
	result := ScenarioResult{Name: filepath.Base(file), File: file}

	s, err := harness.LoadScenario(file)
	if err != nil {
		result.Error = fmt.Sprintf("failed to load scenario: %v", err)
		return result
	}
	result.Name = s.Name

	if err := s.Run(base); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Pass = true
	return result
}

func writeCheckText(w io.Writer, result CheckResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, line := range strings.Split(strings.TrimRight(s.Error, "\n"), "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	for _, b := range result.Backends {
		fmt.Fprintf(w, "%s: %d runs, %d aborted\n", b.Kind, b.Runs, b.Aborted)
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

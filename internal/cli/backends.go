package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vmparity/internal/config"
	"github.com/roach88/vmparity/internal/runner"
)

// BackendInfo describes one backend on this platform.
type BackendInfo struct {
	Kind      runner.Kind           `json:"kind"`
	Available bool                  `json:"available"`
	Prepare   config.PrepareVersion `json:"prepare"`
}

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends in priority order",
		Long: `List every backend in priority order with whether it is available on
this platform and which preparation pipeline it requires.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			infos, err := listBackends()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to probe backends", err)
			}
			return out.Success(infos, func(w io.Writer) {
				for _, b := range infos {
					status := "unavailable"
					if b.Available {
						status = "available"
					}
					fmt.Fprintf(w, "%-20s %-12s prepare=%s\n", b.Kind, status, b.Prepare)
				}
			})
		},
	}
}

func listBackends() ([]BackendInfo, error) {
	wasm := config.Default().Config(config.Newest).Wasm
	infos := make([]BackendInfo, 0, len(runner.Kinds()))
	for _, k := range runner.Kinds() {
		info := BackendInfo{Kind: k, Available: runner.Available(k)}
		if info.Available {
			r, err := runner.For(k, &wasm)
			if err != nil {
				return nil, err
			}
			info.Prepare = r.PrepareVersion()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/vmparity/internal/config"
)

// ConfigSummary is the part of a runtime configuration that most often
// explains a difference between protocol versions.
type ConfigSummary struct {
	Version              config.ProtocolVersion `json:"version"`
	Prepare              config.PrepareVersion  `json:"prepare"`
	RegularOpCost        uint64                 `json:"regular_op_cost"`
	ContractLoadingBase  uint64                 `json:"contract_loading_base"`
	ContractLoadingBytes uint64                 `json:"contract_loading_bytes"`
	MaxMemoryPages       uint32                 `json:"max_memory_pages"`
	MaxGasBurnt          uint64                 `json:"max_gas_burnt"`
}

// ConfigsOptions holds flags for the configs command.
type ConfigsOptions struct {
	*RootOptions
	Version string // single version to resolve, or empty for every file
}

// NewConfigsCommand creates the configs command.
func NewConfigsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfigsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "Show runtime configurations per protocol version",
		Long: `Show the runtime configuration of every protocol version that has its
own parameter file, or resolve a single version.

Examples:
  vmparity configs
  vmparity configs --protocol-version 63
  vmparity configs --protocol-version newest --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigs(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "protocol-version", "", `protocol version to resolve (number or "newest")`)

	return cmd
}

func runConfigs(opts *ConfigsOptions, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	st := config.Default()

	versions := st.Versions()
	if opts.Version != "" {
		v, err := parseProtocolVersion(opts.Version)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --protocol-version", err)
		}
		versions = []config.ProtocolVersion{v}
	}

	summaries := make([]ConfigSummary, 0, len(versions))
	for _, v := range versions {
		summaries = append(summaries, summarize(v, st.Config(v)))
	}

	return out.Success(summaries, func(w io.Writer) {
		for _, s := range summaries {
			fmt.Fprintf(w, "%s: prepare=%s regular_op_cost=%d contract_loading=%d+%d/byte max_memory_pages=%d max_gas_burnt=%d\n",
				s.Version, s.Prepare, s.RegularOpCost, s.ContractLoadingBase, s.ContractLoadingBytes,
				s.MaxMemoryPages, s.MaxGasBurnt)
		}
	})
}

func summarize(v config.ProtocolVersion, cfg *config.RuntimeConfig) ConfigSummary {
	return ConfigSummary{
		Version:              v,
		Prepare:              cfg.Wasm.Limits.PrepareVersion,
		RegularOpCost:        cfg.Wasm.RegularOpCost,
		ContractLoadingBase:  cfg.Wasm.ExtCosts.ContractLoadingBase,
		ContractLoadingBytes: cfg.Wasm.ExtCosts.ContractLoadingBytes,
		MaxMemoryPages:       cfg.Wasm.Limits.MaxMemoryPages,
		MaxGasBurnt:          cfg.Wasm.Limits.MaxGasBurnt,
	}
}

func parseProtocolVersion(s string) (config.ProtocolVersion, error) {
	if s == config.Newest.String() {
		return config.Newest, nil
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("protocol version %q: %w", s, err)
	}
	return config.ProtocolVersion(n), nil
}

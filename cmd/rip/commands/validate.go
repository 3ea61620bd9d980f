package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rip-dev/rip/internal/config"
)

// ValidateOptions holds options for the validate command.
type ValidateOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	var opts ValidateOptions

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate rip.yaml",
		Long: `Validate the rip.yaml project config.
Checks YAML syntax and field constraints (data_dir, compaction stride).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

func runValidate(opts ValidateOptions) error {
	if opts.Verbose {
		fmt.Printf("Validating config: %s\n", opts.ConfigPath)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if ve, ok := err.(*config.ValidationError); ok {
			return fmt.Errorf("config validation failed: %w", ve)
		}
		return fmt.Errorf("failed to load config: %w\n\nHint: a missing rip.yaml is fine, this means the file exists but could not be read", err)
	}

	if opts.Verbose {
		fmt.Printf("✓ Config syntax is valid\n")
		fmt.Printf("\nSummary:\n")
		fmt.Printf("  data_dir:            %s\n", cfg.DataDir)
		fmt.Printf("  workspace:           %s\n", cfg.Workspace)
		fmt.Printf("  compaction.stride:   %d\n", cfg.Compaction.Stride)
		fmt.Printf("  compaction.strategy: %s\n", cfg.Compaction.Strategy)
		fmt.Printf("  run.provider:        %s\n", cfg.Run.Provider)
		fmt.Printf("  run.model:           %s\n", cfg.Run.Model)
		fmt.Printf("\n")
	}

	fmt.Printf("✓ Validation successful\n")
	return nil
}

package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rip-dev/rip/internal/display"
)

// ListOptions holds options for the list command.
type ListOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	Tags         string
	Format       string
}

// NewListCmd creates the list command, implementing the supplemented
// thread.list operation with tag filtering.
func NewListCmd() *cobra.Command {
	var opts ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List run sessions for a continuity, optionally filtered by tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("output")
			opts.Format = outputMode(format)
			return runList(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.Flags().StringVar(&opts.Tags, "tags", "", "Comma-separated tags, all of which must be present")

	return cmd
}

func runList(opts ListOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	s, err := openSurface(dataDir, "list-reader", opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(opts.ContinuityID, splitTags(opts.Tags))
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	styles := newStyles()
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{r.RunSessionID, r.ProviderID, r.ModelID, r.Reason, fmt.Sprintf("%v", r.Tags)})
	}
	fmt.Println(display.Table(styles, []string{"run_session_id", "provider", "model", "end_reason", "tags"}, rows))
	return nil
}

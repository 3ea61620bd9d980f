package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// TagOptions holds options for the tag command.
type TagOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	ActorID      string
	RunSessionID string
	Tags         string
}

// NewTagCmd creates the tag command, implementing the supplemented
// thread.tag operation.
func NewTagCmd() *cobra.Command {
	var opts TagOptions

	cmd := &cobra.Command{
		Use:   "tag <run-session-id>",
		Short: "Attach free-form tags to a run session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RunSessionID = args[0]
			return runTag(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")
	cmd.Flags().StringVar(&opts.Tags, "tags", "", "Comma-separated tags")

	return cmd
}

func runTag(opts TagOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}
	defer s.Close()

	tags := splitTags(opts.Tags)
	if len(tags) == 0 {
		return fmt.Errorf("tag: --tags must name at least one tag")
	}

	seq, err := s.TagRun(opts.ContinuityID, opts.ActorID, opts.RunSessionID, tags)
	if err != nil {
		return fmt.Errorf("tag: %w", err)
	}

	fmt.Printf("tagged seq=%d run_session_id=%s tags=%v\n", seq, opts.RunSessionID, tags)
	return nil
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

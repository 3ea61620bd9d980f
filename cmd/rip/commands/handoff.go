package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// HandoffOptions holds options for the handoff command.
type HandoffOptions struct {
	ConfigPath        string
	DataDir           string
	ContinuityID      string
	ActorID           string
	NewContinuityID   string
	SummaryArtifactID string
	FromSeq           uint64
	FromMessageID     string
	Role              string
}

// NewHandoffCmd creates the handoff command, implementing thread.handoff.
func NewHandoffCmd() *cobra.Command {
	var opts HandoffOptions

	cmd := &cobra.Command{
		Use:   "handoff <new-continuity-id>",
		Short: "Start a new continuity seeded from a compaction summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.NewContinuityID = args[0]
			return runHandoff(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Source continuity id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")
	cmd.Flags().StringVar(&opts.SummaryArtifactID, "summary-artifact-id", "", "rip.compaction_summary.v1 artifact id to seed the handoff with")
	cmd.Flags().Uint64Var(&opts.FromSeq, "from-seq", 0, "Seq in the source continuity to hand off from")
	cmd.Flags().StringVar(&opts.FromMessageID, "from-message-id", "", "Message id at that seq, recorded on the frame as given (not checked)")
	cmd.Flags().StringVar(&opts.Role, "role", "user", "Role of the hand-off-point message")

	return cmd
}

func runHandoff(opts HandoffOptions) error {
	if opts.SummaryArtifactID == "" {
		return fmt.Errorf("handoff: --summary-artifact-id is required")
	}

	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("handoff: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("handoff: %w", err)
	}
	defer s.Close()

	seq, err := s.Handoff(opts.ContinuityID, opts.ActorID, opts.NewContinuityID, opts.SummaryArtifactID, opts.FromSeq, opts.FromMessageID, opts.Role)
	if err != nil {
		return fmt.Errorf("handoff: %w", err)
	}

	fmt.Printf("handed off seq=%d new_continuity_id=%s\n", seq, opts.NewContinuityID)
	return nil
}

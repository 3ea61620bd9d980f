package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// BranchOptions holds options for the branch command.
type BranchOptions struct {
	ConfigPath        string
	DataDir           string
	ContinuityID      string
	ActorID           string
	NewContinuityID   string
	FromSeq           uint64
	FromMessageID     string
	Role              string
}

// NewBranchCmd creates the branch command, implementing thread.branch.
func NewBranchCmd() *cobra.Command {
	var opts BranchOptions

	cmd := &cobra.Command{
		Use:   "branch <new-continuity-id>",
		Short: "Fork a continuity from a point in its message history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.NewContinuityID = args[0]
			return runBranch(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Source continuity id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")
	cmd.Flags().Uint64Var(&opts.FromSeq, "from-seq", 0, "Seq in the source continuity to fork from")
	cmd.Flags().StringVar(&opts.FromMessageID, "from-message-id", "", "Message id at that seq, recorded on the frame as given (not checked)")
	cmd.Flags().StringVar(&opts.Role, "role", "user", "Role of the fork-point message")

	return cmd
}

func runBranch(opts BranchOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("branch: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("branch: %w", err)
	}
	defer s.Close()

	seq, err := s.Branch(opts.ContinuityID, opts.ActorID, opts.NewContinuityID, opts.FromSeq, opts.FromMessageID, opts.Role)
	if err != nil {
		return fmt.Errorf("branch: %w", err)
	}

	fmt.Printf("branched seq=%d new_continuity_id=%s\n", seq, opts.NewContinuityID)
	return nil
}

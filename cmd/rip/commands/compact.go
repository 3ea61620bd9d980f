package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// CompactOptions holds options for the compact command.
type CompactOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	ActorID      string
	Stride       int
	Auto         bool
	Status       bool
}

// NewCompactCmd creates the compact command: compaction.manual,
// compaction.auto, and compaction.status.
func NewCompactCmd() *cobra.Command {
	var opts CompactOptions

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Run or inspect compaction for a continuity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompact(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")
	cmd.Flags().IntVar(&opts.Stride, "stride", 0, "Compaction stride (default: config value)")
	cmd.Flags().BoolVar(&opts.Auto, "auto", false, "Only run if the scheduler's policy says it is due")
	cmd.Flags().BoolVar(&opts.Status, "status", false, "Report compaction status without running a job")

	return cmd
}

func runCompact(opts CompactOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	stride := opts.Stride
	if stride == 0 {
		stride = cfg.Compaction.Stride
	}
	cfg.Compaction.Stride = stride

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	defer s.Close()

	if opts.Status {
		status, err := s.CompactionStatus(opts.ContinuityID)
		if err != nil {
			return fmt.Errorf("compact: status: %w", err)
		}
		fmt.Printf("has_checkpoint=%v latest_summary=%s latest_to_seq=%d job_inflight=%v\n",
			status.HasCheckpoint, status.LatestSummaryArtifactID, status.LatestCheckpointToSeq, status.JobInflight)
		return nil
	}

	ctx := context.Background()

	if opts.Auto {
		decision, artifactID, err := s.CompactionAuto(ctx, opts.ContinuityID, opts.ActorID, stride)
		if err != nil {
			return fmt.Errorf("compact: auto: %w", err)
		}
		if artifactID == "" {
			fmt.Printf("decision=%s (no job run)\n", decisionString(decision))
			return nil
		}
		fmt.Printf("decision=%s summary_artifact_id=%s\n", decisionString(decision), artifactID)
		return nil
	}

	artifactID, err := s.CompactionManual(ctx, opts.ContinuityID, opts.ActorID, stride)
	if err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	fmt.Printf("summary_artifact_id=%s\n", artifactID)
	return nil
}

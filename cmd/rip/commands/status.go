package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rip-dev/rip/internal/display"
)

// StatusOptions holds options for the status command.
type StatusOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	Format       string
}

// statusOutput is the JSON shape for `rip status --output json`.
type statusOutput struct {
	ContinuityID          string `json:"continuity_id"`
	ToSeq                 uint64 `json:"to_seq"`
	MessageCount          int    `json:"message_count"`
	RunCount              int    `json:"run_count"`
	HasCheckpoint         bool   `json:"has_checkpoint"`
	LatestSummaryArtifact string `json:"latest_summary_artifact_id,omitempty"`
	LatestCheckpointToSeq uint64 `json:"latest_checkpoint_to_seq,omitempty"`
	JobInflight           bool   `json:"job_inflight"`
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var opts StatusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a continuity's replayed state and compaction status",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := cmd.Flags().GetString("output")
			if err != nil {
				format = "auto"
			}
			opts.Format = outputMode(format)
			return runStatus(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")

	return cmd
}

func runStatus(opts StatusOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	s, err := openSurface(dataDir, "status-reader", opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer s.Close()

	snap, err := s.Replay(opts.ContinuityID, nil)
	if err != nil {
		return fmt.Errorf("status: replay: %w", err)
	}

	comp, err := s.CompactionStatus(opts.ContinuityID)
	if err != nil {
		return fmt.Errorf("status: compaction status: %w", err)
	}

	out := statusOutput{
		ContinuityID:          snap.ContinuityID,
		ToSeq:                 snap.ToSeq,
		MessageCount:          len(snap.Messages),
		RunCount:              len(snap.Runs),
		HasCheckpoint:         comp.HasCheckpoint,
		LatestSummaryArtifact: comp.LatestSummaryArtifactID,
		LatestCheckpointToSeq: comp.LatestCheckpointToSeq,
		JobInflight:           comp.JobInflight,
	}

	if opts.Format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	styles := newStyles()
	rows := [][]string{
		{"continuity", out.ContinuityID},
		{"to_seq", fmt.Sprintf("%d", out.ToSeq)},
		{"messages", fmt.Sprintf("%d", out.MessageCount)},
		{"runs", fmt.Sprintf("%d", out.RunCount)},
		{"checkpoint", fmt.Sprintf("%v", out.HasCheckpoint)},
		{"latest_summary", out.LatestSummaryArtifact},
		{"job_inflight", fmt.Sprintf("%v", out.JobInflight)},
	}
	fmt.Println(display.Table(styles, []string{"field", "value"}, rows))
	return nil
}

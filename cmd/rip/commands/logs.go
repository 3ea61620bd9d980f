package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rip-dev/rip/internal/event"
)

// LogsOptions holds options for the logs command.
type LogsOptions struct {
	ConfigPath    string
	DataDir       string
	ContinuityID  string
	AfterSeq      uint64
	HumanReadable bool
}

// NewLogsCmd creates the logs command: thread.stream_events as a one-shot
// poll, rendered through internal/event's NDJSON/human-readable emitter.
func NewLogsCmd() *cobra.Command {
	var opts LogsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show continuity-stream frames since a seq",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			opts.HumanReadable = verbose
			return runLogs(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.Flags().Uint64Var(&opts.AfterSeq, "after-seq", 0, "Only show frames with seq greater than this")

	return cmd
}

func runLogs(opts LogsOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}

	s, err := openSurface(dataDir, "logs-reader", opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}
	defer s.Close()

	frames, err := s.StreamEvents(opts.ContinuityID, opts.AfterSeq)
	if err != nil {
		return fmt.Errorf("logs: %w", err)
	}

	emitter := newEmitter(opts.HumanReadable)
	for _, f := range frames {
		emitter.Emit(event.Event{
			Timestamp:    time.UnixMilli(int64(f.TsMs)),
			ContinuityID: opts.ContinuityID,
			State:        string(f.Kind),
			Message:      fmt.Sprintf("seq=%d stream=%s/%s actor=%s", f.Seq, f.StreamKind, f.StreamID, f.ActorID),
		})
	}
	return nil
}

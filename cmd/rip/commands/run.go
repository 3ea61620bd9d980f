package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RunOptions holds options shared by the run subcommands.
type RunOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	ActorID      string
	Provider     string
	Model        string
	RunSessionID string
	Reason       string
}

// NewRunCmd creates the run command group: spawn and end a run session.
// Driving a live provider loop (internal/runloop.Provider) is out of scope
// here — provider wire adapters are a Non-goal — so `rip run` only manages
// run-session lifecycle bookkeeping against the event log.
func NewRunCmd() *cobra.Command {
	var opts RunOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage run session lifecycle",
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.PersistentFlags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.PersistentFlags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")

	spawn := &cobra.Command{
		Use:   "spawn",
		Short: "Spawn a new run session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpawn(opts)
		},
	}
	spawn.Flags().StringVar(&opts.Provider, "provider", "", "Provider id")
	spawn.Flags().StringVar(&opts.Model, "model", "", "Model id")

	end := &cobra.Command{
		Use:   "end <run-session-id>",
		Short: "End a run session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.RunSessionID = args[0]
			return runEnd(opts)
		},
	}
	end.Flags().StringVar(&opts.Reason, "reason", "completed", "Terminal reason recorded on the frame")

	cmd.AddCommand(spawn, end)
	return cmd
}

func runSpawn(opts RunOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("run spawn: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("run spawn: %w", err)
	}
	defer s.Close()

	if err := s.EnsureDefault(opts.ContinuityID); err != nil {
		return fmt.Errorf("run spawn: ensure continuity: %w", err)
	}

	seq, runSessionID, err := s.SpawnRun(opts.ContinuityID, opts.ActorID, opts.Provider, opts.Model)
	if err != nil {
		return fmt.Errorf("run spawn: %w", err)
	}

	fmt.Printf("spawned seq=%d run_session_id=%s\n", seq, runSessionID)
	return nil
}

func runEnd(opts RunOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("run end: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("run end: %w", err)
	}
	defer s.Close()

	seq, err := s.EndRun(opts.ContinuityID, opts.ActorID, opts.RunSessionID, opts.Reason)
	if err != nil {
		return fmt.Errorf("run end: %w", err)
	}

	fmt.Printf("ended seq=%d run_session_id=%s reason=%s\n", seq, opts.RunSessionID, opts.Reason)
	return nil
}

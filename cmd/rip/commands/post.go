package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PostOptions holds options for the post command.
type PostOptions struct {
	ConfigPath   string
	DataDir      string
	ContinuityID string
	ActorID      string
	Role         string
	Content      string
}

// NewPostCmd creates the post command, implementing thread.ensure_default
// followed by thread.post_message.
func NewPostCmd() *cobra.Command {
	var opts PostOptions

	cmd := &cobra.Command{
		Use:   "post <content>",
		Short: "Append a message to a continuity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Content = args[0]
			return runPost(opts)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "rip.yaml", "Path to config file")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Override store directory")
	cmd.Flags().StringVar(&opts.ContinuityID, "continuity", "default", "Continuity id")
	cmd.Flags().StringVar(&opts.ActorID, "actor", "cli", "Actor id recorded on the frame")
	cmd.Flags().StringVar(&opts.Role, "role", "user", "Message role (user, assistant, system)")

	return cmd
}

func runPost(opts PostOptions) error {
	cfg, dataDir, err := loadConfig(opts.ConfigPath, opts.DataDir)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}

	s, err := openSurface(dataDir, opts.ActorID, opts.ConfigPath, cfg)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer s.Close()

	if err := s.EnsureDefault(opts.ContinuityID); err != nil {
		return fmt.Errorf("post: ensure continuity: %w", err)
	}

	seq, messageID, err := s.PostMessage(opts.ContinuityID, opts.ActorID, opts.Role, opts.Content, "cli")
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}

	fmt.Printf("appended seq=%d message_id=%s\n", seq, messageID)
	return nil
}

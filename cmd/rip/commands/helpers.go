// Package commands implements the cobra subcommands of the rip CLI, each a
// thin RunE wrapper around internal/controlsurface.Surface, following an
// options-struct-plus-NewXCmd-constructor pattern.
package commands

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/rip-dev/rip/internal/compaction"
	"github.com/rip-dev/rip/internal/config"
	"github.com/rip-dev/rip/internal/controlsurface"
	"github.com/rip-dev/rip/internal/display"
	"github.com/rip-dev/rip/internal/event"
	"github.com/rip-dev/rip/internal/frame"
)

// loadConfig reads rip.yaml at configPath, falling back to config.Default
// when absent, and applies a --data-dir override when non-empty.
func loadConfig(configPath, dataDirOverride string) (config.Config, string, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, "", err
	}
	dataDir := config.ResolveDataDir(cfg, configPath)
	if dataDirOverride != "" {
		dataDir = dataDirOverride
	}
	return cfg, dataDir, nil
}

// openSurface opens a controlsurface.Surface rooted at dataDir, claiming the
// authority lock against the workspace root resolved from cfg relative to
// configPath (holderID is passed through to controlsurface.Open, which does
// not use it). The local summarizer is a reference implementation
// only: it truncates and concatenates transcript text rather than calling a
// provider, since provider wire adapters are out of scope for this repo and
// compaction.Summarizer is otherwise satisfied only by something that can
// talk to one.
func openSurface(dataDir, holderID, configPath string, cfg config.Config) (*controlsurface.Surface, error) {
	workspaceRoot, err := config.ResolveWorkspaceRoot(cfg, configPath)
	if err != nil {
		return nil, fmt.Errorf("commands: resolve workspace root: %w", err)
	}
	return controlsurface.Open(dataDir, holderID, workspaceRoot, cfg.ServerAddr, cfg.Compaction.Stride, localSummarizer{})
}

// localSummarizer is a deterministic, non-provider-backed Summarizer used as
// the CLI's default so `rip compact` produces a real artifact out of the
// box. It is not a provider wire adapter: it never makes a network call.
type localSummarizer struct{}

func (localSummarizer) Summarize(ctx context.Context, priorSummary string, messages []frame.Envelope) (string, error) {
	const maxChars = 2000
	var out string
	if priorSummary != "" {
		out = priorSummary + "\n---\n"
	}
	for _, m := range messages {
		var p frame.MessageAppendedPayload
		if err := frame.DecodePayload(m, &p); err != nil {
			continue
		}
		line := fmt.Sprintf("[%s] %s\n", p.Role, p.Content)
		if len(out)+len(line) > maxChars {
			out += "...(truncated)\n"
			break
		}
		out += line
	}
	if out == "" {
		out = "(no content)"
	}
	return out, nil
}

// outputMode resolves the effective output format from the --output flag,
// defaulting to "text" on a TTY and "json" for piped/redirected output, the
// same auto-detection idiom as the teacher's display.NewTerminalInfo.
func outputMode(flag string) string {
	if flag != "auto" {
		return flag
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "text"
	}
	return "json"
}

func newStyles() display.Styles {
	ti := display.NewTerminalInfo()
	return display.NewStyles(ti.ColorEnabled())
}

// newEmitter builds the progress emitter used by `rip logs`: NDJSON to
// stdout, or colorized human-readable lines to stdout instead when
// humanReadable is set.
func newEmitter(humanReadable bool) *event.NDJSONEmitter {
	if humanReadable {
		return event.NewNDJSONEmitterWithHumanReadable()
	}
	return event.NewNDJSONEmitter()
}

func decisionString(d compaction.Decision) string {
	return string(d)
}

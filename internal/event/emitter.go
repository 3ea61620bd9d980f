// Package event implements the CLI-visible progress feed: an NDJSON (or
// human-readable, colorized) stream describing what a run session is doing
// right now. This is distinct from internal/frame's event log: frames are
// durable, replay-addressable storage, while an Event here is a best-effort
// live projection of a frame as it's appended, thrown away once printed.
package event

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one progress-feed entry, derived from a frame.Envelope as it's
// appended during a run.
type Event struct {
	Timestamp    time.Time `json:"timestamp"`
	ContinuityID string    `json:"continuity_id"`
	RunSessionID string    `json:"run_session_id,omitempty"`
	State        string    `json:"state"`
	DurationMs   int64     `json:"duration_ms"`
	Message      string    `json:"message,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`

	// Progress tracking fields, populated for compaction and context
	// compilation, which don't have a single "done" transition.
	Progress        int     `json:"progress,omitempty"`
	CurrentAction   string  `json:"current_action,omitempty"`
	EstimatedTimeMs int64   `json:"estimated_time_ms"`
	CompactionStats *string `json:"compaction_stats,omitempty"`

	// Stream activity fields, rendered by the human-readable mode for
	// stream_activity events.
	ToolName   string `json:"tool_name,omitempty"`
	ToolTarget string `json:"tool_target,omitempty"`
}

// Event state constants mirror the session-stream and continuity-stream
// frame kinds worth surfacing live.
const (
	StateSessionStarted     = "session_started"
	StateOutputTextDelta    = "output_text_delta"
	StateToolStarted        = "tool_started"
	StateToolEnded          = "tool_ended"
	StateSessionEnded       = "session_ended"
	StateStreamActivity     = "stream_activity"
	StateCompactionProgress = "compaction_progress"
	StateCompactionDone     = "compaction_done"
	StateContextCompiled    = "context_compiled"
	StateETAUpdated         = "eta_updated"
)

// EventEmitter is the minimal emission surface the run loop and CLI
// commands depend on.
type EventEmitter interface {
	Emit(event Event)
}

// ProgressEmitter is an optional interface for enhanced progress
// visualization. If set, it receives events on stderr while NDJSON
// continues to stdout, so a script consuming stdout never has to filter
// out human formatting.
type ProgressEmitter interface {
	EmitProgress(event Event) error
}

// NDJSONEmitter is the default emitter: NDJSON to stdout, with an optional
// human-readable colorized rendering and an optional stderr progress sink.
type NDJSONEmitter struct {
	encoder         *json.Encoder
	humanReadable   bool
	suppressJSON    bool
	mu              sync.Mutex
	progressEmitter ProgressEmitter
}

// NewNDJSONEmitter returns the default machine-readable emitter.
func NewNDJSONEmitter() *NDJSONEmitter {
	return &NDJSONEmitter{
		encoder:         json.NewEncoder(os.Stdout),
		humanReadable:   false,
		suppressJSON:    false,
		progressEmitter: nil,
	}
}

// NewNDJSONEmitterWithHumanReadable returns an emitter that prints
// colorized, human-friendly lines to stdout instead of NDJSON.
func NewNDJSONEmitterWithHumanReadable() *NDJSONEmitter {
	return &NDJSONEmitter{
		encoder:         json.NewEncoder(os.Stdout),
		humanReadable:   true,
		suppressJSON:    false,
		progressEmitter: nil,
	}
}

// NewNDJSONEmitterWithProgress creates an emitter with dual-stream support:
// NDJSON goes to stdout, enhanced progress visualization goes to stderr.
func NewNDJSONEmitterWithProgress(progressEmitter ProgressEmitter) *NDJSONEmitter {
	return &NDJSONEmitter{
		encoder:         json.NewEncoder(os.Stdout),
		humanReadable:   false,
		suppressJSON:    false,
		progressEmitter: progressEmitter,
	}
}

// NewProgressOnlyEmitter creates an emitter that only shows progress (no
// JSON logs). Progress goes to stderr, JSON logs are suppressed entirely.
func NewProgressOnlyEmitter(progressEmitter ProgressEmitter) *NDJSONEmitter {
	return &NDJSONEmitter{
		encoder:         json.NewEncoder(os.Stdout),
		humanReadable:   false,
		suppressJSON:    true,
		progressEmitter: progressEmitter,
	}
}

// SetProgressEmitter sets or updates the progress emitter for enhanced
// visualization.
func (e *NDJSONEmitter) SetProgressEmitter(progressEmitter ProgressEmitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progressEmitter = progressEmitter
}

func (e *NDJSONEmitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.progressEmitter != nil {
		if err := e.progressEmitter.EmitProgress(event); err != nil {
			fmt.Fprintf(os.Stderr, "warning: progress emitter error: %v\n", err)
		}
	}

	if e.suppressJSON {
		return
	}

	if !e.humanReadable {
		e.encoder.Encode(event)
		return
	}

	if event.State == StateETAUpdated || event.State == StateCompactionProgress {
		return
	}

	dim := "\033[90m"
	reset := "\033[0m"
	ts := event.Timestamp.Format("15:04:05")

	if event.State == StateStreamActivity && event.ToolName != "" {
		target := event.ToolTarget
		if len(target) > 60 {
			target = target[:60] + "..."
		}
		fmt.Printf("%s[%s]            %-20s %s -> %s%s\n", dim, ts, event.RunSessionID, event.ToolName, target, reset)
		return
	}

	stateColors := map[string]string{
		StateSessionStarted:  "\033[36m",
		StateToolStarted:     "\033[33m",
		StateToolEnded:       "\033[32m",
		StateSessionEnded:    "\033[32m",
		StateCompactionDone:  "\033[35m",
		StateContextCompiled: "\033[36m",
	}
	color := stateColors[event.State]
	if color == "" {
		color = reset
	}

	if event.RunSessionID != "" {
		fmt.Printf("%s[%s]%s %s%-20s%s %-20s", dim, ts, reset, color, event.State, reset, event.RunSessionID)

		if event.Model != "" {
			fmt.Printf(" (%s)", event.Model)
		}
		if event.DurationMs > 0 {
			secs := float64(event.DurationMs) / 1000.0
			if secs < 10 {
				fmt.Printf(" %5.1fs", secs)
			} else {
				fmt.Printf(" %5.0fs", secs)
			}
		}
		if event.Message != "" {
			fmt.Printf(" %s", event.Message)
		}
		fmt.Println()
	} else {
		fmt.Printf("%s[%s]%s %s%-20s%s %s %s\n", dim, ts, reset, color, event.State, reset, event.ContinuityID, event.Message)
	}
}

// Package frame defines the canonical, versioned event record that is the
// atomic unit of the continuity event log. Frames are immutable once
// assigned a sequence number and are the only thing replay ever trusts.
package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// StreamKind identifies which kind of stream a frame belongs to.
type StreamKind string

const (
	StreamContinuity StreamKind = "continuity"
	StreamSession    StreamKind = "session"
	StreamTask       StreamKind = "task"
)

// Kind is the closed tagged-variant set of frame kinds the core recognizes.
// Unknown kinds decode successfully (forward-compat for provider mirrors);
// the replay validator does not check kind membership, and replay skips
// kinds it does not fold.
type Kind string

const (
	KindSessionStarted   Kind = "session_started"
	KindOutputTextDelta  Kind = "output_text_delta"
	KindToolStarted      Kind = "tool_started"
	KindToolStdout       Kind = "tool_stdout"
	KindToolStderr       Kind = "tool_stderr"
	KindToolEnded        Kind = "tool_ended"
	KindProviderEvent    Kind = "provider_event"
	KindCheckpointCreated Kind = "checkpoint_created"
	KindCheckpointRewound Kind = "checkpoint_rewound"
	KindCheckpointFailed  Kind = "checkpoint_failed"
	KindSessionEnded     Kind = "session_ended"

	KindContinuityMessageAppended         Kind = "continuity_message_appended"
	KindContinuityRunSpawned              Kind = "continuity_run_spawned"
	KindContinuityRunEnded                Kind = "continuity_run_ended"
	KindContinuityContextCompiled         Kind = "continuity_context_compiled"
	KindContinuityToolSideEffects         Kind = "continuity_tool_side_effects"
	KindContinuityBranched                Kind = "continuity_branched"
	KindContinuityHandoffCreated          Kind = "continuity_handoff_created"
	KindContinuityCompactionCheckpoint    Kind = "continuity_compaction_checkpoint_created"
	KindContinuityCompactionAutoSchedule  Kind = "continuity_compaction_auto_schedule_decided"
	KindContinuityJobSpawned              Kind = "continuity_job_spawned"
	KindContinuityJobEnded                Kind = "continuity_job_ended"
	KindContinuityProviderCursorUpdated   Kind = "continuity_provider_cursor_updated"
	KindContinuityContextSelectionDecided Kind = "continuity_context_selection_decided"
	KindContinuityRunTagged               Kind = "continuity_run_tagged"
)

// terminalKinds are frames that must occur at most once per stream
// (continuity_run_ended: at most once per run session within its stream).
var terminalKinds = map[Kind]bool{
	KindSessionEnded:         true,
	KindContinuityRunEnded:   true,
}

// IsTerminal reports whether kind is a terminal (at-most-once-per-stream) frame.
func IsTerminal(k Kind) bool {
	return terminalKinds[k]
}

// Envelope is the wire-stable v1 frame record.
type Envelope struct {
	Seq        uint64          `json:"seq"`
	StreamKind StreamKind      `json:"stream_kind"`
	StreamID   string          `json:"stream_id"`
	Kind       Kind            `json:"kind"`
	TsMs       uint64          `json:"ts_ms"`
	ActorID    string          `json:"actor_id"`
	Origin     string          `json:"origin"`
	Payload    json.RawMessage `json:"payload"`
}

var (
	// ErrDecode is returned when a frame fails to decode: malformed JSON,
	// invalid UTF-8, or a missing required field.
	ErrDecode = errors.New("frame: decode error")
)

// Encode serializes a frame to its canonical bytes (newline-terminated JSON,
// one frame per line, matching the JSONL segment format of the event log).
func Encode(e Envelope) ([]byte, error) {
	if err := validate(e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return append(b, '\n'), nil
}

// Decode parses a single canonical frame line. Unknown payload fields are
// preserved verbatim because Payload is carried as json.RawMessage.
func Decode(b []byte) (Envelope, error) {
	if !utf8.Valid(b) {
		return Envelope{}, fmt.Errorf("%w: invalid utf-8", ErrDecode)
	}
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := validate(e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return e, nil
}

func validate(e Envelope) error {
	if e.StreamKind == "" {
		return errors.New("missing stream_kind")
	}
	if e.StreamID == "" {
		return errors.New("missing stream_id")
	}
	if e.Kind == "" {
		return errors.New("missing kind")
	}
	if e.ActorID == "" {
		return errors.New("missing actor_id")
	}
	return nil
}

// DecodePayload unmarshals the frame's payload into v.
func DecodePayload(e Envelope, v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: empty payload for kind %s", ErrDecode, e.Kind)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

// MustPayload marshals v into a json.RawMessage payload, panicking on
// failure since callers always pass static, well-formed payload structs.
func MustPayload(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("frame: payload marshal: %v", err))
	}
	return b
}

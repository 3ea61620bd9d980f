// Package continuity implements the Continuity Store: the API surface that
// turns the raw authoritative log into the operations a long-lived thread
// needs (append a message, spawn or end a run, branch, hand off, record
// provider cursors). Every mutating operation here goes through
// internal/authority.Gate so sequencing stays single-writer.
package continuity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
)

var (
	// ErrUnknownContinuity is returned by operations needing a continuity
	// that has never had ensure_default called for it.
	ErrUnknownContinuity = errors.New("continuity: unknown continuity id")
	// ErrEmptyContent is returned when append_message is given blank content.
	ErrEmptyContent = errors.New("continuity: message content must not be empty")
	// ErrInvalidRole is returned when append_message is given a role outside
	// the closed set a continuity message may carry.
	ErrInvalidRole = errors.New("continuity: invalid message role")
)

// validMessageRoles is the closed set of roles AppendMessage accepts.
var validMessageRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"system":    true,
}

// Store is the Continuity Store. One Store wraps one authority.Gate (one
// on-disk store), and can host many continuities, each its own stream.
type Store struct {
	gate *authority.Gate

	mu    sync.Mutex
	known map[string]bool // continuities we've seen ensure_default for
}

// New wraps an already-open authority gate.
func New(gate *authority.Gate) *Store {
	return &Store{gate: gate, known: make(map[string]bool)}
}

func nowMs() int64 { return time.Now().UnixMilli() }

// EnsureDefault registers continuityID as known. It never appends a frame,
// whether or not the continuity already has frames in the log (idempotent
// by design: callers invoke this on every CLI entry point without needing
// to track first-use themselves).
func (s *Store) EnsureDefault(continuityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[continuityID] = true
	return nil
}

func (s *Store) requireKnown(continuityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.known[continuityID] {
		return fmt.Errorf("%w: %s", ErrUnknownContinuity, continuityID)
	}
	return nil
}

// AppendMessage appends a continuity_message_appended frame, returning the
// assigned seq and the generated message id. origin records who is calling
// (e.g. "cli", "runloop"), distinct from actorID which names who the message
// is attributed to.
func (s *Store) AppendMessage(continuityID, actorID, role, content, origin string) (seq uint64, messageID string, err error) {
	if content == "" {
		return 0, "", ErrEmptyContent
	}
	if !validMessageRoles[role] {
		return 0, "", fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if err := s.requireKnown(continuityID); err != nil {
		return 0, "", err
	}

	messageID = uuid.NewString()
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityMessageAppended,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     origin,
		Payload: frame.MustPayload(frame.MessageAppendedPayload{
			MessageID: messageID,
			Role:      role,
			Content:   content,
		}),
	}
	seq, err = s.gate.Append(continuityID, env)
	if err != nil {
		return 0, "", fmt.Errorf("continuity: append message: %w", err)
	}
	return seq, messageID, nil
}

// SpawnRun emits continuity_run_spawned and returns the generated run
// session id, to be used as the StreamID of the session's own frames.
func (s *Store) SpawnRun(continuityID, actorID, providerID, modelID string) (seq uint64, runSessionID string, err error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, "", err
	}
	runSessionID = uuid.NewString()
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityRunSpawned,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "continuity",
		Payload: frame.MustPayload(frame.RunSpawnedPayload{
			RunSessionID: runSessionID,
			ProviderID:   providerID,
			ModelID:      modelID,
		}),
	}
	seq, err = s.gate.Append(continuityID, env)
	if err != nil {
		return 0, "", fmt.Errorf("continuity: spawn run: %w", err)
	}
	return seq, runSessionID, nil
}

// EndRun emits the terminal continuity_run_ended frame for a run session.
// The caller is responsible for calling this at most once per run session;
// the replay validator enforces terminal-frame uniqueness per run session,
// so a second call here surfaces as a validation failure rather than
// silently being accepted.
func (s *Store) EndRun(continuityID, actorID, runSessionID, reason string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityRunEnded,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "continuity",
		Payload: frame.MustPayload(frame.RunEndedPayload{
			RunSessionID: runSessionID,
			Reason:       reason,
		}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: end run: %w", err)
	}
	return seq, nil
}

// Branch records a fork: a new continuity created from a point in this
// one's message history. The mirror frame is appended to otherContinuityID
// too, so either side of a branch can be replayed without cross-referencing
// the other continuity's log.
func (s *Store) Branch(continuityID, actorID, otherContinuityID string, toSeq uint64, toMessageID, role string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	ts := uint64(nowMs())
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityBranched,
		TsMs:       ts,
		ActorID:    actorID,
		Origin:     "continuity",
		Payload: frame.MustPayload(frame.BranchedPayload{
			OtherContinuityID: otherContinuityID,
			ToSeq:             toSeq,
			ToMessageID:       toMessageID,
			Role:              role,
		}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: branch: %w", err)
	}

	s.mu.Lock()
	s.known[otherContinuityID] = true
	s.mu.Unlock()

	mirror := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   otherContinuityID,
		Kind:       frame.KindContinuityBranched,
		TsMs:       ts,
		ActorID:    actorID,
		Origin:     "continuity",
		Payload: frame.MustPayload(frame.BranchedPayload{
			OtherContinuityID: continuityID,
			ToSeq:             toSeq,
			ToMessageID:       toMessageID,
			Role:              role,
		}),
	}
	if _, err := s.gate.Append(otherContinuityID, mirror); err != nil {
		return 0, fmt.Errorf("continuity: branch mirror: %w", err)
	}
	return seq, nil
}

// Handoff records a summary-carrying transfer of context to another
// continuity (distinct from Branch: a handoff carries a summary artifact
// rather than the raw message subsequence).
func (s *Store) Handoff(continuityID, actorID, otherContinuityID, summaryArtifactID string, toSeq uint64, toMessageID, role string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityHandoffCreated,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "continuity",
		Payload: frame.MustPayload(frame.HandoffCreatedPayload{
			OtherContinuityID: otherContinuityID,
			SummaryArtifactID: summaryArtifactID,
			ToSeq:             toSeq,
			ToMessageID:       toMessageID,
			Role:              role,
		}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: handoff: %w", err)
	}
	return seq, nil
}

// AppendToolSideEffects records which paths a tool call touched and which
// checkpoint (if any) captured that mutation, without itself being part of
// the messages+runs sidecar (it is excluded there as high-frequency).
func (s *Store) AppendToolSideEffects(continuityID, actorID, runSessionID, toolID string, affectedPaths []string, checkpointID string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityToolSideEffects,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "runloop",
		Payload: frame.MustPayload(frame.ToolSideEffectsPayload{
			RunSessionID:  runSessionID,
			ToolID:        toolID,
			AffectedPaths: affectedPaths,
			CheckpointID:  checkpointID,
		}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: append tool side effects: %w", err)
	}
	return seq, nil
}

// RecordProviderCursor persists a provider-specific resumption cursor
// (e.g. previous_response_id) as a cache entry only — replay never depends
// on this frame's presence, per the continuity-OS model that provider state
// is a rotatable cache, not ground truth.
func (s *Store) RecordProviderCursor(continuityID, actorID, runSessionID, providerID, cursor string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityProviderCursorUpdated,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "runloop",
		Payload: frame.MustPayload(frame.ProviderCursorUpdatedPayload{
			RunSessionID: runSessionID,
			ProviderID:   providerID,
			Cursor:       cursor,
		}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: record provider cursor: %w", err)
	}
	return seq, nil
}

// RunInfo summarizes one run session for ListRuns.
type RunInfo struct {
	RunSessionID string
	ProviderID   string
	ModelID      string
	Ended        bool
	Reason       string
	Tags         []string
}

// TagRun appends a continuity_run_tagged frame recording free-form tags
// against a run session. Tags are additive: ListRuns reports the union of
// every continuity_run_tagged frame seen for that run.
func (s *Store) TagRun(continuityID, actorID, runSessionID string, tags []string) (uint64, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return 0, err
	}
	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityRunTagged,
		TsMs:       uint64(nowMs()),
		ActorID:    actorID,
		Origin:     "continuity",
		Payload:    frame.MustPayload(frame.RunTaggedPayload{RunSessionID: runSessionID, Tags: tags}),
	}
	seq, err := s.gate.Append(continuityID, env)
	if err != nil {
		return 0, fmt.Errorf("continuity: tag run: %w", err)
	}
	return seq, nil
}

// ListRuns scans the continuity's log for run lifecycle and tag frames and
// returns a RunInfo per run session, optionally filtered to runs carrying
// every tag in requiredTags.
func (s *Store) ListRuns(continuityID string, requiredTags []string) ([]RunInfo, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return nil, err
	}
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return nil, fmt.Errorf("continuity: list runs: %w", err)
	}

	order := make([]string, 0)
	runs := make(map[string]*RunInfo)
	tagSets := make(map[string]map[string]bool)

	for _, e := range all {
		switch e.Kind {
		case frame.KindContinuityRunSpawned:
			var p frame.RunSpawnedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return nil, fmt.Errorf("continuity: decode run_spawned: %w", err)
			}
			if _, ok := runs[p.RunSessionID]; !ok {
				order = append(order, p.RunSessionID)
			}
			runs[p.RunSessionID] = &RunInfo{RunSessionID: p.RunSessionID, ProviderID: p.ProviderID, ModelID: p.ModelID}
			tagSets[p.RunSessionID] = make(map[string]bool)
		case frame.KindContinuityRunEnded:
			var p frame.RunEndedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return nil, fmt.Errorf("continuity: decode run_ended: %w", err)
			}
			if r, ok := runs[p.RunSessionID]; ok {
				r.Ended = true
				r.Reason = p.Reason
			}
		case frame.KindContinuityRunTagged:
			var p frame.RunTaggedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return nil, fmt.Errorf("continuity: decode run_tagged: %w", err)
			}
			set, ok := tagSets[p.RunSessionID]
			if !ok {
				set = make(map[string]bool)
				tagSets[p.RunSessionID] = set
			}
			for _, t := range p.Tags {
				set[t] = true
			}
		}
	}

	out := make([]RunInfo, 0, len(order))
	for _, id := range order {
		r := *runs[id]
		set := tagSets[id]
		r.Tags = make([]string, 0, len(set))
		for t := range set {
			r.Tags = append(r.Tags, t)
		}
		if !hasAllTags(set, requiredTags) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func hasAllTags(set map[string]bool, required []string) bool {
	for _, t := range required {
		if !set[t] {
			return false
		}
	}
	return true
}

// Messages returns the continuity_message_appended frames for a continuity,
// oldest first, preferring the sidecar and falling back to a full log scan
// if the sidecar has not indexed anything for it yet.
func (s *Store) Messages(continuityID string) ([]frame.Envelope, error) {
	if err := s.requireKnown(continuityID); err != nil {
		return nil, err
	}
	if _, ok, err := s.gate.Index().Cursor(continuityID); err == nil && ok {
		return s.gate.Index().RecentMessages(continuityID, 0, 1<<30)
	}
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return nil, fmt.Errorf("continuity: scan messages: %w", err)
	}
	out := make([]frame.Envelope, 0, len(all))
	for _, e := range all {
		if e.Kind == frame.KindContinuityMessageAppended {
			out = append(out, e)
		}
	}
	return out, nil
}

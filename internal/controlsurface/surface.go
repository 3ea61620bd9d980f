// Package controlsurface exposes the continuity OS's named operations as a
// single Go API that both `cmd/rip` and, in principle, any other headless
// adapter can call without reaching into internal/continuity,
// internal/contextcompiler, and internal/compaction directly. The CLI is
// the one concrete adapter this repo ships; richer surfaces (TUI, HTTP/SSE,
// SDK) are out of scope here.
package controlsurface

import (
	"context"
	"fmt"

	"github.com/rip-dev/rip/internal/artifact"
	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/compaction"
	"github.com/rip-dev/rip/internal/contextcompiler"
	"github.com/rip-dev/rip/internal/continuity"
	"github.com/rip-dev/rip/internal/frame"
	"github.com/rip-dev/rip/internal/replay"
)

// Surface wires together one store's gate, continuity store, context
// compiler, and compaction machinery behind the named operations grouped
// under thread.*, compaction.*, and the supplemented thread.tag /
// thread.list extension.
type Surface struct {
	gate       *authority.Gate
	artifacts  *artifact.Store
	snapshots  *replay.SnapshotStore
	continuity *continuity.Store
	compiler   *contextcompiler.Compiler
	scheduler  *compaction.Scheduler
	job        *compaction.Job
}

// Open opens (or creates) a store at storeDir, claiming its authority lock
// under a holder id the lock generates itself (holderID is not used), and
// returns a ready-to-use Surface. workspaceRoot is the
// absolute path of the workspace this holder is about to mutate; it is
// checked against the store's recorded authority metadata so a store never
// silently gets claimed against two different working trees. Callers must
// call Close when done to release the authority claim.
func Open(storeDir, holderID, workspaceRoot, endpoint string, stride int, summarizer compaction.Summarizer) (*Surface, error) {
	gate, err := authority.OpenGate(storeDir, workspaceRoot, endpoint)
	if err != nil {
		return nil, fmt.Errorf("controlsurface: open gate: %w", err)
	}
	artifacts, err := artifact.New(storeDir)
	if err != nil {
		gate.Close()
		return nil, fmt.Errorf("controlsurface: open artifact store: %w", err)
	}
	snapshots, err := replay.OpenSnapshotStore(storeDir)
	if err != nil {
		gate.Close()
		return nil, fmt.Errorf("controlsurface: open snapshot store: %w", err)
	}
	return &Surface{
		gate:       gate,
		artifacts:  artifacts,
		snapshots:  snapshots,
		continuity: continuity.New(gate),
		compiler:   contextcompiler.New(gate, artifacts),
		scheduler:  compaction.NewScheduler(gate, stride),
		job:        compaction.NewJob(gate, artifacts, snapshots, summarizer),
	}, nil
}

// Close releases the underlying authority claim and closes the log and
// sidecar index.
func (s *Surface) Close() error { return s.gate.Close() }

// Gate exposes the underlying authority gate for callers (e.g. cmd/rip's
// runloop wiring) that need direct log/sidecar access outside this
// package's named operations.
func (s *Surface) Gate() *authority.Gate { return s.gate }

// Artifacts exposes the underlying artifact store.
func (s *Surface) Artifacts() *artifact.Store { return s.artifacts }

// --- thread.* ---

// EnsureDefault implements thread.ensure_default.
func (s *Surface) EnsureDefault(continuityID string) error {
	return s.continuity.EnsureDefault(continuityID)
}

// PostMessage implements thread.post_message.
func (s *Surface) PostMessage(continuityID, actorID, role, content, origin string) (seq uint64, messageID string, err error) {
	return s.continuity.AppendMessage(continuityID, actorID, role, content, origin)
}

// SpawnRun starts a new run session against continuityID, returning its
// generated run session id for use as the runloop's session stream id.
func (s *Surface) SpawnRun(continuityID, actorID, providerID, modelID string) (seq uint64, runSessionID string, err error) {
	return s.continuity.SpawnRun(continuityID, actorID, providerID, modelID)
}

// EndRun records the terminal continuity_run_ended frame for a run session.
func (s *Surface) EndRun(continuityID, actorID, runSessionID, reason string) (uint64, error) {
	return s.continuity.EndRun(continuityID, actorID, runSessionID, reason)
}

// Branch implements thread.branch.
func (s *Surface) Branch(continuityID, actorID, otherContinuityID string, toSeq uint64, toMessageID, role string) (uint64, error) {
	return s.continuity.Branch(continuityID, actorID, otherContinuityID, toSeq, toMessageID, role)
}

// Handoff implements thread.handoff.
func (s *Surface) Handoff(continuityID, actorID, otherContinuityID, summaryArtifactID string, toSeq uint64, toMessageID, role string) (uint64, error) {
	return s.continuity.Handoff(continuityID, actorID, otherContinuityID, summaryArtifactID, toSeq, toMessageID, role)
}

// StreamEvents implements thread.stream_events as a bounded poll: it
// returns every continuity-stream frame with seq > afterSeq. A true
// push-based stream is a transport concern (HTTP/SSE), explicitly out of
// scope here; callers needing a live tail re-poll with the last seq seen.
func (s *Surface) StreamEvents(continuityID string, afterSeq uint64) ([]frame.Envelope, error) {
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return nil, fmt.Errorf("controlsurface: stream events: %w", err)
	}
	out := make([]frame.Envelope, 0, len(all))
	for _, e := range all {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	return out, nil
}

// TagRun implements the supplemented thread.tag operation.
func (s *Surface) TagRun(continuityID, actorID, runSessionID string, tags []string) (uint64, error) {
	return s.continuity.TagRun(continuityID, actorID, runSessionID, tags)
}

// ListRuns implements the supplemented thread.list operation.
func (s *Surface) ListRuns(continuityID string, requiredTags []string) ([]continuity.RunInfo, error) {
	return s.continuity.ListRuns(continuityID, requiredTags)
}

// ProviderCursorStatus implements thread.provider_cursor.status: the most
// recent provider cursor recorded for the continuity, if any.
func (s *Surface) ProviderCursorStatus(continuityID string) (cursor frame.ProviderCursorUpdatedPayload, ok bool, err error) {
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return frame.ProviderCursorUpdatedPayload{}, false, fmt.Errorf("controlsurface: provider cursor status: %w", err)
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind == frame.KindContinuityProviderCursorUpdated {
			var p frame.ProviderCursorUpdatedPayload
			if err := frame.DecodePayload(all[i], &p); err != nil {
				return frame.ProviderCursorUpdatedPayload{}, false, fmt.Errorf("controlsurface: decode provider cursor: %w", err)
			}
			return p, true, nil
		}
	}
	return frame.ProviderCursorUpdatedPayload{}, false, nil
}

// ProviderCursorRotate implements thread.provider_cursor.rotate: records a
// fresh cursor, superseding (never overwriting — the log is append-only)
// whatever was previously recorded.
func (s *Surface) ProviderCursorRotate(continuityID, actorID, runSessionID, providerID, cursor string) (uint64, error) {
	return s.continuity.RecordProviderCursor(continuityID, actorID, runSessionID, providerID, cursor)
}

// ContextSelectionStatus implements thread.context_selection.status: the
// most recent context_selection_decided frame's reasoning, if any.
func (s *Surface) ContextSelectionStatus(continuityID string) (frame.ContextSelectionDecidedPayload, bool, error) {
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return frame.ContextSelectionDecidedPayload{}, false, fmt.Errorf("controlsurface: context selection status: %w", err)
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Kind == frame.KindContinuityContextSelectionDecided {
			var p frame.ContextSelectionDecidedPayload
			if err := frame.DecodePayload(all[i], &p); err != nil {
				return frame.ContextSelectionDecidedPayload{}, false, fmt.Errorf("controlsurface: decode context selection: %w", err)
			}
			return p, true, nil
		}
	}
	return frame.ContextSelectionDecidedPayload{}, false, nil
}

// CompileContext drives the context compiler, delegating
// straight to internal/contextcompiler.
func (s *Surface) CompileContext(continuityID, actorID, runSessionID, strategyName, origin string, budgets map[string]int, summaries []contextcompiler.SummaryInput) (string, error) {
	return s.compiler.Compile(continuityID, actorID, runSessionID, strategyName, origin, budgets, summaries)
}

// --- compaction.* ---

// CutPoints implements compaction.cut_points: a pure function of the
// continuity's message subsequence, read fresh from the sidecar each call.
func (s *Surface) CutPoints(continuityID string, stride int) ([]compaction.CutPoint, error) {
	messages, err := s.gate.Index().RecentMessages(continuityID, 0, 1<<30)
	if err != nil {
		return nil, fmt.Errorf("controlsurface: cut points: load messages: %w", err)
	}
	return compaction.CutPoints(messages, stride)
}

// CompactionManual implements compaction.manual: an explicitly triggered
// summarizer job run, identical in mechanism to the job the scheduler would
// spawn automatically.
func (s *Surface) CompactionManual(ctx context.Context, continuityID, actorID string, stride int) (string, error) {
	return s.job.Run(ctx, continuityID, actorID, stride)
}

// CompactionAuto implements compaction.auto: evaluate the schedule and, if
// due, run the job — the single call a scheduler tick or a `rip compact`
// invocation needs.
func (s *Surface) CompactionAuto(ctx context.Context, continuityID, actorID string, stride int) (compaction.Decision, string, error) {
	decision, err := s.scheduler.Evaluate(continuityID, actorID)
	if err != nil {
		return "", "", fmt.Errorf("controlsurface: compaction auto: evaluate: %w", err)
	}
	if decision != compaction.DecisionRun {
		return decision, "", nil
	}
	artifactID, err := s.job.Run(ctx, continuityID, actorID, stride)
	if err != nil {
		return decision, "", fmt.Errorf("controlsurface: compaction auto: run job: %w", err)
	}
	return decision, artifactID, nil
}

// CompactionAutoScheduleStatus implements compaction.auto.schedule: reports
// the scheduler's verdict without running a job, for dry-run inspection.
func (s *Surface) CompactionAutoScheduleStatus(continuityID, actorID string) (compaction.Decision, error) {
	return s.scheduler.Evaluate(continuityID, actorID)
}

// CompactionStatusReport is the result of compaction.status.
type CompactionStatusReport struct {
	LatestSummaryArtifactID string
	LatestCheckpointToSeq   uint64
	HasCheckpoint           bool
	JobInflight             bool
}

// CompactionStatus implements compaction.status.
func (s *Surface) CompactionStatus(continuityID string) (CompactionStatusReport, error) {
	artifactID, toSeq, ok, err := s.gate.Index().LatestCheckpoint(continuityID)
	if err != nil {
		return CompactionStatusReport{}, fmt.Errorf("controlsurface: compaction status: checkpoint: %w", err)
	}
	inflight, err := s.gate.Index().HasInflightJob(continuityID)
	if err != nil {
		return CompactionStatusReport{}, fmt.Errorf("controlsurface: compaction status: inflight: %w", err)
	}
	return CompactionStatusReport{
		LatestSummaryArtifactID: artifactID,
		LatestCheckpointToSeq:   toSeq,
		HasCheckpoint:           ok,
		JobInflight:             inflight,
	}, nil
}

// --- replay / validation ---

// Replay implements a read-only snapshot rebuild for `rip status`/debugging:
// folds the continuity's full log (or up to toSeq) into a Snapshot.
func (s *Surface) Replay(continuityID string, toSeq *uint64) (replay.Snapshot, error) {
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return replay.Snapshot{}, fmt.Errorf("controlsurface: replay: %w", err)
	}
	return replay.Replay(continuityID, all, toSeq)
}

// Validate implements a structural integrity check over a continuity's full
// log, resolving artifact ids against the real artifact store and checking
// every saved snapshot boundary against a fresh replay.
func (s *Surface) Validate(continuityID string) (replay.Report, error) {
	all, err := s.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return replay.Report{}, fmt.Errorf("controlsurface: validate: %w", err)
	}
	return replay.ValidateContinuity(continuityID, all, s.artifacts, s.snapshots), nil
}

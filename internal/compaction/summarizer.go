package compaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rip-dev/rip/internal/artifact"
	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
	"github.com/rip-dev/rip/internal/replay"
)

// SummaryArtifactKind is the artifact kind hint for compaction summaries.
const SummaryArtifactKind = "rip.compaction_summary.v1"

// JobKindAuto identifies the automatic summarizer job in job_spawned/ended
// frames.
const JobKindAuto = "compaction.auto"

var (
	// ErrNoAdapter is returned when a summarizer job is attempted without
	// something configured to produce prose from a transcript.
	ErrNoAdapter = errors.New("compaction: no summarizer adapter configured")
	// ErrNothingToSummarize is returned when no cut point is eligible yet
	// (the continuity has fewer than stride messages).
	ErrNothingToSummarize = errors.New("compaction: no messages to summarize at cut point")
)

// Summarizer produces a natural-language summary of a transcript, optionally
// continuing from a prior summary's text (chaining). Implementations wrap a
// provider adapter; this package is agnostic to which one.
type Summarizer interface {
	Summarize(ctx context.Context, priorSummary string, messages []frame.Envelope) (string, error)
}

// Summary is the payload of a rip.compaction_summary.v1 artifact: the
// summary text plus a pointer to the summary it was chained from, if any,
// so a reader can walk the chain back to the start of the continuity.
type Summary struct {
	SchemaVersion        string `json:"schema_version"`
	ContinuityID         string `json:"continuity_id"`
	ToSeq                uint64 `json:"to_seq"`
	ToMessageID          string `json:"to_message_id"`
	BaseSummaryArtifacts string `json:"base_summary_artifact_id,omitempty"`
	Text                 string `json:"text"`
}

// Job runs one summarizer job end to end: spawn, summarize, store, emit the
// compaction checkpoint, end. Every step after spawn is best-effort from
// the job's own perspective but each emitted frame durably records what
// happened, so a crash mid-job just leaves a job_spawned with no
// matching job_ended — visible to HasInflightJob, never silently lost.
type Job struct {
	gate       *authority.Gate
	artifacts  *artifact.Store
	snapshots  *replay.SnapshotStore
	summarizer Summarizer
}

// NewJob constructs a Job. snapshots may be nil, in which case the job skips
// saving a snapshot at its cut boundary (tests mainly; production callers
// always pass one so replay.ValidateContinuity has something to check against).
func NewJob(gate *authority.Gate, artifacts *artifact.Store, snapshots *replay.SnapshotStore, summarizer Summarizer) *Job {
	return &Job{gate: gate, artifacts: artifacts, snapshots: snapshots, summarizer: summarizer}
}

// Run summarizes the continuity's message history up to the latest eligible
// cut point, chaining from the prior checkpoint's summary if one exists.
func (j *Job) Run(ctx context.Context, continuityID, actorID string, stride int) (summaryArtifactID string, err error) {
	if j.summarizer == nil {
		return "", ErrNoAdapter
	}

	messages, err := j.gate.Index().RecentMessages(continuityID, 0, 1<<30)
	if err != nil {
		return "", fmt.Errorf("compaction: load messages: %w", err)
	}
	cut, ok, err := LatestCutPoint(messages, stride)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNothingToSummarize
	}

	priorArtifactID, priorToSeq, hasPrior, err := j.gate.Index().LatestCheckpoint(continuityID)
	if err != nil {
		return "", fmt.Errorf("compaction: load latest checkpoint: %w", err)
	}
	if hasPrior && priorToSeq >= cut.ToSeq {
		// Already compacted up to (or past) this cut point; nothing new to do.
		return priorArtifactID, nil
	}

	var priorText string
	if hasPrior {
		prior, err := j.loadSummary(priorArtifactID)
		if err != nil {
			return "", err
		}
		priorText = prior.Text
	}

	window := messagesUpTo(messages, cut.ToSeq)

	jobID := uuid.NewString()
	now := uint64(time.Now().UnixMilli())
	if _, err := j.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity, StreamID: continuityID,
		Kind: frame.KindContinuityJobSpawned, TsMs: now, ActorID: actorID, Origin: "compaction",
		Payload: frame.MustPayload(frame.JobSpawnedPayload{
			JobID: jobID, Kind: JobKindAuto,
			Inputs: map[string]string{"to_message_id": cut.ToMessageID},
		}),
	}); err != nil {
		return "", fmt.Errorf("compaction: emit job spawned: %w", err)
	}

	text, sumErr := j.summarizer.Summarize(ctx, priorText, window)
	if sumErr != nil {
		j.endJob(continuityID, actorID, jobID, "failed", nil)
		return "", fmt.Errorf("compaction: summarize: %w", sumErr)
	}

	summary := Summary{
		SchemaVersion:        SummaryArtifactKind,
		ContinuityID:         continuityID,
		ToSeq:                cut.ToSeq,
		ToMessageID:          cut.ToMessageID,
		BaseSummaryArtifacts: priorArtifactID,
		Text:                 text,
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		j.endJob(continuityID, actorID, jobID, "failed", nil)
		return "", err
	}
	summaryArtifactID, err = j.artifacts.Put(raw, SummaryArtifactKind)
	if err != nil {
		j.endJob(continuityID, actorID, jobID, "failed", nil)
		return "", fmt.Errorf("compaction: store summary: %w", err)
	}

	if _, err := j.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity, StreamID: continuityID,
		Kind: frame.KindContinuityCompactionCheckpoint, TsMs: now, ActorID: actorID, Origin: "compaction",
		Payload: frame.MustPayload(frame.CompactionCheckpointCreatedPayload{
			SummaryArtifactID: summaryArtifactID,
			ToSeq:             cut.ToSeq,
			ToMessageID:       cut.ToMessageID,
			CutRuleID:         CutRuleID,
		}),
	}); err != nil {
		return "", fmt.Errorf("compaction: emit checkpoint created: %w", err)
	}

	j.saveSnapshot(continuityID, cut.ToSeq)

	j.endJob(continuityID, actorID, jobID, "completed", []string{summaryArtifactID})
	return summaryArtifactID, nil
}

// saveSnapshot persists a replay snapshot at the job's cut boundary,
// best-effort: a failure here never fails the job, since the checkpoint
// frame already durably records what was compacted and a missing snapshot
// only narrows what ValidateContinuity can cross-check, it doesn't corrupt
// anything.
func (j *Job) saveSnapshot(continuityID string, toSeq uint64) {
	if j.snapshots == nil {
		return
	}
	full, err := j.gate.Log().ReadStream(frame.StreamContinuity, continuityID)
	if err != nil {
		return
	}
	snap, err := replay.Replay(continuityID, full, &toSeq)
	if err != nil {
		return
	}
	_ = j.snapshots.Save(snap)
}

func (j *Job) endJob(continuityID, actorID, jobID, status string, resultIDs []string) {
	_, _ = j.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity, StreamID: continuityID,
		Kind: frame.KindContinuityJobEnded, TsMs: uint64(time.Now().UnixMilli()), ActorID: actorID, Origin: "compaction",
		Payload: frame.MustPayload(frame.JobEndedPayload{JobID: jobID, Status: status, ResultIDs: resultIDs}),
	})
}

func (j *Job) loadSummary(artifactID string) (Summary, error) {
	raw, err := j.artifacts.Get(artifactID)
	if err != nil {
		return Summary{}, fmt.Errorf("compaction: load prior summary: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, fmt.Errorf("compaction: decode prior summary: %w", err)
	}
	return s, nil
}

func messagesUpTo(messages []frame.Envelope, toSeq uint64) []frame.Envelope {
	out := make([]frame.Envelope, 0, len(messages))
	for _, e := range messages {
		if e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out
}

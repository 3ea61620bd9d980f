// Package replay implements the pure fold from a frame sequence to a
// snapshot, and a validator that checks a log's structural invariants
// (per-stream monotonicity, terminal-frame uniqueness, artifact-id
// resolvability, and snapshot equivalence in ValidateContinuity), walking
// the sequence once and refusing to trust any cached shortcut. Decode
// validity is enforced by frame.Decode when frames are read.
package replay

import (
	"fmt"

	"github.com/rip-dev/rip/internal/artifact"
	"github.com/rip-dev/rip/internal/frame"
)

// RunSession is the replayed state of one session/run stream.
type RunSession struct {
	RunSessionID string
	ProviderID   string
	ModelID      string
	Ended        bool
	EndReason    string
}

// Message is a replayed continuity message.
type Message struct {
	Seq       uint64
	MessageID string
	Role      string
	Content   string
}

// Snapshot is the pure fold of a continuity's frames up to some seq: the
// message history, known runs, and the latest compaction checkpoint, if
// any. Two replays of the same frame prefix always produce an
// equal Snapshot (replay-to-snapshot equivalence).
type Snapshot struct {
	ContinuityID           string
	ToSeq                  uint64
	Messages               []Message
	Runs                   map[string]*RunSession
	LatestSummaryArtifact  string
	LatestSummaryToSeq     uint64
	LatestSummaryHasValue  bool
}

// Replay folds frames (already filtered to one continuity stream and
// ordered by seq) into a Snapshot. If toSeq is non-nil, frames with
// Seq > *toSeq are ignored, supporting replay(from_seq, to_seq?) -> snapshot.
func Replay(continuityID string, frames []frame.Envelope, toSeq *uint64) (Snapshot, error) {
	snap := Snapshot{ContinuityID: continuityID, Runs: make(map[string]*RunSession)}

	for _, e := range frames {
		if toSeq != nil && e.Seq > *toSeq {
			break
		}
		snap.ToSeq = e.Seq

		switch e.Kind {
		case frame.KindContinuityMessageAppended:
			var p frame.MessageAppendedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return Snapshot{}, fmt.Errorf("replay: decode message at seq %d: %w", e.Seq, err)
			}
			snap.Messages = append(snap.Messages, Message{Seq: e.Seq, MessageID: p.MessageID, Role: p.Role, Content: p.Content})

		case frame.KindContinuityRunSpawned:
			var p frame.RunSpawnedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return Snapshot{}, fmt.Errorf("replay: decode run spawned at seq %d: %w", e.Seq, err)
			}
			snap.Runs[p.RunSessionID] = &RunSession{RunSessionID: p.RunSessionID, ProviderID: p.ProviderID, ModelID: p.ModelID}

		case frame.KindContinuityRunEnded:
			var p frame.RunEndedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return Snapshot{}, fmt.Errorf("replay: decode run ended at seq %d: %w", e.Seq, err)
			}
			if run, ok := snap.Runs[p.RunSessionID]; ok {
				run.Ended = true
				run.EndReason = p.Reason
			}

		case frame.KindContinuityCompactionCheckpoint:
			var p frame.CompactionCheckpointCreatedPayload
			if err := frame.DecodePayload(e, &p); err != nil {
				return Snapshot{}, fmt.Errorf("replay: decode checkpoint at seq %d: %w", e.Seq, err)
			}
			snap.LatestSummaryArtifact = p.SummaryArtifactID
			snap.LatestSummaryToSeq = p.ToSeq
			snap.LatestSummaryHasValue = true
		}
	}

	return snap, nil
}

// Equal reports whether two snapshots are equivalent for replay purposes
// (used by ValidateContinuity to compare a fresh replay against a saved
// snapshot, and by tests asserting that two replays of one prefix agree).
func Equal(a, b Snapshot) bool {
	if a.ContinuityID != b.ContinuityID || a.ToSeq != b.ToSeq {
		return false
	}
	if len(a.Messages) != len(b.Messages) {
		return false
	}
	for i := range a.Messages {
		if a.Messages[i] != b.Messages[i] {
			return false
		}
	}
	if a.LatestSummaryArtifact != b.LatestSummaryArtifact || a.LatestSummaryToSeq != b.LatestSummaryToSeq || a.LatestSummaryHasValue != b.LatestSummaryHasValue {
		return false
	}
	if len(a.Runs) != len(b.Runs) {
		return false
	}
	for id, ra := range a.Runs {
		rb, ok := b.Runs[id]
		if !ok || *ra != *rb {
			return false
		}
	}
	return true
}

// ArtifactResolver is the minimal artifact-store surface the validator
// needs, satisfied by *artifact.Store.
type ArtifactResolver interface {
	Exists(id string) bool
}

var _ ArtifactResolver = (*artifact.Store)(nil)

package replay

import (
	"fmt"

	"github.com/rip-dev/rip/internal/frame"
)

// Issue is one validation finding.
type Issue struct {
	Seq     uint64
	Kind    frame.Kind
	Message string
}

// Report is the result of validating a log (or one stream within it).
type Report struct {
	FramesChecked int
	Issues        []Issue
}

// OK reports whether validation found no issues.
func (r Report) OK() bool { return len(r.Issues) == 0 }

func (r *Report) fail(e frame.Envelope, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Seq: e.Seq, Kind: e.Kind, Message: fmt.Sprintf(format, args...)})
}

// Validate checks frames (assumed already seq-ordered, as read from
// eventlog.ReadAll) for these structural invariants:
//   - per-stream seq is strictly increasing (within each stream_kind+stream_id pair)
//   - session_ended occurs at most once per stream, and continuity_run_ended
//     at most once per run session within its continuity stream
//   - every artifact id referenced by a frame resolves in the artifact store
//
// Decode validity is enforced earlier, by frame.Decode itself; frames that
// reach this function are assumed to have already decoded successfully.
func Validate(frames []frame.Envelope, artifacts ArtifactResolver) Report {
	report := Report{FramesChecked: len(frames)}

	type streamKey struct {
		kind frame.StreamKind
		id   string
	}
	lastSeq := make(map[streamKey]uint64)
	sawSeq := make(map[streamKey]bool)
	terminalSeen := make(map[streamKey]bool)

	for _, e := range frames {
		key := streamKey{e.StreamKind, e.StreamID}

		if sawSeq[key] && e.Seq <= lastSeq[key] {
			report.fail(e, "stream %s/%s: seq %d does not increase past prior seq %d", e.StreamKind, e.StreamID, e.Seq, lastSeq[key])
		}
		lastSeq[key] = e.Seq
		sawSeq[key] = true

		if frame.IsTerminal(e.Kind) {
			tkey := key
			if e.Kind == frame.KindContinuityRunEnded {
				var p frame.RunEndedPayload
				if frame.DecodePayload(e, &p) == nil && p.RunSessionID != "" {
					tkey = streamKey{e.StreamKind, e.StreamID + "/" + p.RunSessionID}
				}
			}
			if terminalSeen[tkey] {
				report.fail(e, "stream %s/%s: terminal kind %s occurs more than once", e.StreamKind, e.StreamID, e.Kind)
			}
			terminalSeen[tkey] = true
		}

		for _, artID := range referencedArtifacts(e) {
			if artID == "" {
				continue
			}
			if artifacts != nil && !artifacts.Exists(artID) {
				report.fail(e, "references unresolvable artifact id %q", artID)
			}
		}
	}

	return report
}

// ValidateContinuity runs Validate over frames (already filtered to one
// continuity stream) and additionally checks snapshot-boundary equivalence:
// for every toSeq a compaction job saved a snapshot at, replaying frames up
// to that seq must reproduce exactly what was saved. A mismatch means the
// log was mutated, or replayed differently, after the snapshot was taken.
func ValidateContinuity(continuityID string, frames []frame.Envelope, artifacts ArtifactResolver, snapshots *SnapshotStore) Report {
	report := Validate(frames, artifacts)

	if snapshots == nil {
		return report
	}

	boundaries, err := snapshots.Boundaries(continuityID)
	if err != nil {
		report.Issues = append(report.Issues, Issue{Message: fmt.Sprintf("list snapshot boundaries: %s", err)})
		return report
	}

	for _, toSeq := range boundaries {
		saved, ok, err := snapshots.Load(continuityID, toSeq)
		if err != nil {
			report.Issues = append(report.Issues, Issue{Seq: toSeq, Message: fmt.Sprintf("load snapshot at seq %d: %s", toSeq, err)})
			continue
		}
		if !ok {
			continue
		}

		seq := toSeq
		fresh, err := Replay(continuityID, frames, &seq)
		if err != nil {
			report.Issues = append(report.Issues, Issue{Seq: toSeq, Message: fmt.Sprintf("replay to seq %d: %s", toSeq, err)})
			continue
		}

		if !Equal(fresh, saved) {
			report.Issues = append(report.Issues, Issue{Seq: toSeq, Message: fmt.Sprintf("replay at seq %d diverges from saved snapshot", toSeq)})
		}
	}

	return report
}

// referencedArtifacts extracts artifact ids a frame's payload claims to
// reference, best-effort (a decode failure here is reported as "no
// references found" rather than escalated, since frame.Decode already
// validated the envelope itself).
func referencedArtifacts(e frame.Envelope) []string {
	switch e.Kind {
	case frame.KindToolEnded:
		var p frame.ToolEndedPayload
		if frame.DecodePayload(e, &p) == nil {
			return []string{p.OutputArtifact}
		}
	case frame.KindContinuityContextCompiled:
		var p frame.ContextCompiledPayload
		if frame.DecodePayload(e, &p) == nil {
			return []string{p.BundleArtifactID}
		}
	case frame.KindContinuityCompactionCheckpoint:
		var p frame.CompactionCheckpointCreatedPayload
		if frame.DecodePayload(e, &p) == nil {
			return []string{p.SummaryArtifactID}
		}
	case frame.KindContinuityHandoffCreated:
		var p frame.HandoffCreatedPayload
		if frame.DecodePayload(e, &p) == nil {
			return []string{p.SummaryArtifactID}
		}
	}
	return nil
}

// Package compaction implements deterministic cut-point selection,
// a summarizer job that turns a cut point into a chained compaction
// summary artifact, and a scheduler that decides when to run one
// automatically. Generalized from a single in-workspace checkpoint file
// to an event-sourced, chained summary model.
package compaction

import (
	"github.com/rip-dev/rip/internal/frame"
)

// CutRuleID identifies the cut-point rule version, stamped into every
// compaction checkpoint frame so a future rule change never reinterprets
// an old checkpoint's meaning.
const CutRuleID = "compaction.cut_points.v1"

// DefaultStride is the number of continuity_message_appended frames between
// automatic compaction cut points when a caller does not configure one.
const DefaultStride = 10000

// CutPoint names a candidate boundary in a continuity's message history:
// everything up to and including ToSeq/ToMessageID is eligible to be
// folded into a summary.
type CutPoint struct {
	ToSeq       uint64
	ToMessageID string
	Ordinal     int // 1-based position among continuity_message_appended frames
}

// CutPoints is a pure function of the continuity_message_appended
// subsequence: given the same messages and the same stride, it always
// returns the same cut points, regardless of what any cache believes.
// Candidates fall every `stride` messages (default 10,000), so a continuity
// with fewer than `stride` messages has no candidates yet.
func CutPoints(messages []frame.Envelope, stride int) ([]CutPoint, error) {
	if stride <= 0 {
		stride = DefaultStride
	}
	var out []CutPoint
	for i, e := range messages {
		ordinal := i + 1
		if ordinal%stride != 0 {
			continue
		}
		var p frame.MessageAppendedPayload
		if err := frame.DecodePayload(e, &p); err != nil {
			return nil, err
		}
		out = append(out, CutPoint{ToSeq: e.Seq, ToMessageID: p.MessageID, Ordinal: ordinal})
	}
	return out, nil
}

// LatestCutPoint returns the most recent eligible cut point, or ok=false
// if the continuity has fewer than `stride` messages.
func LatestCutPoint(messages []frame.Envelope, stride int) (CutPoint, bool, error) {
	points, err := CutPoints(messages, stride)
	if err != nil {
		return CutPoint{}, false, err
	}
	if len(points) == 0 {
		return CutPoint{}, false, nil
	}
	return points[len(points)-1], true, nil
}

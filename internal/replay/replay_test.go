package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/frame"
)

func TestReplayFoldsMessagesRunsAndCheckpoints(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m0", Role: "user", Content: "hi"})},
		{Seq: 1, Kind: frame.KindContinuityRunSpawned, Payload: frame.MustPayload(frame.RunSpawnedPayload{RunSessionID: "r1", ProviderID: "anthropic", ModelID: "claude"})},
		{Seq: 2, Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m1", Role: "assistant", Content: "hello"})},
		{Seq: 3, Kind: frame.KindContinuityRunEnded, Payload: frame.MustPayload(frame.RunEndedPayload{RunSessionID: "r1", Reason: "ok"})},
		{Seq: 4, Kind: frame.KindContinuityCompactionCheckpoint, Payload: frame.MustPayload(frame.CompactionCheckpointCreatedPayload{SummaryArtifactID: "art1", ToSeq: 2, ToMessageID: "m1"})},
	}

	snap, err := Replay("c1", frames, nil)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 2)
	assert.Equal(t, uint64(4), snap.ToSeq)
	require.Contains(t, snap.Runs, "r1")
	assert.True(t, snap.Runs["r1"].Ended)
	assert.Equal(t, "art1", snap.LatestSummaryArtifact)
}

func TestReplayRespectsToSeqBound(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m0", Role: "user", Content: "a"})},
		{Seq: 1, Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m1", Role: "user", Content: "b"})},
	}
	bound := uint64(0)
	snap, err := Replay("c1", frames, &bound)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1)
}

func TestReplayTwiceProducesEqualSnapshots(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m0", Role: "user", Content: "a"})},
	}
	s1, err := Replay("c1", frames, nil)
	require.NoError(t, err)
	s2, err := Replay("c1", frames, nil)
	require.NoError(t, err)
	assert.True(t, Equal(s1, s2))
}

func TestValidateDetectsNonMonotonicSeq(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 5, StreamKind: frame.StreamContinuity, StreamID: "c1", Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m0", Role: "user", Content: "a"})},
		{Seq: 3, StreamKind: frame.StreamContinuity, StreamID: "c1", Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m1", Role: "user", Content: "b"})},
	}
	report := Validate(frames, nil)
	assert.False(t, report.OK())
}

func TestValidateDetectsDuplicateTerminalFrame(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, StreamKind: frame.StreamContinuity, StreamID: "r1", Kind: frame.KindContinuityRunEnded, Payload: frame.MustPayload(frame.RunEndedPayload{RunSessionID: "r1", Reason: "ok"})},
		{Seq: 1, StreamKind: frame.StreamContinuity, StreamID: "r1", Kind: frame.KindContinuityRunEnded, Payload: frame.MustPayload(frame.RunEndedPayload{RunSessionID: "r1", Reason: "ok"})},
	}
	report := Validate(frames, nil)
	assert.False(t, report.OK())
	assert.Contains(t, report.Issues[0].Message, "more than once")
}

type fakeResolver struct{ known map[string]bool }

func (f fakeResolver) Exists(id string) bool { return f.known[id] }

func TestValidateDetectsUnresolvableArtifact(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, StreamKind: frame.StreamContinuity, StreamID: "c1", Kind: frame.KindContinuityContextCompiled,
			Payload: frame.MustPayload(frame.ContextCompiledPayload{BundleArtifactID: "missing-id"})},
	}
	report := Validate(frames, fakeResolver{known: map[string]bool{}})
	assert.False(t, report.OK())
}

func TestValidatePassesCleanLog(t *testing.T) {
	frames := []frame.Envelope{
		{Seq: 0, StreamKind: frame.StreamContinuity, StreamID: "c1", Kind: frame.KindContinuityMessageAppended, Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m0", Role: "user", Content: "a"})},
		{Seq: 1, StreamKind: frame.StreamContinuity, StreamID: "c1", Kind: frame.KindContinuityRunEnded, Payload: frame.MustPayload(frame.RunEndedPayload{RunSessionID: "r1", Reason: "ok"})},
	}
	report := Validate(frames, nil)
	assert.True(t, report.OK())
}

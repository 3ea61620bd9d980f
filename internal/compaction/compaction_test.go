package compaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/artifact"
	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
)

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(ctx context.Context, priorSummary string, messages []frame.Envelope) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func appendN(t *testing.T, gate *authority.Gate, continuityID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := gate.Append(continuityID, frame.Envelope{
			StreamKind: frame.StreamContinuity, StreamID: continuityID,
			Kind: frame.KindContinuityMessageAppended, TsMs: uint64(i), ActorID: "user", Origin: "continuity",
			Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m", Role: "user", Content: "x"}),
		})
		require.NoError(t, err)
	}
}

func TestCutPointsFallEveryStride(t *testing.T) {
	var msgs []frame.Envelope
	for i := uint64(0); i < 120; i++ {
		msgs = append(msgs, frame.Envelope{
			Seq: i, Kind: frame.KindContinuityMessageAppended,
			Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: "m", Role: "user", Content: "x"}),
		})
	}
	points, err := CutPoints(msgs, 50)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 50, points[0].Ordinal)
	assert.Equal(t, 100, points[1].Ordinal)
}

func TestJobRunProducesChainedSummary(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	appendN(t, gate, "c1", 50)

	job := NewJob(gate, store, nil, stubSummarizer{text: "first summary"})
	artID1, err := job.Run(context.Background(), "c1", "system", 50)
	require.NoError(t, err)
	assert.NotEmpty(t, artID1)

	s1, err := job.loadSummary(artID1)
	require.NoError(t, err)
	assert.Equal(t, "first summary", s1.Text)
	assert.Empty(t, s1.BaseSummaryArtifacts)

	appendN(t, gate, "c1", 50)
	job2 := NewJob(gate, store, nil, stubSummarizer{text: "second summary"})
	artID2, err := job2.Run(context.Background(), "c1", "system", 50)
	require.NoError(t, err)
	assert.NotEqual(t, artID1, artID2)

	s2, err := job2.loadSummary(artID2)
	require.NoError(t, err)
	assert.Equal(t, artID1, s2.BaseSummaryArtifacts)
}

func TestJobRunErrorsWithoutSummarizer(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()
	store, err := artifact.New(dir)
	require.NoError(t, err)

	job := NewJob(gate, store, nil, nil)
	_, err = job.Run(context.Background(), "c1", "system", 50)
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestSchedulerSkipsWhenNotDue(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	appendN(t, gate, "c1", 10)
	sched := NewScheduler(gate, 50)
	decision, err := sched.Evaluate("c1", "system")
	require.NoError(t, err)
	assert.Equal(t, DecisionSkipNotDue, decision)
}

func TestSchedulerRunsWhenDue(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	appendN(t, gate, "c1", 50)
	sched := NewScheduler(gate, 50)
	decision, err := sched.Evaluate("c1", "system")
	require.NoError(t, err)
	assert.Equal(t, DecisionRun, decision)
}

func TestSchedulerBlocksOnInflightJob(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	appendN(t, gate, "c1", 50)
	_, err = gate.Append("c1", frame.Envelope{
		StreamKind: frame.StreamContinuity, StreamID: "c1",
		Kind: frame.KindContinuityJobSpawned, TsMs: 1, ActorID: "system", Origin: "compaction",
		Payload: frame.MustPayload(frame.JobSpawnedPayload{JobID: "j1", Kind: JobKindAuto}),
	})
	require.NoError(t, err)

	sched := NewScheduler(gate, 50)
	decision, err := sched.Evaluate("c1", "system")
	require.NoError(t, err)
	assert.Equal(t, DecisionSkipInflight, decision)
}

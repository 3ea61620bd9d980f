package continuity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gate, err := authority.OpenGate(t.TempDir(), t.TempDir(), "")
	require.NoError(t, err)
	t.Cleanup(func() { gate.Close() })
	return New(gate)
}

func TestAppendMessageRequiresEnsureDefault(t *testing.T) {
	s := newTestStore(t)
	_, _, err := s.AppendMessage("c1", "user", "user", "hello", "test")
	assert.ErrorIs(t, err, ErrUnknownContinuity)
}

func TestAppendMessageRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))
	_, _, err := s.AppendMessage("c1", "user", "user", "", "test")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestAppendMessageRejectsInvalidRole(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))
	_, _, err := s.AppendMessage("c1", "user", "narrator", "hello", "test")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestSpawnRunAndEndRun(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))

	_, runID, err := s.SpawnRun("c1", "agent", "anthropic", "claude")
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	_, err = s.EndRun("c1", "agent", runID, "completed")
	require.NoError(t, err)

	frames, err := s.gate.Log().ReadStream(frame.StreamContinuity, "c1")
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, frame.KindContinuityRunSpawned, frames[0].Kind)
	assert.Equal(t, frame.KindContinuityRunEnded, frames[1].Kind)
}

func TestMessagesReturnsAppendedMessage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))

	_, _, err := s.AppendMessage("c1", "user", "user", "hi there", "test")
	require.NoError(t, err)

	msgs, err := s.Messages("c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var p frame.MessageAppendedPayload
	require.NoError(t, frame.DecodePayload(msgs[0], &p))
	assert.Equal(t, "hi there", p.Content)
}

func TestBranchAndHandoffAppend(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))

	_, _, err := s.AppendMessage("c1", "user", "user", "hi", "test")
	require.NoError(t, err)

	_, err = s.Branch("c1", "user", "c2", 0, "m1", "user")
	require.NoError(t, err)

	_, err = s.Handoff("c1", "user", "c3", "art-summary", 0, "m1", "user")
	require.NoError(t, err)

	frames, err := s.gate.Log().ReadStream(frame.StreamContinuity, "c1")
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, frame.KindContinuityBranched, frames[1].Kind)
	assert.Equal(t, frame.KindContinuityHandoffCreated, frames[2].Kind)

	otherFrames, err := s.gate.Log().ReadStream(frame.StreamContinuity, "c2")
	require.NoError(t, err)
	require.Len(t, otherFrames, 1)
	assert.Equal(t, frame.KindContinuityBranched, otherFrames[0].Kind)
	var p frame.BranchedPayload
	require.NoError(t, frame.DecodePayload(otherFrames[0], &p))
	assert.Equal(t, "c1", p.OtherContinuityID)
}

func TestTagRunAndListRunsFiltersByTag(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureDefault("c1"))

	_, run1, err := s.SpawnRun("c1", "agent", "anthropic", "claude")
	require.NoError(t, err)
	_, run2, err := s.SpawnRun("c1", "agent", "anthropic", "claude")
	require.NoError(t, err)

	_, err = s.TagRun("c1", "agent", run1, []string{"nightly", "release"})
	require.NoError(t, err)
	_, err = s.TagRun("c1", "agent", run2, []string{"nightly"})
	require.NoError(t, err)

	all, err := s.ListRuns("c1", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)

	released, err := s.ListRuns("c1", []string{"release"})
	require.NoError(t, err)
	require.Len(t, released, 1)
	assert.Equal(t, run1, released[0].RunSessionID)
}

package controlsurface

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/compaction"
	"github.com/rip-dev/rip/internal/frame"
)

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, priorSummary string, messages []frame.Envelope) (string, error) {
	return "a summary", nil
}

func newTestSurface(t *testing.T) *Surface {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, "test-holder", dir, "", 3, stubSummarizer{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureDefaultAndPostMessage(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.EnsureDefault("c1"))

	seq, msgID, err := s.PostMessage("c1", "user", "user", "hello", "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)
	assert.NotEmpty(t, msgID)
}

func TestTagRunAndListRuns(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.EnsureDefault("c1"))

	_, runID, err := s.SpawnRun("c1", "user", "anthropic", "claude")
	require.NoError(t, err)

	_, err = s.TagRun("c1", "user", runID, []string{"nightly"})
	require.NoError(t, err)

	runs, err := s.ListRuns("c1", []string{"nightly"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].RunSessionID)
}

func TestCompactionAutoRunsWhenDue(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.EnsureDefault("c1"))

	for i := 0; i < 3; i++ {
		_, _, err := s.PostMessage("c1", "user", "user", "msg", "test")
		require.NoError(t, err)
	}

	decision, artifactID, err := s.CompactionAuto(context.Background(), "c1", "scheduler", 3)
	require.NoError(t, err)
	assert.Equal(t, compaction.DecisionRun, decision)
	assert.NotEmpty(t, artifactID)

	status, err := s.CompactionStatus("c1")
	require.NoError(t, err)
	assert.True(t, status.HasCheckpoint)
	assert.Equal(t, artifactID, status.LatestSummaryArtifactID)
}

func TestCutPointsPureOverMessages(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.EnsureDefault("c1"))

	for i := 0; i < 7; i++ {
		_, _, err := s.PostMessage("c1", "user", "user", "msg", "test")
		require.NoError(t, err)
	}

	points, err := s.CutPoints("c1", 3)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 3, points[0].Ordinal)
	assert.Equal(t, 6, points[1].Ordinal)
}

func TestValidateCleanLog(t *testing.T) {
	s := newTestSurface(t)
	require.NoError(t, s.EnsureDefault("c1"))
	_, _, err := s.PostMessage("c1", "user", "user", "hi", "test")
	require.NoError(t, err)

	report, err := s.Validate("c1")
	require.NoError(t, err)
	assert.True(t, report.OK())
}

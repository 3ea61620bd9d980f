package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postN(t *testing.T, dataDir, continuityID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, runPost(PostOptions{
			ConfigPath: "rip.yaml", DataDir: dataDir, ContinuityID: continuityID,
			ActorID: "tester", Role: "user", Content: "message",
		}))
	}
}

func TestCompactCmd_ManualProducesSummary(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	postN(t, "store", "c1", 3)

	h.captureOutput()
	err := runCompact(CompactOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", Stride: 3,
	})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "summary_artifact_id=")
}

func TestCompactCmd_StatusBeforeAnyJob(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	postN(t, "store", "c1", 1)

	h.captureOutput()
	err := runCompact(CompactOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", Status: true,
	})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "has_checkpoint=false")
}

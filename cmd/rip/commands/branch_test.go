package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchCmd(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	require.NoError(t, runPost(PostOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", Role: "user", Content: "hi",
	}))

	h.captureOutput()
	err := runBranch(BranchOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", NewContinuityID: "c2", FromSeq: 0, FromMessageID: "m1", Role: "user",
	})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "new_continuity_id=c2")
}

func TestHandoffCmd_RequiresSummaryArtifactID(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	err := runHandoff(HandoffOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1", ActorID: "tester",
		NewContinuityID: "c2",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary-artifact-id")
}

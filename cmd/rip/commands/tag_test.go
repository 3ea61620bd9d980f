package commands

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagCmd_RequiresAtLeastOneTag(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	postN(t, "store", "c1", 1)

	err := runTag(TagOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", RunSessionID: "missing-run", Tags: "",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one tag")
}

func TestTagAndListCmd(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	require.NoError(t, runPost(PostOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", Role: "user", Content: "hi",
	}))

	h.captureOutput()
	require.NoError(t, runSpawn(RunOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", Provider: "anthropic", Model: "claude",
	}))
	spawnOut := h.getOutput()
	require.Contains(t, spawnOut, "run_session_id=")
	_, after, found := strings.Cut(spawnOut, "run_session_id=")
	require.True(t, found)
	runID := strings.TrimSpace(after)

	require.NoError(t, runTag(TagOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		ActorID: "tester", RunSessionID: runID, Tags: "nightly,release",
	}))

	h.captureOutput()
	err := runList(ListOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
		Tags: "nightly", Format: "json",
	})
	out := h.getOutput()
	require.NoError(t, err)
	assert.Contains(t, out, runID)
}

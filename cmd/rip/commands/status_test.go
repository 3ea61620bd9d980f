package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_JSONReportsMessageCount(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	postN(t, "store", "c1", 2)

	h.captureOutput()
	err := runStatus(StatusOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1", Format: "json",
	})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, `"message_count": 2`)
}

func TestLogsCmd_ReportsAppendedFrames(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	postN(t, "store", "c1", 2)

	h.captureOutput()
	err := runLogs(LogsOptions{
		ConfigPath: "rip.yaml", DataDir: "store", ContinuityID: "c1",
	})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "continuity_message_appended")
}

package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCmd_DefaultsWhenConfigMissing(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	h.captureOutput()
	err := runValidate(ValidateOptions{ConfigPath: "rip.yaml"})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "Validation successful")
}

func TestValidateCmd_RejectsNegativeStride(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	h.writeFile("rip.yaml", "compaction:\n  stride: -1\n")

	err := runValidate(ValidateOptions{ConfigPath: "rip.yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compaction.stride")
}

func TestValidateCmd_VerbosePrintsSummary(t *testing.T) {
	h := newTestHelper(t)
	h.chdir()
	defer h.restore()

	h.writeFile("rip.yaml", "data_dir: .rip\ncompaction:\n  stride: 25\n")

	h.captureOutput()
	err := runValidate(ValidateOptions{ConfigPath: "rip.yaml", Verbose: true})
	out := h.getOutput()

	require.NoError(t, err)
	assert.Contains(t, out, "compaction.stride:   25")
}

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHelper provides common utilities for CLI command tests, mirroring the
// teacher's chdir-plus-captured-stdout harness.
type testHelper struct {
	t          *testing.T
	tmpDir     string
	origDir    string
	origStdout *os.File
	outBuf     *bytes.Buffer
}

func newTestHelper(t *testing.T) *testHelper {
	t.Helper()
	tmpDir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	return &testHelper{t: t, tmpDir: tmpDir, origDir: origDir}
}

func (h *testHelper) chdir() {
	h.t.Helper()
	require.NoError(h.t, os.Chdir(h.tmpDir))
}

func (h *testHelper) restore() {
	h.t.Helper()
	_ = os.Chdir(h.origDir)
}

func (h *testHelper) writeFile(relPath, content string) {
	h.t.Helper()
	fullPath := filepath.Join(h.tmpDir, relPath)
	require.NoError(h.t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(h.t, os.WriteFile(fullPath, []byte(content), 0644))
}

func (h *testHelper) captureOutput() {
	h.t.Helper()
	h.origStdout = os.Stdout
	r, w, err := os.Pipe()
	require.NoError(h.t, err)
	os.Stdout = w
	h.outBuf = new(bytes.Buffer)
	go func() { _, _ = h.outBuf.ReadFrom(r) }()
}

func (h *testHelper) getOutput() string {
	h.t.Helper()
	os.Stdout.Close()
	os.Stdout = h.origStdout
	return h.outBuf.String()
}

func TestSplitTags(t *testing.T) {
	assert.Nil(t, splitTags(""))
	assert.Nil(t, splitTags("   "))
	assert.Equal(t, []string{"a", "b"}, splitTags("a, b"))
	assert.Equal(t, []string{"only"}, splitTags("only"))
}

func TestOutputModeRespectsExplicitFlag(t *testing.T) {
	assert.Equal(t, "json", outputMode("json"))
	assert.Equal(t, "text", outputMode("text"))
}

func TestLocalSummarizerProducesNonEmptyText(t *testing.T) {
	s := localSummarizer{}
	text, err := s.Summarize(nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "(no content)", text)
}

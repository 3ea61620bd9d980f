package runloop

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/continuity"
	"github.com/rip-dev/rip/internal/frame"
)

type scriptedProvider struct {
	events []ProviderEvent
}

func (p scriptedProvider) Stream(ctx context.Context, bundleArtifactID, priorCursor string) (<-chan ProviderEvent, error) {
	ch := make(chan ProviderEvent, len(p.events))
	for _, e := range p.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

type countingTool struct {
	calls int32
	err   error
}

func (t *countingTool) Run(ctx context.Context, call ToolCall) (ToolResult, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.err != nil {
		return ToolResult{Status: "error"}, t.err
	}
	return ToolResult{Status: "ok", AffectedPaths: []string{"out.txt"}}, nil
}

func TestRunEmitsSessionStartedAndEndedOnDone(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	cont := continuity.New(gate)
	require.NoError(t, cont.EnsureDefault("c1"))

	provider := scriptedProvider{events: []ProviderEvent{
		{Type: "text_delta", Text: "hi"},
		{Type: "done"},
	}}
	loop := New(gate, authority.NewWorkspaceLocks(), cont, provider, nil)

	err = loop.Run(context.Background(), "c1", "r1", "bundle1", "anthropic", "claude", "")
	require.NoError(t, err)

	frames, err := gate.Log().ReadStream(frame.StreamSession, "r1")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, frame.KindSessionStarted, frames[0].Kind)
	assert.Equal(t, frame.KindSessionEnded, frames[len(frames)-1].Kind)
}

func TestRunDispatchesMutatingToolAndEmitsSideEffects(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	cont := continuity.New(gate)
	require.NoError(t, cont.EnsureDefault("c1"))

	tool := &countingTool{}
	provider := scriptedProvider{events: []ProviderEvent{
		{Type: "tool_call", ToolCall: &ToolCall{ToolID: "t1", ToolName: "write_file", MutatesWorkspace: true}},
		{Type: "done"},
	}}
	loop := New(gate, authority.NewWorkspaceLocks(), cont, provider, map[string]Tool{"write_file": tool})

	err = loop.Run(context.Background(), "c1", "r1", "bundle1", "anthropic", "claude", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), tool.calls)

	continuityFrames, err := gate.Log().ReadStream(frame.StreamContinuity, "c1")
	require.NoError(t, err)
	require.Len(t, continuityFrames, 3)
	assert.Equal(t, frame.KindContinuityToolSideEffects, continuityFrames[0].Kind)
	assert.Equal(t, frame.KindContinuityProviderCursorUpdated, continuityFrames[1].Kind)
	assert.Equal(t, frame.KindContinuityRunEnded, continuityFrames[2].Kind)
}

func TestRunEndsWithProviderErrorReason(t *testing.T) {
	dir := t.TempDir()
	gate, err := authority.OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer gate.Close()

	cont := continuity.New(gate)
	require.NoError(t, cont.EnsureDefault("c1"))

	provider := scriptedProvider{events: []ProviderEvent{
		{Type: "error", ErrorText: "boom"},
	}}
	loop := New(gate, authority.NewWorkspaceLocks(), cont, provider, nil)

	err = loop.Run(context.Background(), "c1", "r1", "bundle1", "anthropic", "claude", "")
	require.Error(t, err)

	frames, err := gate.Log().ReadStream(frame.StreamSession, "r1")
	require.NoError(t, err)
	last := frames[len(frames)-1]
	require.Equal(t, frame.KindSessionEnded, last.Kind)
	var p frame.SessionEndedPayload
	require.NoError(t, frame.DecodePayload(last, &p))
	assert.Equal(t, "provider_error", p.Reason)
}

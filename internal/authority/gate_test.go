package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/frame"
)

func TestOpenGateRejectsSecondOpener(t *testing.T) {
	dir := t.TempDir()
	g1, err := OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer g1.Close()

	_, err = OpenGate(dir, dir, "")
	assert.ErrorIs(t, err, ErrHeld)
}

func TestGateAppendDurableAndIndexed(t *testing.T) {
	dir := t.TempDir()
	g, err := OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer g.Close()

	env := frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   "c1",
		Kind:       frame.KindContinuityMessageAppended,
		TsMs:       1,
		ActorID:    "user",
		Origin:     "cli",
		Payload: frame.MustPayload(frame.MessageAppendedPayload{
			MessageID: "m1", Role: "user", Content: "hi",
		}),
	}
	seq, err := g.Append("c1", env)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seq)

	all, err := g.Log().ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	n, err := g.Index().MessageCount("c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCloseThenReopenSucceeds(t *testing.T) {
	dir := t.TempDir()
	g1, err := OpenGate(dir, dir, "")
	require.NoError(t, err)
	require.NoError(t, g1.Close())

	g2, err := OpenGate(dir, dir, "")
	require.NoError(t, err)
	defer g2.Close()
}

package authority

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimThenHeldRejectsSecondClaimant(t *testing.T) {
	dir := t.TempDir()
	l1, err := Open(dir)
	require.NoError(t, err)
	holder1, err := l1.Claim()
	require.NoError(t, err)
	require.NoError(t, l1.MarkRunning(holder1))

	l2, err := Open(dir)
	require.NoError(t, err)
	_, err = l2.Claim()
	assert.ErrorIs(t, err, ErrHeld)
}

func TestReleaseAllowsReclaim(t *testing.T) {
	dir := t.TempDir()
	l1, err := Open(dir)
	require.NoError(t, err)
	holder1, err := l1.Claim()
	require.NoError(t, err)
	require.NoError(t, l1.Release(holder1))

	l2, err := Open(dir)
	require.NoError(t, err)
	holder2, err := l2.Claim()
	require.NoError(t, err)
	assert.NotEmpty(t, holder2)
}

func TestStaleHeartbeatAllowsReclaim(t *testing.T) {
	dir := t.TempDir()
	l1, err := Open(dir)
	require.NoError(t, err)
	holder1, err := l1.Claim()
	require.NoError(t, err)
	require.NoError(t, l1.MarkRunning(holder1))

	// Directly backdate the heartbeat to simulate a crashed holder.
	m, ok, err := l1.read()
	require.NoError(t, err)
	require.True(t, ok)
	m.HeartbeatMs = time.Now().Add(-1 * time.Hour).UnixMilli()
	require.NoError(t, l1.writeAtomic(m))

	l2, err := Open(dir)
	require.NoError(t, err)
	holder2, err := l2.Claim()
	require.NoError(t, err)
	assert.NotEqual(t, holder1, holder2)

	// Old holder's heartbeat/release calls now fail: it's no longer holder.
	assert.ErrorIs(t, l1.Heartbeat(holder1), ErrNotHolder)
}

func TestHeartbeatByNonHolderFails(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(dir)
	require.NoError(t, err)
	_, err = l.Claim()
	require.NoError(t, err)

	assert.ErrorIs(t, l.Heartbeat("not-the-holder"), ErrNotHolder)
}

func TestWorkspaceLockSerializesAndRespectsContext(t *testing.T) {
	wls := NewWorkspaceLocks()

	order := make([]int, 0, 2)
	var mu chanGuard
	mu.init()

	done := make(chan struct{})
	go func() {
		_ = wls.WithWorkspaceLock(context.Background(), "c1", func() error {
			mu.lock()
			order = append(order, 1)
			mu.unlock()
			time.Sleep(10 * time.Millisecond)
			return nil
		})
		close(done)
	}()
	time.Sleep(2 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Millisecond)
	defer cancel()
	err := wls.WithWorkspaceLock(ctx, "c1", func() error {
		mu.lock()
		order = append(order, 2)
		mu.unlock()
		return nil
	})
	assert.Error(t, err)

	<-done
	assert.Equal(t, []int{1}, order)
}

// chanGuard is a tiny mutex built from a channel, avoiding a second import
// purely for a test helper.
type chanGuard struct{ ch chan struct{} }

func (g *chanGuard) init()   { g.ch = make(chan struct{}, 1) }
func (g *chanGuard) lock()   { g.ch <- struct{}{} }
func (g *chanGuard) unlock() { <-g.ch }

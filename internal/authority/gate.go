package authority

import (
	"fmt"
	"os"
	"time"

	"github.com/rip-dev/rip/internal/eventlog"
	"github.com/rip-dev/rip/internal/frame"
	"github.com/rip-dev/rip/internal/sidecar"
)

// Gate is the only path by which a process is allowed to append to a
// store's event log: it holds the authority claim, the log itself, and the
// sidecar index, and keeps all three in lockstep so a successful Append
// call always means "durably logged and indexed" rather than leaving a
// window where the sidecar lags the log within the same process.
type Gate struct {
	lock     *Lock
	holderID string
	log      *eventlog.Log
	index    *sidecar.Index
}

// OpenGate claims the store's authority, opens its log, and opens its
// sidecar index. If another live process holds authority, it returns
// ErrHeld without touching the log or sidecar. workspaceRoot is the absolute
// path of the working tree this holder will mutate; if the store already
// carries a descriptor naming a different workspace_root, OpenGate releases
// the claim it just took and returns ErrWorkspaceRootMismatch rather than
// proceeding against a store that was last used by a different checkout.
// endpoint identifies how this holder can be reached (e.g. its server
// address), recorded for operational visibility only.
func OpenGate(storeDir, workspaceRoot, endpoint string) (*Gate, error) {
	lock, err := Open(storeDir)
	if err != nil {
		return nil, err
	}
	holderID, err := lock.Claim()
	if err != nil {
		return nil, err
	}

	if workspaceRoot != "" {
		if existing, ok := readDescriptor(storeDir); ok && existing.WorkspaceRoot != "" && existing.WorkspaceRoot != workspaceRoot {
			_ = lock.Release(holderID)
			return nil, fmt.Errorf("%w: store has %q, this process has %q", ErrWorkspaceRootMismatch, existing.WorkspaceRoot, workspaceRoot)
		}
	}

	log, err := eventlog.Open(storeDir)
	if err != nil {
		_ = lock.Release(holderID)
		return nil, err
	}
	index, err := sidecar.Open(storeDir)
	if err != nil {
		log.Close()
		_ = lock.Release(holderID)
		return nil, err
	}

	if err := lock.MarkRunning(holderID); err != nil {
		log.Close()
		index.Close()
		return nil, err
	}

	if err := writeDescriptorAtomic(storeDir, Descriptor{
		Endpoint:      endpoint,
		PID:           os.Getpid(),
		StartedAtMs:   time.Now().UnixMilli(),
		WorkspaceRoot: workspaceRoot,
	}); err != nil {
		log.Close()
		index.Close()
		_ = lock.Release(holderID)
		return nil, fmt.Errorf("authority: write descriptor: %w", err)
	}

	return &Gate{lock: lock, holderID: holderID, log: log, index: index}, nil
}

// Append sequences and durably persists a frame, then indexes it into the
// sidecar before returning. If sidecar indexing fails, the append to the
// authoritative log has already succeeded and is not rolled back — the
// sidecar is a cache, and a stale or partially-written sidecar is repaired
// by Rebuild, never by losing a logged frame.
func (g *Gate) Append(continuityID string, e frame.Envelope) (uint64, error) {
	seq, err := g.log.AppendSequenced(e)
	if err != nil {
		return 0, fmt.Errorf("authority: gate append: %w", err)
	}
	e.Seq = seq
	if err := g.index.IndexFrame(continuityID, e); err != nil {
		return seq, fmt.Errorf("authority: gate index (frame %d logged, sidecar stale): %w", seq, err)
	}
	return seq, nil
}

// Log returns the underlying event log for read paths (replay, tail
// subscriptions) that don't need authority.
func (g *Gate) Log() *eventlog.Log { return g.log }

// Index returns the underlying sidecar for read paths.
func (g *Gate) Index() *sidecar.Index { return g.index }

// Heartbeat refreshes the authority claim; callers should invoke this on a
// steady interval well under the staleness deadline while the gate is open.
func (g *Gate) Heartbeat() error {
	return g.lock.Heartbeat(g.holderID)
}

// Close releases authority and closes the log and sidecar. It does not
// error out on lock release failure (the process is exiting regardless);
// it reports the first error from closing the log or sidecar.
func (g *Gate) Close() error {
	_ = g.lock.Release(g.holderID)
	logErr := g.log.Close()
	idxErr := g.index.Close()
	if logErr != nil {
		return logErr
	}
	return idxErr
}

// Package runloop drives one run session: it takes a compiled context
// bundle, dispatches it to a provider adapter, executes the tool calls the
// provider asks for, and emits the canonical session-stream frames.
// Workspace-mutating tool calls are serialized through internal/authority's
// per-continuity workspace lock; read-only tool calls run concurrently
// under a bounded errgroup.
package runloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/continuity"
	"github.com/rip-dev/rip/internal/frame"
)

// DefaultMaxConcurrentReadOnlyTools bounds concurrent read-only tool
// dispatch when a run requests more than this many at once.
const DefaultMaxConcurrentReadOnlyTools = 10

var (
	// ErrSessionAlreadyEnded names the error for ending a session twice.
	// Nothing in this package returns it: Run emits the session's terminal
	// frame itself, once.
	ErrSessionAlreadyEnded = errors.New("runloop: session already ended")
)

// ProviderEvent is one event read off a provider adapter's stream: text
// delta, a tool call request, or the provider signaling it's done.
type ProviderEvent struct {
	Type      string // "text_delta" | "tool_call" | "done" | "error"
	Text      string
	ToolCall  *ToolCall
	ErrorText string
	// Cursor carries the provider's resumption cursor (e.g.
	// previous_response_id) on the "done" event, so the caller can
	// persist it as a rotatable cache entry without the provider needing
	// to know about internal/continuity.
	Cursor string
}

// ToolCall is a provider-requested tool invocation.
type ToolCall struct {
	ToolID           string
	ToolName         string
	Args             string
	MutatesWorkspace bool
}

// ToolResult is what a Tool returns after executing a ToolCall.
type ToolResult struct {
	Status         string // ok | error | timeout | cancelled
	ExitCode       int
	Stdout         string
	Stderr         string
	AffectedPaths  []string
	OutputArtifact string
}

// Provider streams ProviderEvents for a compiled bundle. Implementations
// wrap a concrete model API; this package only depends on the interface.
type Provider interface {
	Stream(ctx context.Context, bundleArtifactID string, priorCursor string) (<-chan ProviderEvent, error)
}

// Tool executes one ToolCall and returns its result.
type Tool interface {
	Run(ctx context.Context, call ToolCall) (ToolResult, error)
}

// Loop drives a single run session end to end.
type Loop struct {
	gate                   *authority.Gate
	locks                  *authority.WorkspaceLocks
	continuity             *continuity.Store
	provider               Provider
	tools                  map[string]Tool
	maxReadOnlyConcurrency int
}

// New constructs a Loop. tools maps tool name to its implementation. cont is
// used to record the run's final provider cursor and terminal run-ended
// frame against the continuity stream; it may be nil for callers (tests,
// mainly) that only care about the session stream.
func New(gate *authority.Gate, locks *authority.WorkspaceLocks, cont *continuity.Store, provider Provider, tools map[string]Tool) *Loop {
	return &Loop{gate: gate, locks: locks, continuity: cont, provider: provider, tools: tools, maxReadOnlyConcurrency: DefaultMaxConcurrentReadOnlyTools}
}

func nowMs() uint64 { return uint64(time.Now().UnixMilli()) }

// Run drives one run session against runSessionID (already spawned by
// internal/continuity) until the provider signals done, emitting frames to
// the session stream as it goes, then emits exactly one terminal
// session_ended frame before returning.
func (l *Loop) Run(ctx context.Context, continuityID, runSessionID, bundleArtifactID, providerID, modelID, priorCursor string) (err error) {
	ended := false
	endReason := "ok"
	cursor := priorCursor
	defer func() {
		if !ended {
			if err != nil {
				endReason = "provider_error"
				if errors.Is(ctx.Err(), context.Canceled) {
					endReason = "cancelled"
				}
			}
			_, endErr := l.gate.Append(continuityID, frame.Envelope{
				StreamKind: frame.StreamSession, StreamID: runSessionID,
				Kind: frame.KindSessionEnded, TsMs: nowMs(), ActorID: "runloop", Origin: "runloop",
				Payload: frame.MustPayload(frame.SessionEndedPayload{RunSessionID: runSessionID, Reason: endReason}),
			})
			if err == nil {
				err = endErr
			}
		}

		if l.continuity == nil {
			return
		}
		if _, cursorErr := l.continuity.RecordProviderCursor(continuityID, "runloop", runSessionID, providerID, cursor); err == nil {
			err = cursorErr
		}
		if _, endRunErr := l.continuity.EndRun(continuityID, "runloop", runSessionID, endReason); err == nil {
			err = endRunErr
		}
	}()

	if _, err := l.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamSession, StreamID: runSessionID,
		Kind: frame.KindSessionStarted, TsMs: nowMs(), ActorID: "runloop", Origin: "runloop",
		Payload: frame.MustPayload(frame.SessionStartedPayload{
			RunSessionID: runSessionID, ContinuityID: continuityID, BundleID: bundleArtifactID,
			ProviderID: providerID, ModelID: modelID, FollowupMode: "continue",
		}),
	}); err != nil {
		return fmt.Errorf("runloop: emit session started: %w", err)
	}

	events, err := l.provider.Stream(ctx, bundleArtifactID, priorCursor)
	if err != nil {
		return fmt.Errorf("runloop: start provider stream: %w", err)
	}

	var pendingReadOnly []ToolCall

	flushReadOnly := func() error {
		if len(pendingReadOnly) == 0 {
			return nil
		}
		batch := pendingReadOnly
		pendingReadOnly = nil
		return l.runReadOnlyBatch(ctx, continuityID, runSessionID, batch)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return flushReadOnly()
			}
			if err := l.mirrorProviderEvent(continuityID, runSessionID, providerID, ev); err != nil {
				return err
			}
			switch ev.Type {
			case "text_delta":
				if _, err := l.gate.Append(continuityID, frame.Envelope{
					StreamKind: frame.StreamSession, StreamID: runSessionID,
					Kind: frame.KindOutputTextDelta, TsMs: nowMs(), ActorID: "provider", Origin: providerID,
					Payload: frame.MustPayload(frame.OutputTextDeltaPayload{Text: ev.Text}),
				}); err != nil {
					return fmt.Errorf("runloop: emit text delta: %w", err)
				}

			case "tool_call":
				if ev.ToolCall == nil {
					continue
				}
				if ev.ToolCall.MutatesWorkspace {
					if err := flushReadOnly(); err != nil {
						return err
					}
					if err := l.runMutatingTool(ctx, continuityID, runSessionID, *ev.ToolCall); err != nil {
						return err
					}
				} else {
					pendingReadOnly = append(pendingReadOnly, *ev.ToolCall)
				}

			case "error":
				_ = flushReadOnly()
				return fmt.Errorf("runloop: provider error: %s", ev.ErrorText)

			case "done":
				if err := flushReadOnly(); err != nil {
					return err
				}
				if ev.Cursor != "" {
					cursor = ev.Cursor
				}
				ended = true
				_, err := l.gate.Append(continuityID, frame.Envelope{
					StreamKind: frame.StreamSession, StreamID: runSessionID,
					Kind: frame.KindSessionEnded, TsMs: nowMs(), ActorID: "runloop", Origin: "runloop",
					Payload: frame.MustPayload(frame.SessionEndedPayload{RunSessionID: runSessionID, Reason: "ok"}),
				})
				return err
			}
		}
	}
}

// mirrorProviderEvent records every raw event read off the provider's stream
// as a provider_event frame before any derived frame is emitted for it, so a
// replay can always recover exactly what the provider sent even when the
// derived frame it produced turns out to be wrong or absent.
func (l *Loop) mirrorProviderEvent(continuityID, runSessionID, providerID string, ev ProviderEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("runloop: marshal provider event: %w", err)
	}
	if _, err := l.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamSession, StreamID: runSessionID,
		Kind: frame.KindProviderEvent, TsMs: nowMs(), ActorID: "provider", Origin: providerID,
		Payload: frame.MustPayload(frame.ProviderEventPayload{
			EventType: ev.Type,
			Raw:       string(raw),
			Error:     ev.ErrorText,
		}),
	}); err != nil {
		return fmt.Errorf("runloop: emit provider event: %w", err)
	}
	return nil
}

// runMutatingTool serializes one workspace-mutating tool call through the
// continuity's workspace lock, so concurrent runs against the same
// continuity can never race on the filesystem.
func (l *Loop) runMutatingTool(ctx context.Context, continuityID, runSessionID string, call ToolCall) error {
	return l.locks.WithWorkspaceLock(ctx, continuityID, func() error {
		return l.executeAndEmit(ctx, continuityID, runSessionID, call)
	})
}

// runReadOnlyBatch runs a batch of read-only tool calls concurrently,
// bounded by maxReadOnlyConcurrency, fail-fast on first error.
func (l *Loop) runReadOnlyBatch(ctx context.Context, continuityID, runSessionID string, calls []ToolCall) error {
	g, gctx := errgroup.WithContext(ctx)
	limit := l.maxReadOnlyConcurrency
	if limit <= 0 {
		limit = DefaultMaxConcurrentReadOnlyTools
	}
	g.SetLimit(limit)

	for _, call := range calls {
		call := call
		g.Go(func() error {
			return l.executeAndEmit(gctx, continuityID, runSessionID, call)
		})
	}
	return g.Wait()
}

func (l *Loop) executeAndEmit(ctx context.Context, continuityID, runSessionID string, call ToolCall) error {
	tool, ok := l.tools[call.ToolName]
	if !ok {
		return fmt.Errorf("runloop: unknown tool %q", call.ToolName)
	}

	if _, err := l.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamSession, StreamID: runSessionID,
		Kind: frame.KindToolStarted, TsMs: nowMs(), ActorID: "provider", Origin: "runloop",
		Payload: frame.MustPayload(frame.ToolStartedPayload{
			ToolID: call.ToolID, ToolName: call.ToolName, Args: call.Args, MutatesWorkspace: call.MutatesWorkspace,
		}),
	}); err != nil {
		return fmt.Errorf("runloop: emit tool started: %w", err)
	}

	result, runErr := tool.Run(ctx, call)
	status := result.Status
	if runErr != nil && status == "" {
		status = "error"
	}

	if _, err := l.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamSession, StreamID: runSessionID,
		Kind: frame.KindToolEnded, TsMs: nowMs(), ActorID: "provider", Origin: "runloop",
		Payload: frame.MustPayload(frame.ToolEndedPayload{
			ToolID: call.ToolID, Status: status, ExitCode: result.ExitCode,
			AffectedPaths: result.AffectedPaths, OutputArtifact: result.OutputArtifact,
		}),
	}); err != nil {
		return fmt.Errorf("runloop: emit tool ended: %w", err)
	}

	if call.MutatesWorkspace && len(result.AffectedPaths) > 0 {
		if _, err := l.gate.Append(continuityID, frame.Envelope{
			StreamKind: frame.StreamContinuity, StreamID: continuityID,
			Kind: frame.KindContinuityToolSideEffects, TsMs: nowMs(), ActorID: "provider", Origin: "runloop",
			Payload: frame.MustPayload(frame.ToolSideEffectsPayload{
				RunSessionID: runSessionID, ToolID: call.ToolID, AffectedPaths: result.AffectedPaths,
			}),
		}); err != nil {
			return fmt.Errorf("runloop: emit tool side effects: %w", err)
		}
	}

	return runErr
}

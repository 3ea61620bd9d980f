package contextcompiler

import (
	"fmt"
	"time"

	"github.com/rip-dev/rip/internal/artifact"
	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
)

// CompilerID identifies this build of the compiler in emitted frames, so a
// future replay can tell which compiler version produced a given bundle.
const CompilerID = "rip.contextcompiler.v1"

// Compiler drives strategy selection, bundle compilation, storage, and the
// two frames that make a compilation replay-addressable:
// continuity_context_selection_decided (why) and
// continuity_context_compiled (what, as an artifact id).
type Compiler struct {
	gate      *authority.Gate
	artifacts *artifact.Store
}

// New constructs a Compiler over an already-open gate and artifact store.
func New(gate *authority.Gate, artifacts *artifact.Store) *Compiler {
	return &Compiler{gate: gate, artifacts: artifacts}
}

// Compile runs the named strategy over the continuity's current message
// history (and any available summaries), stores the resulting bundle, and
// emits the selection-decided and context-compiled frames in that order.
func (c *Compiler) Compile(continuityID, actorID, runSessionID, strategyName, origin string, budgets map[string]int, summaries []SummaryInput) (artifactID string, err error) {
	messages, err := c.gate.Index().RecentMessages(continuityID, 0, 1<<30)
	if err != nil {
		return "", fmt.Errorf("contextcompiler: load messages: %w", err)
	}
	var toSeq uint64
	var toMessageID string
	if len(messages) > 0 {
		last := messages[len(messages)-1]
		toSeq = last.Seq
		var p frame.MessageAppendedPayload
		if err := frame.DecodePayload(last, &p); err != nil {
			return "", fmt.Errorf("contextcompiler: decode last message: %w", err)
		}
		toMessageID = p.MessageID
	}

	bundle, reasons, err := Compile(strategyName, StrategyInput{
		ContinuityID: continuityID,
		ToSeq:        toSeq,
		ToMessageID:  toMessageID,
		Messages:     messages,
		Summaries:    summaries,
		Budgets:      budgets,
	})
	if err != nil {
		return "", err
	}
	bundle.Provenance.ActorID = actorID
	bundle.Provenance.RunSessionID = runSessionID
	bundle.Provenance.Origin = origin

	artifactID, err = Store(c.artifacts, bundle)
	if err != nil {
		return "", err
	}

	now := uint64(time.Now().UnixMilli())

	_, err = c.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityContextSelectionDecided,
		TsMs:       now,
		ActorID:    actorID,
		Origin:     "contextcompiler",
		Payload: frame.MustPayload(frame.ContextSelectionDecidedPayload{
			Strategy: strategyName,
			Budgets:  budgets,
			Inputs:   map[string]string{"compiler_id": CompilerID},
			Reasons:  reasons,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("contextcompiler: emit selection decided: %w", err)
	}

	_, err = c.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity,
		StreamID:   continuityID,
		Kind:       frame.KindContinuityContextCompiled,
		TsMs:       now,
		ActorID:    actorID,
		Origin:     "contextcompiler",
		Payload: frame.MustPayload(frame.ContextCompiledPayload{
			RunSessionID:     runSessionID,
			BundleArtifactID: artifactID,
			ToSeq:            toSeq,
			ToMessageID:      toMessageID,
			CompilerID:       CompilerID,
			Strategy:         strategyName,
		}),
	})
	if err != nil {
		return "", fmt.Errorf("contextcompiler: emit context compiled: %w", err)
	}

	return artifactID, nil
}

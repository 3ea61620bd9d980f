package compaction

import (
	"fmt"
	"time"

	"github.com/rip-dev/rip/internal/authority"
	"github.com/rip-dev/rip/internal/frame"
)

// SchedulePolicyID identifies the scheduling policy version, stamped into
// every continuity_compaction_auto_schedule_decided frame.
const SchedulePolicyID = "compaction.auto.schedule.v1"

// Decision is the scheduler's verdict, also the wire value of the
// schedule-decided frame's Decision field.
type Decision string

const (
	// DecisionRun means a job should be spawned now.
	DecisionRun Decision = "run"
	// DecisionSkipNotDue means no cut point is newly eligible yet.
	DecisionSkipNotDue Decision = "skip_not_due"
	// DecisionSkipInflight means block_on_inflight fired: a job is already
	// running for this continuity, so a new one is not spawned even though
	// a new cut point is due.
	DecisionSkipInflight Decision = "skip_inflight"
)

// Scheduler decides, on each tick, whether a continuity is due for an
// automatic compaction job, and logs that decision regardless of the
// outcome so the choice itself is replay-visible.
type Scheduler struct {
	gate   *authority.Gate
	stride int
}

// NewScheduler constructs a Scheduler with the given cut-point stride.
func NewScheduler(gate *authority.Gate, stride int) *Scheduler {
	if stride <= 0 {
		stride = DefaultStride
	}
	return &Scheduler{gate: gate, stride: stride}
}

// Evaluate decides whether continuityID is due for compaction right now,
// using the block_on_inflight policy: a continuity with a job already
// running is never scheduled again until that job ends, regardless of how
// many new cut points have since become eligible.
func (s *Scheduler) Evaluate(continuityID, actorID string) (Decision, error) {
	messages, err := s.gate.Index().RecentMessages(continuityID, 0, 1<<30)
	if err != nil {
		return "", fmt.Errorf("compaction: scheduler: load messages: %w", err)
	}
	cut, ok, err := LatestCutPoint(messages, s.stride)
	if err != nil {
		return "", err
	}

	var decision Decision
	var planned []string

	switch {
	case !ok:
		decision = DecisionSkipNotDue
	default:
		_, priorToSeq, hasPrior, err := s.gate.Index().LatestCheckpoint(continuityID)
		if err != nil {
			return "", fmt.Errorf("compaction: scheduler: load checkpoint: %w", err)
		}
		if hasPrior && priorToSeq >= cut.ToSeq {
			decision = DecisionSkipNotDue
			break
		}

		inflight, err := s.gate.Index().HasInflightJob(continuityID)
		if err != nil {
			return "", fmt.Errorf("compaction: scheduler: check inflight: %w", err)
		}
		if inflight {
			decision = DecisionSkipInflight
			break
		}

		decision = DecisionRun
		planned = []string{JobKindAuto}
	}

	if _, err := s.gate.Append(continuityID, frame.Envelope{
		StreamKind: frame.StreamContinuity, StreamID: continuityID,
		Kind: frame.KindContinuityCompactionAutoSchedule, TsMs: uint64(time.Now().UnixMilli()),
		ActorID: actorID, Origin: "compaction",
		Payload: frame.MustPayload(frame.CompactionAutoScheduleDecidedPayload{
			PolicyID: SchedulePolicyID,
			Planned:  planned,
			Decision: string(decision),
		}),
	}); err != nil {
		return "", fmt.Errorf("compaction: scheduler: emit decision: %w", err)
	}

	return decision, nil
}

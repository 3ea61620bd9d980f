package contextcompiler

import (
	"errors"
	"fmt"

	"github.com/rip-dev/rip/internal/frame"
)

// ErrUnknownStrategy is returned by Compile for an unregistered strategy name.
var ErrUnknownStrategy = errors.New("contextcompiler: unknown strategy")

// Strategy turns a continuity's full message history plus optional
// compaction summaries into a Bundle. Strategies are pure functions of
// their inputs: same messages, same summaries, same budgets in, same
// bundle out (modulo the generated schema/source/provenance framing, which
// the caller supplies).
type Strategy func(input StrategyInput) (Bundle, []string, error)

// StrategyInput carries everything a strategy needs, already resolved by
// the caller (continuity.Store / compaction package) from seq-addressed
// reads — strategies never touch the log or sidecar directly, which is
// what keeps them pure and unit-testable.
type StrategyInput struct {
	ContinuityID string
	ToSeq        uint64
	ToMessageID  string
	Messages     []frame.Envelope // continuity_message_appended, oldest first
	Summaries    []SummaryInput   // oldest first, for summary-based strategies
	Budgets      map[string]int   // e.g. "recent_messages": 40
}

// SummaryInput is one compaction summary available to a strategy, already
// loaded from its artifact.
type SummaryInput struct {
	ArtifactID string
	ToSeq      uint64
	Text       string
	Depth      int // 0 = leaf summary, >0 = hierarchical rollup level
}

var registry = map[string]Strategy{}

func register(name string, s Strategy) {
	registry[name] = s
}

// Compile looks up the named strategy and runs it, returning the produced
// bundle and the human-readable reasons the strategy made the choices it
// did (surfaced as continuity_context_selection_decided's Reasons field).
// The caller still needs to fill in Provenance.ActorID/RunSessionID/Origin,
// which this package has no access to.
func Compile(name string, input StrategyInput) (Bundle, []string, error) {
	strat, ok := registry[name]
	if !ok {
		return Bundle{}, nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	b, reasons, err := strat(input)
	if err != nil {
		return Bundle{}, nil, fmt.Errorf("contextcompiler: strategy %s: %w", name, err)
	}
	b.Schema = BundleSchemaVersion
	b.Compiler = CompilerID
	b.Source = BundleSource{ThreadID: input.ContinuityID, ToSeq: input.ToSeq, ToMessageID: input.ToMessageID}
	b.Provenance.Strategy = name
	return b, reasons, nil
}

func messageItem(e frame.Envelope) (BundleItem, error) {
	var p frame.MessageAppendedPayload
	if err := frame.DecodePayload(e, &p); err != nil {
		return BundleItem{}, err
	}
	return BundleItem{Type: ItemTypeMessage, MessageID: p.MessageID, Role: p.Role, Content: p.Content}, nil
}

func summaryRefItem(s SummaryInput) BundleItem {
	return BundleItem{Type: ItemTypeSummaryRef, Role: "system", ArtifactID: s.ArtifactID, ToSeq: s.ToSeq, Depth: s.Depth}
}

func init() {
	register("recent_messages_v1", recentMessagesV1)
	register("summaries_recent_messages_v1", summariesRecentMessagesV1)
	register("hierarchical_summaries_recent_messages_v1", hierarchicalSummariesRecentMessagesV1)
}

// recentMessagesV1 takes the last N messages verbatim, N from
// Budgets["recent_messages"] (default 40), with no summarization at all.
func recentMessagesV1(in StrategyInput) (Bundle, []string, error) {
	n := in.Budgets["recent_messages"]
	if n <= 0 {
		n = 40
	}
	start := 0
	if len(in.Messages) > n {
		start = len(in.Messages) - n
	}
	window := in.Messages[start:]

	items := make([]BundleItem, 0, len(window))
	for _, e := range window {
		item, err := messageItem(e)
		if err != nil {
			return Bundle{}, nil, err
		}
		items = append(items, item)
	}
	reasons := []string{fmt.Sprintf("included last %d of %d messages verbatim", len(window), len(in.Messages))}
	return Bundle{Items: items}, reasons, nil
}

// summariesRecentMessagesV1 prefaces the recent-messages window with a
// summary_ref item pointing at the single latest compaction summary, so
// older history is represented by reference rather than replayed
// token-for-token.
func summariesRecentMessagesV1(in StrategyInput) (Bundle, []string, error) {
	b, reasons, err := recentMessagesV1(in)
	if err != nil {
		return Bundle{}, nil, err
	}
	if len(in.Summaries) > 0 {
		latest := in.Summaries[len(in.Summaries)-1]
		b.Items = append([]BundleItem{summaryRefItem(latest)}, b.Items...)
		reasons = append(reasons, fmt.Sprintf("prefaced with summary %s (covers up to seq %d)", latest.ArtifactID, latest.ToSeq))
	} else {
		reasons = append(reasons, "no summaries available, falling back to recent_messages_v1 behavior")
	}
	return b, reasons, nil
}

// hierarchicalSummariesRecentMessagesV1 prefaces the recent-messages window
// with one summary_ref item per chained summary (each one potentially
// itself a summary-of-summaries), ordered oldest-depth-first.
func hierarchicalSummariesRecentMessagesV1(in StrategyInput) (Bundle, []string, error) {
	b, reasons, err := recentMessagesV1(in)
	if err != nil {
		return Bundle{}, nil, err
	}
	if len(in.Summaries) == 0 {
		reasons = append(reasons, "no summaries available, falling back to recent_messages_v1 behavior")
		return b, reasons, nil
	}

	refs := make([]BundleItem, 0, len(in.Summaries))
	for _, s := range in.Summaries {
		refs = append(refs, summaryRefItem(s))
	}
	b.Items = append(refs, b.Items...)
	reasons = append(reasons, fmt.Sprintf("folded %d chained summaries into preface as references", len(in.Summaries)))
	return b, reasons, nil
}

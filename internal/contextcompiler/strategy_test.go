package contextcompiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rip-dev/rip/internal/frame"
)

func msgFrame(seq uint64, id, content string) frame.Envelope {
	return frame.Envelope{
		Seq: seq, StreamKind: frame.StreamContinuity, StreamID: "c1",
		Kind: frame.KindContinuityMessageAppended, TsMs: seq, ActorID: "user", Origin: "continuity",
		Payload: frame.MustPayload(frame.MessageAppendedPayload{MessageID: id, Role: "user", Content: content}),
	}
}

func TestRecentMessagesV1WindowsToBudget(t *testing.T) {
	msgs := []frame.Envelope{msgFrame(0, "m0", "a"), msgFrame(1, "m1", "b"), msgFrame(2, "m2", "c")}
	b, reasons, err := Compile("recent_messages_v1", StrategyInput{
		ContinuityID: "c1", Messages: msgs, Budgets: map[string]int{"recent_messages": 2},
	})
	require.NoError(t, err)
	require.Len(t, b.Items, 2)
	assert.Equal(t, "m1", b.Items[0].MessageID)
	assert.Equal(t, "m2", b.Items[1].MessageID)
	assert.NotEmpty(t, reasons)
	b.Provenance.ActorID = "agent"
	assert.NoError(t, Validate(b))
}

func TestUnknownStrategyErrors(t *testing.T) {
	_, _, err := Compile("does_not_exist", StrategyInput{ContinuityID: "c1"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestSummariesRecentMessagesV1PrefersLatestSummary(t *testing.T) {
	msgs := []frame.Envelope{msgFrame(0, "m0", "a")}
	b, _, err := Compile("summaries_recent_messages_v1", StrategyInput{
		ContinuityID: "c1",
		Messages:     msgs,
		Summaries: []SummaryInput{
			{ArtifactID: "art1", ToSeq: 5, Text: "older summary"},
			{ArtifactID: "art2", ToSeq: 10, Text: "latest summary"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, b.Items)
	assert.Equal(t, ItemTypeSummaryRef, b.Items[0].Type)
	assert.Equal(t, "art2", b.Items[0].ArtifactID)
}

func TestHierarchicalSummariesFoldsAllInOrder(t *testing.T) {
	msgs := []frame.Envelope{msgFrame(0, "m0", "a")}
	b, _, err := Compile("hierarchical_summaries_recent_messages_v1", StrategyInput{
		ContinuityID: "c1",
		Messages:     msgs,
		Summaries: []SummaryInput{
			{ArtifactID: "art1", ToSeq: 5, Text: "first", Depth: 0},
			{ArtifactID: "art2", ToSeq: 10, Text: "second", Depth: 1},
		},
	})
	require.NoError(t, err)
	refs := 0
	for _, item := range b.Items {
		if item.Type == ItemTypeSummaryRef {
			refs++
		}
	}
	require.Equal(t, 2, refs)
	assert.Equal(t, "art1", b.Items[0].ArtifactID)
	assert.Equal(t, "art2", b.Items[1].ArtifactID)
}

func TestBundleValidateRejectsMissingRequiredFields(t *testing.T) {
	err := Validate(Bundle{})
	assert.Error(t, err)
}

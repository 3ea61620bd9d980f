package frame

// Payload shapes for each closed frame kind. These are marshaled into
// Envelope.Payload via MustPayload and decoded via DecodePayload.

type SessionStartedPayload struct {
	RunSessionID  string `json:"run_session_id"`
	ContinuityID  string `json:"continuity_id"`
	BundleID      string `json:"bundle_artifact_id"`
	ProviderID    string `json:"provider_id"`
	ModelID       string `json:"model_id"`
	FollowupMode  string `json:"followup_mode"`
}

type OutputTextDeltaPayload struct {
	Text string `json:"text"`
}

type ToolStartedPayload struct {
	ToolID          string `json:"tool_id"`
	ToolName        string `json:"tool_name"`
	Args            string `json:"args"`
	MutatesWorkspace bool  `json:"mutates_workspace"`
}

type ToolStreamPayload struct {
	ToolID string `json:"tool_id"`
	Chunk  string `json:"chunk"`
}

type ToolEndedPayload struct {
	ToolID         string   `json:"tool_id"`
	Status         string   `json:"status"` // ok | error | timeout | cancelled
	ExitCode       int      `json:"exit_code,omitempty"`
	AffectedPaths  []string `json:"affected_paths,omitempty"`
	OutputArtifact string   `json:"output_artifact_id,omitempty"`
}

type ProviderEventPayload struct {
	EventType string `json:"event_type"`
	Raw       string `json:"raw"`
	Error     string `json:"error,omitempty"`
}

type CheckpointCreatedPayload struct {
	CheckpointID  string `json:"checkpoint_id"`
	ToSeq         uint64 `json:"to_seq"`
	ToMessageID   string `json:"to_message_id"`
}

type CheckpointRewoundPayload struct {
	CheckpointID string `json:"checkpoint_id"`
	Reason       string `json:"reason"`
}

type CheckpointFailedPayload struct {
	Reason string `json:"reason"`
}

type SessionEndedPayload struct {
	RunSessionID string `json:"run_session_id"`
	Reason       string `json:"reason"` // ok | provider_error | cancelled
}

// Continuity-stream payloads.

type MessageAppendedPayload struct {
	MessageID string `json:"message_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
}

type RunSpawnedPayload struct {
	RunSessionID string `json:"run_session_id"`
	ProviderID   string `json:"provider_id"`
	ModelID      string `json:"model_id"`
}

type RunEndedPayload struct {
	RunSessionID string `json:"run_session_id"`
	Reason       string `json:"reason"`
}

type ContextCompiledPayload struct {
	RunSessionID     string `json:"run_session_id"`
	BundleArtifactID string `json:"bundle_artifact_id"`
	ToSeq            uint64 `json:"to_seq"`
	ToMessageID      string `json:"to_message_id"`
	CompilerID       string `json:"compiler_id"`
	Strategy         string `json:"strategy"`
}

type ContextSelectionDecidedPayload struct {
	Strategy string            `json:"strategy"`
	Budgets  map[string]int    `json:"budgets"`
	Inputs   map[string]string `json:"inputs"`
	Reasons  []string          `json:"reasons"`
}

type ToolSideEffectsPayload struct {
	RunSessionID  string   `json:"run_session_id"`
	ToolID        string   `json:"tool_id"`
	AffectedPaths []string `json:"affected_paths"`
	CheckpointID  string   `json:"checkpoint_id,omitempty"`
}

type BranchedPayload struct {
	OtherContinuityID string `json:"other_continuity_id"`
	ToSeq             uint64 `json:"to_seq"`
	ToMessageID       string `json:"to_message_id"`
	Role              string `json:"role"` // role of the fork-point message, e.g. "user"
}

type HandoffCreatedPayload struct {
	OtherContinuityID string `json:"other_continuity_id"`
	SummaryArtifactID string `json:"summary_artifact_id"`
	ToSeq             uint64 `json:"to_seq"`
	ToMessageID       string `json:"to_message_id"`
	Role              string `json:"role"` // role of the hand-off-point message, e.g. "user"
}

type CompactionCheckpointCreatedPayload struct {
	SummaryArtifactID string `json:"summary_artifact_id"`
	ToSeq             uint64 `json:"to_seq"`
	ToMessageID       string `json:"to_message_id"`
	CutRuleID         string `json:"cut_rule_id"`
}

type CompactionAutoScheduleDecidedPayload struct {
	PolicyID string   `json:"policy_id"`
	Planned  []string `json:"planned"`
	Decision string   `json:"decision"`
}

type JobSpawnedPayload struct {
	JobID  string            `json:"job_id"`
	Kind   string            `json:"kind"`
	Inputs map[string]string `json:"inputs"`
}

type JobEndedPayload struct {
	JobID     string   `json:"job_id"`
	Status    string   `json:"status"`
	ResultIDs []string `json:"result_ids"`
}

type ProviderCursorUpdatedPayload struct {
	RunSessionID string `json:"run_session_id"`
	ProviderID   string `json:"provider_id"`
	Cursor       string `json:"cursor"`
}

// RunTaggedPayload records free-form tags against a run session, supporting
// the supplemented thread.tag / thread.list operability surface. Tags are
// pure metadata: never read by compilation or compaction decisions.
type RunTaggedPayload struct {
	RunSessionID string   `json:"run_session_id"`
	Tags         []string `json:"tags"`
}

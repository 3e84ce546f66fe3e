package constant

const (
	// Thought step kinds stored in the request log history
	ThoughtStepKindThought = "thought"
	ThoughtStepKindTool    = "tool"

	ToolStatusCompleted = "completed"
	ToolStatusFailed    = "failed"

	RequestLogStatusPending   = "pending"
	RequestLogStatusComplete  = "complete"
	RequestLogStatusFailed    = "failed"
	RequestLogStatusCancelled = "cancelled"

	PlanStepStatusPending    = "pending"
	PlanStepStatusInProgress = "in_progress"
	PlanStepStatusCompleted  = "completed"
	PlanStepStatusFailed     = "failed"
	PlanStepStatusSkipped    = "skipped"

	PlanActionCreate     = "create"
	PlanActionUpdateStep = "update_step"
	PlanActionComplete   = "complete"

	// Tools executed in-process instead of proxied to the backend
	ToolNamePlan   = "mission_plan"
	ToolNameDebate = "debate"

	// Long-running proxied tools get the extended timeout
	ToolNameWebSearch     = "web_search"
	ToolNameCodeExecution = "code_execution"

	// Reserved prefix on a proxied tool's output that tells the stream
	// client to run the named local handler and replace the payload.
	LocalToolSignalPrefix = "@@LOCAL:"

	// Line protocol emitted by the debate tool backend
	DebateSignalPrefix = "DEBATE:"

	DefaultSessionTitle = "New conversation"
)

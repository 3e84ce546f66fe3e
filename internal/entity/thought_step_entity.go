package entity

// ThoughtStep is one element of a request's reasoning history. Kind is
// either "thought" (free-text reasoning) or "tool" (one tool invocation).
// The sequence is append-only during a request and replayed verbatim into
// the chat history on the next turn.
type ThoughtStep struct {
	Kind string `json:"kind"`

	// Thought fields
	Text       string   `json:"text,omitempty"`
	Header     string   `json:"header,omitempty"`
	Critique   string   `json:"critique,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	PlanStatus string   `json:"plan_status,omitempty"`

	// Tool fields
	ToolName   string `json:"tool_name,omitempty"`
	ToolStatus string `json:"tool_status,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
	ToolError  string `json:"tool_error,omitempty"`
}

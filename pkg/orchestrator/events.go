package orchestrator

import (
	"encoding/json"

	"ai-assistant-be/pkg/genclient"
)

// Caller-facing stream event kinds, emitted in real time over the
// lifetime of one request.
const (
	EventLogCreated          = "log_created"
	EventSessionCreated      = "session_created"
	EventSessionTitleUpdated = "session_title_updated"
	EventThoughtHeader       = "thought_header"
	EventThought             = "thought"
	EventToolCall            = "tool_call"
	EventToolProgress        = "tool_progress"
	EventToolOutput          = "tool_output"
	EventToolError           = "tool_error"
	EventUsageUpdate         = "usage_update"
	EventPlanUpdated         = "plan_updated"
	EventChunk               = "chunk"
	EventDone                = "done"
	EventError               = "error"
)

// StreamEvent is one record of the caller-facing stream. Event is the
// discriminator; only the fields relevant to that kind are set.
type StreamEvent struct {
	Event string `json:"event"`

	LogId     string `json:"log_id,omitempty"`
	SessionId string `json:"session_id,omitempty"`
	Title     string `json:"title,omitempty"`

	Header     string   `json:"header,omitempty"`
	Text       string   `json:"text,omitempty"`
	Critique   string   `json:"critique,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CallId   string `json:"call_id,omitempty"`
	ToolName string `json:"tool_name,omitempty"`
	Message  string `json:"message,omitempty"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`

	Usage *genclient.UsagePayload `json:"usage,omitempty"`
	Plan  json.RawMessage         `json:"plan,omitempty"`
}

// StreamEmitter receives every caller-facing event in order. It must
// not block; the controller is responsible for buffering or flushing.
type StreamEmitter func(StreamEvent)

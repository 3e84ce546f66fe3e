package genclient

import (
	"encoding/json"
	"fmt"
)

// Backend stream event kinds.
const (
	EventThought      = "thought"
	EventToolProgress = "tool_progress"
	EventToolOutput   = "tool_output"
	EventToolError    = "tool_error"
	EventUsageUpdate  = "usage_update"
	EventChunk        = "chunk"
	EventError        = "error"
	EventUnknown      = "unknown"
)

// ThoughtPayload is one reasoning step returned by the backend. The
// backend signals loop continuation through NextThoughtNeeded and may
// request tool executions for this round.
type ThoughtPayload struct {
	Text              string            `json:"text"`
	Header            string            `json:"header,omitempty"`
	Critique          string            `json:"critique,omitempty"`
	Confidence        float64           `json:"confidence,omitempty"`
	PlanStatus        string            `json:"plan_status,omitempty"`
	NextThoughtNeeded bool              `json:"next_thought_needed"`
	ToolCalls         []ToolCallRequest `json:"tool_calls,omitempty"`
}

// ToolCallRequest is a tool execution the backend asked for.
type ToolCallRequest struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

type ToolProgressPayload struct {
	CallId  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type ToolOutputPayload struct {
	CallId string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Output string `json:"output"`
}

type ToolErrorPayload struct {
	CallId string `json:"call_id,omitempty"`
	Name   string `json:"name"`
	Error  string `json:"error"`
}

type UsagePayload struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type ChunkPayload struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Event is the closed union over everything a backend stream can carry.
// Exactly one payload pointer is set for a known kind; unrecognized
// kinds keep Kind = EventUnknown with the raw record preserved.
type Event struct {
	Kind         string
	Thought      *ThoughtPayload
	ToolProgress *ToolProgressPayload
	ToolOutput   *ToolOutputPayload
	ToolError    *ToolErrorPayload
	Usage        *UsagePayload
	Chunk        *ChunkPayload
	Err          *ErrorPayload
	Raw          json.RawMessage
}

// DecodeEvent parses one SSE data payload into the typed union. The
// discriminator lives in the "event" field alongside the payload fields.
func DecodeEvent(data []byte) (*Event, error) {
	var envelope struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	event := &Event{Kind: envelope.Event, Raw: append(json.RawMessage{}, data...)}

	var err error
	switch envelope.Event {
	case EventThought:
		event.Thought = &ThoughtPayload{}
		err = json.Unmarshal(data, event.Thought)
	case EventToolProgress:
		event.ToolProgress = &ToolProgressPayload{}
		err = json.Unmarshal(data, event.ToolProgress)
	case EventToolOutput:
		event.ToolOutput = &ToolOutputPayload{}
		err = json.Unmarshal(data, event.ToolOutput)
	case EventToolError:
		event.ToolError = &ToolErrorPayload{}
		err = json.Unmarshal(data, event.ToolError)
	case EventUsageUpdate:
		event.Usage = &UsagePayload{}
		err = json.Unmarshal(data, event.Usage)
	case EventChunk:
		event.Chunk = &ChunkPayload{}
		err = json.Unmarshal(data, event.Chunk)
	case EventError:
		event.Err = &ErrorPayload{}
		err = json.Unmarshal(data, event.Err)
	default:
		event.Kind = EventUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s event: %w", envelope.Event, err)
	}

	return event, nil
}

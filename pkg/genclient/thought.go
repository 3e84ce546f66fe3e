package genclient

import (
	"context"
	"strings"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"
)

// ContextSnippet is one retrieved fragment shipped to the backend.
type ContextSnippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ManifestEntry describes one attachment the backend can reference
// without receiving its bytes again.
type ManifestEntry struct {
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	StorageKey  string `json:"storage_key"`
	Cached      bool   `json:"cached"`
	StorageURI  string `json:"storage_uri,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Description string `json:"description,omitempty"`
}

// ThoughtRequest is the JSON metadata part of a thought generation call.
type ThoughtRequest struct {
	Query              string               `json:"query"`
	History            string               `json:"history,omitempty"`
	Snippets           []ContextSnippet     `json:"snippets,omitempty"`
	FileManifest       []ManifestEntry      `json:"file_manifest,omitempty"`
	Plan               *entity.Plan         `json:"plan,omitempty"`
	ProfileSummary     string               `json:"profile_summary,omitempty"`
	CustomInstructions string               `json:"custom_instructions,omitempty"`
	Mode               string               `json:"mode,omitempty"`
	ThoughtHistory     []entity.ThoughtStep `json:"thought_history,omitempty"`
	Iteration          int                  `json:"iteration"`
	MemoryEnabled      bool                 `json:"memory_enabled"`
	UserId             string               `json:"user_id"`
	SessionId          string               `json:"session_id"`
}

// ToolResult is one tool outcome accumulated from the stream.
type ToolResult struct {
	CallId string
	Name   string
	Output string
	Error  string
}

// ThoughtResult is the structured aggregate of one thought stream:
// the latest thought object, every tool outcome, and the usage block.
type ThoughtResult struct {
	Thought     *ThoughtPayload
	ToolResults []ToolResult
	Usage       *UsagePayload
}

// GenerateThought runs one reasoning round-trip. Events are forwarded in
// arrival order through the callback while being folded into the
// returned result. An error event terminates the stream as a
// StreamError; the accumulated result is still returned alongside it.
func (c *Client) GenerateThought(ctx context.Context, request ThoughtRequest, files []FilePart, forward func(*Event)) (*ThoughtResult, error) {
	body, err := c.openStream(ctx, "/v1/thought", request, files)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	result := &ThoughtResult{}
	var streamErr *StreamError

	readErr := c.readEvents(ctx, body, func(event *Event) bool {
		switch event.Kind {
		case EventThought:
			result.Thought = event.Thought
		case EventToolOutput:
			c.interceptLocalSignal(ctx, event.ToolOutput)
			result.ToolResults = append(result.ToolResults, ToolResult{
				CallId: event.ToolOutput.CallId,
				Name:   event.ToolOutput.Name,
				Output: event.ToolOutput.Output,
			})
		case EventToolError:
			result.ToolResults = append(result.ToolResults, ToolResult{
				CallId: event.ToolError.CallId,
				Name:   event.ToolError.Name,
				Error:  event.ToolError.Error,
			})
		case EventUsageUpdate:
			result.Usage = event.Usage
		case EventError:
			partial := ""
			if result.Thought != nil {
				partial = result.Thought.Text
			}
			streamErr = &StreamError{Message: event.Err.Message, PartialText: partial}
			return true
		case EventUnknown:
			c.log.Debug("GenClient", "Ignoring unknown stream event", map[string]interface{}{
				"raw": string(event.Raw),
			})
			return false
		}

		if forward != nil {
			forward(event)
		}
		return false
	})
	if readErr != nil {
		return result, readErr
	}
	if streamErr != nil {
		return result, streamErr
	}

	return result, nil
}

// interceptLocalSignal detects the reserved local-tool marker in a tool
// output, runs the registered in-process handler, and rewrites the
// payload with the handler's result before the event is forwarded. The
// wire format is PREFIX<tool>:<payload>.
func (c *Client) interceptLocalSignal(ctx context.Context, output *ToolOutputPayload) {
	if output == nil || !strings.HasPrefix(output.Output, constant.LocalToolSignalPrefix) {
		return
	}

	rest := strings.TrimPrefix(output.Output, constant.LocalToolSignalPrefix)
	toolName, payload, found := strings.Cut(rest, ":")
	if !found {
		c.log.Warn("GenClient", "Malformed local tool signal", map[string]interface{}{
			"output": output.Output,
		})
		return
	}

	handler, ok := c.localHandlers[toolName]
	if !ok {
		c.log.Warn("GenClient", "No local handler registered for signal", map[string]interface{}{
			"tool": toolName,
		})
		return
	}

	result, err := handler(ctx, payload)
	if err != nil {
		c.log.Error("GenClient", "Local tool handler failed", map[string]interface{}{
			"tool":  toolName,
			"error": err.Error(),
		})
		output.Output = "local tool failed: " + err.Error()
		return
	}

	output.Output = result
}

package genclient

import (
	"context"
	"strings"

	"ai-assistant-be/internal/entity"
)

// SynthesisRequest is the JSON metadata part of a synthesis call. It
// carries the full accumulated reasoning so the backend writes the final
// answer in one pass.
type SynthesisRequest struct {
	Query              string               `json:"query"`
	History            string               `json:"history,omitempty"`
	Snippets           []ContextSnippet     `json:"snippets,omitempty"`
	FileManifest       []ManifestEntry      `json:"file_manifest,omitempty"`
	ProfileSummary     string               `json:"profile_summary,omitempty"`
	CustomInstructions string               `json:"custom_instructions,omitempty"`
	Mode               string               `json:"mode,omitempty"`
	ThoughtHistory     []entity.ThoughtStep `json:"thought_history"`
	MemoryEnabled      bool                 `json:"memory_enabled"`
	UserId             string               `json:"user_id"`
	SessionId          string               `json:"session_id"`
}

// Synthesize streams the final answer. Each chunk's text is forwarded as
// it arrives and concatenated into the returned full answer. An error
// event surfaces as a StreamError carrying the partial text.
func (c *Client) Synthesize(ctx context.Context, request SynthesisRequest, files []FilePart, forward func(text string)) (string, error) {
	body, err := c.openStream(ctx, "/v1/synthesize", request, files)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var full strings.Builder
	var streamErr *StreamError

	readErr := c.readEvents(ctx, body, func(event *Event) bool {
		switch event.Kind {
		case EventChunk:
			full.WriteString(event.Chunk.Text)
			if forward != nil {
				forward(event.Chunk.Text)
			}
		case EventError:
			streamErr = &StreamError{Message: event.Err.Message, PartialText: full.String()}
			return true
		default:
			c.log.Debug("GenClient", "Ignoring unexpected synthesis event", map[string]interface{}{
				"kind": event.Kind,
			})
		}
		return false
	})
	if readErr != nil {
		return full.String(), readErr
	}
	if streamErr != nil {
		return full.String(), streamErr
	}

	return full.String(), nil
}

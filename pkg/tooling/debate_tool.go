package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/pkg/logger"
)

// DebateTool runs a multi-perspective sub-debate on the backend and
// translates its line-oriented signal protocol into progress events.
// Wire format: one signal per line, `DEBATE:<signal>:<json>`. The
// `complete` signal carries the consensus summary that becomes the
// tool's return value.
type DebateTool struct {
	backend RemoteExecutor
	log     logger.ILogger
}

var _ Tool = &DebateTool{}

func NewDebateTool(backend RemoteExecutor, log logger.ILogger) *DebateTool {
	return &DebateTool{backend: backend, log: log}
}

func (t *DebateTool) Name() string {
	return constant.ToolNameDebate
}

func (t *DebateTool) Execute(ctx context.Context, inv Invocation, query string, progress func(message string)) (string, error) {
	raw, err := t.backend.ExecuteTool(ctx, constant.ToolNameDebate, query, inv.UserId, inv.SessionId, inv.MemoryEnabled)
	if err != nil {
		return "", err
	}
	if progress == nil {
		progress = func(string) {}
	}

	var consensus string
	found := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, constant.DebateSignalPrefix) {
			continue
		}

		signal, payload, ok := strings.Cut(strings.TrimPrefix(line, constant.DebateSignalPrefix), ":")
		if !ok {
			t.log.Warn("Tooling", "Malformed debate signal line", map[string]interface{}{"line": line})
			continue
		}

		switch signal {
		case "complete":
			var body struct {
				Consensus string `json:"consensus"`
			}
			if err := json.Unmarshal([]byte(payload), &body); err != nil {
				t.log.Warn("Tooling", "Malformed debate complete payload", map[string]interface{}{"error": err.Error()})
				continue
			}
			consensus = body.Consensus
			found = true
		default:
			var body struct {
				Speaker string `json:"speaker,omitempty"`
				Message string `json:"message,omitempty"`
			}
			if err := json.Unmarshal([]byte(payload), &body); err != nil {
				progress(signal)
				continue
			}
			if body.Speaker != "" {
				progress(fmt.Sprintf("[%s] %s: %s", signal, body.Speaker, body.Message))
			} else if body.Message != "" {
				progress(fmt.Sprintf("[%s] %s", signal, body.Message))
			} else {
				progress(signal)
			}
		}
	}

	if !found {
		return "", fmt.Errorf("debate finished without a consensus signal")
	}
	return consensus, nil
}

package contextbuilder

import (
	"strings"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
)

// FormatHistory renders prior turns into the flat history block the
// backend consumes. Pending logs (no response yet) are skipped; each
// turn lists its attachment names and a truncated summary of every tool
// run during that turn.
func FormatHistory(logs []*entity.RequestLog, attachmentsByLog map[uuid.UUID][]*entity.FileAttachment) string {
	var sb strings.Builder

	for _, log := range logs {
		if log.Response == nil {
			continue
		}

		sb.WriteString("User: ")
		sb.WriteString(log.Query)
		if names := attachmentNames(attachmentsByLog[log.Id]); names != "" {
			sb.WriteString(" [files: ")
			sb.WriteString(names)
			sb.WriteString("]")
		}
		sb.WriteString("\n")

		for _, step := range log.ThoughtHistory {
			if step.Kind != constant.ThoughtStepKindTool {
				continue
			}
			sb.WriteString("  [tool ")
			sb.WriteString(step.ToolName)
			sb.WriteString(": ")
			if step.ToolError != "" {
				sb.WriteString("failed: ")
				sb.WriteString(TruncateSummary(step.ToolError, toolSummaryMaxChars))
			} else {
				sb.WriteString(TruncateSummary(step.ToolOutput, toolSummaryMaxChars))
			}
			sb.WriteString("]\n")
		}

		sb.WriteString("Assistant: ")
		sb.WriteString(*log.Response)
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// TruncateSummary caps a string at max visible characters, appending an
// ellipsis when anything was cut. Rune-based so multi-byte text is safe.
func TruncateSummary(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func attachmentNames(attachments []*entity.FileAttachment) string {
	if len(attachments) == 0 {
		return ""
	}
	names := make([]string, len(attachments))
	for i, attachment := range attachments {
		names[i] = attachment.FileName
	}
	return strings.Join(names, ", ")
}

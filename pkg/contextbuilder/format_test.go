package contextbuilder

import (
	"strings"
	"testing"

	"ai-assistant-be/internal/constant"
	"ai-assistant-be/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func turn(query, response string, steps ...entity.ThoughtStep) *entity.RequestLog {
	return &entity.RequestLog{
		Id:             uuid.New(),
		Query:          query,
		Response:       &response,
		ThoughtHistory: steps,
	}
}

func TestFormatHistory(t *testing.T) {
	logs := []*entity.RequestLog{
		turn("what is Go", "A programming language."),
		turn("search something", "Here you go.",
			entity.ThoughtStep{Kind: constant.ThoughtStepKindThought, Text: "I should search"},
			entity.ThoughtStep{Kind: constant.ThoughtStepKindTool, ToolName: "web_search", ToolOutput: "top result"},
		),
	}

	got := FormatHistory(logs, nil)

	want := "User: what is Go\n" +
		"Assistant: A programming language.\n" +
		"User: search something\n" +
		"  [tool web_search: top result]\n" +
		"Assistant: Here you go."
	assert.Equal(t, want, got)
}

func TestFormatHistorySkipsPendingTurns(t *testing.T) {
	pending := &entity.RequestLog{Id: uuid.New(), Query: "still running"}
	logs := []*entity.RequestLog{
		turn("done turn", "answer"),
		pending,
	}

	got := FormatHistory(logs, nil)
	assert.NotContains(t, got, "still running")
	assert.Contains(t, got, "done turn")
}

func TestFormatHistoryAttachmentNames(t *testing.T) {
	log := turn("summarize these", "short summary")
	attachments := map[uuid.UUID][]*entity.FileAttachment{
		log.Id: {
			{FileName: "report.pdf"},
			{FileName: "notes.txt"},
		},
	}

	got := FormatHistory([]*entity.RequestLog{log}, attachments)
	assert.Contains(t, got, "User: summarize these [files: report.pdf, notes.txt]")
}

func TestFormatHistoryFailedTool(t *testing.T) {
	log := turn("try the tool", "sorry",
		entity.ThoughtStep{Kind: constant.ThoughtStepKindTool, ToolName: "web_search", ToolError: "timeout after 60s"},
	)

	got := FormatHistory([]*entity.RequestLog{log}, nil)
	assert.Contains(t, got, "[tool web_search: failed: timeout after 60s]")
}

func TestFormatHistoryTruncatesToolOutput(t *testing.T) {
	long := strings.Repeat("z", 500)
	log := turn("q", "a",
		entity.ThoughtStep{Kind: constant.ThoughtStepKindTool, ToolName: "code_execution", ToolOutput: long},
	)

	got := FormatHistory([]*entity.RequestLog{log}, nil)
	assert.Contains(t, got, strings.Repeat("z", toolSummaryMaxChars)+"...")
	assert.NotContains(t, got, strings.Repeat("z", toolSummaryMaxChars+1))
}

func TestTruncateSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short string untouched", "hello", 10, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"long string cut", "hello world", 5, "hello..."},
		{"newlines flattened", "a\nb\nc", 10, "a b c"},
		{"multibyte safe", "héllo wörld", 7, "héllo w..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateSummary(tt.in, tt.max))
		})
	}
}

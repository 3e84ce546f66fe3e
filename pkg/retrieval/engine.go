package retrieval

import (
	"context"
	"fmt"
	"sort"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/unitofwork"
	"ai-assistant-be/pkg/embedding"

	"github.com/google/uuid"
)

const (
	SourceMessage = "message"
	SourceFile    = "file"
)

// Snippet is one retrieved piece of prior context, ready to be injected
// into the request context block.
type Snippet struct {
	Source  string  `json:"source"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Config encapsulates search parameters.
type Config struct {
	ScoreThreshold float64
	TopK           int
	Dimension      int
}

func DefaultConfig(dimension int) Config {
	return Config{
		ScoreThreshold: 0.35,
		TopK:           5,
		Dimension:      dimension,
	}
}

// Engine runs semantic search across both vector corpora, message
// embeddings and file chunk embeddings, and merges the results.
type Engine struct {
	provider embedding.Provider
	config   Config
	log      logger.ILogger
}

func NewEngine(provider embedding.Provider, config Config, log logger.ILogger) *Engine {
	return &Engine{provider: provider, config: config, log: log}
}

// Search embeds the query and returns the TopK snippets across both
// corpora whose similarity clears the threshold, best first. Results
// are always scoped to the given user.
func (e *Engine) Search(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, query string) ([]Snippet, error) {
	vector, err := e.provider.Generate(ctx, query, embedding.TaskTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	vector = Normalize(vector, e.config.Dimension)

	var snippets []Snippet

	messages, err := uow.MessageEmbeddingRepository().SearchSimilarWithScore(ctx, vector, e.config.TopK, userId, e.config.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("message search failed: %w", err)
	}
	for _, res := range messages {
		snippets = append(snippets, Snippet{
			Source:  SourceMessage,
			Content: res.Embedding.Document,
			Score:   res.Similarity,
		})
	}

	chunks, err := uow.FileChunkEmbeddingRepository().SearchSimilarWithScore(ctx, vector, e.config.TopK, userId, e.config.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("file chunk search failed: %w", err)
	}
	for _, res := range chunks {
		snippets = append(snippets, Snippet{
			Source:  SourceFile,
			Content: res.Embedding.Document,
			Score:   res.Similarity,
		})
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})
	if len(snippets) > e.config.TopK {
		snippets = snippets[:e.config.TopK]
	}

	e.log.Debug("Retrieval", "Semantic search completed", map[string]interface{}{
		"query_len": len(query),
		"results":   len(snippets),
	})

	return snippets, nil
}

package embedding

import (
	"context"

	"ai-assistant-be/internal/pkg/logger"
)

// FailoverProvider tries the remote backend first and falls back to the
// local embedder when the backend call fails. Callers always get a
// vector back unless the local embedder itself errors, which keeps
// ingestion and retrieval alive during backend outages.
type FailoverProvider struct {
	primary  Provider
	fallback Provider
	log      logger.ILogger
}

var _ Provider = &FailoverProvider{}

func NewFailoverProvider(primary Provider, fallback Provider, log logger.ILogger) *FailoverProvider {
	return &FailoverProvider{primary: primary, fallback: fallback, log: log}
}

func (p *FailoverProvider) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	vector, err := p.primary.Generate(ctx, text, taskType)
	if err == nil {
		return vector, nil
	}

	p.log.Warn("Embedding", "Remote embedding failed, degrading to local embedder", map[string]interface{}{
		"error":     err.Error(),
		"task_type": taskType,
	})

	return p.fallback.Generate(ctx, text, taskType)
}

package embedding

import "context"

// Backend is the single embedding operation exposed by the generation
// service client.
type Backend interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// RemoteProvider generates embeddings through the remote generation backend.
type RemoteProvider struct {
	backend Backend
}

var _ Provider = &RemoteProvider{}

func NewRemoteProvider(backend Backend) *RemoteProvider {
	return &RemoteProvider{backend: backend}
}

func (p *RemoteProvider) Generate(ctx context.Context, text string, taskType string) ([]float32, error) {
	return p.backend.Embed(ctx, text, taskType)
}

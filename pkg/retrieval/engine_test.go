package retrieval

import (
	"context"
	"errors"
	"testing"

	"ai-assistant-be/internal/entity"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/repository/contract"
	"ai-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vector []float32
	err    error
}

func (p *stubProvider) Generate(context.Context, string, string) ([]float32, error) {
	return p.vector, p.err
}

type stubMessageRepo struct {
	contract.MessageEmbeddingRepository
	results []*contract.ScoredMessageEmbedding
	err     error
}

func (r *stubMessageRepo) SearchSimilarWithScore(context.Context, []float32, int, uuid.UUID, float64) ([]*contract.ScoredMessageEmbedding, error) {
	return r.results, r.err
}

type stubChunkRepo struct {
	contract.FileChunkEmbeddingRepository
	results []*contract.ScoredFileChunkEmbedding
	err     error
}

func (r *stubChunkRepo) SearchSimilarWithScore(context.Context, []float32, int, uuid.UUID, float64) ([]*contract.ScoredFileChunkEmbedding, error) {
	return r.results, r.err
}

type stubUow struct {
	unitofwork.UnitOfWork
	messages *stubMessageRepo
	chunks   *stubChunkRepo
}

func (u *stubUow) MessageEmbeddingRepository() contract.MessageEmbeddingRepository {
	return u.messages
}

func (u *stubUow) FileChunkEmbeddingRepository() contract.FileChunkEmbeddingRepository {
	return u.chunks
}

func scoredMessage(doc string, score float64) *contract.ScoredMessageEmbedding {
	return &contract.ScoredMessageEmbedding{
		Embedding:  &entity.MessageEmbedding{Document: doc},
		Similarity: score,
	}
}

func scoredChunk(doc string, score float64) *contract.ScoredFileChunkEmbedding {
	return &contract.ScoredFileChunkEmbedding{
		Embedding:  &entity.FileChunkEmbedding{Document: doc},
		Similarity: score,
	}
}

func TestSearchMergesCorporaBestFirst(t *testing.T) {
	engine := NewEngine(&stubProvider{vector: []float32{1}}, Config{
		ScoreThreshold: 0.35,
		TopK:           5,
		Dimension:      4,
	}, logger.NewNopLogger())

	uow := &stubUow{
		messages: &stubMessageRepo{results: []*contract.ScoredMessageEmbedding{
			scoredMessage("older answer", 0.9),
			scoredMessage("weak match", 0.4),
		}},
		chunks: &stubChunkRepo{results: []*contract.ScoredFileChunkEmbedding{
			scoredChunk("pdf chunk", 0.7),
		}},
	}

	snippets, err := engine.Search(context.Background(), uow, uuid.New(), "what did I say")
	require.NoError(t, err)
	require.Len(t, snippets, 3)

	assert.Equal(t, "older answer", snippets[0].Content)
	assert.Equal(t, SourceMessage, snippets[0].Source)
	assert.Equal(t, "pdf chunk", snippets[1].Content)
	assert.Equal(t, SourceFile, snippets[1].Source)
	assert.Equal(t, "weak match", snippets[2].Content)
}

func TestSearchCapsAtTopK(t *testing.T) {
	engine := NewEngine(&stubProvider{vector: []float32{1}}, Config{
		ScoreThreshold: 0.35,
		TopK:           2,
		Dimension:      4,
	}, logger.NewNopLogger())

	uow := &stubUow{
		messages: &stubMessageRepo{results: []*contract.ScoredMessageEmbedding{
			scoredMessage("a", 0.9),
			scoredMessage("b", 0.8),
		}},
		chunks: &stubChunkRepo{results: []*contract.ScoredFileChunkEmbedding{
			scoredChunk("c", 0.85),
		}},
	}

	snippets, err := engine.Search(context.Background(), uow, uuid.New(), "q")
	require.NoError(t, err)
	require.Len(t, snippets, 2)
	assert.Equal(t, "a", snippets[0].Content)
	assert.Equal(t, "c", snippets[1].Content)
}

func TestSearchEmbeddingFailure(t *testing.T) {
	engine := NewEngine(&stubProvider{err: errors.New("backend down")}, DefaultConfig(4), logger.NewNopLogger())

	_, err := engine.Search(context.Background(), &stubUow{}, uuid.New(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query embedding failed")
}

func TestSearchCorpusFailure(t *testing.T) {
	engine := NewEngine(&stubProvider{vector: []float32{1}}, DefaultConfig(4), logger.NewNopLogger())

	uow := &stubUow{
		messages: &stubMessageRepo{err: errors.New("db gone")},
		chunks:   &stubChunkRepo{},
	}

	_, err := engine.Search(context.Background(), uow, uuid.New(), "q")
	require.Error(t, err)
}

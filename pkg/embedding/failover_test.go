package embedding

import (
	"context"
	"errors"
	"testing"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	vector []float32
	err    error
	calls  int
}

func (p *fakeProvider) Generate(context.Context, string, string) ([]float32, error) {
	p.calls++
	return p.vector, p.err
}

func TestFailoverPrefersPrimary(t *testing.T) {
	primary := &fakeProvider{vector: []float32{1, 2}}
	fallback := &fakeProvider{vector: []float32{9, 9}}
	p := NewFailoverProvider(primary, fallback, logger.NewNopLogger())

	v, err := p.Generate(context.Background(), "text", TaskTypeQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, v)
	assert.Zero(t, fallback.calls)
}

func TestFailoverDegradesToFallback(t *testing.T) {
	primary := &fakeProvider{err: errors.New("503")}
	fallback := &fakeProvider{vector: []float32{9, 9}}
	p := NewFailoverProvider(primary, fallback, logger.NewNopLogger())

	v, err := p.Generate(context.Background(), "text", TaskTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, v)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestFailoverPropagatesFallbackError(t *testing.T) {
	primary := &fakeProvider{err: errors.New("503")}
	fallback := &fakeProvider{err: errors.New("broken")}
	p := NewFailoverProvider(primary, fallback, logger.NewNopLogger())

	_, err := p.Generate(context.Background(), "text", TaskTypeQuery)
	require.Error(t, err)
}

package local

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder produces deterministic embeddings without any network call.
// Each token is hashed into a fixed number of buckets and the resulting
// histogram is L2-normalized, so identical text always yields an
// identical vector. Quality is far below a learned model; it exists so
// ingestion and retrieval keep working when the backend is unreachable.
type Embedder struct {
	dimension int
}

func NewEmbedder(dimension int) *Embedder {
	return &Embedder{dimension: dimension}
}

func (e *Embedder) Generate(_ context.Context, text string, _ string) ([]float32, error) {
	vector := make([]float32, e.dimension)
	if e.dimension == 0 {
		return vector, nil
	}

	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vector[int(h.Sum32())%e.dimension]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return vector, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

package retrieval

// Normalize coerces a vector to the given dimension so it can be stored
// or compared against the pgvector columns. Longer vectors are truncated
// and shorter ones are zero padded on the right.
func Normalize(vector []float32, dimension int) []float32 {
	if dimension <= 0 {
		return []float32{}
	}
	if len(vector) == dimension {
		return vector
	}
	out := make([]float32, dimension)
	copy(out, vector)
	return out
}

package local

import (
	"context"
	"math"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	e := NewEmbedder(64)

	a, err := e.Generate(context.Background(), "the quick brown fox", "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Generate(context.Background(), "the quick brown fox", "")
	if err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGenerateDimensionAndNorm(t *testing.T) {
	e := NewEmbedder(32)

	v, err := e.Generate(context.Background(), "Hello, World! 123", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 32 {
		t.Fatalf("len = %d, want 32", len(v))
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("L2 norm = %v, want 1", norm)
	}
}

func TestGenerateCaseInsensitive(t *testing.T) {
	e := NewEmbedder(64)

	a, _ := e.Generate(context.Background(), "Alpha Beta", "")
	b, _ := e.Generate(context.Background(), "alpha beta", "")

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("case variants produce different vectors at %d", i)
		}
	}
}

func TestGenerateEmptyText(t *testing.T) {
	e := NewEmbedder(16)

	v, err := e.Generate(context.Background(), "   ", "")
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v at %d", x, i)
		}
	}
}
